// Package otp issues and verifies the one-time codes used as email ownership
// proofs for registration, email change and password reset.
package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/placement-cell/placement-portal-api/databases"
	"github.com/placement-cell/placement-portal-api/mailer"
	"github.com/placement-cell/placement-portal-api/models"
	templates "github.com/placement-cell/placement-portal-api/templates/html"
)

// ChallengeTTL is how long an issued code stays redeemable.
const ChallengeTTL = 5 * time.Minute

// Verification failure taxonomy. All three are user-facing and recoverable;
// anything else coming out of Verify is a store failure.
var (
	ErrNotFound = errors.New("no code requested for this identifier and purpose")
	ErrExpired  = errors.New("code has expired, request a new one")
	ErrMismatch = errors.New("incorrect code")
)

// Engine issues, replaces and verifies OTP challenges against the code store.
// It owns the otpChallenges collection exclusively.
type Engine struct {
	DB   databases.OtpChallengeDatabase
	Mail mailer.Sender

	// Now is overridable for tests; defaults to time.Now.
	Now func() time.Time
}

// NewEngine creates an OTP engine backed by the given store and mail sender
func NewEngine(db databases.OtpChallengeDatabase, mail mailer.Sender) *Engine {
	return &Engine{DB: db, Mail: mail, Now: time.Now}
}

// Issue generates a fresh 6-digit code for the (identifier, purpose) pair,
// replacing any outstanding challenge for that pair, and dispatches delivery in
// the background. The code is valid once stored; delivery failure does not fail
// the issuance.
func (e *Engine) Issue(ctx context.Context, identifier string, purpose models.OtpPurpose) error {
	code, err := generateCode()
	if err != nil {
		return fmt.Errorf("failed to generate code: %w", err)
	}

	now := e.Now()
	challenge := models.OtpChallenge{
		Identifier: identifier,
		Purpose:    purpose,
		Code:       code,
		Attempts:   0,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ChallengeTTL),
	}

	if err := e.DB.Replace(ctx, challenge); err != nil {
		return fmt.Errorf("failed to store challenge: %w", err)
	}

	// Send the code in the background so a slow or failing mail provider never
	// blocks the request. The stored code is already redeemable.
	go func(identifier, code string, purpose models.OtpPurpose) {
		defer func() {
			if r := recover(); r != nil {
				zap.S().Errorw("panic while sending verification code", "identifier", identifier, "panic", r)
			}
		}()

		subject := subjectFor(purpose)
		plain := "Your verification code is: " + code + ". This code will expire in 5 minutes."
		html := templates.RenderCode(code, subjectFor(purpose))
		if err := e.Mail.Send(identifier, "", subject, html, plain); err != nil {
			zap.S().Errorw("failed to send verification code", "identifier", identifier, "error", err)
		}
	}(identifier, code, purpose)

	return nil
}

// Verify redeems a submitted code. The success path is a single conditional
// delete against the store, so concurrent verifications of the same challenge
// yield at most one success. Mismatches bump the attempts counter; expired
// challenges are removed on detection.
func (e *Engine) Verify(ctx context.Context, identifier string, purpose models.OtpPurpose, submittedCode string) error {
	now := e.Now()

	_, err := e.DB.Claim(ctx, identifier, purpose, submittedCode, now)
	if err == nil {
		return nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("failed to claim challenge: %w", err)
	}

	// The claim missed: work out which failure to report.
	challenge, err := e.DB.FindOne(ctx, identifier, purpose)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to look up challenge: %w", err)
	}

	if now.After(challenge.ExpiresAt) {
		if err := e.DB.DeleteOne(ctx, identifier, purpose); err != nil {
			zap.S().Warnw("failed to remove expired challenge", "identifier", identifier, "error", err)
		}
		return ErrExpired
	}

	if err := e.DB.IncrementAttempts(ctx, identifier, purpose); err != nil {
		zap.S().Warnw("failed to increment attempts", "identifier", identifier, "error", err)
	}
	return ErrMismatch
}

// generateCode returns a uniformly random 6-digit numeric string, leading
// zeros included.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func subjectFor(purpose models.OtpPurpose) string {
	switch purpose {
	case models.PurposeRegister:
		return "Placement Portal Registration Code"
	case models.PurposeEmailChange:
		return "Placement Portal Email Change Code"
	case models.PurposeForgotPassword:
		return "Placement Portal Password Reset Code"
	case models.PurposePhoneChange:
		return "Placement Portal Phone Change Code"
	}
	return "Placement Portal Verification Code"
}
