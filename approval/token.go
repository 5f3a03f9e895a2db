// Package approval implements the tokenized multi-party approval flow for
// pending registrations: capability tokens for reviewers, the atomic resolver,
// and the outcome notification fan-out.
package approval

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/placement-cell/placement-portal-api/models"
)

// TokenTTL is how long a minted approval link stays usable.
const TokenTTL = 3 * 24 * time.Hour

// Token validation failures. The resolver reports both to the caller as an
// invalid link; the split only changes the user-facing message.
var (
	ErrLinkInvalid = errors.New("approval link is not valid")
	ErrLinkExpired = errors.New("approval link has expired")
)

// TokenPayload is the verified content of an approval token. It binds one
// reviewer to one pending registration; the action is chosen at click time.
// A valid token is necessary but not sufficient: the resolver still checks the
// registration is live and that department/year match.
type TokenPayload struct {
	PendingRegistrationID string
	Department            string
	Year                  string
	ReviewerID            string
	ReviewerName          string
	ReviewerEmail         string
}

// TokenService mints and validates signed approval tokens. Tokens are
// stateless; all liveness and at-most-once logic lives in the resolver.
type TokenService struct {
	Secret []byte

	// Now is overridable for tests; defaults to time.Now.
	Now func() time.Time
}

// NewTokenService creates a token service with the given signing secret
func NewTokenService(secret []byte) *TokenService {
	return &TokenService{Secret: secret, Now: time.Now}
}

// Mint produces a signed token authorizing one reviewer to act on one pending
// registration. Each eligible reviewer receives their own token so the audit
// trail records who acted.
func (s *TokenService) Mint(pendingRegistrationID, department, year string, reviewer models.Representative) (string, error) {
	now := s.Now()
	claims := jwt.MapClaims{
		"sub":           pendingRegistrationID,
		"department":    department,
		"year":          year,
		"reviewerId":    reviewer.ID.Hex(),
		"reviewerName":  reviewer.Name,
		"reviewerEmail": reviewer.Email,
		"typ":           "approval",
		"iat":           now.Unix(),
		"exp":           now.Add(TokenTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.Secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign approval token: %w", err)
	}
	return signed, nil
}

// Validate checks signature and expiry and returns the embedded payload. It
// deliberately does not check that the registration still exists; that is the
// resolver's job.
func (s *TokenService) Validate(tokenString string) (*TokenPayload, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.Secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return s.Now() }))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrLinkExpired
		}
		return nil, ErrLinkInvalid
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrLinkInvalid
	}
	if typ, _ := claims["typ"].(string); typ != "approval" {
		return nil, ErrLinkInvalid
	}

	payload := &TokenPayload{
		PendingRegistrationID: stringClaim(claims, "sub"),
		Department:            stringClaim(claims, "department"),
		Year:                  stringClaim(claims, "year"),
		ReviewerID:            stringClaim(claims, "reviewerId"),
		ReviewerName:          stringClaim(claims, "reviewerName"),
		ReviewerEmail:         stringClaim(claims, "reviewerEmail"),
	}
	if payload.PendingRegistrationID == "" || payload.ReviewerID == "" {
		return nil, ErrLinkInvalid
	}
	return payload, nil
}

func stringClaim(claims jwt.MapClaims, key string) string {
	v, _ := claims[key].(string)
	return v
}
