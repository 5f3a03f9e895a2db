package approval

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/placement-cell/placement-portal-api/databases"
	"github.com/placement-cell/placement-portal-api/mailer"
	"github.com/placement-cell/placement-portal-api/models"
	templates "github.com/placement-cell/placement-portal-api/templates/html"
)

// Notifier fans out outcome emails after a registration is resolved. Delivery
// is a side effect, not a commit condition: failures are logged and swallowed,
// and nothing here ever reverses or blocks the state transition.
type Notifier struct {
	Mail    mailer.Sender
	RDB     databases.RepresentativeDatabase
	BaseURL string
}

// NewNotifier wires a notifier from its collaborators
func NewNotifier(mail mailer.Sender, rdb databases.RepresentativeDatabase, baseURL string) *Notifier {
	return &Notifier{Mail: mail, RDB: rdb, BaseURL: baseURL}
}

// ResolvedAsync dispatches the outcome fan-out in the background and returns
// immediately.
func (n *Notifier) ResolvedAsync(registration *models.PendingRegistration, action string, actor *TokenPayload) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				zap.S().Errorw("panic in resolution fan-out", "registrationId", registration.ID.Hex(), "panic", r)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		n.notifyResolved(ctx, registration, action, actor)
	}()
}

func (n *Notifier) notifyResolved(ctx context.Context, registration *models.PendingRegistration, action string, actor *TokenPayload) {
	// Registrant first.
	var subject, html, plain string
	switch action {
	case models.ActionApprove:
		subject = "Your placement portal registration was approved"
		html = templates.RenderRegistrationApproved(registration.Name, n.BaseURL)
		plain = "Your registration was approved. You can now sign in to the placement portal."
	case models.ActionReject:
		subject = "Your placement portal registration was rejected"
		html = templates.RenderRegistrationRejected(registration.Name, actor.ReviewerName, actor.ReviewerEmail)
		plain = "Your registration was rejected. Contact " + actor.ReviewerName + " (" + actor.ReviewerEmail + ") and re-register afterwards."
	}
	if err := n.Mail.Send(registration.Email, registration.Name, subject, html, plain); err != nil {
		zap.S().Errorw("failed to send outcome email to registrant",
			"registrationId", registration.ID.Hex(), "error", err)
	}

	// Then every other eligible reviewer, so nobody acts on a stale link.
	reviewers, err := n.RDB.FindEligibleReviewers(ctx, registration.Department, registration.Year)
	if err != nil {
		zap.S().Errorw("failed to list reviewers for fan-out",
			"registrationId", registration.ID.Hex(), "error", err)
		return
	}

	for _, reviewer := range reviewers {
		if reviewer.ID.Hex() == actor.ReviewerID {
			continue
		}
		html := templates.RenderReviewerOutcome(reviewer.Name, registration.Name, registration.RegisterNumber, action, actor.ReviewerName)
		plain := "The registration for " + registration.Name + " was already " + action + "d by " + actor.ReviewerName + "."
		if err := n.Mail.Send(reviewer.Email, reviewer.Name, "Registration already reviewed", html, plain); err != nil {
			zap.S().Warnw("failed to send outcome email to reviewer",
				"registrationId", registration.ID.Hex(), "reviewer", reviewer.ID.Hex(), "error", err)
		}
	}
}

// RequestReviews mints one token per eligible reviewer and emails each an
// approve/reject link. Called at submission time; failures are logged and do
// not fail the submission.
func RequestReviews(ctx context.Context, tokens *TokenService, rdb databases.RepresentativeDatabase, mail mailer.Sender, baseURL string, registration *models.PendingRegistration) int {
	reviewers, err := rdb.FindEligibleReviewers(ctx, registration.Department, registration.Year)
	if err != nil {
		zap.S().Errorw("failed to list eligible reviewers",
			"registrationId", registration.ID.Hex(), "error", err)
		return 0
	}

	notified := 0
	for _, reviewer := range reviewers {
		token, err := tokens.Mint(registration.ID.Hex(), registration.Department, registration.Year, reviewer)
		if err != nil {
			zap.S().Errorw("failed to mint approval token",
				"registrationId", registration.ID.Hex(), "reviewer", reviewer.ID.Hex(), "error", err)
			continue
		}

		approveLink := baseURL + "/api/v1/registrations/resolve?action=approve&token=" + token
		rejectLink := baseURL + "/api/v1/registrations/resolve?action=reject&token=" + token
		html := templates.RenderApprovalRequest(reviewer.Name, registration.Name, registration.RegisterNumber,
			registration.Department, registration.Year, approveLink, rejectLink)
		plain := "A new registration from " + registration.Name + " (" + registration.RegisterNumber + ") is waiting for review. Approve: " + approveLink + " Reject: " + rejectLink

		if err := mail.Send(reviewer.Email, reviewer.Name, "Registration approval requested", html, plain); err != nil {
			zap.S().Warnw("failed to send approval request email",
				"registrationId", registration.ID.Hex(), "reviewer", reviewer.ID.Hex(), "error", err)
			continue
		}
		notified++
	}
	return notified
}
