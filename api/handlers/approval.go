package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/placement-cell/placement-portal-api/api"
	"github.com/placement-cell/placement-portal-api/approval"
	"github.com/placement-cell/placement-portal-api/config"
)

// Approval exported for testing purposes
type Approval struct {
	Resolver *approval.Resolver
	Hub      *Hub
}

// ResolveRegistrationHandler consumes an emailed approval link. The token and
// action arrive as query parameters because reviewers land here straight from
// their mail client. Exactly one click among any number of concurrent ones
// resolves the registration; the rest are told it is already handled.
func (a Approval) ResolveRegistrationHandler(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	action := r.URL.Query().Get("action")

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	outcome, err := a.Resolver.Resolve(ctx, token, action)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, approval.ErrInvalidAction), errors.Is(err, approval.ErrLinkInvalid):
			status = http.StatusBadRequest
		case errors.Is(err, approval.ErrLinkExpired):
			status = http.StatusGone
		case errors.Is(err, approval.ErrAlreadyResolved):
			status = http.StatusConflict
		case errors.Is(err, approval.ErrScopeMismatch):
			status = http.StatusForbidden
		}
		config.ErrorStatus("failed to resolve registration", status, w, err)
		return
	}

	a.Hub.BroadcastEvent("registration_resolved", map[string]interface{}{
		"registrationId": outcome.Registration.ID.Hex(),
		"action":         outcome.Action,
		"resolvedBy":     outcome.ResolvedBy,
	})

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(outcome)
}

// RegistrationStatusHandler is the token-bound read-only status lookup, so a
// reviewer can check where a registration stands without acting on it.
func (a Approval) RegistrationStatusHandler(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	view, err := a.Resolver.Status(ctx, token)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, approval.ErrLinkInvalid):
			status = http.StatusBadRequest
		case errors.Is(err, approval.ErrLinkExpired):
			status = http.StatusGone
		}
		config.ErrorStatus("failed to get registration status", status, w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(view)
}
