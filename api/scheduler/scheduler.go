// Package scheduler runs the periodic background jobs: purging expired codes
// and registrations, and repairing claims whose follow-up writes were lost to
// a crash.
package scheduler

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/placement-cell/placement-portal-api/databases"
	"github.com/placement-cell/placement-portal-api/models"
)

// staleClaimAge is how old a claimed registration must be before the sweep
// treats its resolver as dead. Normal resolutions finish in well under a
// second.
const staleClaimAge = 2 * time.Minute

// Scheduler handles the periodic background jobs
type Scheduler struct {
	cron       *cron.Cron
	OTPDB      databases.OtpChallengeDatabase
	PRDB       databases.PendingRegistrationDatabase
	SDB        databases.StudentDatabase
	LockDB     databases.SchedulerLockDatabase
	instanceID string
}

// NewScheduler creates a new scheduler instance
func NewScheduler(
	otpDB databases.OtpChallengeDatabase,
	prDB databases.PendingRegistrationDatabase,
	sDB databases.StudentDatabase,
	lockDB databases.SchedulerLockDatabase,
) *Scheduler {
	// Generate a unique instance ID for this pod
	instanceID := os.Getenv("DYNO") // Heroku sets this to "web.1", "web.2", etc.
	if instanceID == "" {
		instanceID = fmt.Sprintf("instance-%d", time.Now().UnixNano())
	}

	return &Scheduler{
		cron:       cron.New(cron.WithLocation(time.UTC)),
		OTPDB:      otpDB,
		PRDB:       prDB,
		SDB:        sDB,
		LockDB:     lockDB,
		instanceID: instanceID,
	}
}

// Start begins the scheduler with all registered jobs
func (s *Scheduler) Start() {
	// Purge expired challenges and registrations every 10 minutes
	_, err := s.cron.AddFunc("*/10 * * * *", s.purgeExpired)
	if err != nil {
		zap.S().Errorw("failed to register purge job", "error", err)
	}

	// Repair stale claims every 5 minutes
	_, err = s.cron.AddFunc("*/5 * * * *", s.reconcileClaims)
	if err != nil {
		zap.S().Errorw("failed to register reconcile job", "error", err)
	}

	s.cron.Start()
	zap.S().Info("Background scheduler started")
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	zap.S().Info("Background scheduler stopped")
}

// purgeExpired removes expired OTP challenges and expired live registrations
func (s *Scheduler) purgeExpired() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	acquired, err := s.LockDB.TryAcquireLock(ctx, "purge_expired_job", s.instanceID, 5*time.Minute)
	if err != nil {
		zap.S().Errorw("failed to acquire lock for purge job", "error", err)
		return
	}
	if !acquired {
		zap.S().Debug("Purge job already running on another instance, skipping")
		return
	}
	defer s.LockDB.ReleaseLock(ctx, "purge_expired_job", s.instanceID)

	now := time.Now()

	challenges, err := s.OTPDB.DeleteExpired(ctx, now)
	if err != nil {
		zap.S().Errorw("failed to purge expired challenges", "error", err)
	}

	registrations, err := s.PRDB.DeleteExpired(ctx, now)
	if err != nil {
		zap.S().Errorw("failed to purge expired registrations", "error", err)
	}

	if challenges > 0 || registrations > 0 {
		zap.S().Infow("Purged expired records",
			"challenges", challenges,
			"registrations", registrations,
			"instance", s.instanceID,
		)
	}
}

// reconcileClaims finishes resolutions that were interrupted between the
// atomic claim and the follow-up writes. A claimed record past the stale age
// has no live resolver working on it; the sweep replays the remaining steps,
// which are idempotent.
func (s *Scheduler) reconcileClaims() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	acquired, err := s.LockDB.TryAcquireLock(ctx, "reconcile_claims_job", s.instanceID, 5*time.Minute)
	if err != nil {
		zap.S().Errorw("failed to acquire lock for reconcile job", "error", err)
		return
	}
	if !acquired {
		zap.S().Debug("Reconcile job already running on another instance, skipping")
		return
	}
	defer s.LockDB.ReleaseLock(ctx, "reconcile_claims_job", s.instanceID)

	stale, err := s.PRDB.FindStaleClaims(ctx, time.Now().Add(-staleClaimAge))
	if err != nil {
		zap.S().Errorw("failed to find stale claims", "error", err)
		return
	}

	for _, registration := range stale {
		s.reconcileClaim(ctx, registration)
	}

	if len(stale) > 0 {
		zap.S().Infow("Reconciled stale claims", "count", len(stale), "instance", s.instanceID)
	}
}

func (s *Scheduler) reconcileClaim(ctx context.Context, registration models.PendingRegistration) {
	if registration.ClaimedAction == models.ActionApprove {
		if err := s.ensureStudent(ctx, registration); err != nil {
			zap.S().Errorw("failed to complete approval for stale claim",
				"registrationId", registration.ID.Hex(), "error", err)
			return
		}
	}

	if err := s.PRDB.DeleteByID(ctx, registration.ID); err != nil {
		zap.S().Errorw("failed to delete reconciled registration",
			"registrationId", registration.ID.Hex(), "error", err)
		return
	}

	zap.S().Infow("Reconciled stale claim",
		"registrationId", registration.ID.Hex(),
		"action", registration.ClaimedAction,
	)
}

// ensureStudent creates the promoted student if the crashed resolver never got
// that far. The lookup keys on the source registration, so a student created
// right before the crash is found rather than duplicated.
func (s *Scheduler) ensureStudent(ctx context.Context, registration models.PendingRegistration) error {
	_, err := s.SDB.FindOne(ctx, bson.M{"pendingRegistrationId": registration.ID})
	if err == nil {
		return nil
	}
	if err != mongo.ErrNoDocuments {
		return err
	}

	now := time.Now()
	_, err = s.SDB.InsertOne(ctx, models.Student{
		PendingRegistrationID: registration.ID,
		Name:                  registration.Name,
		RegisterNumber:        registration.RegisterNumber,
		Email:                 registration.Email,
		PasswordHash:          registration.PasswordHash,
		Department:            registration.Department,
		Year:                  registration.Year,
		PhotoURL:              registration.PhotoURL,
		Status:                models.StudentStatusApproved,
		ApprovedBy:            registration.ClaimedBy,
		CreatedAt:             now,
		UpdatedAt:             now,
	})
	return err
}
