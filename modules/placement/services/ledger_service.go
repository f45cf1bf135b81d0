package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/campusops/placement/modules/placement/domain/aggregates/capacity"
	"github.com/campusops/placement/pkg/composables"
	"github.com/campusops/placement/pkg/configuration"
)

// LedgerService is the only writer of capacity windows. All mutation goes
// through the optimistic-concurrency loop: read, apply, conditional write,
// retry on version mismatch up to the configured budget.
type LedgerService struct {
	repo capacity.Repository
	opts configuration.LedgerOptions
}

func NewLedgerService(repo capacity.Repository, opts configuration.LedgerOptions) *LedgerService {
	return &LedgerService{
		repo: repo,
		opts: opts,
	}
}

func (s *LedgerService) Get(ctx context.Context, key capacity.WindowKey) (capacity.Window, error) {
	return s.repo.GetByKey(ctx, key)
}

func (s *LedgerService) ListByProgram(ctx context.Context, programID uuid.UUID) ([]capacity.Window, error) {
	return s.repo.ListByProgram(ctx, programID)
}

func (s *LedgerService) Reserve(ctx context.Context, key capacity.WindowKey, n int) (capacity.Window, error) {
	return s.mutate(ctx, key, -n, func(w capacity.Window) (capacity.Window, error) {
		return w.Reserve(n)
	})
}

func (s *LedgerService) Release(ctx context.Context, key capacity.WindowKey, n int) (capacity.Window, error) {
	return s.mutate(ctx, key, n, func(w capacity.Window) (capacity.Window, error) {
		return w.Release(n)
	})
}

func (s *LedgerService) Audit(ctx context.Context, key capacity.WindowKey) ([]capacity.AuditEntry, error) {
	return s.repo.ListAudit(ctx, key)
}

func (s *LedgerService) mutate(
	ctx context.Context,
	key capacity.WindowKey,
	delta int,
	apply func(capacity.Window) (capacity.Window, error),
) (capacity.Window, error) {
	backoff := s.opts.BaseBackoff
	for attempt := 0; attempt < s.opts.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return capacity.Window{}, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > s.opts.MaxBackoff {
				backoff = s.opts.MaxBackoff
			}
		}

		updated, err := s.attempt(ctx, key, delta, apply)
		if errors.Is(err, capacity.ErrConcurrencyConflict) {
			continue
		}
		if err != nil {
			return capacity.Window{}, err
		}
		return updated, nil
	}
	return capacity.Window{}, capacity.ErrConcurrencyConflict.WithDetails(
		"window %s after %d attempts", key, s.opts.MaxAttempts)
}

// attempt performs one read-apply-write round inside a transaction so the
// conditional update and its audit entry commit together.
func (s *LedgerService) attempt(
	ctx context.Context,
	key capacity.WindowKey,
	delta int,
	apply func(capacity.Window) (capacity.Window, error),
) (capacity.Window, error) {
	return composables.InTxResult(ctx, func(txCtx context.Context) (capacity.Window, error) {
		current, err := s.repo.GetByKey(txCtx, key)
		if err != nil {
			return capacity.Window{}, err
		}

		next, err := apply(current)
		if err != nil {
			return capacity.Window{}, err
		}

		updated, err := s.repo.UpdateSpots(txCtx, key, next.AvailableSpots(), current.Version())
		if err != nil {
			return capacity.Window{}, err
		}

		if invErr := updated.CheckInvariant(); invErr != nil {
			composables.UseLogger(txCtx).
				WithField("window", key.String()).
				WithField("available", updated.AvailableSpots()).
				WithField("max", updated.MaxCapacity()).
				Error("capacity window reached an impossible state, halting writes")
			if haltErr := s.repo.MarkHalted(txCtx, key); haltErr != nil {
				return capacity.Window{}, errors.Join(invErr, haltErr)
			}
			return capacity.Window{}, invErr
		}

		entry := capacity.AuditEntry{
			Key:        key,
			Delta:      delta,
			Resulting:  updated.AvailableSpots(),
			Actor:      composables.UseActor(txCtx),
			OccurredAt: time.Now().UTC(),
		}
		if err := s.repo.AppendAudit(txCtx, entry); err != nil {
			return capacity.Window{}, err
		}
		return updated, nil
	})
}
