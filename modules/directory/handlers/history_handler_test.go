package handlers_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/campusops/placement/modules/directory/handlers"
	"github.com/campusops/placement/modules/directory/infrastructure/persistence/memory"
	"github.com/campusops/placement/modules/directory/services"
	"github.com/campusops/placement/modules/placement/domain/aggregates/capacity"
	"github.com/campusops/placement/modules/placement/domain/aggregates/execution"
	"github.com/campusops/placement/pkg/eventbus"
)

func TestHistoryHandlerRecordsCommittedResults(t *testing.T) {
	ctx := context.Background()
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	bus := eventbus.NewEventPublisher(log)
	sites := services.NewSiteService(memory.NewSiteRepository())
	handlers.RegisterHistoryHandler(bus, nil, sites, log)

	created, err := sites.Create(ctx, "Riverside Clinic", "Downtown")
	require.NoError(t, err)

	programID := uuid.New()
	at := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	key := capacity.WindowKey{
		SiteID:      created.ID(),
		ProgramID:   programID,
		PeriodStart: at.AddDate(0, -1, 0),
		PeriodEnd:   at.AddDate(0, 2, 0),
	}
	batchID := uuid.New()

	bus.Publish(execution.CompletedEvent{
		BatchID: batchID,
		Mode:    execution.ModeBestEffort,
		Results: []execution.Result{
			execution.New(batchID, uuid.New(), key, execution.OutcomeCommitted, "", "system", at),
			execution.New(batchID, uuid.New(), key, execution.OutcomeInsufficientCapacity, "window exhausted", "system", at),
		},
	})

	profile, err := sites.Profile(ctx, created.ID(), programID)
	require.NoError(t, err)
	require.Equal(t, at, profile.LastAssignedAt)
	// one committed result, zero completions so far
	require.InDelta(t, 0.0, profile.SuccessRate, 1e-9)
}
