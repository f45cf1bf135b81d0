package handlers

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/campusops/placement/modules/directory/services"
	"github.com/campusops/placement/modules/placement/domain/aggregates/execution"
	"github.com/campusops/placement/pkg/composables"
	"github.com/campusops/placement/pkg/eventbus"
)

// HistoryHandler keeps per-site placement history current by watching
// execution runs. History feeds future suggestion scoring, so a missed update
// skews ranking but never correctness.
type HistoryHandler struct {
	pool  *pgxpool.Pool
	sites *services.SiteService
	log   *logrus.Logger
}

func RegisterHistoryHandler(bus eventbus.EventBus, pool *pgxpool.Pool, sites *services.SiteService, log *logrus.Logger) *HistoryHandler {
	h := &HistoryHandler{pool: pool, sites: sites, log: log}
	bus.Subscribe(h.onExecutionCompleted)
	return h
}

// background builds the write context. Events arrive outside any request, so
// the pool must be attached here or the SQL repositories see no transaction
// source.
func (h *HistoryHandler) background() context.Context {
	ctx := context.Background()
	if h.pool != nil {
		ctx = composables.WithPool(ctx, h.pool)
	}
	return ctx
}

func (h *HistoryHandler) onExecutionCompleted(event execution.CompletedEvent) {
	ctx := h.background()
	for _, r := range event.Results {
		if r.Outcome() != execution.OutcomeCommitted {
			continue
		}
		key := r.Window()
		if err := h.sites.RecordPlacement(ctx, key.SiteID, key.ProgramID, r.OccurredAt()); err != nil {
			h.log.WithError(err).WithFields(logrus.Fields{
				"site_id":    key.SiteID,
				"program_id": key.ProgramID,
			}).Warn("failed to record placement history")
		}
	}
}
