package persistence

import (
	"context"
	"encoding/json"
	"time"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/campusops/placement/modules/placement/domain/aggregates/capacity"
	"github.com/campusops/placement/modules/placement/domain/aggregates/execution"
	"github.com/campusops/placement/pkg/composables"
	"github.com/campusops/placement/pkg/outbox"
)

const resultColumns = `id, batch_id, assignment_id, site_id, program_id,
	period_start, period_end, outcome, reason, actor, occurred_at`

// ExecutionRepository persists results and enqueues their notifications in
// the same transaction, so a committed result always reaches the dispatcher.
type ExecutionRepository struct {
	publisher outbox.Publisher
	table     pgx.Identifier
}

func NewExecutionRepository(publisher outbox.Publisher, table pgx.Identifier) execution.Repository {
	return &ExecutionRepository{
		publisher: publisher,
		table:     table,
	}
}

func (r *ExecutionRepository) ListByBatch(ctx context.Context, batchID uuid.UUID) ([]execution.Result, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `
SELECT `+resultColumns+` FROM execution_results WHERE batch_id = $1 ORDER BY occurred_at, id
`, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectResults(rows)
}

func (r *ExecutionRepository) ListByAssignment(ctx context.Context, assignmentID uuid.UUID) ([]execution.Result, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `
SELECT `+resultColumns+` FROM execution_results WHERE assignment_id = $1 ORDER BY occurred_at, id
`, assignmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectResults(rows)
}

func (r *ExecutionRepository) Append(ctx context.Context, res execution.Result) (execution.Result, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return execution.Result{}, err
	}
	key := res.Window()
	_, err = tx.Exec(ctx, `
INSERT INTO execution_results (id, batch_id, assignment_id, site_id, program_id,
	period_start, period_end, outcome, reason, actor, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
`, res.ID(), res.BatchID(), res.AssignmentID(), key.SiteID, key.ProgramID,
		key.PeriodStart, key.PeriodEnd, res.Outcome(), res.Reason(), res.Actor(), res.OccurredAt())
	if err != nil {
		return execution.Result{}, gerrors.Wrap(err, "failed to insert execution result")
	}

	payload, err := json.Marshal(execution.NewNotification(res))
	if err != nil {
		return execution.Result{}, err
	}
	// the result id doubles as the outbox idempotency key
	if _, err := r.publisher.Enqueue(ctx, tx, r.table, outbox.Message{
		Topic:   execution.NotificationTopic,
		EventID: res.ID(),
		Payload: payload,
	}); err != nil {
		return execution.Result{}, gerrors.Wrap(err, "failed to enqueue result notification")
	}
	return res, nil
}

func collectResults(rows pgx.Rows) ([]execution.Result, error) {
	var out []execution.Result
	for rows.Next() {
		var (
			id, batchID, assignmentID uuid.UUID
			key                       capacity.WindowKey
			outcome                   execution.Outcome
			reason, actor             string
			occurredAt                time.Time
		)
		if err := rows.Scan(
			&id, &batchID, &assignmentID, &key.SiteID, &key.ProgramID,
			&key.PeriodStart, &key.PeriodEnd, &outcome, &reason, &actor, &occurredAt,
		); err != nil {
			return nil, err
		}
		out = append(out, execution.Hydrate(id, batchID, assignmentID, key, outcome, reason, actor, occurredAt))
	}
	return out, rows.Err()
}
