package outbox

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Relay polls the outbox table, dispatches pending messages and records the
// outcome. With SingleActive it competes for a Postgres advisory lock so only
// one relay per table drains at a time.
type Relay struct {
	pool       *pgxpool.Pool
	table      pgx.Identifier
	dispatcher Dispatcher
	opts       RelayOptions

	lockKey int64

	m          *metrics
	tableLabel string
}

func NewRelay(pool *pgxpool.Pool, table pgx.Identifier, dispatcher Dispatcher, opts RelayOptions) (*Relay, error) {
	if pool == nil {
		return nil, invalidConfig("pool is required")
	}
	if len(table) == 0 {
		return nil, invalidConfig("table is required")
	}
	if dispatcher == nil {
		return nil, invalidConfig("dispatcher is required")
	}

	opts.setDefaults()
	if opts.Logger == nil {
		opts.Logger = logrusNop()
	}

	return &Relay{
		pool:       pool,
		table:      table,
		dispatcher: dispatcher,
		opts:       opts,
		m:          getMetrics(),
		tableLabel: TableLabel(table),
		lockKey:    advisoryLockKey("outbox:" + TableLabel(table)),
	}, nil
}

func (r *Relay) Run(ctx context.Context) error {
	if ctx == nil {
		return invalidConfig("ctx is required")
	}

	if r.opts.SingleActive {
		return r.runSingleActive(ctx)
	}

	r.m.relayLeader.WithLabelValues(r.tableLabel).Set(1)
	return r.pollLoop(ctx, nil)
}

// runSingleActive retries the advisory lock on the poll interval until it
// becomes leader, then holds the connection for the lifetime of the loop.
func (r *Relay) runSingleActive(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		conn, err := r.pool.Acquire(ctx)
		if err != nil {
			r.opts.Logger.WithError(err).Warn("outbox: failed to acquire connection for single-active relay")
			if err := r.sleep(ctx); err != nil {
				return err
			}
			continue
		}

		leader, err := r.tryAcquireLeader(ctx, conn)
		if err != nil {
			conn.Release()
			r.opts.Logger.WithError(err).Warn("outbox: failed to attempt advisory lock")
			if err := r.sleep(ctx); err != nil {
				return err
			}
			continue
		}
		if !leader {
			r.m.relayLeader.WithLabelValues(r.tableLabel).Set(0)
			conn.Release()
			if err := r.sleep(ctx); err != nil {
				return err
			}
			continue
		}

		r.m.relayLeader.WithLabelValues(r.tableLabel).Set(1)
		r.opts.Logger.WithField("table", r.tableLabel).Info("outbox: relay became leader")

		err = r.pollLoop(ctx, conn)
		_ = r.releaseLeader(context.Background(), conn)
		conn.Release()
		return err
	}
}

func (r *Relay) sleep(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(r.opts.PollInterval):
		return nil
	}
}

func (r *Relay) pollLoop(ctx context.Context, conn *pgxpool.Conn) error {
	ticker := time.NewTicker(r.opts.PollInterval)
	defer ticker.Stop()

	nextDepthAt := time.Now()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if time.Now().After(nextDepthAt) {
			if err := r.observeQueueDepth(ctx, conn); err != nil {
				r.opts.Logger.WithError(err).Debug("outbox: observe queue depth failed")
			}
			nextDepthAt = time.Now().Add(r.opts.ObserveQueueDepthEvery)
		}

		if err := r.drainBatch(ctx, conn); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			r.opts.Logger.WithError(err).Warn("outbox: drain failed")
		}
	}
}

type claimed struct {
	ID       uuid.UUID
	Topic    string
	Payload  []byte
	EventID  uuid.UUID
	Sequence int64
	Attempts int
}

func (r *Relay) drainBatch(ctx context.Context, conn *pgxpool.Conn) error {
	now := time.Now()
	batch, err := r.claimBatch(ctx, conn, now, now.Add(-r.opts.LockTTL))
	if err != nil {
		return err
	}

	for _, c := range batch {
		r.dispatchOne(ctx, conn, c)
	}
	return nil
}

func (r *Relay) dispatchOne(ctx context.Context, conn *pgxpool.Conn, c claimed) {
	dispatchCtx := ctx
	if r.opts.DispatchTimeout > 0 {
		var cancel context.CancelFunc
		dispatchCtx, cancel = context.WithTimeout(ctx, r.opts.DispatchTimeout)
		defer cancel()
	}

	start := time.Now()
	err := r.dispatcher.Dispatch(dispatchCtx, DispatchedMessage{
		Meta: Meta{
			Table:    r.table,
			Topic:    c.Topic,
			EventID:  c.EventID,
			Sequence: c.Sequence,
			Attempts: c.Attempts,
		},
		Payload: c.Payload,
	})
	latency := time.Since(start)

	if err == nil {
		r.recordDispatch(c.Topic, "success", latency)
		if ackErr := r.settle(ctx, conn, ackUpdate, c.ID, "", time.Time{}); ackErr != nil {
			r.opts.Logger.WithError(ackErr).WithFields(logFields(c, r.tableLabel)).Warn("outbox: ack failed")
		}
		return
	}

	r.recordDispatch(c.Topic, "failure", latency)
	lastErr := truncateError(err, r.opts.LastErrorMaxLen)

	if c.Attempts >= r.opts.MaxAttempts {
		r.m.deadTotal.WithLabelValues(r.tableLabel, c.Topic).Inc()
		if deadErr := r.settle(ctx, conn, deadUpdate, c.ID, lastErr, time.Time{}); deadErr != nil {
			r.opts.Logger.WithError(deadErr).WithFields(logFields(c, r.tableLabel)).Warn("outbox: dead update failed")
		}
		return
	}

	next := time.Now().Add(retryDelay(r.opts.Rand, c.Attempts, r.opts.MaxBackoff, r.opts.JitterMax))
	if nackErr := r.settle(ctx, conn, nackUpdate, c.ID, lastErr, next); nackErr != nil {
		r.opts.Logger.WithError(nackErr).WithFields(logFields(c, r.tableLabel)).Warn("outbox: nack failed")
	}
}

// claimBatch selects pending messages visible at now (including expired
// claims) with SKIP LOCKED, bumps their attempt counter and marks them locked.
func (r *Relay) claimBatch(ctx context.Context, conn *pgxpool.Conn, now, lockCutoff time.Time) ([]claimed, error) {
	tx, err := r.begin(ctx, conn)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tableName := r.table.Sanitize()
	rows, err := tx.Query(ctx, fmt.Sprintf(
		`SELECT id, topic, payload, event_id, sequence, attempts
		   FROM %s
		  WHERE published_at IS NULL
		    AND available_at <= $1
		    AND attempts < $2
		    AND (locked_at IS NULL OR locked_at < $3)
		  ORDER BY available_at, sequence
		  LIMIT $4
		  FOR UPDATE SKIP LOCKED`, tableName),
		now, r.opts.MaxAttempts, lockCutoff, r.opts.BatchSize)
	if err != nil {
		return nil, gerrors.Wrap(err, "failed to select claimable messages")
	}
	defer rows.Close()

	var batch []claimed
	var ids []uuid.UUID
	for rows.Next() {
		var c claimed
		if err := rows.Scan(&c.ID, &c.Topic, &c.Payload, &c.EventID, &c.Sequence, &c.Attempts); err != nil {
			return nil, gerrors.Wrap(err, "failed to scan claimed message")
		}
		c.Attempts++
		batch = append(batch, c)
		ids = append(ids, c.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, gerrors.Wrap(err, "failed to read claimed messages")
	}
	if len(ids) == 0 {
		return nil, tx.Commit(ctx)
	}

	if _, err := tx.Exec(ctx,
		fmt.Sprintf(`UPDATE %s SET locked_at = $1, attempts = attempts + 1 WHERE id = ANY($2)`, tableName),
		now, pgtype.FlatArray[uuid.UUID](ids)); err != nil {
		return nil, gerrors.Wrap(err, "failed to lock claimed messages")
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return batch, nil
}

type settleKind int

const (
	ackUpdate settleKind = iota
	nackUpdate
	deadUpdate
)

// settle finalizes one claimed message. Ack marks it published, nack
// reschedules it, dead leaves it unlocked past the attempt ceiling so the
// cleaner and dead-letter queries can see it.
func (r *Relay) settle(ctx context.Context, conn *pgxpool.Conn, kind settleKind, id uuid.UUID, lastError string, nextAvailable time.Time) error {
	tx, err := r.begin(ctx, conn)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tableName := r.table.Sanitize()
	switch kind {
	case ackUpdate:
		_, err = tx.Exec(ctx, fmt.Sprintf(
			`UPDATE %s
			    SET published_at = now(), locked_at = NULL, last_error = NULL
			  WHERE id = $1 AND published_at IS NULL`, tableName), id)
	case nackUpdate:
		_, err = tx.Exec(ctx, fmt.Sprintf(
			`UPDATE %s
			    SET locked_at = NULL, last_error = $2, available_at = $3
			  WHERE id = $1 AND published_at IS NULL`, tableName), id, lastError, nextAvailable)
	case deadUpdate:
		_, err = tx.Exec(ctx, fmt.Sprintf(
			`UPDATE %s
			    SET locked_at = NULL, last_error = $2, available_at = now()
			  WHERE id = $1 AND published_at IS NULL`, tableName), id, lastError)
	}
	if err != nil {
		return gerrors.Wrap(err, "failed to settle message")
	}
	return tx.Commit(ctx)
}

func (r *Relay) observeQueueDepth(ctx context.Context, conn *pgxpool.Conn) error {
	var db interface {
		QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	} = r.pool
	if conn != nil {
		db = conn
	}

	tableName := r.table.Sanitize()
	var pending, locked int64
	if err := db.QueryRow(ctx,
		fmt.Sprintf(`SELECT count(*) FROM %s WHERE published_at IS NULL`, tableName)).Scan(&pending); err != nil {
		return gerrors.Wrap(err, "failed to count pending messages")
	}
	if err := db.QueryRow(ctx,
		fmt.Sprintf(`SELECT count(*) FROM %s WHERE published_at IS NULL AND locked_at IS NOT NULL`, tableName)).Scan(&locked); err != nil {
		return gerrors.Wrap(err, "failed to count locked messages")
	}

	r.m.pending.WithLabelValues(r.tableLabel).Set(float64(pending))
	r.m.locked.WithLabelValues(r.tableLabel).Set(float64(locked))
	return nil
}

func (r *Relay) recordDispatch(topic, result string, latency time.Duration) {
	r.m.dispatchTotal.WithLabelValues(r.tableLabel, topic, result).Inc()
	r.m.dispatchLatency.WithLabelValues(r.tableLabel, topic, result).Observe(latency.Seconds())
}

// begin starts a transaction on the held leader connection when present,
// otherwise on the pool.
func (r *Relay) begin(ctx context.Context, conn *pgxpool.Conn) (pgx.Tx, error) {
	if conn != nil {
		return conn.BeginTx(ctx, pgx.TxOptions{})
	}
	return r.pool.BeginTx(ctx, pgx.TxOptions{})
}

func (r *Relay) tryAcquireLeader(ctx context.Context, conn *pgxpool.Conn) (bool, error) {
	var ok bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1::bigint)`, r.lockKey).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

func (r *Relay) releaseLeader(ctx context.Context, conn *pgxpool.Conn) error {
	var ok bool
	return conn.QueryRow(ctx, `SELECT pg_advisory_unlock($1::bigint)`, r.lockKey).Scan(&ok)
}

func advisoryLockKey(s string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return int64(h.Sum64())
}

func logFields(c claimed, table string) map[string]any {
	return map[string]any{
		"table":    table,
		"topic":    c.Topic,
		"event_id": c.EventID.String(),
		"sequence": c.Sequence,
		"attempts": c.Attempts,
	}
}
