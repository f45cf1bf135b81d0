package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	gerrors "github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Cleaner purges delivered messages past retention and, when configured,
// dead messages past their own retention.
type Cleaner struct {
	pool       *pgxpool.Pool
	table      pgx.Identifier
	opts       CleanerOptions
	tableLabel string
}

func NewCleaner(pool *pgxpool.Pool, table pgx.Identifier, opts CleanerOptions) (*Cleaner, error) {
	if pool == nil {
		return nil, invalidConfig("pool is required")
	}
	if len(table) == 0 {
		return nil, invalidConfig("table is required")
	}
	opts.setDefaults()
	if opts.Logger == nil {
		opts.Logger = logrusNop()
	}
	if opts.DeadRetention > 0 && opts.DeadAttemptsThreshold <= 0 {
		return nil, invalidConfig("dead retention requires DeadAttemptsThreshold > 0")
	}
	return &Cleaner{
		pool:       pool,
		table:      table,
		opts:       opts,
		tableLabel: TableLabel(table),
	}, nil
}

// Run sweeps on every tick until the context is cancelled. Sweep failures
// are logged and the loop keeps going.
func (c *Cleaner) Run(ctx context.Context) error {
	if ctx == nil {
		return invalidConfig("ctx is required")
	}
	if !c.opts.Enabled {
		return nil
	}

	ticker := time.NewTicker(c.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if err := c.sweep(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			c.opts.Logger.WithError(err).WithField("table", c.tableLabel).Warn("outbox: cleaner sweep failed")
		}
	}
}

func (c *Cleaner) sweep(ctx context.Context) error {
	tx, err := c.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return gerrors.Wrap(err, "failed to begin cleaner transaction")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tableName := c.table.Sanitize()
	now := time.Now()

	purged, err := tx.Exec(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE published_at IS NOT NULL AND published_at < $1`, tableName),
		now.Add(-c.opts.Retention),
	)
	if err != nil {
		return gerrors.Wrap(err, "failed to purge delivered messages")
	}

	var dead int64
	if c.opts.DeadRetention > 0 {
		res, err := tx.Exec(ctx,
			fmt.Sprintf(`DELETE FROM %s
			  WHERE published_at IS NULL
			    AND attempts >= $1
			    AND created_at < $2`, tableName),
			c.opts.DeadAttemptsThreshold, now.Add(-c.opts.DeadRetention),
		)
		if err != nil {
			return gerrors.Wrap(err, "failed to purge dead messages")
		}
		dead = res.RowsAffected()
	}

	if err := tx.Commit(ctx); err != nil {
		return gerrors.Wrap(err, "failed to commit cleaner transaction")
	}

	if n := purged.RowsAffected(); n > 0 || dead > 0 {
		c.opts.Logger.WithField("table", c.tableLabel).
			WithField("delivered_purged", n).
			WithField("dead_purged", dead).
			Debug("outbox: sweep complete")
	}
	return nil
}
