package backfill

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/greenlane/marketdesk/internal/database"
	"github.com/greenlane/marketdesk/internal/entity"
)

// Module provides the backfill runner to Fx.
var Module = fx.Provide(NewRunner)

// Runner repairs derived columns that predate the code computing them.
type Runner struct {
	conns  *database.Connections
	logger *zap.Logger
}

// NewRunner constructs a Runner on the primary connection.
func NewRunner(conns *database.Connections, logger *zap.Logger) *Runner {
	return &Runner{conns: conns, logger: logger}
}

// OrderTotals recomputes subtotal, line totals and total_amount for every
// order and rewrites rows whose stored values drifted. Returns the number
// of orders rewritten.
func (r *Runner) OrderTotals(ctx context.Context) (int, error) {
	var orders []*entity.Order
	err := r.conns.Writer.NewSelect().
		Model(&orders).
		Relation("Items").
		Scan(ctx)
	if err != nil {
		return 0, err
	}

	touched := 0
	err = r.conns.RunInTx(ctx, func(txCtx context.Context) error {
		db := r.conns.DB(txCtx)
		for _, o := range orders {
			before := o.TotalAmount
			o.Recalculate()
			if o.TotalAmount.Equal(before) {
				continue
			}
			if _, err := db.NewUpdate().
				Model(o).
				Column("subtotal", "total_amount").
				WherePK().
				Exec(txCtx); err != nil {
				return err
			}
			for _, item := range o.Items {
				if _, err := db.NewUpdate().
					Model(item).
					Column("line_total").
					WherePK().
					Exec(txCtx); err != nil {
					return err
				}
			}
			touched++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	r.logger.Info("order totals backfilled",
		zap.Int("scanned", len(orders)),
		zap.Int("rewritten", touched),
	)
	return touched, nil
}

// VerificationDates stamps verification_date on approved vendors and
// buyers that are missing one, using the row's last status change (or
// creation time as a fallback). Returns the number of rows stamped.
func (r *Runner) VerificationDates(ctx context.Context) (int, error) {
	total := 0
	err := r.conns.RunInTx(ctx, func(txCtx context.Context) error {
		db := r.conns.DB(txCtx)
		for _, model := range []interface{}{(*entity.Vendor)(nil), (*entity.Buyer)(nil)} {
			res, err := db.NewUpdate().
				Model(model).
				Set("verification_date = COALESCE(status_updated_at, created_at)").
				Where("verification_status = ?", entity.VerificationApproved).
				Where("verification_date IS NULL").
				Exec(txCtx)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			total += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	r.logger.Info("verification dates backfilled", zap.Int("rows", total))
	return total, nil
}
