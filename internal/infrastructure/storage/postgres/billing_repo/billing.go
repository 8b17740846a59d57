// Package billing_repo provides PostgreSQL repositories for coupons,
// coupon redemptions and orders.
package billing_repo

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"lms/internal/core/id"
	"lms/internal/domain/billing"
	"lms/internal/infrastructure/storage/postgres"
)

const redemptionsTable = "coupon_redemptions"

// CouponRepo implements billing.CouponRepository.
type CouponRepo struct {
	*postgres.BaseRepo[*billing.Coupon]
}

func NewCouponRepo(txm *postgres.TxManager) *CouponRepo {
	return &CouponRepo{
		BaseRepo: postgres.NewBaseRepo(txm, "coupons", func() *billing.Coupon { return &billing.Coupon{} },
			postgres.WithSearch("code", "name")),
	}
}

// FindByCode locks the coupon row when called inside a transaction, so
// two checkouts cannot both take the last use.
func (r *CouponRepo) FindByCode(ctx context.Context, branchID *id.ID, code string) (*billing.Coupon, error) {
	q := r.Select().
		Where(sq.Eq{"code": code}).
		Where("branch_id IS NOT DISTINCT FROM ?", branchID).
		Limit(1)
	if r.InTx(ctx) {
		q = q.Suffix("FOR UPDATE")
	}
	return r.FindOne(ctx, q)
}

func (r *CouponRepo) CountRedemptions(ctx context.Context, couponID, userID id.ID) (int, error) {
	query, args, err := r.Builder().Select("COUNT(*)").
		From(redemptionsTable).
		Where(sq.Eq{"coupon_id": couponID, "user_id": userID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count: %w", err)
	}
	var n int
	if err := r.Querier(ctx).QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, postgres.MapError(err, redemptionsTable)
	}
	return n, nil
}

func (r *CouponRepo) AddRedemption(ctx context.Context, red *billing.Redemption) error {
	_, err := r.Exec(ctx, r.Builder().Insert(redemptionsTable).
		Columns("id", "coupon_id", "user_id", "order_id", "created_at").
		Values(red.ID, red.CouponID, red.UserID, red.OrderID, red.CreatedAt))
	return err
}

// OrderRepo implements billing.OrderRepository.
type OrderRepo struct {
	*postgres.BaseRepo[*billing.Order]
}

func NewOrderRepo(txm *postgres.TxManager) *OrderRepo {
	return &OrderRepo{
		BaseRepo: postgres.NewBaseRepo(txm, "orders", func() *billing.Order { return &billing.Order{} },
			postgres.WithSearch("order_no", "invoice_no", "customer_email")),
	}
}

var (
	_ billing.CouponRepository = (*CouponRepo)(nil)
	_ billing.OrderRepository  = (*OrderRepo)(nil)
)
