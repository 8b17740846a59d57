package billing_repo

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lms/internal/core/id"
	"lms/internal/domain/billing"
	"lms/internal/infrastructure/storage/postgres"
)

func newRepo(t *testing.T) (*CouponRepo, pgxmock.PgxPoolIface, *postgres.TxManager) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	txm := postgres.NewTxManagerFromDB(mock)
	return NewCouponRepo(txm), mock, txm
}

func TestCouponRepo_FindByCodeLocksInsideTransaction(t *testing.T) {
	repo, mock, txm := newRepo(t)
	branch := id.New()

	mock.ExpectQuery(`SELECT .+ FROM coupons WHERE code = \$1 AND branch_id IS NOT DISTINCT FROM \$2 LIMIT 1$`).
		WithArgs("SPRING25", &branch).
		WillReturnRows(pgxmock.NewRows(repo.Columns()))
	_, err := repo.FindByCode(context.Background(), &branch, "SPRING25")
	assert.Error(t, err)

	mock.ExpectBegin()
	mock.ExpectExec("SET LOCAL statement_timeout").WillReturnResult(pgxmock.NewResult("SET", 0))
	mock.ExpectQuery(`SELECT .+ FROM coupons WHERE code = \$1 AND branch_id IS NOT DISTINCT FROM \$2 LIMIT 1 FOR UPDATE`).
		WithArgs("SPRING25", &branch).
		WillReturnRows(pgxmock.NewRows(repo.Columns()))
	mock.ExpectRollback()

	err = txm.RunInTransaction(context.Background(), func(ctx context.Context) error {
		_, err := repo.FindByCode(ctx, &branch, "SPRING25")
		return err
	})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCouponRepo_Redemptions(t *testing.T) {
	repo, mock, _ := newRepo(t)
	red := &billing.Redemption{
		ID: id.New(), CouponID: id.New(), UserID: id.New(), OrderID: id.New(),
		CreatedAt: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}

	mock.ExpectExec(`INSERT INTO coupon_redemptions \(id,coupon_id,user_id,order_id,created_at\) VALUES`).
		WithArgs(red.ID, red.CouponID, red.UserID, red.OrderID, red.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, repo.AddRedemption(context.Background(), red))

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM coupon_redemptions WHERE coupon_id = \$1 AND user_id = \$2`).
		WithArgs(red.CouponID.String(), red.UserID.String()).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))
	n, err := repo.CountRedemptions(context.Background(), red.CouponID, red.UserID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
