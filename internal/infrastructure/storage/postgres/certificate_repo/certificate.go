// Package certificate_repo provides the PostgreSQL certificate repository.
package certificate_repo

import (
	"context"

	sq "github.com/Masterminds/squirrel"

	"lms/internal/core/id"
	"lms/internal/domain/certificates"
	"lms/internal/infrastructure/storage/postgres"
)

var valid = []certificates.Status{certificates.StatusIssued, certificates.StatusReissued}

// Repo implements certificates.Repository.
type Repo struct {
	*postgres.BaseRepo[*certificates.Certificate]
}

func New(txm *postgres.TxManager) *Repo {
	return &Repo{
		BaseRepo: postgres.NewBaseRepo(txm, "certificates", func() *certificates.Certificate { return &certificates.Certificate{} },
			postgres.WithSearch("certificate_no", "student_name", "course_title"),
			postgres.WithDefaultOrder("issued_at DESC")),
	}
}

func (r *Repo) FindByVerificationCode(ctx context.Context, code string) (*certificates.Certificate, error) {
	return r.FindOne(ctx, r.Select().Where(sq.Eq{"verification_code": code}).Limit(1))
}

func (r *Repo) FindValid(ctx context.Context, enrollmentID id.ID) (*certificates.Certificate, error) {
	return r.FindOne(ctx, r.Select().
		Where(sq.Eq{"enrollment_id": enrollmentID, "status": valid}).
		OrderBy("issued_at DESC").
		Limit(1))
}

func (r *Repo) HasRevoked(ctx context.Context, enrollmentID id.ID) (bool, error) {
	query, args, err := r.Builder().
		Select().
		Column(sq.Expr("EXISTS (SELECT 1 FROM certificates WHERE enrollment_id = ? AND status = ?)", enrollmentID, certificates.StatusRevoked)).
		ToSql()
	if err != nil {
		return false, err
	}
	var found bool
	if err := r.Querier(ctx).QueryRow(ctx, query, args...).Scan(&found); err != nil {
		return false, postgres.MapError(err, r.Table())
	}
	return found, nil
}

var _ certificates.Repository = (*Repo)(nil)
