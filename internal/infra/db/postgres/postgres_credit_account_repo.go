package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/caliothemes/iGPTsave-sub002/internal/domain"
	"github.com/caliothemes/iGPTsave-sub002/internal/domain/model"
	"github.com/caliothemes/iGPTsave-sub002/internal/domain/ports/repository"
)

var _ repository.CreditAccountRepository = (*PostgresCreditAccountRepo)(nil)

type PostgresCreditAccountRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresCreditAccountRepo(pool *pgxpool.Pool) *PostgresCreditAccountRepo {
	return &PostgresCreditAccountRepo{pool: pool}
}

func (r *PostgresCreditAccountRepo) FindByEmail(ctx context.Context, tx repository.Tx, email string) (*model.CreditAccount, error) {
	const q = `
SELECT email, free_units, paid_units, plan, unlimited, yearly, role, updated_at
  FROM credit_accounts WHERE email=$1;`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	var a model.CreditAccount
	if err := ex.QueryRow(ctx, q, email).Scan(&a.Email, &a.FreeUnits, &a.PaidUnits, &a.Plan, &a.Unlimited, &a.Yearly, &a.Role, &a.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrAccountNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (r *PostgresCreditAccountRepo) Save(ctx context.Context, tx repository.Tx, acc *model.CreditAccount) error {
	const q = `
INSERT INTO credit_accounts (
  email, free_units, paid_units, plan, unlimited, yearly, role, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,NOW()
) ON CONFLICT (email) DO UPDATE SET
  free_units=$2, paid_units=$3, plan=$4, unlimited=$5, yearly=$6, role=$7, updated_at=NOW();
`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	_, err = ex.Exec(ctx, q, acc.Email, acc.FreeUnits, acc.PaidUnits, acc.Plan, acc.Unlimited, acc.Yearly, acc.Role)
	return err
}

// Debit consumes cost units free-bucket-first in one conditional statement.
// The WHERE clause makes the check-and-write indivisible: a concurrent debit
// either sees the pre-image (and both rows' updates serialize on the row
// lock) or fails the balance predicate and matches no row.
func (r *PostgresCreditAccountRepo) Debit(ctx context.Context, tx repository.Tx, email string, cost int64) (*model.Reservation, error) {
	if cost < 0 {
		return nil, domain.ErrInvalidArgument
	}
	// The CTE reads the pre-image under the row lock so RETURNING can report
	// the exact free/paid split that was taken.
	const q = `
WITH before AS (
  SELECT email, free_units, paid_units FROM credit_accounts WHERE email = $1 FOR UPDATE
), updated AS (
  UPDATE credit_accounts c
     SET free_units = b.free_units - LEAST(b.free_units, $2::bigint),
         paid_units = b.paid_units - ($2::bigint - LEAST(b.free_units, $2::bigint)),
         updated_at = NOW()
    FROM before b
   WHERE c.email = b.email
     AND b.free_units + b.paid_units >= $2::bigint
  RETURNING LEAST(b.free_units, $2::bigint) AS free_spent,
            $2::bigint - LEAST(b.free_units, $2::bigint) AS paid_spent
)
SELECT free_spent, paid_spent FROM updated;`

	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	res := &model.Reservation{Email: email}
	if err := ex.QueryRow(ctx, q, email, cost).Scan(&res.FreeSpent, &res.PaidSpent); err != nil {
		if err == pgx.ErrNoRows {
			// No row updated: either the account is missing or the balance
			// fell short. Distinguish so callers can 404 vs 400.
			if _, ferr := r.FindByEmail(ctx, tx, email); ferr != nil {
				return nil, ferr
			}
			return nil, domain.ErrInsufficientCredits
		}
		return nil, fmt.Errorf("debit %s: %w", email, err)
	}
	return res, nil
}

func (r *PostgresCreditAccountRepo) Credit(ctx context.Context, tx repository.Tx, email string, free, paid int64) error {
	if free < 0 || paid < 0 {
		return domain.ErrInvalidArgument
	}
	const q = `
UPDATE credit_accounts
   SET free_units = free_units + $2, paid_units = paid_units + $3, updated_at = NOW()
 WHERE email = $1;`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	tag, err := ex.Exec(ctx, q, email, free, paid)
	if err != nil {
		return fmt.Errorf("credit %s: %w", email, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}
