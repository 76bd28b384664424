package repository

import (
	"context"

	"github.com/caliothemes/iGPTsave-sub002/internal/domain/model"
)

// -----------------------------
// Credit accounts
// -----------------------------

// CreditAccountRepository owns the balance record per user email.
//
// Debit is the only operation allowed to take units out of an account, and
// it must be atomic with respect to concurrent debits of the same account:
// the check (free+paid >= cost) and the write are one indivisible update.
// Two simultaneous debits against an exactly-sufficient balance must yield
// one success and one domain.ErrInsufficientCredits.
type CreditAccountRepository interface {
	FindByEmail(ctx context.Context, tx Tx, email string) (*model.CreditAccount, error)
	Save(ctx context.Context, tx Tx, acc *model.CreditAccount) error

	// Debit consumes cost units, free bucket first, and returns the split
	// actually taken. Fails with domain.ErrInsufficientCredits without
	// mutating anything when the balance does not cover cost.
	Debit(ctx context.Context, tx Tx, email string, cost int64) (*model.Reservation, error)

	// Credit returns (or grants) units to the account's buckets.
	Credit(ctx context.Context, tx Tx, email string, free, paid int64) error
}
