// File: internal/usecase/ledger_uc.go
package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/caliothemes/iGPTsave-sub002/internal/domain"
	"github.com/caliothemes/iGPTsave-sub002/internal/domain/model"
	"github.com/caliothemes/iGPTsave-sub002/internal/domain/ports/repository"
	red "github.com/caliothemes/iGPTsave-sub002/internal/infra/redis"
)

// Compile-time check
var _ CreditLedger = (*creditLedgerUC)(nil)

// CreditLedger owns the debit/refund protocol against the shared balance.
type CreditLedger interface {
	// CheckAndReserve debits cost units (free bucket first) and returns the
	// exact split taken. forceBypass skips metering regardless of the
	// account's own flags (admin sessions). A bypassed reservation mutates
	// nothing and refunds to nothing.
	CheckAndReserve(ctx context.Context, email string, cost int64, forceBypass bool) (*model.Reservation, error)

	// Refund is the compensation path: it returns a reservation's split to
	// its original buckets. Safe to call with a bypassed reservation.
	Refund(ctx context.Context, res *model.Reservation) error

	// Grant adds purchased or promotional units (checkout collaborator).
	Grant(ctx context.Context, email string, free, paid int64) error

	Balance(ctx context.Context, email string) (*model.CreditAccount, error)
}

type creditLedgerUC struct {
	accounts repository.CreditAccountRepository
	locker   red.Locker // optional; serializes check-and-debit per account
	lockTTL  time.Duration
	log      *zerolog.Logger
}

func NewCreditLedger(accounts repository.CreditAccountRepository, locker red.Locker, logger *zerolog.Logger) *creditLedgerUC {
	return &creditLedgerUC{
		accounts: accounts,
		locker:   locker,
		lockTTL:  5 * time.Second,
		log:      logger,
	}
}

func (uc *creditLedgerUC) CheckAndReserve(ctx context.Context, email string, cost int64, forceBypass bool) (*model.Reservation, error) {
	if email == "" {
		return nil, domain.ErrInvalidArgument
	}
	if cost < 0 {
		return nil, domain.ErrInvalidArgument
	}

	acc, err := uc.accounts.FindByEmail(ctx, repository.NoTX, email)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			if forceBypass {
				return &model.Reservation{Email: email, Bypassed: true}, nil
			}
			// No account record means no credits.
			return nil, domain.ErrInsufficientCredits
		}
		return nil, err
	}

	if forceBypass || acc.Bypassed() {
		return &model.Reservation{Email: email, Bypassed: true}, nil
	}
	if cost == 0 {
		return &model.Reservation{Email: email}, nil
	}

	// The repository's debit is already a single conditional update; the
	// lock additionally serializes callers so a losing racer gets a clean
	// insufficient-credits answer instead of hammering the row. Held only
	// around the debit, never across a provider call.
	if uc.locker != nil {
		token, err := uc.locker.TryLock(ctx, red.AccountLockKey(email), uc.lockTTL)
		switch {
		case err == nil:
			defer func() {
				if uerr := uc.locker.Unlock(ctx, red.AccountLockKey(email), token); uerr != nil {
					uc.log.Warn().Err(uerr).Str("email", email).Msg("unlock failed; ttl will expire it")
				}
			}()
		case errors.Is(err, domain.ErrLockBusy):
			return nil, err
		default:
			// Lock infrastructure is down. The conditional update inside
			// Debit is the actual serialization guarantee, so proceed
			// unlocked rather than refusing paying traffic.
			uc.log.Warn().Err(err).Str("email", email).Msg("account lock unavailable; proceeding unlocked")
		}
	}

	res, err := uc.accounts.Debit(ctx, repository.NoTX, email, cost)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (uc *creditLedgerUC) Refund(ctx context.Context, res *model.Reservation) error {
	if res == nil || res.Bypassed || res.Cost() == 0 {
		return nil
	}
	if err := uc.accounts.Credit(ctx, repository.NoTX, res.Email, res.FreeSpent, res.PaidSpent); err != nil {
		// A lost refund is money: log loudly, callers treat it as best effort.
		uc.log.Error().Err(err).Str("email", res.Email).
			Int64("free", res.FreeSpent).Int64("paid", res.PaidSpent).
			Msg("refund failed")
		return err
	}
	return nil
}

func (uc *creditLedgerUC) Grant(ctx context.Context, email string, free, paid int64) error {
	if email == "" || free < 0 || paid < 0 {
		return domain.ErrInvalidArgument
	}
	err := uc.accounts.Credit(ctx, repository.NoTX, email, free, paid)
	if errors.Is(err, domain.ErrAccountNotFound) {
		// First purchase creates the account.
		acc := &model.CreditAccount{
			Email:     email,
			FreeUnits: free,
			PaidUnits: paid,
			Plan:      model.PlanNone,
			Role:      model.RoleNone,
		}
		return uc.accounts.Save(ctx, repository.NoTX, acc)
	}
	return err
}

func (uc *creditLedgerUC) Balance(ctx context.Context, email string) (*model.CreditAccount, error) {
	return uc.accounts.FindByEmail(ctx, repository.NoTX, email)
}
