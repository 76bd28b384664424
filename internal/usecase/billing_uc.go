// File: internal/usecase/billing_uc.go
package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"github.com/caliothemes/iGPTsave-sub002/internal/domain"
	"github.com/caliothemes/iGPTsave-sub002/internal/domain/model"
	"github.com/caliothemes/iGPTsave-sub002/internal/domain/ports/repository"
)

// Compile-time check
var _ BillingUseCase = (*billingUC)(nil)

// pricePlan describes what one checkout price id buys.
type pricePlan struct {
	Plan      PlanGrant
	Unlimited bool
	Yearly    bool
}

type PlanGrant struct {
	Tier  model.PlanTier
	Units int64 // paid units granted per purchase
}

// priceTable maps the payment processor's price identifiers to grants. The
// ids are stable across environments; amounts are paid units.
var priceTable = map[string]pricePlan{
	"price_starter_monthly": {Plan: PlanGrant{Tier: model.PlanStarter, Units: 100}},
	"price_pro_monthly":     {Plan: PlanGrant{Tier: model.PlanPro, Units: 300}},
	"price_elite_monthly":   {Plan: PlanGrant{Tier: model.PlanElite, Units: 1000}},
	"price_elite_plus":      {Plan: PlanGrant{Tier: model.PlanElitePlus}, Unlimited: true},

	"price_starter_yearly": {Plan: PlanGrant{Tier: model.PlanStarter, Units: 1200}, Yearly: true},
	"price_pro_yearly":     {Plan: PlanGrant{Tier: model.PlanPro, Units: 3600}, Yearly: true},
	"price_elite_yearly":   {Plan: PlanGrant{Tier: model.PlanElite, Units: 12000}, Yearly: true},
}

// BillingUseCase applies completed checkouts to the credit ledger.
type BillingUseCase interface {
	// CompleteCheckout grants the units and plan the price id buys. It is
	// idempotent only at the processor's level; callers must deliver each
	// completed checkout exactly once.
	CompleteCheckout(ctx context.Context, email, priceID string) (*model.CreditAccount, error)
}

type billingUC struct {
	accounts repository.CreditAccountRepository
	txm      repository.TransactionManager
	log      *zerolog.Logger
}

func NewBillingUseCase(accounts repository.CreditAccountRepository, txm repository.TransactionManager, logger *zerolog.Logger) *billingUC {
	return &billingUC{accounts: accounts, txm: txm, log: logger}
}

func (uc *billingUC) CompleteCheckout(ctx context.Context, email, priceID string) (*model.CreditAccount, error) {
	if email == "" {
		return nil, domain.ErrInvalidArgument
	}
	price, ok := priceTable[priceID]
	if !ok {
		return nil, domain.ErrUnknownPrice
	}

	var out *model.CreditAccount
	err := uc.txm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable}, func(ctx context.Context, tx repository.Tx) error {
		acc, err := uc.accounts.FindByEmail(ctx, tx, email)
		if errors.Is(err, domain.ErrAccountNotFound) {
			acc = &model.CreditAccount{Email: email, Plan: model.PlanNone, Role: model.RoleNone}
			err = nil
		}
		if err != nil {
			return err
		}

		acc.Plan = price.Plan.Tier
		acc.Unlimited = price.Unlimited
		acc.Yearly = price.Yearly
		acc.PaidUnits += price.Plan.Units
		acc.UpdatedAt = time.Now()

		if err := uc.accounts.Save(ctx, tx, acc); err != nil {
			return err
		}
		out = acc
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.log.Info().Str("email", out.Email).Str("price_id", priceID).
		Str("plan", string(out.Plan)).Bool("unlimited", out.Unlimited).
		Int64("paid_units", out.PaidUnits).Msg("checkout applied")
	return out, nil
}
