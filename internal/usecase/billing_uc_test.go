// File: internal/usecase/billing_uc_test.go
package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/caliothemes/iGPTsave-sub002/internal/domain"
	"github.com/caliothemes/iGPTsave-sub002/internal/domain/model"
)

func TestCompleteCheckoutGrantsPlan(t *testing.T) {
	t.Parallel()
	repo := newMemCreditRepo()
	repo.put(&model.CreditAccount{Email: "a@x.io", FreeUnits: 3})
	uc := NewBillingUseCase(repo, memTxManager{}, quietLogger())

	acc, err := uc.CompleteCheckout(context.Background(), "a@x.io", "price_pro_monthly")
	if err != nil {
		t.Fatalf("CompleteCheckout: %v", err)
	}
	if acc.Plan != model.PlanPro || acc.PaidUnits != 300 {
		t.Fatalf("acc = %+v, want pro with 300 paid units", acc)
	}
	if acc.FreeUnits != 3 {
		t.Fatalf("free units = %d, want untouched 3", acc.FreeUnits)
	}
}

func TestCompleteCheckoutCreatesAccount(t *testing.T) {
	t.Parallel()
	uc := NewBillingUseCase(newMemCreditRepo(), memTxManager{}, quietLogger())

	acc, err := uc.CompleteCheckout(context.Background(), "new@x.io", "price_starter_yearly")
	if err != nil {
		t.Fatalf("CompleteCheckout: %v", err)
	}
	if acc.Plan != model.PlanStarter || !acc.Yearly || acc.PaidUnits != 1200 {
		t.Fatalf("acc = %+v", acc)
	}
}

func TestCompleteCheckoutUnlimited(t *testing.T) {
	t.Parallel()
	uc := NewBillingUseCase(newMemCreditRepo(), memTxManager{}, quietLogger())

	acc, err := uc.CompleteCheckout(context.Background(), "vip@x.io", "price_elite_plus")
	if err != nil {
		t.Fatalf("CompleteCheckout: %v", err)
	}
	if !acc.Unlimited || !acc.Bypassed() {
		t.Fatalf("acc = %+v, want unlimited bypass", acc)
	}
}

func TestCompleteCheckoutUnknownPrice(t *testing.T) {
	t.Parallel()
	uc := NewBillingUseCase(newMemCreditRepo(), memTxManager{}, quietLogger())

	if _, err := uc.CompleteCheckout(context.Background(), "a@x.io", "price_bogus"); !errors.Is(err, domain.ErrUnknownPrice) {
		t.Fatalf("err = %v, want ErrUnknownPrice", err)
	}
}
