package model

import "time"

type PlanTier string

const (
	PlanNone      PlanTier = "none"
	PlanStarter   PlanTier = "starter"
	PlanPro       PlanTier = "pro"
	PlanElite     PlanTier = "elite"
	PlanElitePlus PlanTier = "elite_plus"
)

type Role string

const (
	RoleNone  Role = "none"
	RoleAdmin Role = "admin"
)

// CreditAccount is the authoritative balance record for one user, keyed by
// email. Free units are consumed before paid units. Only the ledger mutates
// the balances.
type CreditAccount struct {
	Email     string
	FreeUnits int64
	PaidUnits int64
	Plan      PlanTier
	Unlimited bool
	Yearly    bool
	Role      Role
	UpdatedAt time.Time
}

// Total is the spendable balance across both buckets.
func (a *CreditAccount) Total() int64 { return a.FreeUnits + a.PaidUnits }

// Bypassed reports whether metering is skipped entirely for this account.
func (a *CreditAccount) Bypassed() bool {
	return a.Role == RoleAdmin || a.Unlimited
}

// Reservation records exactly what a debit took from each bucket, so a
// compensating refund can restore the same split.
type Reservation struct {
	Email     string
	FreeSpent int64
	PaidSpent int64
	Bypassed  bool
}

// Cost is the total units the reservation charged.
func (r Reservation) Cost() int64 { return r.FreeSpent + r.PaidSpent }
