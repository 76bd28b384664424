// File: internal/usecase/mocks_test.go
package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"github.com/caliothemes/iGPTsave-sub002/internal/domain"
	"github.com/caliothemes/iGPTsave-sub002/internal/domain/model"
	"github.com/caliothemes/iGPTsave-sub002/internal/domain/ports/adapter"
	"github.com/caliothemes/iGPTsave-sub002/internal/domain/ports/repository"
)

func quietLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// memCreditRepo is a small in-memory ledger used by unit tests. Debit holds
// the mutex for the whole check-and-write, mirroring the SQL repo's
// single-statement atomicity.
type memCreditRepo struct {
	mu        sync.Mutex
	store     map[string]*model.CreditAccount
	debitErr  error // simulate an infrastructure failure
	creditErr error
}

func newMemCreditRepo() *memCreditRepo {
	return &memCreditRepo{store: make(map[string]*model.CreditAccount)}
}

func (m *memCreditRepo) put(acc *model.CreditAccount) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *acc
	m.store[acc.Email] = &cp
}

func (m *memCreditRepo) FindByEmail(ctx context.Context, _ repository.Tx, email string) (*model.CreditAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.store[email]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	cp := *acc
	return &cp, nil
}

func (m *memCreditRepo) Save(ctx context.Context, _ repository.Tx, acc *model.CreditAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *acc
	m.store[acc.Email] = &cp
	return nil
}

func (m *memCreditRepo) Debit(ctx context.Context, _ repository.Tx, email string, cost int64) (*model.Reservation, error) {
	if m.debitErr != nil {
		return nil, m.debitErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.store[email]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	if acc.FreeUnits+acc.PaidUnits < cost {
		return nil, domain.ErrInsufficientCredits
	}
	free := acc.FreeUnits
	if free > cost {
		free = cost
	}
	paid := cost - free
	acc.FreeUnits -= free
	acc.PaidUnits -= paid
	acc.UpdatedAt = time.Now()
	return &model.Reservation{Email: email, FreeSpent: free, PaidSpent: paid}, nil
}

func (m *memCreditRepo) Credit(ctx context.Context, _ repository.Tx, email string, free, paid int64) error {
	if m.creditErr != nil {
		return m.creditErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.store[email]
	if !ok {
		return domain.ErrAccountNotFound
	}
	acc.FreeUnits += free
	acc.PaidUnits += paid
	return nil
}

// scriptedProvider plays back a fixed submit result and a sequence of poll
// results, recording how often it was asked.
type scriptedProvider struct {
	mu        sync.Mutex
	name      string
	submitRes adapter.SubmitResult
	submitErr error
	polls     []adapter.PollResult // consumed one per PollOnce; last repeats
	pollErr   error                // returned once polls are exhausted
	pollCalls int
}

func (p *scriptedProvider) Name() string {
	if p.name == "" {
		return "scripted"
	}
	return p.name
}

func (p *scriptedProvider) Submit(ctx context.Context, req adapter.SubmitRequest) (adapter.SubmitResult, error) {
	if p.submitErr != nil {
		return adapter.SubmitResult{}, p.submitErr
	}
	res := p.submitRes
	if res.ExternalID == "" {
		res.ExternalID = "task-1"
	}
	return res, nil
}

func (p *scriptedProvider) PollOnce(ctx context.Context, externalID string) (adapter.PollResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pollCalls++
	if len(p.polls) == 0 {
		if p.pollErr != nil {
			return adapter.PollResult{}, p.pollErr
		}
		return adapter.PollResult{Status: model.JobStatusRunning}, nil
	}
	res := p.polls[0]
	if len(p.polls) > 1 {
		p.polls = p.polls[1:]
	}
	return res, nil
}

func (p *scriptedProvider) pollCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pollCalls
}

// memLocker grants every lock and counts acquisitions.
type memLocker struct {
	mu      sync.Mutex
	locks   int
	busy    bool
	lockErr error
}

func (l *memLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.lockErr != nil {
		return "", l.lockErr
	}
	if l.busy {
		return "", domain.ErrLockBusy
	}
	l.locks++
	return "tok", nil
}

func (l *memLocker) Unlock(ctx context.Context, key, token string) error { return nil }

// memTxManager runs the function outside any real transaction.
type memTxManager struct{}

func (memTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, nil)
}
