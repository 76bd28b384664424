package web

import (
	"context"

	"github.com/caliothemes/iGPTsave-sub002/internal/domain/model"
	"github.com/caliothemes/iGPTsave-sub002/internal/domain/ports/adapter"
	"github.com/caliothemes/iGPTsave-sub002/internal/usecase"
)

// mockGenUC lets each test script the orchestrator outcome per operation.
type mockGenUC struct {
	job       *model.GenerationJob
	pollRes   adapter.PollResult
	err       error
	lastUser  model.SessionUser
	lastVideo usecase.VideoRequest
	lastImage usecase.ImageRequest
}

func (m *mockGenUC) GenerateVideo(ctx context.Context, user model.SessionUser, req usecase.VideoRequest) (*model.GenerationJob, error) {
	m.lastUser, m.lastVideo = user, req
	return m.job, m.err
}

func (m *mockGenUC) VideoStatus(ctx context.Context, externalID string) (adapter.PollResult, error) {
	return m.pollRes, m.err
}

func (m *mockGenUC) EditImage(ctx context.Context, user model.SessionUser, req usecase.ImageRequest) (*model.GenerationJob, error) {
	m.lastUser, m.lastImage = user, req
	return m.job, m.err
}

func (m *mockGenUC) RemoveBackground(ctx context.Context, user model.SessionUser, req usecase.ImageRequest) (*model.GenerationJob, error) {
	m.lastUser, m.lastImage = user, req
	return m.job, m.err
}

func (m *mockGenUC) RemoveBackgroundAI(ctx context.Context, user model.SessionUser, req usecase.ImageRequest) (*model.GenerationJob, error) {
	m.lastUser, m.lastImage = user, req
	return m.job, m.err
}

type mockBillUC struct {
	acc       *model.CreditAccount
	err       error
	lastEmail string
	lastPrice string
}

func (m *mockBillUC) CompleteCheckout(ctx context.Context, email, priceID string) (*model.CreditAccount, error) {
	m.lastEmail, m.lastPrice = email, priceID
	return m.acc, m.err
}

type mockLedger struct {
	acc *model.CreditAccount
	err error
}

func (m *mockLedger) CheckAndReserve(ctx context.Context, email string, cost int64, forceBypass bool) (*model.Reservation, error) {
	return &model.Reservation{Email: email, Bypassed: true}, nil
}

func (m *mockLedger) Refund(ctx context.Context, res *model.Reservation) error { return nil }

func (m *mockLedger) Grant(ctx context.Context, email string, free, paid int64) error { return nil }

func (m *mockLedger) Balance(ctx context.Context, email string) (*model.CreditAccount, error) {
	return m.acc, m.err
}
