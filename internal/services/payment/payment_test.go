package payment_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/mentor-exchange/internal/lib/apperr"
	"github.com/magabrotheeeer/mentor-exchange/internal/models"
	"github.com/magabrotheeeer/mentor-exchange/internal/services/payment"
	"github.com/magabrotheeeer/mentor-exchange/internal/services/wallet"
	"github.com/magabrotheeeer/mentor-exchange/internal/storage/memory"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func int64Ptr(v int64) *int64 { return &v }

// LedgerMock — мок кредитного журнала.
type LedgerMock struct {
	mock.Mock
}

func (m *LedgerMock) Credit(ctx context.Context, userID string, amount int64, src models.CreditSource) (*models.Wallet, error) {
	args := m.Called(ctx, userID, amount, src)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Wallet), args.Error(1)
}

func (m *LedgerMock) ActivatePass(ctx context.Context, userID string, durationDays int, event *models.ProcessedEvent) (*models.Wallet, error) {
	args := m.Called(ctx, userID, durationDays, event)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Wallet), args.Error(1)
}

func newProcessor(store *memory.Store, now func() time.Time) (*payment.Processor, *wallet.Ledger) {
	ledger := wallet.New(store, nil, discardLogger(), wallet.Options{Now: now})
	return payment.New(ledger, store, discardLogger(), 0), ledger
}

func TestProcessor_Checkout(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		event       models.PaymentEvent
		wantCredits int64
		wantAmount  *float64
	}{
		{
			name:        "5h plan",
			event:       models.PaymentEvent{ID: "evt_1", Type: models.EventCheckoutCompleted, Plan: "5h", UserID: "u1", AmountTotal: int64Ptr(2500), Currency: "usd"},
			wantCredits: 5,
			wantAmount:  func() *float64 { v := 25.0; return &v }(),
		},
		{
			name:        "1h plan without amount",
			event:       models.PaymentEvent{ID: "evt_2", Type: models.EventCheckoutCompleted, Plan: "1h", UserID: "u1"},
			wantCredits: 1,
		},
		{
			name:        "10h plan",
			event:       models.PaymentEvent{ID: "evt_3", Type: models.EventCheckoutCompleted, Plan: "10h", UserID: "u1", AmountTotal: int64Ptr(4599)},
			wantCredits: 10,
			wantAmount:  func() *float64 { v := 45.99; return &v }(),
		},
		{
			name:  "unknown plan is ignored",
			event: models.PaymentEvent{ID: "evt_4", Type: models.EventCheckoutCompleted, Plan: "100h", UserID: "u1"},
		},
		{
			name:  "missing user is ignored",
			event: models.PaymentEvent{ID: "evt_5", Type: models.EventCheckoutCompleted, Plan: "5h"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.New()
			p, ledger := newProcessor(store, nil)

			require.NoError(t, p.Process(ctx, tt.event))

			w, err := ledger.Balance(ctx, "u1")
			require.NoError(t, err)
			assert.Equal(t, tt.wantCredits, w.PurchasedCredits)

			fresh, err := store.MarkEventProcessed(ctx, tt.event.ID, tt.event.Type)
			require.NoError(t, err)
			assert.False(t, fresh, "event must stay marked as processed")

			if tt.wantCredits == 0 {
				return
			}
			txs, err := ledger.Transactions(ctx, "u1", 10, 0)
			require.NoError(t, err)
			require.Len(t, txs, 1)
			assert.Equal(t, models.TransactionPurchase, txs[0].Type)
			assert.Equal(t, tt.event.Plan, txs[0].Metadata["plan"])
			assert.Equal(t, tt.event.ID, txs[0].Metadata["event_id"])
			if tt.wantAmount == nil {
				assert.Nil(t, txs[0].AmountCurrency)
			} else {
				require.NotNil(t, txs[0].AmountCurrency)
				assert.InDelta(t, *tt.wantAmount, *txs[0].AmountCurrency, 0.0001)
			}
		})
	}
}

func TestProcessor_DuplicateEventCreditsOnce(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	p, ledger := newProcessor(store, nil)

	event := models.PaymentEvent{ID: "evt_dup", Type: models.EventCheckoutCompleted, Plan: "5h", UserID: "u1"}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, p.Process(ctx, event))
		}()
	}
	wg.Wait()
	require.NoError(t, p.Process(ctx, event))

	w, err := ledger.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), w.Total())

	txs, err := ledger.Transactions(ctx, "u1", 10, 0)
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}

func TestProcessor_InvoiceActivatesPass(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 15, 9, 30, 0, 0, time.UTC)
	store := memory.New()
	p, ledger := newProcessor(store, func() time.Time { return now })

	err := p.Process(ctx, models.PaymentEvent{ID: "in_1", Type: models.EventInvoicePaid, UserID: "u1"})
	require.NoError(t, err)

	w, err := ledger.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, w.PassActive)
	require.NotNil(t, w.PassResetAt)
	assert.Equal(t, now.AddDate(0, 0, 30), *w.PassResetAt)
	assert.Zero(t, w.Total())
}

func TestProcessor_UnsupportedEventIsNotMarked(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	p, _ := newProcessor(store, nil)

	require.NoError(t, p.Process(ctx, models.PaymentEvent{ID: "evt_x", Type: "customer.created"}))

	fresh, err := store.MarkEventProcessed(ctx, "evt_x", "customer.created")
	require.NoError(t, err)
	assert.True(t, fresh)
}

func TestProcessor_EmptyEventID(t *testing.T) {
	p, _ := newProcessor(memory.New(), nil)

	err := p.Process(context.Background(), models.PaymentEvent{Type: models.EventCheckoutCompleted})
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
}

func TestProcessor_FailedCreditIsRetriedOnRedelivery(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	ledger := new(LedgerMock)
	p := payment.New(ledger, store, discardLogger(), 30)

	event := models.PaymentEvent{ID: "evt_retry", Type: models.EventCheckoutCompleted, Plan: "1h", UserID: "u1"}
	carriesMark := mock.MatchedBy(func(src models.CreditSource) bool {
		return src.Event != nil && src.Event.EventID == "evt_retry"
	})

	ledger.On("Credit", mock.Anything, "u1", int64(1), carriesMark).
		Return(nil, errors.Join(apperr.ErrUpstreamUnavailable, errors.New("timeout"))).Once()
	err := p.Process(ctx, event)
	assert.ErrorIs(t, err, apperr.ErrUpstreamUnavailable)

	ledger.On("Credit", mock.Anything, "u1", int64(1), carriesMark).
		Return(&models.Wallet{UserID: "u1", PurchasedCredits: 1}, nil).Once()
	require.NoError(t, p.Process(ctx, event))

	ledger.On("Credit", mock.Anything, "u1", int64(1), carriesMark).
		Return(nil, fmt.Errorf("ledger: %w", apperr.ErrAlreadyProcessed)).Once()
	require.NoError(t, p.Process(ctx, event))

	ledger.AssertNumberOfCalls(t, "Credit", 3)
	ledger.AssertExpectations(t)
}

// flakyStore один раз отказывает при записи изменения кошелька.
type flakyStore struct {
	*memory.Store
	mu    sync.Mutex
	fails int
}

func (s *flakyStore) ApplyWalletChange(ctx context.Context, expectedVersion int64, next *models.Wallet, tx *models.Transaction, event *models.ProcessedEvent) (*models.Wallet, error) {
	s.mu.Lock()
	fail := s.fails > 0
	if fail {
		s.fails--
	}
	s.mu.Unlock()
	if fail {
		return nil, errors.New("connection reset")
	}
	return s.Store.ApplyWalletChange(ctx, expectedVersion, next, tx, event)
}

func TestProcessor_StoreFailureLeavesEventUnprocessed(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{Store: memory.New(), fails: 1}
	ledger := wallet.New(store, nil, discardLogger(), wallet.Options{})
	p := payment.New(ledger, store, discardLogger(), 0)

	event := models.PaymentEvent{ID: "evt_flaky", Type: models.EventCheckoutCompleted, Plan: "5h", UserID: "u1"}

	err := p.Process(ctx, event)
	assert.ErrorIs(t, err, apperr.ErrUpstreamUnavailable)

	w, err := ledger.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, w.Total())

	require.NoError(t, p.Process(ctx, event))
	require.NoError(t, p.Process(ctx, event))

	w, err = ledger.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), w.Total())

	txs, err := ledger.Transactions(ctx, "u1", 10, 0)
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}

func TestProcessor_DuplicateInvoiceActivatesOnce(t *testing.T) {
	ctx := context.Background()
	ledger := new(LedgerMock)
	p := payment.New(ledger, memory.New(), discardLogger(), 30)

	event := models.PaymentEvent{ID: "in_dup", Type: models.EventInvoicePaid, UserID: "u1"}
	ledger.On("ActivatePass", mock.Anything, "u1", 30, event.Mark()).
		Return(&models.Wallet{UserID: "u1", PassActive: true}, nil).Once()
	ledger.On("ActivatePass", mock.Anything, "u1", 30, event.Mark()).
		Return(nil, apperr.ErrAlreadyProcessed).Once()

	require.NoError(t, p.Process(ctx, event))
	require.NoError(t, p.Process(ctx, event))
	ledger.AssertExpectations(t)
}

func TestKnownPlan(t *testing.T) {
	for _, plan := range payment.Plans() {
		assert.True(t, payment.KnownPlan(plan), plan)
	}
	assert.False(t, payment.KnownPlan("2h"))
	assert.False(t, payment.KnownPlan(""))
}
