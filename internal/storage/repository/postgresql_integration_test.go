//go:build integration

package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/mentor-exchange/internal/lib/apperr"
	"github.com/magabrotheeeer/mentor-exchange/internal/models"
)

func TestStorage_Wallet(t *testing.T) {
	storage := setupTestDatabase(t)
	ctx := context.Background()
	userID := uuid.NewString()

	_, err := storage.GetWallet(ctx, userID)
	require.ErrorIs(t, err, apperr.ErrNotFound)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := storage.CreateWalletIfAbsent(ctx, userID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	var count int
	require.NoError(t, storage.DB.QueryRow(`SELECT COUNT(*) FROM wallets WHERE user_id = $1`, userID).Scan(&count))
	assert.Equal(t, 1, count)

	w, err := storage.GetWallet(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), w.Version)

	next := *w
	next.PurchasedCredits = 5
	amount := 12.5
	rec := &models.Transaction{
		UserID:         userID,
		Type:           models.TransactionPurchase,
		Credits:        5,
		AmountCurrency: &amount,
		Metadata:       map[string]string{"plan": "5h"},
	}
	updated, err := storage.ApplyWalletChange(ctx, w.Version, &next, rec, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(5), updated.PurchasedCredits)
	assert.Equal(t, int64(2), updated.Version)

	_, err = storage.ApplyWalletChange(ctx, w.Version, &next, rec, nil)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	negative := *updated
	negative.EarnedCredits = -1
	_, err = storage.ApplyWalletChange(ctx, updated.Version, &negative, nil, nil)
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)

	txs, err := storage.ListTransactions(ctx, userID, 10, 0)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, models.TransactionPurchase, txs[0].Type)
	require.NotNil(t, txs[0].AmountCurrency)
	assert.InDelta(t, 12.5, *txs[0].AmountCurrency, 0.001)
	assert.Equal(t, "5h", txs[0].Metadata["plan"])
}

func TestStorage_PassReset(t *testing.T) {
	storage := setupTestDatabase(t)
	ctx := context.Background()
	userID := uuid.NewString()

	w, err := storage.CreateWalletIfAbsent(ctx, userID)
	require.NoError(t, err)

	reset := time.Now().Add(30 * 24 * time.Hour).UTC().Truncate(time.Second)
	next := *w
	next.PassActive = true
	next.PassResetAt = &reset
	updated, err := storage.ApplyWalletChange(ctx, w.Version, &next, nil, nil)
	require.NoError(t, err)
	assert.True(t, updated.PassActive)
	require.NotNil(t, updated.PassResetAt)
	assert.True(t, reset.Equal(*updated.PassResetAt))
}

func TestStorage_Profiles(t *testing.T) {
	storage := setupTestDatabase(t)
	ctx := context.Background()

	name := "Ada"
	for _, p := range []*models.Profile{
		{ID: "m1", DisplayName: &name, Languages: []string{"en"}, Skills: []string{"go"}, Role: models.RoleMentor},
		{ID: "l1", Role: models.RoleLearner},
		{ID: "b1", Languages: []string{"lt"}, Role: models.RoleBoth},
	} {
		_, err := storage.UpsertProfile(ctx, p)
		require.NoError(t, err)
	}

	_, err := storage.DB.Exec(`UPDATE profiles SET reputation = 4 WHERE id = 'm1'`)
	require.NoError(t, err)

	saved, err := storage.UpsertProfile(ctx, &models.Profile{ID: "m1", Skills: []string{"go", "sql"}, Role: models.RoleMentor})
	require.NoError(t, err)
	assert.Equal(t, 4, saved.Reputation)
	assert.Equal(t, []string{"go", "sql"}, saved.Skills)
	assert.Equal(t, []string{}, saved.Languages)

	mentors, err := storage.ListProfilesByRoles(ctx, models.MentorRoles)
	require.NoError(t, err)
	require.Len(t, mentors, 2)
	assert.Equal(t, "m1", mentors[0].ID)
	assert.Equal(t, "b1", mentors[1].ID)

	_, err = storage.GetProfile(ctx, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestStorage_Sessions(t *testing.T) {
	storage := setupTestDatabase(t)
	ctx := context.Background()

	at := time.Date(2030, 1, 2, 10, 0, 0, 0, time.UTC)
	for i := range 2 {
		sess := &models.Session{
			MentorID:        "m1",
			LearnerID:       "l1",
			ScheduledAt:     at.Add(time.Duration(1-i) * time.Hour),
			DurationMinutes: models.SessionDurationMinutes,
			CreditsCharged:  models.SessionPriceCredits,
		}
		require.NoError(t, storage.CreateSession(ctx, sess))
		assert.NotEmpty(t, sess.ID)
	}

	got, err := storage.ListSessionsByLearner(ctx, "l1", 10, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].ScheduledAt.Before(got[1].ScheduledAt))

	one, err := storage.GetSession(ctx, got[0].ID)
	require.NoError(t, err)
	assert.Equal(t, got[0].ID, one.ID)
	assert.Equal(t, "m1", one.MentorID)

	_, err = storage.GetSession(ctx, uuid.NewString())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestStorage_Events(t *testing.T) {
	storage := setupTestDatabase(t)
	ctx := context.Background()

	first, err := storage.MarkEventProcessed(ctx, "evt_1", models.EventCheckoutCompleted)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := storage.MarkEventProcessed(ctx, "evt_1", models.EventCheckoutCompleted)
	require.NoError(t, err)
	assert.False(t, second)

	userID := uuid.NewString()
	w, err := storage.CreateWalletIfAbsent(ctx, userID)
	require.NoError(t, err)
	next := *w
	next.PurchasedCredits = 1
	rec := &models.Transaction{UserID: userID, Type: models.TransactionPurchase, Credits: 1}

	updated, err := storage.ApplyWalletChange(ctx, w.Version, &next, rec, &models.ProcessedEvent{EventID: "evt_2", EventType: models.EventCheckoutCompleted})
	require.NoError(t, err)

	again := *updated
	again.PurchasedCredits = 2
	_, err = storage.ApplyWalletChange(ctx, updated.Version, &again, rec, &models.ProcessedEvent{EventID: "evt_2", EventType: models.EventCheckoutCompleted})
	assert.ErrorIs(t, err, apperr.ErrAlreadyProcessed)

	_, err = storage.ApplyWalletChange(ctx, updated.Version, &again, rec, &models.ProcessedEvent{EventID: "evt_1", EventType: models.EventCheckoutCompleted})
	assert.ErrorIs(t, err, apperr.ErrAlreadyProcessed)

	cur, err := storage.GetWallet(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cur.PurchasedCredits)
	txs, err := storage.ListTransactions(ctx, userID, 10, 0)
	require.NoError(t, err)
	assert.Len(t, txs, 1)

	require.NoError(t, storage.AddToWaitlist(ctx, "A@Example.com"))
	require.NoError(t, storage.AddToWaitlist(ctx, "a@example.com"))
	var count int
	require.NoError(t, storage.DB.QueryRow(`SELECT COUNT(*) FROM waitlist`).Scan(&count))
	assert.Equal(t, 1, count)
}
