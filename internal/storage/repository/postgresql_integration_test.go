package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/gastropass/internal/models"
)

func TestStorage_CreateAndGetPayment(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	userUID := uuid.New().String()
	factory.CreateUser(t, userUID, "maria", "maria@example.com")

	now := time.Now().UTC().Truncate(time.Second)
	payment := &models.Payment{
		ID:          uuid.New().String(),
		UserUID:     userUID,
		UserName:    "maria",
		UserEmail:   "maria@example.com",
		PlanID:      "basic",
		AmountCents: 1990,
		Description: "Assinatura GastroPass — Plano Básico",
		Status:      models.StatusPending,
		QRPayload:   `{"id":"x","amount":1990}`,
		QRImage:     "aW1hZ2U=",
		CreatedAt:   now,
		ExpiresAt:   now.Add(24 * time.Hour),
	}
	pointer := &models.PendingPayment{
		PaymentID:   payment.ID,
		PlanID:      payment.PlanID,
		Status:      string(payment.Status),
		AmountCents: payment.AmountCents,
		QRPayload:   payment.QRPayload,
		CreatedAt:   payment.CreatedAt,
		ExpiresAt:   payment.ExpiresAt,
	}

	require.NoError(t, storage.CreatePayment(context.Background(), payment, pointer))

	got, err := storage.GetPayment(context.Background(), payment.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, payment.ID, got.ID)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.Equal(t, int64(1990), got.AmountCents)
	assert.Equal(t, payment.QRPayload, got.QRPayload)

	// Указатель пользователя записан той же транзакцией.
	user, err := storage.GetUser(context.Background(), userUID)
	require.NoError(t, err)
	require.NotNil(t, user)
	require.NotNil(t, user.PaymentPending)
	assert.Equal(t, payment.ID, user.PaymentPending.PaymentID)
}

func TestStorage_GetPayment_NotFound(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	got, err := storage.GetPayment(context.Background(), uuid.New().String())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStorage_MarkTerminal_FirstWriterWins(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	userUID := uuid.New().String()
	paymentID := uuid.New().String()
	factory.CreateUser(t, userUID, "maria", "maria@example.com")

	now := time.Now().UTC()
	factory.CreatePayment(t, paymentID, userUID, "basic", 1990, models.StatusPending, now, now.Add(24*time.Hour))

	wrote, err := storage.MarkTerminal(context.Background(), paymentID, models.StatusApproved, "")
	require.NoError(t, err)
	assert.True(t, wrote)

	// Повторная и противоречащая запись проигрывают CAS.
	wrote, err = storage.MarkTerminal(context.Background(), paymentID, models.StatusApproved, "")
	require.NoError(t, err)
	assert.False(t, wrote)

	wrote, err = storage.MarkTerminal(context.Background(), paymentID, models.StatusRejected, "fraud")
	require.NoError(t, err)
	assert.False(t, wrote)

	verification := NewTestVerification(storage)
	verification.VerifyPaymentStatus(t, paymentID, models.StatusApproved)
}

func TestStorage_MarkTerminal_SavesRejectionReason(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	userUID := uuid.New().String()
	paymentID := uuid.New().String()
	factory.CreateUser(t, userUID, "maria", "maria@example.com")

	now := time.Now().UTC()
	factory.CreatePayment(t, paymentID, userUID, "basic", 1990, models.StatusPending, now, now.Add(24*time.Hour))

	wrote, err := storage.MarkTerminal(context.Background(), paymentID, models.StatusRejected, "cartão recusado")
	require.NoError(t, err)
	require.True(t, wrote)

	got, err := storage.GetPayment(context.Background(), paymentID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, got.Status)
	assert.Equal(t, "cartão recusado", got.RejectionReason)
}

func TestStorage_OverrideApproved(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	userUID := uuid.New().String()
	paymentID := uuid.New().String()
	factory.CreateUser(t, userUID, "maria", "maria@example.com")

	now := time.Now().UTC()
	factory.CreatePayment(t, paymentID, userUID, "premium", 3990, models.StatusApproved, now, now.Add(24*time.Hour))

	wrote, err := storage.OverrideApproved(context.Background(), paymentID, "chargeback")
	require.NoError(t, err)
	assert.True(t, wrote)

	// Повторное переопределение — no-op: платёж уже не approved.
	wrote, err = storage.OverrideApproved(context.Background(), paymentID, "chargeback")
	require.NoError(t, err)
	assert.False(t, wrote)

	got, err := storage.GetPayment(context.Background(), paymentID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, got.Status)
	assert.Equal(t, "chargeback", got.RejectionReason)
}

func TestStorage_FindPendingByUser(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	userUID := uuid.New().String()
	factory.CreateUser(t, userUID, "maria", "maria@example.com")

	now := time.Now().UTC()
	oldID := uuid.New().String()
	newID := uuid.New().String()
	factory.CreatePayment(t, oldID, userUID, "basic", 1990, models.StatusRejected, now.Add(-48*time.Hour), now.Add(-24*time.Hour))
	factory.CreatePayment(t, newID, userUID, "premium", 3990, models.StatusPending, now, now.Add(24*time.Hour))

	got, err := storage.FindPendingByUser(context.Background(), userUID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, newID, got.ID)

	none, err := storage.FindPendingByUser(context.Background(), uuid.New().String())
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestStorage_FindLatestRejectedByUser(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	userUID := uuid.New().String()
	factory.CreateUser(t, userUID, "maria", "maria@example.com")

	now := time.Now().UTC()
	factory.CreateRejectedPayment(t, uuid.New().String(), userUID, "basic", "saldo insuficiente", now.Add(-48*time.Hour))
	latestID := uuid.New().String()
	factory.CreateRejectedPayment(t, latestID, userUID, "basic", "cartão recusado", now)

	got, err := storage.FindLatestRejectedByUser(context.Background(), userUID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, latestID, got.ID)
	assert.Equal(t, "cartão recusado", got.RejectionReason)
}

func TestStorage_ListExpiredPending(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	userUID := uuid.New().String()
	factory.CreateUser(t, userUID, "maria", "maria@example.com")

	now := time.Now().UTC().Truncate(time.Second)
	expiredID := uuid.New().String()
	boundaryID := uuid.New().String()
	liveID := uuid.New().String()
	factory.CreatePayment(t, expiredID, userUID, "basic", 1990, models.StatusPending, now.Add(-25*time.Hour), now.Add(-time.Hour))
	// Граница: expires_at == now считается истёкшим.
	factory.CreatePayment(t, boundaryID, userUID, "basic", 1990, models.StatusPending, now.Add(-24*time.Hour), now)
	factory.CreatePayment(t, liveID, userUID, "basic", 1990, models.StatusPending, now, now.Add(24*time.Hour))

	got, err := storage.ListExpiredPending(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, got, 2)
	ids := []string{got[0].ID, got[1].ID}
	assert.Contains(t, ids, expiredID)
	assert.Contains(t, ids, boundaryID)
}

func TestStorage_ActivateSubscriptionAndResetToFree(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	userUID := uuid.New().String()
	factory.CreateUser(t, userUID, "maria", "maria@example.com")

	start := time.Now().UTC().Truncate(time.Second)
	end := start.AddDate(0, 0, 30)
	require.NoError(t, storage.ActivateSubscription(context.Background(), userUID, "family", start, end, 10))

	verification := NewTestVerification(storage)
	verification.VerifyUserPlan(t, userUID, "family", true)

	user, err := storage.GetUser(context.Background(), userUID)
	require.NoError(t, err)
	assert.Equal(t, 10, user.FreeCoupons)
	assert.Nil(t, user.PaymentPending)
	require.NotNil(t, user.Subscription.EndDate)

	require.NoError(t, storage.ResetToFree(context.Background(), userUID, start))
	verification.VerifyUserPlan(t, userUID, models.FreePlanID, false)

	user, err = storage.GetUser(context.Background(), userUID)
	require.NoError(t, err)
	assert.Equal(t, models.FreeCouponsDefault, user.FreeCoupons)
	assert.Nil(t, user.Subscription.EndDate)
}

func TestStorage_RedeemCoupon(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	userUID := uuid.New().String()
	factory.CreateUserWithCoupons(t, userUID, "maria", "maria@example.com", 2)

	remaining, redeemed, err := storage.RedeemCoupon(context.Background(), userUID)
	require.NoError(t, err)
	assert.True(t, redeemed)
	assert.Equal(t, 1, remaining)

	remaining, redeemed, err = storage.RedeemCoupon(context.Background(), userUID)
	require.NoError(t, err)
	assert.True(t, redeemed)
	assert.Equal(t, 0, remaining)

	// Купоны закончились: условный декремент не проходит.
	_, redeemed, err = storage.RedeemCoupon(context.Background(), userUID)
	require.NoError(t, err)
	assert.False(t, redeemed)
}

func TestStorage_SetPendingPointer(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	userUID := uuid.New().String()
	factory.CreateUser(t, userUID, "maria", "maria@example.com")

	now := time.Now().UTC().Truncate(time.Second)
	pp := &models.PendingPayment{
		PaymentID:   uuid.New().String(),
		PlanID:      "basic",
		Status:      "pending",
		AmountCents: 1990,
		CreatedAt:   now,
		ExpiresAt:   now.Add(24 * time.Hour),
	}
	require.NoError(t, storage.SetPendingPointer(context.Background(), userUID, pp))

	user, err := storage.GetUser(context.Background(), userUID)
	require.NoError(t, err)
	require.NotNil(t, user.PaymentPending)
	assert.Equal(t, pp.PaymentID, user.PaymentPending.PaymentID)

	require.NoError(t, storage.SetPendingPointer(context.Background(), userUID, nil))
	user, err = storage.GetUser(context.Background(), userUID)
	require.NoError(t, err)
	assert.Nil(t, user.PaymentPending)
}

func TestStorage_ListByUser(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	userUID := uuid.New().String()
	otherUID := uuid.New().String()
	factory.CreateUser(t, userUID, "maria", "maria@example.com")
	factory.CreateUser(t, otherUID, "joao", "joao@example.com")

	now := time.Now().UTC()
	for i := range 3 {
		factory.CreatePayment(t, uuid.New().String(), userUID, "basic", 1990,
			models.StatusRejected, now.Add(time.Duration(-i)*time.Hour), now.Add(24*time.Hour))
	}
	factory.CreatePayment(t, uuid.New().String(), otherUID, "basic", 1990,
		models.StatusPending, now, now.Add(24*time.Hour))

	got, err := storage.ListByUser(context.Background(), userUID, 2, 0)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	rest, err := storage.ListByUser(context.Background(), userUID, 10, 2)
	require.NoError(t, err)
	assert.Len(t, rest, 1)
}
