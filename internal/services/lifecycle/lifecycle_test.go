package lifecycle

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/gastropass/internal/errs"
	"github.com/magabrotheeeer/gastropass/internal/models"
)

type PaymentsMock struct{ mock.Mock }

func (m *PaymentsMock) CreatePayment(ctx context.Context, p *models.Payment, pp *models.PendingPayment) error {
	return m.Called(ctx, p, pp).Error(0)
}

func (m *PaymentsMock) GetPayment(ctx context.Context, paymentID string) (*models.Payment, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func (m *PaymentsMock) FindPendingByUser(ctx context.Context, userUID string) (*models.Payment, error) {
	args := m.Called(ctx, userUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func (m *PaymentsMock) FindLatestRejectedByUser(ctx context.Context, userUID string) (*models.Payment, error) {
	args := m.Called(ctx, userUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func (m *PaymentsMock) ListByUser(ctx context.Context, userUID string, limit, offset int) ([]*models.Payment, error) {
	args := m.Called(ctx, userUID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Payment), args.Error(1)
}

func (m *PaymentsMock) ListPending(ctx context.Context) ([]*models.Payment, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Payment), args.Error(1)
}

type UsersMock struct{ mock.Mock }

func (m *UsersMock) GetUser(ctx context.Context, userUID string) (*models.User, error) {
	args := m.Called(ctx, userUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *UsersMock) SetPendingPointer(ctx context.Context, userUID string, pp *models.PendingPayment) error {
	return m.Called(ctx, userUID, pp).Error(0)
}

type WatcherMock struct{ mock.Mock }

func (m *WatcherMock) Watch(ctx context.Context, paymentID string) {
	m.Called(ctx, paymentID)
}

type CacheMock struct{ mock.Mock }

func (m *CacheMock) Get(key string, result any) (bool, error) {
	args := m.Called(key, result)
	return args.Bool(0), args.Error(1)
}

func (m *CacheMock) Set(key string, value any, expiration time.Duration) error {
	return m.Called(key, value, expiration).Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

var testNow = time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)

func newTestService(payments *PaymentsMock, users *UsersMock, watcher *WatcherMock, cache *CacheMock) *Service {
	return New(payments, users, watcher, cache, newNoopLogger()).
		WithClock(func() time.Time { return testNow })
}

func testUser() *models.User {
	return &models.User{
		UID:      "uid-1",
		Username: "maria",
		Email:    "maria@example.com",
		Subscription: models.Subscription{
			PlanID: models.FreePlanID,
			Status: models.SubscriptionActive,
		},
		FreeCoupons: 3,
	}
}

func TestCreate_Success(t *testing.T) {
	payments := new(PaymentsMock)
	users := new(UsersMock)
	watcher := new(WatcherMock)
	cache := new(CacheMock)
	svc := newTestService(payments, users, watcher, cache)

	users.On("GetUser", mock.Anything, "uid-1").Return(testUser(), nil).Once()
	payments.On("FindPendingByUser", mock.Anything, "uid-1").Return(nil, nil).Once()
	payments.On("CreatePayment", mock.Anything, mock.MatchedBy(func(p *models.Payment) bool {
		return p.UserUID == "uid-1" &&
			p.PlanID == "premium" &&
			p.AmountCents == 3990 &&
			p.Status == models.StatusPending &&
			p.ExpiresAt.Equal(testNow.Add(PendingWindow))
	}), mock.Anything).Return(nil).Once()
	watcher.On("Watch", mock.Anything, mock.Anything).Once()

	payment, err := svc.Create(context.Background(), "uid-1", "premium")
	require.NoError(t, err)
	require.NotNil(t, payment)
	assert.NotEmpty(t, payment.ID)
	assert.NotEmpty(t, payment.QRPayload)
	assert.NotEmpty(t, payment.QRImage)

	payments.AssertExpectations(t)
	watcher.AssertExpectations(t)
}

func TestCreate_PendingConflict(t *testing.T) {
	payments := new(PaymentsMock)
	users := new(UsersMock)
	watcher := new(WatcherMock)
	cache := new(CacheMock)
	svc := newTestService(payments, users, watcher, cache)

	existing := &models.Payment{
		ID:        "pay-1",
		UserUID:   "uid-1",
		Status:    models.StatusPending,
		ExpiresAt: testNow.Add(time.Hour),
	}
	users.On("GetUser", mock.Anything, "uid-1").Return(testUser(), nil).Once()
	payments.On("FindPendingByUser", mock.Anything, "uid-1").Return(existing, nil).Once()

	payment, err := svc.Create(context.Background(), "uid-1", "basic")
	assert.Nil(t, payment)
	assert.ErrorIs(t, err, errs.ErrPendingPaymentExists)
	payments.AssertNotCalled(t, "CreatePayment", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreate_ExpiredPendingDoesNotBlock(t *testing.T) {
	payments := new(PaymentsMock)
	users := new(UsersMock)
	watcher := new(WatcherMock)
	cache := new(CacheMock)
	svc := newTestService(payments, users, watcher, cache)

	expired := &models.Payment{
		ID:        "pay-old",
		UserUID:   "uid-1",
		Status:    models.StatusPending,
		ExpiresAt: testNow, // граница: ровно сейчас — уже истёк
	}
	users.On("GetUser", mock.Anything, "uid-1").Return(testUser(), nil).Once()
	payments.On("FindPendingByUser", mock.Anything, "uid-1").Return(expired, nil).Once()
	payments.On("CreatePayment", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
	watcher.On("Watch", mock.Anything, mock.Anything).Once()

	payment, err := svc.Create(context.Background(), "uid-1", "basic")
	require.NoError(t, err)
	assert.NotEqual(t, "pay-old", payment.ID)
}

func TestCreate_UnknownPlan(t *testing.T) {
	payments := new(PaymentsMock)
	users := new(UsersMock)
	svc := newTestService(payments, users, new(WatcherMock), new(CacheMock))

	users.On("GetUser", mock.Anything, "uid-1").Return(testUser(), nil).Once()
	payments.On("FindPendingByUser", mock.Anything, "uid-1").Return(nil, nil).Once()

	payment, err := svc.Create(context.Background(), "uid-1", "platinum")
	assert.Nil(t, payment)
	require.Error(t, err)
}

func TestReopen(t *testing.T) {
	livePending := &models.Payment{
		ID:        "pay-1",
		UserUID:   "uid-1",
		PlanID:    "basic",
		Status:    models.StatusPending,
		QRPayload: "payload",
		ExpiresAt: testNow.Add(2 * time.Hour),
	}
	expiredPending := &models.Payment{
		ID:        "pay-2",
		UserUID:   "uid-1",
		Status:    models.StatusPending,
		ExpiresAt: testNow.Add(-time.Minute),
	}
	rejected := &models.Payment{
		ID:              "pay-3",
		UserUID:         "uid-1",
		Status:          models.StatusRejected,
		RejectionReason: "cartão recusado",
	}

	tests := []struct {
		name       string
		setupMocks func(p *PaymentsMock, u *UsersMock, w *WatcherMock)
		wantID     string
		wantErr    error
	}{
		{
			name: "live pending returned and pointer restored",
			setupMocks: func(p *PaymentsMock, u *UsersMock, w *WatcherMock) {
				p.On("FindPendingByUser", mock.Anything, "uid-1").Return(livePending, nil).Once()
				u.On("SetPendingPointer", mock.Anything, "uid-1", mock.MatchedBy(func(pp *models.PendingPayment) bool {
					return pp.PaymentID == "pay-1" && pp.QRPayload == "payload"
				})).Return(nil).Once()
				w.On("Watch", mock.Anything, "pay-1").Once()
			},
			wantID: "pay-1",
		},
		{
			name: "expired pending",
			setupMocks: func(p *PaymentsMock, _ *UsersMock, _ *WatcherMock) {
				p.On("FindPendingByUser", mock.Anything, "uid-1").Return(expiredPending, nil).Once()
			},
			wantErr: errs.ErrPaymentExpired,
		},
		{
			name: "no pending, last payment rejected",
			setupMocks: func(p *PaymentsMock, _ *UsersMock, _ *WatcherMock) {
				p.On("FindPendingByUser", mock.Anything, "uid-1").Return(nil, nil).Once()
				p.On("FindLatestRejectedByUser", mock.Anything, "uid-1").Return(rejected, nil).Once()
			},
		},
		{
			name: "no payments at all",
			setupMocks: func(p *PaymentsMock, _ *UsersMock, _ *WatcherMock) {
				p.On("FindPendingByUser", mock.Anything, "uid-1").Return(nil, nil).Once()
				p.On("FindLatestRejectedByUser", mock.Anything, "uid-1").Return(nil, nil).Once()
			},
			wantErr: errs.ErrPaymentNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payments := new(PaymentsMock)
			users := new(UsersMock)
			watcher := new(WatcherMock)
			svc := newTestService(payments, users, watcher, new(CacheMock))
			tt.setupMocks(payments, users, watcher)

			payment, err := svc.Reopen(context.Background(), "uid-1")

			switch {
			case tt.wantID != "":
				require.NoError(t, err)
				assert.Equal(t, tt.wantID, payment.ID)
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			default:
				var rejectedErr *errs.RejectedError
				require.ErrorAs(t, err, &rejectedErr)
				assert.Equal(t, "cartão recusado", rejectedErr.Reason)
			}
			payments.AssertExpectations(t)
			users.AssertExpectations(t)
			watcher.AssertExpectations(t)
		})
	}
}

func TestGetStatus_CacheHit(t *testing.T) {
	payments := new(PaymentsMock)
	cache := new(CacheMock)
	svc := newTestService(payments, new(UsersMock), new(WatcherMock), cache)

	cache.On("Get", "payment:pay-1", mock.Anything).Return(true, nil).Once()

	_, err := svc.GetStatus(context.Background(), "pay-1")
	require.NoError(t, err)
	payments.AssertNotCalled(t, "GetPayment", mock.Anything, mock.Anything)
}

func TestGetStatus_CacheMiss(t *testing.T) {
	payments := new(PaymentsMock)
	cache := new(CacheMock)
	svc := newTestService(payments, new(UsersMock), new(WatcherMock), cache)

	stored := &models.Payment{ID: "pay-1", Status: models.StatusPending}
	cache.On("Get", "payment:pay-1", mock.Anything).Return(false, nil).Once()
	payments.On("GetPayment", mock.Anything, "pay-1").Return(stored, nil).Once()
	cache.On("Set", "payment:pay-1", stored, 30*time.Second).Return(nil).Once()

	payment, err := svc.GetStatus(context.Background(), "pay-1")
	require.NoError(t, err)
	assert.Equal(t, "pay-1", payment.ID)
	cache.AssertExpectations(t)
}

func TestGetStatus_NotFound(t *testing.T) {
	payments := new(PaymentsMock)
	cache := new(CacheMock)
	svc := newTestService(payments, new(UsersMock), new(WatcherMock), cache)

	cache.On("Get", "payment:pay-404", mock.Anything).Return(false, nil).Once()
	payments.On("GetPayment", mock.Anything, "pay-404").Return(nil, nil).Once()

	payment, err := svc.GetStatus(context.Background(), "pay-404")
	assert.Nil(t, payment)
	assert.ErrorIs(t, err, errs.ErrPaymentNotFound)
}
