package benefits

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/gastropass/internal/errs"
	"github.com/magabrotheeeer/gastropass/internal/models"
)

type RepoMock struct{ mock.Mock }

func (m *RepoMock) GetUser(ctx context.Context, userUID string) (*models.User, error) {
	args := m.Called(ctx, userUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *RepoMock) RedeemCoupon(ctx context.Context, userUID string) (int, bool, error) {
	args := m.Called(ctx, userUID)
	return args.Int(0), args.Bool(1), args.Error(2)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestRedeem(t *testing.T) {
	tests := []struct {
		name       string
		setupMocks func(r *RepoMock)
		want       int
		wantErr    error
	}{
		{
			name: "active subscription is unlimited",
			setupMocks: func(r *RepoMock) {
				r.On("GetUser", mock.Anything, "uid-1").Return(&models.User{
					UID:                   "uid-1",
					HasActiveSubscription: true,
					FreeCoupons:           0,
				}, nil).Once()
			},
			want: UnlimitedRedemptions,
		},
		{
			name: "free plan decrements coupon",
			setupMocks: func(r *RepoMock) {
				r.On("GetUser", mock.Anything, "uid-1").Return(&models.User{
					UID:         "uid-1",
					FreeCoupons: 3,
				}, nil).Once()
				r.On("RedeemCoupon", mock.Anything, "uid-1").Return(2, true, nil).Once()
			},
			want: 2,
		},
		{
			name: "no coupons left",
			setupMocks: func(r *RepoMock) {
				r.On("GetUser", mock.Anything, "uid-1").Return(&models.User{
					UID:         "uid-1",
					FreeCoupons: 0,
				}, nil).Once()
				r.On("RedeemCoupon", mock.Anything, "uid-1").Return(0, false, nil).Once()
			},
			wantErr: errs.ErrNoCouponsLeft,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(RepoMock)
			svc := New(repo, newNoopLogger())
			tt.setupMocks(repo)

			got, err := svc.Redeem(context.Background(), "uid-1")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			repo.AssertExpectations(t)
		})
	}
}

func TestRedeem_ActiveSubscriptionNeverTouchesCounter(t *testing.T) {
	repo := new(RepoMock)
	svc := New(repo, newNoopLogger())

	repo.On("GetUser", mock.Anything, "uid-1").Return(&models.User{
		UID:                   "uid-1",
		HasActiveSubscription: true,
	}, nil).Once()

	_, err := svc.Redeem(context.Background(), "uid-1")
	require.NoError(t, err)
	repo.AssertNotCalled(t, "RedeemCoupon", mock.Anything, mock.Anything)
}

func TestRedeem_UserNotFound(t *testing.T) {
	repo := new(RepoMock)
	svc := New(repo, newNoopLogger())

	repo.On("GetUser", mock.Anything, "uid-404").Return(nil, nil).Once()

	_, err := svc.Redeem(context.Background(), "uid-404")
	require.Error(t, err)
}

func TestRedeem_StorageError(t *testing.T) {
	repo := new(RepoMock)
	svc := New(repo, newNoopLogger())

	repo.On("GetUser", mock.Anything, "uid-1").Return(nil, errors.New("db down")).Once()

	_, err := svc.Redeem(context.Background(), "uid-1")
	require.Error(t, err)
}
