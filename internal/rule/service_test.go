package rule

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/oswaldlabs/streamlog/pkg/cache"
	"github.com/oswaldlabs/streamlog/pkg/logger"
)

// MockRepository is a mock implementation of Repository
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) List(ctx context.Context, siteID, tenantID int64) ([]Rule, error) {
	args := m.Called(ctx, siteID, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Rule), args.Error(1)
}

func TestService_Rules(t *testing.T) {
	log := logger.New("debug", "test")
	ctx := context.Background()

	t.Run("repository hit populates cache", func(t *testing.T) {
		mockRepo := new(MockRepository)
		svc := NewService(mockRepo, cache.NewInMemoryCache(), 1*time.Minute, log)

		stored := []Rule{{ID: 1, SiteID: 1, TenantID: 1, Connector: "posts"}}
		mockRepo.On("List", ctx, int64(1), int64(1)).Return(stored, nil).Once()

		rules, err := svc.Rules(ctx, 1, 1)
		assert.NoError(t, err)
		assert.Equal(t, stored, rules)

		// second call served from cache, repository not hit again
		rules, err = svc.Rules(ctx, 1, 1)
		assert.NoError(t, err)
		assert.Equal(t, stored, rules)

		mockRepo.AssertExpectations(t)
	})

	t.Run("scopes are cached independently", func(t *testing.T) {
		mockRepo := new(MockRepository)
		svc := NewService(mockRepo, cache.NewInMemoryCache(), 1*time.Minute, log)

		mockRepo.On("List", ctx, int64(1), int64(1)).Return([]Rule{{ID: 1}}, nil).Once()
		mockRepo.On("List", ctx, int64(1), int64(2)).Return([]Rule{{ID: 2}}, nil).Once()

		first, err := svc.Rules(ctx, 1, 1)
		assert.NoError(t, err)
		second, err := svc.Rules(ctx, 1, 2)
		assert.NoError(t, err)

		assert.NotEqual(t, first, second)
		mockRepo.AssertExpectations(t)
	})

	t.Run("fail with invalid scope", func(t *testing.T) {
		mockRepo := new(MockRepository)
		svc := NewService(mockRepo, cache.NewInMemoryCache(), 1*time.Minute, log)

		_, err := svc.Rules(ctx, 0, 1)
		assert.Equal(t, ErrInvalidScope, err)

		_, err = svc.Rules(ctx, 1, -1)
		assert.Equal(t, ErrInvalidScope, err)
	})
}
