package rule

import (
	"context"
	"fmt"
	"time"

	"github.com/oswaldlabs/streamlog/pkg/cache"
	"github.com/oswaldlabs/streamlog/pkg/logger"
)

// Service provides cached access to exclusion rule sets. The ingestion
// pipeline consults rules on every write, so the rule set is held in cache
// for a short TTL instead of hitting storage per event.
type Service interface {
	Rules(ctx context.Context, siteID, tenantID int64) ([]Rule, error)
}

// service implements Service interface
type service struct {
	repo     Repository
	cache    cache.Cache
	cacheTTL time.Duration
	logger   *logger.Logger
}

// NewService creates a new rule service
func NewService(repo Repository, c cache.Cache, ttl time.Duration, log *logger.Logger) Service {
	return &service{
		repo:     repo,
		cache:    c,
		cacheTTL: ttl,
		logger:   log,
	}
}

// Rules returns the rule set for the given scope, from cache when fresh
func (s *service) Rules(ctx context.Context, siteID, tenantID int64) ([]Rule, error) {
	if siteID <= 0 || tenantID < 0 {
		return nil, ErrInvalidScope
	}

	key := fmt.Sprintf("rules:%d:%d", siteID, tenantID)

	var cached []Rule
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		return cached, nil
	} else if err != cache.ErrCacheMiss {
		s.logger.Warnf("rule cache read failed: %v", err)
	}

	rules, err := s.repo.List(ctx, siteID, tenantID)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, key, rules, s.cacheTTL); err != nil {
		s.logger.Warnf("rule cache write failed: %v", err)
	}

	return rules, nil
}
