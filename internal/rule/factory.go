package rule

import (
	"time"

	"github.com/oswaldlabs/streamlog/pkg/cache"
	"github.com/oswaldlabs/streamlog/pkg/database"
	"github.com/oswaldlabs/streamlog/pkg/logger"
)

// Module holds all rule module components
type Module struct {
	Repository Repository
	Service    Service
	Handler    *Handler
}

// NewModule creates and initializes the rule module
func NewModule(db *database.DB, c cache.Cache, cacheTTL time.Duration, log *logger.Logger) *Module {
	repo := NewRepository(db)
	svc := NewService(repo, c, cacheTTL, log)
	handler := NewHandler(svc)

	return &Module{
		Repository: repo,
		Service:    svc,
		Handler:    handler,
	}
}
