package record

import (
	"time"

	"github.com/oswaldlabs/streamlog/internal/rule"
	"github.com/oswaldlabs/streamlog/pkg/database"
	"github.com/oswaldlabs/streamlog/pkg/logger"
	"github.com/oswaldlabs/streamlog/pkg/metrics"
)

// Module bundles all record components
type Module struct {
	Repository Repository
	Service    Service
	Handler    *Handler
}

// ModuleConfig carries the cross-cutting dependencies and settings
type ModuleConfig struct {
	Rules          rule.Service
	Resolver       ActorResolver
	Metrics        *metrics.StreamMetrics
	SearchField    string
	DefaultPerPage int
	LogCronEvents  bool
	Location       *time.Location
	DeltaWindow    int
}

// NewModule creates and wires the record module
func NewModule(db *database.DB, log *logger.Logger, cfg ModuleConfig) *Module {
	resolver := cfg.Resolver
	if resolver == nil {
		resolver = ContextResolver{}
	}

	repo := NewRepository(db)
	svc := NewService(repo, cfg.Rules, resolver, cfg.Metrics, log, ServiceConfig{
		SearchField:   cfg.SearchField,
		LogCronEvents: cfg.LogCronEvents,
		Location:      cfg.Location,
		DeltaWindow:   cfg.DeltaWindow,
	})
	handler := NewHandler(svc, cfg.DefaultPerPage)

	return &Module{
		Repository: repo,
		Service:    svc,
		Handler:    handler,
	}
}
