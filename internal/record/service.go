package record

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/oswaldlabs/streamlog/internal/rule"
	"github.com/oswaldlabs/streamlog/pkg/logger"
	"github.com/oswaldlabs/streamlog/pkg/metrics"
)

// Service is the activity stream: it ingests events through the exclusion
// pipeline and answers queries over the persisted records.
type Service interface {
	Log(ctx context.Context, entry Entry) (int64, error)
	Query(ctx context.Context, spec QuerySpec) (*QueryResult, error)
	GatherSince(scope Scope, cursor time.Time) []*Record
	DistinctValues(ctx context.Context, column string) ([]string, error)
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
	Notifier() *Notifier
}

// QueryResult is one page of records plus the unpaginated total
type QueryResult struct {
	Records []*Record `json:"records"`
	Total   int64     `json:"total"`
	Page    int       `json:"page"`
	PerPage int       `json:"per_page"`
}

// ServiceConfig carries deployment-level ingestion and query behavior
type ServiceConfig struct {
	// SearchField is the default column the contains-search targets
	SearchField string
	// LogCronEvents enables recording events originating from cron agents
	LogCronEvents bool
	// Location is the timezone calendar-day filters are interpreted in
	Location *time.Location
	// DeltaWindow is how many recent records the live-update tracker retains
	DeltaWindow int
}

type service struct {
	repo     Repository
	rules    rule.Service
	resolver ActorResolver
	notifier *Notifier
	tracker  *DeltaTracker
	metrics  *metrics.StreamMetrics
	logger   *logger.Logger
	cfg      ServiceConfig
}

// NewService creates a new record service
func NewService(repo Repository, rules rule.Service, resolver ActorResolver, m *metrics.StreamMetrics, log *logger.Logger, cfg ServiceConfig) Service {
	if cfg.SearchField == "" {
		cfg.SearchField = "summary"
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &service{
		repo:     repo,
		rules:    rules,
		resolver: resolver,
		notifier: NewNotifier(),
		tracker:  NewDeltaTracker(cfg.DeltaWindow),
		metrics:  m,
		logger:   log,
		cfg:      cfg,
	}
}

// Notifier exposes the post-insert handler registry for startup wiring
func (s *service) Notifier() *Notifier {
	return s.notifier
}

// Log runs an event through the ingestion pipeline. A zero id with a nil
// error means the event was deliberately dropped by policy or an exclusion
// rule; that is an outcome, not a failure.
func (s *service) Log(ctx context.Context, entry Entry) (int64, error) {
	if entry.Connector == "" || entry.Action == "" {
		return 0, ErrInvalidEntry
	}

	actor := s.resolver.Current(ctx)
	if entry.ActorID != nil {
		actor.ID = *entry.ActorID
	}

	if actor.Agent == AgentCron && !s.cfg.LogCronEvents {
		s.metrics.RecordsSkippedTotal.WithLabelValues(metrics.SkipReasonAgentPolicy).Inc()
		return 0, nil
	}

	if s.excluded(ctx, entry, actor) {
		s.metrics.RecordsSkippedTotal.WithLabelValues(metrics.SkipReasonExcluded).Inc()
		return 0, nil
	}

	if entry.SourceIP != "" && net.ParseIP(entry.SourceIP) == nil {
		s.logger.WithConnector(entry.Connector).Warnf("dropping malformed source ip %q", entry.SourceIP)
		entry.SourceIP = ""
	}

	summary := entry.Message
	if len(entry.Args) > 0 {
		summary = fmt.Sprintf(entry.Message, entry.Args...)
	}

	rec := &Record{
		SiteID:    entry.SiteID,
		TenantID:  entry.TenantID,
		ObjectID:  entry.ObjectID,
		ActorID:   actor.ID,
		ActorRole: actor.Role,
		Summary:   summary,
		Connector: entry.Connector,
		Context:   entry.Context,
		Action:    entry.Action,
		SourceIP:  entry.SourceIP,
		CreatedAt: Now(),
	}

	id, err := s.repo.InsertRecord(ctx, rec)
	if err != nil {
		return 0, err
	}
	rec.ID = id

	rec.Meta = s.writeMeta(ctx, id, entry.Meta, actor)

	s.notifier.Dispatch(ctx, id, rec)
	s.metrics.RecordsInsertedTotal.WithLabelValues(entry.Connector).Inc()

	return id, nil
}

// excluded consults the scoped rule set. When the rules cannot be fetched
// the event is recorded anyway: losing audit data is worse than recording
// something a rule would have dropped.
func (s *service) excluded(ctx context.Context, entry Entry, actor Actor) bool {
	rules, err := s.rules.Rules(ctx, entry.SiteID, entry.TenantID)
	if err != nil {
		s.logger.WithConnector(entry.Connector).Warnf("exclusion rule fetch failed, recording unfiltered: %v", err)
		return false
	}

	return rule.Excluded(rule.Descriptor{
		Connector: entry.Connector,
		Context:   entry.Context,
		Action:    entry.Action,
		ActorID:   actor.ID,
		ActorRole: actor.Role,
		SourceIP:  entry.SourceIP,
	}, rules)
}

// writeMeta persists the metadata rows best-effort and returns what was
// actually written. The record itself is already durable; a lost meta row is
// logged and counted, never surfaced to the caller.
func (s *service) writeMeta(ctx context.Context, recordID int64, meta map[string]MetaValue, actor Actor) map[string]MetaValue {
	stored := make(map[string]MetaValue, len(meta)+1)

	if bundle, err := MetaJSON(buildActorMeta(actor)); err == nil {
		stored[ActorMetaKey] = bundle
	}
	for key, value := range meta {
		if key == ActorMetaKey {
			continue
		}
		stored[key] = value
	}

	keys := make([]string, 0, len(stored))
	for key := range stored {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	written := make(map[string]MetaValue, len(stored))
	for _, key := range keys {
		value := stored[key]
		ok := true
		for _, row := range value.Rows() {
			if err := s.repo.InsertMeta(ctx, recordID, key, row); err != nil {
				s.metrics.MetaWriteFailuresTotal.Inc()
				s.logger.WithRecordID(recordID).Warnf("meta write failed for key %q: %v", key, err)
				ok = false
			}
		}
		if ok {
			written[key] = value
		}
	}
	return written
}

// Query runs the QuerySpec against storage and refreshes the live-update tracker
// when the result represents the newest slice of the stream.
func (s *service) Query(ctx context.Context, spec QuerySpec) (*QueryResult, error) {
	start := time.Now()

	records, total, err := s.repo.Select(ctx, spec, queryOptions{
		searchField: s.cfg.SearchField,
		location:    s.cfg.Location,
	})
	s.metrics.QueryDurationSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	if scope, ok := trackableScope(spec); ok {
		s.tracker.Update(scope, records)
	}

	if records == nil {
		records = []*Record{}
	}
	return &QueryResult{
		Records: records,
		Total:   total,
		Page:    spec.Page,
		PerPage: spec.PerPage,
	}, nil
}

// trackableScope reports whether a result set is the newest-first head of one
// scope's stream, which is the only shape the delta tracker can diff against.
// The query must carry an explicit site and tenant and no narrowing filters,
// otherwise a filtered result would masquerade as the scope's full stream.
func trackableScope(spec QuerySpec) (Scope, bool) {
	if spec.SiteID == nil || spec.TenantID == nil {
		return Scope{}, false
	}
	if spec.Page > 1 {
		return Scope{}, false
	}
	if spec.Search != "" || spec.Date != "" || spec.DateFrom != "" || spec.DateTo != "" ||
		spec.DateAfter != "" || spec.DateBefore != "" {
		return Scope{}, false
	}
	if spec.ActorID != nil || spec.ObjectID != nil {
		return Scope{}, false
	}
	if spec.Connector != "" || spec.Context != "" || spec.Action != "" || spec.SourceIP != "" {
		return Scope{}, false
	}
	if len(spec.RecordIn) > 0 || len(spec.RecordNotIn) > 0 || len(spec.In) > 0 || len(spec.NotIn) > 0 {
		return Scope{}, false
	}
	if len(spec.Fields) > 0 {
		return Scope{}, false
	}
	if spec.OrderBy != "" && spec.OrderBy != "created_at" && spec.OrderBy != "id" {
		return Scope{}, false
	}
	if spec.Order != "" && !strings.EqualFold(spec.Order, "desc") {
		return Scope{}, false
	}
	return Scope{SiteID: *spec.SiteID, TenantID: *spec.TenantID}, true
}

// GatherSince returns the scope's tracked records newer than the cursor
func (s *service) GatherSince(scope Scope, cursor time.Time) []*Record {
	return s.tracker.GatherSince(scope, cursor)
}

// DistinctValues lists the distinct stored values of an allow-listed column
func (s *service) DistinctValues(ctx context.Context, column string) ([]string, error) {
	return s.repo.DistinctValues(ctx, column)
}

// PurgeBefore deletes records older than the cutoff; metadata rows follow
// through the cascade
func (s *service) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	deleted, err := s.repo.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		s.logger.Infof("purged %d records older than %s", deleted, cutoff.UTC().Format(TimeFormat))
	}
	return deleted, nil
}
