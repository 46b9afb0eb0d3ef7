package record

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubService captures what the handler passes down
type stubService struct {
	spec    QuerySpec
	scope   Scope
	entry   Entry
	logID   int64
	logErr  error
	result  *QueryResult
	qErr    error
	fresh   []*Record
	values  []string
	vErr    error
	nothing *Notifier
}

func (s *stubService) Log(ctx context.Context, entry Entry) (int64, error) {
	s.entry = entry
	return s.logID, s.logErr
}

func (s *stubService) Query(ctx context.Context, spec QuerySpec) (*QueryResult, error) {
	s.spec = spec
	if s.qErr != nil {
		return nil, s.qErr
	}
	if s.result != nil {
		return s.result, nil
	}
	return &QueryResult{Records: []*Record{}, Page: spec.Page, PerPage: spec.PerPage}, nil
}

func (s *stubService) GatherSince(scope Scope, cursor time.Time) []*Record {
	s.scope = scope
	return s.fresh
}

func (s *stubService) DistinctValues(ctx context.Context, column string) ([]string, error) {
	return s.values, s.vErr
}

func (s *stubService) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func (s *stubService) Notifier() *Notifier {
	if s.nothing == nil {
		s.nothing = NewNotifier()
	}
	return s.nothing
}

func newTestRouter(svc Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewHandler(svc, 20).RegisterRoutes(router.Group("/api/v1"))
	return router
}

func TestHandler_ListRecords_QueryParsing(t *testing.T) {
	svc := &stubService{}
	router := newTestRouter(svc)

	t.Run("filters and suffix operators map onto the QuerySpec", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet,
			"/api/v1/records?connector=posts&actor_id=7"+
				"&action__in=created,updated&connector__not_in=cron"+
				"&record__in=1,2,3&page=2&per_page=5", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "posts", svc.spec.Connector)
		require.NotNil(t, svc.spec.ActorID)
		assert.Equal(t, int64(7), *svc.spec.ActorID)
		assert.Equal(t, []string{"created", "updated"}, svc.spec.In["action"])
		assert.Equal(t, []string{"cron"}, svc.spec.NotIn["connector"])
		assert.Equal(t, []int64{1, 2, 3}, svc.spec.RecordIn)
		assert.Equal(t, 2, svc.spec.Page)
		assert.Equal(t, 5, svc.spec.PerPage)
	})

	t.Run("missing per_page applies the default", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/records", nil))

		assert.Equal(t, 20, svc.spec.PerPage)
		assert.Equal(t, 1, svc.spec.Page)
	})

	t.Run("explicit zero per_page disables the limit", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/records?per_page=0", nil))

		assert.Equal(t, 0, svc.spec.PerPage)
	})

	t.Run("fields parameter projects columns", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet,
			"/api/v1/records?fields=summary,created_at,meta", nil))

		assert.Equal(t, []string{"summary", "created_at", "meta"}, svc.spec.Fields)
	})

	t.Run("query failure degrades to an empty page", func(t *testing.T) {
		failing := &stubService{qErr: errors.New("db gone")}
		w := httptest.NewRecorder()
		newTestRouter(failing).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/records", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"records":[]`)
	})
}

func TestHandler_CreateRecord(t *testing.T) {
	t.Run("persisted event returns 201 with its id", func(t *testing.T) {
		svc := &stubService{logID: 42}
		w := httptest.NewRecorder()
		body := `{"connector":"posts","action":"updated","message":"%q updated","args":["Hello"],"meta":{"status":"publish","tags":["a","b"]}}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/records", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		newTestRouter(svc).ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Contains(t, w.Body.String(), `"id":42`)

		assert.Equal(t, "posts", svc.entry.Connector)
		assert.Equal(t, MetaScalar, svc.entry.Meta["status"].Kind)
		assert.Equal(t, MetaList, svc.entry.Meta["tags"].Kind)
	})

	t.Run("dropped event returns 200 without an id", func(t *testing.T) {
		svc := &stubService{logID: 0}
		w := httptest.NewRecorder()
		body := `{"connector":"posts","action":"viewed","message":"x"}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/records", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		newTestRouter(svc).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"recorded":false`)
	})

	t.Run("missing required fields return 400", func(t *testing.T) {
		svc := &stubService{}
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/records", strings.NewReader(`{"message":"x"}`))
		req.Header.Set("Content-Type", "application/json")
		newTestRouter(svc).ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("write failure returns 500", func(t *testing.T) {
		svc := &stubService{logErr: errors.New("insert failed")}
		w := httptest.NewRecorder()
		body := `{"connector":"posts","action":"updated","message":"x"}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/records", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		newTestRouter(svc).ServeHTTP(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestHandler_ListUpdates(t *testing.T) {
	base := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	t.Run("returns records newer than the cursor", func(t *testing.T) {
		svc := &stubService{fresh: []*Record{trackedRecord(2, base)}}
		w := httptest.NewRecorder()
		newTestRouter(svc).ServeHTTP(w, httptest.NewRequest(http.MethodGet,
			"/api/v1/records/updates?since=2026-03-15T11:00:00.000Z", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"id":2`)
		assert.Equal(t, Scope{SiteID: 1, TenantID: 1}, svc.scope)
	})

	t.Run("caller scope is passed through", func(t *testing.T) {
		svc := &stubService{}
		w := httptest.NewRecorder()
		newTestRouter(svc).ServeHTTP(w, httptest.NewRequest(http.MethodGet,
			"/api/v1/records/updates?site_id=3&tenant_id=5&since=2026-03-15T11:00:00.000Z", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, Scope{SiteID: 3, TenantID: 5}, svc.scope)
	})

	t.Run("missing cursor yields an empty list", func(t *testing.T) {
		w := httptest.NewRecorder()
		newTestRouter(&stubService{}).ServeHTTP(w,
			httptest.NewRequest(http.MethodGet, "/api/v1/records/updates", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"records":[]`)
	})

	t.Run("malformed cursor returns 400", func(t *testing.T) {
		w := httptest.NewRecorder()
		newTestRouter(&stubService{}).ServeHTTP(w,
			httptest.NewRequest(http.MethodGet, "/api/v1/records/updates?since=yesterday", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandler_ListValues(t *testing.T) {
	t.Run("lists distinct values", func(t *testing.T) {
		svc := &stubService{values: []string{"posts", "users"}}
		w := httptest.NewRecorder()
		newTestRouter(svc).ServeHTTP(w,
			httptest.NewRequest(http.MethodGet, "/api/v1/records/values/connector", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "posts")
	})

	t.Run("non-listed column returns 400", func(t *testing.T) {
		svc := &stubService{vErr: ErrColumnNotAllowed}
		w := httptest.NewRecorder()
		newTestRouter(svc).ServeHTTP(w,
			httptest.NewRequest(http.MethodGet, "/api/v1/records/values/password", nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
