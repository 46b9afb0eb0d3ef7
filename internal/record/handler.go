package record

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/oswaldlabs/streamlog/pkg/errors"
)

// Handler handles HTTP requests for the activity stream
type Handler struct {
	service        Service
	defaultPerPage int
}

// NewHandler creates a new record handler
func NewHandler(service Service, defaultPerPage int) *Handler {
	if defaultPerPage <= 0 {
		defaultPerPage = 20
	}
	return &Handler{
		service:        service,
		defaultPerPage: defaultPerPage,
	}
}

// RegisterRoutes registers record endpoints on the router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/records", h.CreateRecord)
	rg.GET("/records", h.ListRecords)
	rg.GET("/records/updates", h.ListUpdates)
	rg.GET("/records/values/:column", h.ListValues)
}

// createRequest is the ingestion request body
type createRequest struct {
	SiteID    int64                  `json:"site_id"`
	TenantID  int64                  `json:"tenant_id"`
	Connector string                 `json:"connector" binding:"required"`
	Context   string                 `json:"context"`
	Action    string                 `json:"action" binding:"required"`
	Message   string                 `json:"message" binding:"required"`
	Args      []interface{}          `json:"args"`
	ObjectID  *int64                 `json:"object_id"`
	ActorID   *int64                 `json:"actor_id"`
	Meta      map[string]interface{} `json:"meta"`
}

// CreateRecord ingests one event
func (h *Handler) CreateRecord(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apperrors.BadRequest("invalid request body"))
		return
	}
	if req.SiteID == 0 {
		req.SiteID = 1
	}
	if req.TenantID == 0 {
		req.TenantID = 1
	}

	entry := Entry{
		SiteID:    req.SiteID,
		TenantID:  req.TenantID,
		Connector: req.Connector,
		Context:   req.Context,
		Action:    req.Action,
		Message:   req.Message,
		Args:      req.Args,
		ObjectID:  req.ObjectID,
		ActorID:   req.ActorID,
		SourceIP:  c.ClientIP(),
	}
	if len(req.Meta) > 0 {
		entry.Meta = make(map[string]MetaValue, len(req.Meta))
		for key, raw := range req.Meta {
			if value, ok := MetaFrom(raw); ok {
				entry.Meta[key] = value
			}
		}
	}

	id, err := h.service.Log(c.Request.Context(), entry)
	if err != nil {
		if errors.Is(err, ErrInvalidEntry) {
			c.JSON(http.StatusBadRequest, apperrors.Validation(err.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, apperrors.RecordWriteFailed(err))
		return
	}

	if id == 0 {
		c.JSON(http.StatusOK, gin.H{"id": 0, "recorded": false})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id, "recorded": true})
}

// ListRecords answers a filtered, sorted, paginated query. A failed query
// surfaces as an empty page so dashboard pollers degrade instead of erroring.
func (h *Handler) ListRecords(c *gin.Context) {
	spec := h.parseQuery(c)

	result, err := h.service.Query(c.Request.Context(), spec)
	if err != nil {
		c.JSON(http.StatusOK, &QueryResult{
			Records: []*Record{},
			Page:    spec.Page,
			PerPage: spec.PerPage,
		})
		return
	}

	c.JSON(http.StatusOK, result)
}

// ListUpdates returns the caller scope's tracked records newer than the
// since cursor. An absent cursor means the poller has no baseline yet, so
// there is nothing to diff against and the result is empty.
func (h *Handler) ListUpdates(c *gin.Context) {
	siteID, err := strconv.ParseInt(c.DefaultQuery("site_id", "1"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, apperrors.BadRequest("invalid site_id"))
		return
	}
	tenantID, err := strconv.ParseInt(c.DefaultQuery("tenant_id", "1"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, apperrors.BadRequest("invalid tenant_id"))
		return
	}
	scope := Scope{SiteID: siteID, TenantID: tenantID}

	raw := c.Query("since")
	if raw == "" {
		c.JSON(http.StatusOK, gin.H{"records": []*Record{}})
		return
	}

	cursor, err := time.Parse(TimeFormat, raw)
	if err != nil {
		if cursor, err = time.Parse(time.RFC3339, raw); err != nil {
			c.JSON(http.StatusBadRequest, apperrors.BadRequest("invalid since timestamp"))
			return
		}
	}

	fresh := h.service.GatherSince(scope, cursor)
	if fresh == nil {
		fresh = []*Record{}
	}
	c.JSON(http.StatusOK, gin.H{"records": fresh})
}

// ListValues lists distinct stored values of a filterable column
func (h *Handler) ListValues(c *gin.Context) {
	column := c.Param("column")

	values, err := h.service.DistinctValues(c.Request.Context(), column)
	if err != nil {
		if errors.Is(err, ErrColumnNotAllowed) {
			c.JSON(http.StatusBadRequest, apperrors.InvalidColumn(column))
			return
		}
		c.JSON(http.StatusInternalServerError, apperrors.Internal("Failed to list values", err))
		return
	}
	if values == nil {
		values = []string{}
	}

	c.JSON(http.StatusOK, gin.H{"column": column, "values": values})
}

// parseQuery maps request query parameters onto a QuerySpec
func (h *Handler) parseQuery(c *gin.Context) QuerySpec {
	spec := QuerySpec{
		Search:      c.Query("search"),
		SearchField: c.Query("search_field"),
		Date:        c.Query("date"),
		DateFrom:    c.Query("date_from"),
		DateTo:      c.Query("date_to"),
		DateAfter:   c.Query("date_after"),
		DateBefore:  c.Query("date_before"),
		Connector:   c.Query("connector"),
		Context:     c.Query("context"),
		Action:      c.Query("action"),
		SourceIP:    c.Query("source_ip"),
		Order:       c.Query("order"),
		OrderBy:     c.Query("orderby"),
		MetaKey:     c.Query("meta_key"),
	}

	spec.ActorID = queryInt64(c, "actor_id")
	spec.ObjectID = queryInt64(c, "object_id")
	spec.SiteID = queryInt64(c, "site_id")
	spec.TenantID = queryInt64(c, "tenant_id")

	spec.RecordIn = parseInt64List(c.Query("record__in"))
	spec.RecordNotIn = parseInt64List(c.Query("record__not_in"))

	for key, values := range c.Request.URL.Query() {
		if len(values) == 0 || values[0] == "" {
			continue
		}
		switch {
		case key == "record__in" || key == "record__not_in":
			// handled above
		case strings.HasSuffix(key, "__not_in"):
			col := strings.TrimSuffix(key, "__not_in")
			if spec.NotIn == nil {
				spec.NotIn = make(map[string][]string)
			}
			spec.NotIn[col] = splitList(values[0])
		case strings.HasSuffix(key, "__in"):
			col := strings.TrimSuffix(key, "__in")
			if spec.In == nil {
				spec.In = make(map[string][]string)
			}
			spec.In[col] = splitList(values[0])
		}
	}

	spec.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	if spec.Page < 1 {
		spec.Page = 1
	}

	if raw := c.Query("per_page"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			spec.PerPage = n
		} else {
			spec.PerPage = h.defaultPerPage
		}
	} else {
		spec.PerPage = h.defaultPerPage
	}

	if raw := c.Query("fields"); raw != "" {
		spec.Fields = splitList(raw)
	}

	return spec
}

func queryInt64(c *gin.Context, name string) *int64 {
	raw := c.Query(name)
	if raw == "" {
		return nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}

func parseInt64List(raw string) []int64 {
	if raw == "" {
		return nil
	}
	var ids []int64
	for _, item := range splitList(raw) {
		if n, err := strconv.ParseInt(item, 10, 64); err == nil {
			ids = append(ids, n)
		}
	}
	return ids
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
