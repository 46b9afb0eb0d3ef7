package record

import (
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func int64ptr(n int64) *int64 {
	return &n
}

func TestBuildQuery_Defaults(t *testing.T) {
	q := buildQuery(QuerySpec{}, queryOptions{searchField: "summary"})

	assert.Equal(t, "SELECT COUNT(*) FROM activity_records", q.countSQL)
	assert.Empty(t, q.countArgs)
	assert.Contains(t, q.selectSQL, "ORDER BY id DESC")
	assert.NotContains(t, q.selectSQL, "LIMIT")
	assert.True(t, q.hydrate)
	assert.Equal(t, recordColumns, q.columns)
}

func TestBuildQuery_ScalarFilters(t *testing.T) {
	q := buildQuery(QuerySpec{
		Connector: "posts",
		Action:    "updated",
		ActorID:   int64ptr(7),
	}, queryOptions{})

	assert.Contains(t, q.selectSQL, "actor_id = $1")
	assert.Contains(t, q.selectSQL, "connector = $2")
	assert.Contains(t, q.selectSQL, "action = $3")
	assert.Equal(t, []interface{}{int64(7), "posts", "updated"}, q.countArgs)
}

func TestBuildQuery_ObjectIDZeroIsAFilter(t *testing.T) {
	// nil means "no filter"; a pointer to zero must filter on the value 0
	q := buildQuery(QuerySpec{ObjectID: int64ptr(0)}, queryOptions{})
	assert.Contains(t, q.selectSQL, "object_id = $1")
	assert.Equal(t, []interface{}{int64(0)}, q.countArgs)

	q = buildQuery(QuerySpec{}, queryOptions{})
	assert.NotContains(t, q.selectSQL, "object_id =")
}

func TestBuildQuery_Search(t *testing.T) {
	t.Run("uses configured default field", func(t *testing.T) {
		q := buildQuery(QuerySpec{Search: "login"}, queryOptions{searchField: "summary"})
		assert.Contains(t, q.selectSQL, "summary ILIKE $1")
		assert.Equal(t, []interface{}{"%login%"}, q.countArgs)
	})

	t.Run("honors an allow-listed override", func(t *testing.T) {
		q := buildQuery(QuerySpec{Search: "wp", SearchField: "connector"}, queryOptions{searchField: "summary"})
		assert.Contains(t, q.selectSQL, "connector ILIKE $1")
	})

	t.Run("rejects a non-listed override", func(t *testing.T) {
		q := buildQuery(QuerySpec{Search: "x", SearchField: "id; DROP TABLE"}, queryOptions{searchField: "summary"})
		assert.Contains(t, q.selectSQL, "summary ILIKE $1")
	})

	t.Run("escapes like metacharacters", func(t *testing.T) {
		q := buildQuery(QuerySpec{Search: "100%_done"}, queryOptions{searchField: "summary"})
		assert.Equal(t, []interface{}{`%100\%\_done%`}, q.countArgs)
	})
}

func TestBuildQuery_DateFilters(t *testing.T) {
	t.Run("single day expands to inclusive bounds", func(t *testing.T) {
		q := buildQuery(QuerySpec{Date: "2026-03-15"}, queryOptions{})

		require.Len(t, q.countArgs, 2)
		assert.Contains(t, q.selectSQL, "created_at >= $1")
		assert.Contains(t, q.selectSQL, "created_at <= $2")

		from := q.countArgs[0].(time.Time)
		to := q.countArgs[1].(time.Time)
		assert.Equal(t, "2026-03-15T00:00:00Z", from.Format(time.RFC3339))
		assert.Equal(t, "2026-03-15T23:59:59Z", to.Format(time.RFC3339))
	})

	t.Run("day bounds respect the configured timezone", func(t *testing.T) {
		loc := time.FixedZone("UTC+2", 2*3600)
		q := buildQuery(QuerySpec{DateFrom: "2026-03-15"}, queryOptions{location: loc})

		require.Len(t, q.countArgs, 1)
		from := q.countArgs[0].(time.Time)
		assert.Equal(t, "2026-03-14T22:00:00Z", from.UTC().Format(time.RFC3339))
	})

	t.Run("after and before are exclusive timestamps", func(t *testing.T) {
		q := buildQuery(QuerySpec{
			DateAfter:  "2026-03-15T10:00:00.000Z",
			DateBefore: "2026-03-15T12:00:00.000Z",
		}, queryOptions{})

		assert.Contains(t, q.selectSQL, "created_at > $1")
		assert.Contains(t, q.selectSQL, "created_at < $2")
	})

	t.Run("malformed dates deactivate the filter", func(t *testing.T) {
		q := buildQuery(QuerySpec{Date: "tomorrow"}, queryOptions{})
		assert.Empty(t, q.countArgs)
		assert.NotContains(t, q.selectSQL, "created_at")
	})
}

func TestBuildQuery_ListFilters(t *testing.T) {
	t.Run("record id lists", func(t *testing.T) {
		q := buildQuery(QuerySpec{
			RecordIn:    []int64{1, 2, 3},
			RecordNotIn: []int64{9},
		}, queryOptions{})

		assert.Contains(t, q.selectSQL, "id = ANY($1)")
		assert.Contains(t, q.selectSQL, "NOT (id = ANY($2))")
		assert.Equal(t, pq.Array([]int64{1, 2, 3}), q.countArgs[0])
	})

	t.Run("string column list", func(t *testing.T) {
		q := buildQuery(QuerySpec{
			In: map[string][]string{"connector": {"posts", "users"}},
		}, queryOptions{})

		assert.Contains(t, q.selectSQL, "connector = ANY($1)")
		assert.Equal(t, pq.Array([]string{"posts", "users"}), q.countArgs[0])
	})

	t.Run("numeric first element makes the list numeric", func(t *testing.T) {
		q := buildQuery(QuerySpec{
			In: map[string][]string{"actor_id": {"3", "5"}},
		}, queryOptions{})

		assert.Equal(t, pq.Array([]int64{3, 5}), q.countArgs[0])
	})

	t.Run("exclusion list", func(t *testing.T) {
		q := buildQuery(QuerySpec{
			NotIn: map[string][]string{"action": {"login", "logout"}},
		}, queryOptions{})

		assert.Contains(t, q.selectSQL, "NOT (action = ANY($1))")
	})

	t.Run("unknown column is dropped", func(t *testing.T) {
		q := buildQuery(QuerySpec{
			In: map[string][]string{"password": {"x"}},
		}, queryOptions{})

		assert.Empty(t, q.countArgs)
	})

	t.Run("created_at and id are not list-filterable", func(t *testing.T) {
		// created_at as a text array would type-mismatch against
		// timestamptz; id has its own record list form
		q := buildQuery(QuerySpec{
			In: map[string][]string{
				"created_at": {"2026-03-15T10:00:00.000Z"},
				"id":         {"1", "2"},
			},
		}, queryOptions{})

		assert.Empty(t, q.countArgs)
		assert.NotContains(t, q.selectSQL, "created_at = ANY")
		assert.NotContains(t, q.selectSQL, "id = ANY")
	})

	t.Run("multiple columns number placeholders deterministically", func(t *testing.T) {
		q := buildQuery(QuerySpec{
			In: map[string][]string{
				"connector": {"posts"},
				"action":    {"created"},
			},
		}, queryOptions{})

		// sorted by column name: action before connector
		assert.Contains(t, q.selectSQL, "action = ANY($1)")
		assert.Contains(t, q.selectSQL, "connector = ANY($2)")
	})
}

func TestBuildQuery_Ordering(t *testing.T) {
	t.Run("allow-listed column", func(t *testing.T) {
		q := buildQuery(QuerySpec{OrderBy: "created_at", Order: "asc"}, queryOptions{})
		assert.Contains(t, q.selectSQL, "ORDER BY created_at ASC")
	})

	t.Run("unknown column falls back to id", func(t *testing.T) {
		q := buildQuery(QuerySpec{OrderBy: "summary; DELETE FROM activity_records"}, queryOptions{})
		assert.Contains(t, q.selectSQL, "ORDER BY id DESC")
	})

	t.Run("meta value ordering uses a scalar subquery", func(t *testing.T) {
		q := buildQuery(QuerySpec{OrderBy: "meta_value", MetaKey: "revision"}, queryOptions{})

		assert.Contains(t, q.selectSQL, "SELECT m.meta_value FROM activity_meta m")
		assert.Contains(t, q.selectSQL, "m.meta_key = $1")
		assert.Equal(t, []interface{}{"revision"}, q.selectArgs)
		// the count never sorts, so it must not see the meta key placeholder
		assert.Empty(t, q.countArgs)
	})

	t.Run("numeric meta ordering casts the value", func(t *testing.T) {
		q := buildQuery(QuerySpec{OrderBy: "meta_value_num", MetaKey: "revision"}, queryOptions{})
		assert.Contains(t, q.selectSQL, "m.meta_value::numeric")
	})

	t.Run("meta ordering without a key falls back to id", func(t *testing.T) {
		q := buildQuery(QuerySpec{OrderBy: "meta_value"}, queryOptions{})
		assert.Contains(t, q.selectSQL, "ORDER BY id DESC")
	})
}

func TestBuildQuery_Pagination(t *testing.T) {
	t.Run("count ignores pagination", func(t *testing.T) {
		q := buildQuery(QuerySpec{Connector: "posts", Page: 3, PerPage: 10}, queryOptions{})

		assert.Equal(t, []interface{}{"posts"}, q.countArgs)
		assert.NotContains(t, q.countSQL, "LIMIT")
		assert.Contains(t, q.selectSQL, "LIMIT $2 OFFSET $3")
		assert.Equal(t, []interface{}{"posts", 10, 20}, q.selectArgs)
	})

	t.Run("zero per page disables the limit", func(t *testing.T) {
		q := buildQuery(QuerySpec{PerPage: 0}, queryOptions{})
		assert.NotContains(t, q.selectSQL, "LIMIT")
	})

	t.Run("page below one clamps to the first page", func(t *testing.T) {
		q := buildQuery(QuerySpec{Page: 0, PerPage: 10}, queryOptions{})
		assert.Equal(t, []interface{}{10, 0}, q.selectArgs)
	})
}

func TestBuildQuery_Projection(t *testing.T) {
	t.Run("projection keeps id and skips hydration", func(t *testing.T) {
		q := buildQuery(QuerySpec{Fields: []string{"summary", "created_at"}}, queryOptions{})

		assert.Equal(t, []string{"id", "summary", "created_at"}, q.columns)
		assert.False(t, q.hydrate)
		assert.Contains(t, q.selectSQL, "SELECT id, summary, created_at FROM")
	})

	t.Run("meta field opts into hydration", func(t *testing.T) {
		q := buildQuery(QuerySpec{Fields: []string{"summary", "meta"}}, queryOptions{})
		assert.True(t, q.hydrate)
		assert.Equal(t, []string{"id", "summary"}, q.columns)
	})

	t.Run("unknown fields are dropped", func(t *testing.T) {
		q := buildQuery(QuerySpec{Fields: []string{"secret", "summary"}}, queryOptions{})
		assert.Equal(t, []string{"id", "summary"}, q.columns)
	})
}
