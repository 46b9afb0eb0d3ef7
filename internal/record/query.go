package record

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
)

// recordColumns is the full primary-table column set, in select order
var recordColumns = []string{
	"id", "site_id", "tenant_id", "object_id", "actor_id", "actor_role",
	"summary", "connector", "context", "action", "source_ip", "created_at",
}

// searchableColumns are the text columns the contains-search may target
var searchableColumns = map[string]bool{
	"summary":    true,
	"connector":  true,
	"context":    true,
	"action":     true,
	"actor_role": true,
	"source_ip":  true,
}

// distinctColumns are the columns exposed through distinct-value listing
var distinctColumns = map[string]bool{
	"connector":  true,
	"context":    true,
	"action":     true,
	"actor_role": true,
	"source_ip":  true,
}

var knownColumns = func() map[string]bool {
	m := make(map[string]bool, len(recordColumns))
	for _, col := range recordColumns {
		m[col] = true
	}
	return m
}()

// listFilterColumns are the columns the per-column IN/NOT-IN operators may
// target. id has its own record list form and created_at goes through the
// date filters; a text array would type-mismatch against timestamptz.
var listFilterColumns = func() map[string]bool {
	m := make(map[string]bool, len(recordColumns))
	for _, col := range recordColumns {
		m[col] = true
	}
	delete(m, "id")
	delete(m, "created_at")
	return m
}()

// queryOptions carries deployment-level query behavior
type queryOptions struct {
	searchField string
	location    *time.Location
}

// builtQuery is the output of the query builder: a count statement that
// ignores pagination, and a page statement sharing its WHERE placeholders
type builtQuery struct {
	countSQL   string
	countArgs  []interface{}
	selectSQL  string
	selectArgs []interface{}
	columns    []string
	hydrate    bool
}

// buildQuery translates a QuerySpec into SQL. Unknown columns, unknown sort
// modes and malformed dates deactivate their filter rather than failing; the
// builder never interpolates caller input into SQL text, only allow-listed
// column names.
func buildQuery(spec QuerySpec, opts queryOptions) builtQuery {
	var (
		where []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if spec.SiteID != nil {
		where = append(where, "site_id = "+arg(*spec.SiteID))
	}
	if spec.TenantID != nil {
		where = append(where, "tenant_id = "+arg(*spec.TenantID))
	}
	if spec.ActorID != nil {
		where = append(where, "actor_id = "+arg(*spec.ActorID))
	}
	if spec.ObjectID != nil {
		where = append(where, "object_id = "+arg(*spec.ObjectID))
	}
	if spec.Connector != "" {
		where = append(where, "connector = "+arg(spec.Connector))
	}
	if spec.Context != "" {
		where = append(where, "context = "+arg(spec.Context))
	}
	if spec.Action != "" {
		where = append(where, "action = "+arg(spec.Action))
	}
	if spec.SourceIP != "" {
		where = append(where, "source_ip = "+arg(spec.SourceIP))
	}

	if spec.Search != "" {
		field := opts.searchField
		if searchableColumns[spec.SearchField] {
			field = spec.SearchField
		}
		if !searchableColumns[field] {
			field = "summary"
		}
		where = append(where, field+" ILIKE "+arg("%"+escapeLike(spec.Search)+"%"))
	}

	where = append(where, dateClauses(spec, opts.location, arg)...)

	if len(spec.RecordIn) > 0 {
		where = append(where, "id = ANY("+arg(pq.Array(spec.RecordIn))+")")
	}
	if len(spec.RecordNotIn) > 0 {
		where = append(where, "NOT (id = ANY("+arg(pq.Array(spec.RecordNotIn))+"))")
	}

	where = append(where, listClauses(spec.In, false, arg)...)
	where = append(where, listClauses(spec.NotIn, true, arg)...)

	whereSQL := ""
	if len(where) > 0 {
		whereSQL = " WHERE " + strings.Join(where, " AND ")
	}

	// The count shares the WHERE placeholders but none of the ordering or
	// pagination ones, so it is snapshotted before those are appended.
	countSQL := "SELECT COUNT(*) FROM activity_records" + whereSQL
	countArgs := make([]interface{}, len(args))
	copy(countArgs, args)

	columns, hydrate := projection(spec.Fields)

	orderSQL := orderClause(spec, arg)

	limitSQL := ""
	if spec.PerPage > 0 {
		page := spec.Page
		if page < 1 {
			page = 1
		}
		limitSQL = " LIMIT " + arg(spec.PerPage) + " OFFSET " + arg((page-1)*spec.PerPage)
	}

	selectSQL := "SELECT " + strings.Join(columns, ", ") +
		" FROM activity_records" + whereSQL + orderSQL + limitSQL

	return builtQuery{
		countSQL:   countSQL,
		countArgs:  countArgs,
		selectSQL:  selectSQL,
		selectArgs: args,
		columns:    columns,
		hydrate:    hydrate,
	}
}

// dateClauses composes the four date filters. Date expands into a same-day
// From/To pair; From/To bound the calendar day inclusively in the configured
// location; After/Before bound the full timestamp exclusively.
func dateClauses(spec QuerySpec, loc *time.Location, arg func(interface{}) string) []string {
	if loc == nil {
		loc = time.UTC
	}

	var clauses []string

	from, to := spec.DateFrom, spec.DateTo
	if spec.Date != "" {
		from, to = spec.Date, spec.Date
	}

	if from != "" {
		if day, err := time.ParseInLocation("2006-01-02", from, loc); err == nil {
			clauses = append(clauses, "created_at >= "+arg(day.UTC()))
		}
	}
	if to != "" {
		if day, err := time.ParseInLocation("2006-01-02", to, loc); err == nil {
			end := day.Add(24*time.Hour - time.Second)
			clauses = append(clauses, "created_at <= "+arg(end.UTC()))
		}
	}
	if spec.DateAfter != "" {
		if ts, ok := parseTimestamp(spec.DateAfter, loc); ok {
			clauses = append(clauses, "created_at > "+arg(ts.UTC()))
		}
	}
	if spec.DateBefore != "" {
		if ts, ok := parseTimestamp(spec.DateBefore, loc); ok {
			clauses = append(clauses, "created_at < "+arg(ts.UTC()))
		}
	}

	return clauses
}

func parseTimestamp(s string, loc *time.Location) (time.Time, bool) {
	for _, layout := range []string{TimeFormat, time.RFC3339Nano, time.RFC3339} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02"} {
		if ts, err := time.ParseInLocation(layout, s, loc); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// listClauses builds the per-column IN/NOT-IN clauses. The list is numeric
// when its first element parses as an integer; elements that fail the chosen
// typing are dropped. Empty lists and unknown columns are no-ops.
func listClauses(lists map[string][]string, negate bool, arg func(interface{}) string) []string {
	if len(lists) == 0 {
		return nil
	}

	cols := make([]string, 0, len(lists))
	for col := range lists {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	var clauses []string
	for _, col := range cols {
		values := lists[col]
		if !listFilterColumns[col] || len(values) == 0 {
			continue
		}

		var placeholder string
		if _, err := strconv.ParseInt(values[0], 10, 64); err == nil {
			nums := make([]int64, 0, len(values))
			for _, v := range values {
				if n, err := strconv.ParseInt(v, 10, 64); err == nil {
					nums = append(nums, n)
				}
			}
			if len(nums) == 0 {
				continue
			}
			placeholder = arg(pq.Array(nums))
		} else {
			placeholder = arg(pq.Array(values))
		}

		if negate {
			clauses = append(clauses, "NOT ("+col+" = ANY("+placeholder+"))")
		} else {
			clauses = append(clauses, col+" = ANY("+placeholder+")")
		}
	}

	return clauses
}

// orderClause resolves the ordering mode. meta_value and meta_value_num sort
// by a metadata key through a scalar subquery; any other value outside the
// sortable allow-list falls back to id.
func orderClause(spec QuerySpec, arg func(interface{}) string) string {
	direction := "DESC"
	if strings.EqualFold(spec.Order, "asc") {
		direction = "ASC"
	}

	expr := "id"
	switch {
	case spec.OrderBy == "meta_value" && spec.MetaKey != "":
		expr = "(SELECT m.meta_value FROM activity_meta m" +
			" WHERE m.record_id = activity_records.id AND m.meta_key = " + arg(spec.MetaKey) +
			" ORDER BY m.meta_id LIMIT 1)"
	case spec.OrderBy == "meta_value_num" && spec.MetaKey != "":
		expr = "(SELECT m.meta_value::numeric FROM activity_meta m" +
			" WHERE m.record_id = activity_records.id AND m.meta_key = " + arg(spec.MetaKey) +
			" ORDER BY m.meta_id LIMIT 1)"
	case knownColumns[spec.OrderBy]:
		expr = spec.OrderBy
	}

	return " ORDER BY " + expr + " " + direction
}

// projection resolves the selected column list. id is always selected so
// hydration and callers can correlate rows; "meta" in the field list opts a
// projection into hydration.
func projection(fields []string) (columns []string, hydrate bool) {
	if len(fields) == 0 {
		return recordColumns, true
	}

	columns = []string{"id"}
	for _, field := range fields {
		if field == "meta" {
			hydrate = true
			continue
		}
		if field != "id" && knownColumns[field] {
			columns = append(columns, field)
		}
	}

	return columns, hydrate
}

// escapeLike neutralizes LIKE metacharacters in a search term
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
