package record

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// TimeFormat is the wire form of record timestamps: UTC, millisecond
// precision, lexicographically sortable.
const TimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Time wraps time.Time with the stream's wire serialization
type Time struct {
	time.Time
}

// Now returns the current UTC time
func Now() Time {
	return Time{time.Now().UTC()}
}

// MarshalJSON implements json.Marshaler
func (t Time) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.UTC().Format(TimeFormat))
}

// UnmarshalJSON implements json.Unmarshaler
func (t *Time) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := time.Parse(TimeFormat, s)
	if err != nil {
		// tolerate plain RFC3339 from older producers
		parsed, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return fmt.Errorf("invalid record timestamp %q: %w", s, err)
		}
	}
	t.Time = parsed.UTC()
	return nil
}

// Scan implements sql.Scanner
func (t *Time) Scan(value interface{}) error {
	switch v := value.(type) {
	case time.Time:
		t.Time = v.UTC()
		return nil
	case nil:
		t.Time = time.Time{}
		return nil
	default:
		return fmt.Errorf("cannot scan %T into record.Time", value)
	}
}

// Value implements driver.Valuer
func (t Time) Value() (driver.Value, error) {
	return t.UTC(), nil
}

// Record is one logged activity. ObjectID is nil when the event has no
// subject entity; that is distinct from an event about object 0. Meta is
// populated by hydration and is nil on projected queries that exclude it.
type Record struct {
	ID        int64                `json:"id"`
	SiteID    int64                `json:"site_id"`
	TenantID  int64                `json:"tenant_id"`
	ObjectID  *int64               `json:"object_id,omitempty"`
	ActorID   int64                `json:"actor_id"`
	ActorRole string               `json:"actor_role"`
	Summary   string               `json:"summary"`
	Connector string               `json:"connector"`
	Context   string               `json:"context"`
	Action    string               `json:"action"`
	SourceIP  string               `json:"source_ip,omitempty"`
	CreatedAt Time                 `json:"created_at"`
	Meta      map[string]MetaValue `json:"meta,omitempty"`
}

// ActorMetaKey is the reserved metadata key the actor bundle is stored under
const ActorMetaKey = "actor_meta"

// Entry is one ingestion request. A nil ActorID means "resolve the current
// acting principal"; a nil ObjectID means the event has no subject entity.
type Entry struct {
	SiteID    int64
	TenantID  int64
	Connector string
	Context   string
	Action    string
	Message   string
	Args      []interface{}
	ObjectID  *int64
	ActorID   *int64
	SourceIP  string
	Meta      map[string]MetaValue
}

// QuerySpec is the declarative filter for Select. All active filters AND
// together. Zero values deactivate a filter. PerPage < 0 or 0 means no
// limit; callers wanting a bounded page must set it explicitly.
type QuerySpec struct {
	Search      string
	SearchField string

	// Date holds a calendar day (2006-01-02) expanded into a same-day
	// From/To pair. From/To are inclusive day bounds; After/Before are
	// exclusive full-timestamp bounds.
	Date       string
	DateFrom   string
	DateTo     string
	DateAfter  string
	DateBefore string

	ActorID   *int64
	ObjectID  *int64
	SiteID    *int64
	TenantID  *int64
	Connector string
	Context   string
	Action    string
	SourceIP  string

	RecordIn    []int64
	RecordNotIn []int64

	// In and NotIn hold per-column inclusion/exclusion lists. Values are
	// type-sniffed: a numeric first element makes the whole list numeric.
	In    map[string][]string
	NotIn map[string][]string

	Page    int
	PerPage int
	Order   string
	OrderBy string
	// MetaKey names the metadata key joined against for the meta_value and
	// meta_value_num ordering modes.
	MetaKey string

	// Fields projects the listed primary-table columns. Empty selects all
	// columns and hydrates metadata; include "meta" to hydrate alongside a
	// projection.
	Fields []string
}

// MetaKind discriminates the tagged metadata value type
type MetaKind int

const (
	// MetaScalar is a single string value, stored as one row
	MetaScalar MetaKind = iota
	// MetaList is a sequential value, stored as one row per element
	MetaList
)

// MetaValue is the tagged metadata value stored alongside a record. Callers
// state whether a value is a scalar or a list; associative values are
// serialized through MetaJSON into a single scalar row. A stored
// single-element list reads back as a scalar, the two are indistinguishable
// at rest.
type MetaValue struct {
	Kind   MetaKind `json:"-"`
	Scalar string   `json:"-"`
	List   []string `json:"-"`
}

// MetaString builds a scalar metadata value
func MetaString(s string) MetaValue {
	return MetaValue{Kind: MetaScalar, Scalar: s}
}

// MetaInt builds a scalar metadata value from an integer
func MetaInt(n int64) MetaValue {
	return MetaValue{Kind: MetaScalar, Scalar: strconv.FormatInt(n, 10)}
}

// MetaStrings builds a list metadata value
func MetaStrings(items ...string) MetaValue {
	return MetaValue{Kind: MetaList, List: items}
}

// MetaJSON serializes an associative or structured value into a single
// scalar entry
func MetaJSON(v interface{}) (MetaValue, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return MetaValue{}, fmt.Errorf("failed to serialize metadata value: %w", err)
	}
	return MetaValue{Kind: MetaScalar, Scalar: string(data)}, nil
}

// MetaFrom converts a loosely-typed value into a MetaValue. Nil values
// report false and are dropped by callers. Sequential values become lists,
// associative values a single JSON scalar, everything else its string form.
func MetaFrom(v interface{}) (MetaValue, bool) {
	switch val := v.(type) {
	case nil:
		return MetaValue{}, false
	case string:
		return MetaString(val), true
	case []string:
		return MetaStrings(val...), true
	case []interface{}:
		items := make([]string, 0, len(val))
		for _, item := range val {
			if mv, ok := MetaFrom(item); ok {
				items = append(items, mv.Scalar)
			}
		}
		return MetaStrings(items...), true
	case map[string]interface{}:
		mv, err := MetaJSON(val)
		if err != nil {
			return MetaValue{}, false
		}
		return mv, true
	case bool:
		return MetaString(strconv.FormatBool(val)), true
	case int:
		return MetaInt(int64(val)), true
	case int64:
		return MetaInt(val), true
	case float64:
		// json numbers decode as float64; keep integral values clean
		if val == float64(int64(val)) {
			return MetaInt(int64(val)), true
		}
		return MetaString(strconv.FormatFloat(val, 'f', -1, 64)), true
	default:
		return MetaString(fmt.Sprintf("%v", val)), true
	}
}

// Rows returns the EAV rows this value is stored as
func (v MetaValue) Rows() []string {
	if v.Kind == MetaList {
		return v.List
	}
	return []string{v.Scalar}
}

// DecodeJSON unmarshals a scalar written through MetaJSON
func (v MetaValue) DecodeJSON(dest interface{}) error {
	if v.Kind != MetaScalar {
		return fmt.Errorf("cannot decode %d-kind metadata value as JSON", v.Kind)
	}
	return json.Unmarshal([]byte(v.Scalar), dest)
}

// Interface returns the value in its natural loose form
func (v MetaValue) Interface() interface{} {
	if v.Kind == MetaList {
		return v.List
	}
	return v.Scalar
}

// MarshalJSON implements json.Marshaler
func (v MetaValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// UnmarshalJSON implements json.Unmarshaler
func (v *MetaValue) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*v = MetaStrings(list...)
		return nil
	}

	var scalar string
	if err := json.Unmarshal(data, &scalar); err != nil {
		return err
	}
	*v = MetaString(scalar)
	return nil
}
