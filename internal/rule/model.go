package rule

import (
	"strconv"
	"time"
)

// Rule is a single exclusion rule. An empty field is a wildcard; a rule
// matches an event only when every non-empty field equals the corresponding
// event attribute. ActorOrRole holds either a numeric actor ID or a role
// name, disambiguated by whether the value parses as an integer.
type Rule struct {
	ID          int64     `json:"id" db:"id"`
	SiteID      int64     `json:"site_id" db:"site_id"`
	TenantID    int64     `json:"tenant_id" db:"tenant_id"`
	ActorOrRole string    `json:"actor_or_role" db:"actor_or_role"`
	Connector   string    `json:"connector" db:"connector"`
	Context     string    `json:"context" db:"context"`
	Action      string    `json:"action" db:"action"`
	SourceIP    string    `json:"source_ip" db:"source_ip"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// IsGlobal reports whether the rule applies across all tenants under a site
func (r *Rule) IsGlobal() bool {
	return r.TenantID == 0
}

// Descriptor is the event attribute set a rule is evaluated against
type Descriptor struct {
	Connector string
	Context   string
	Action    string
	ActorID   int64
	ActorRole string
	SourceIP  string
}

// Excluded reports whether any rule in the set matches the descriptor.
// Rules combine with OR; fields within a rule combine with AND. A rule with
// every field empty never matches, so an accidentally blank row cannot
// silently discard everything.
func Excluded(d Descriptor, rules []Rule) bool {
	for _, r := range rules {
		if matches(d, r) {
			return true
		}
	}
	return false
}

func matches(d Descriptor, r Rule) bool {
	wildcard := true

	if r.ActorOrRole != "" {
		wildcard = false
		if actorID, err := strconv.ParseInt(r.ActorOrRole, 10, 64); err == nil {
			if actorID != d.ActorID {
				return false
			}
		} else if r.ActorOrRole != d.ActorRole {
			return false
		}
	}

	if r.Connector != "" {
		wildcard = false
		if r.Connector != d.Connector {
			return false
		}
	}

	if r.Context != "" {
		wildcard = false
		if r.Context != d.Context {
			return false
		}
	}

	if r.Action != "" {
		wildcard = false
		if r.Action != d.Action {
			return false
		}
	}

	if r.SourceIP != "" {
		wildcard = false
		if r.SourceIP != d.SourceIP {
			return false
		}
	}

	return !wildcard
}
