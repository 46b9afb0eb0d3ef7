package rule

import (
	"context"
	"fmt"

	"github.com/oswaldlabs/streamlog/pkg/database"
)

// Repository defines read access to the exclusion rule configuration.
// Rules are written by external configuration tooling; this core only reads.
type Repository interface {
	List(ctx context.Context, siteID, tenantID int64) ([]Rule, error)
}

// repository implements Repository interface
type repository struct {
	db *database.DB
}

// NewRepository creates a new rule repository
func NewRepository(db *database.DB) Repository {
	return &repository{db: db}
}

// List returns the tenant-local rules with the site's global rules (tenant_id
// 0) concatenated after them. Duplicates across the two sets are harmless
// extra OR-branches for the evaluator.
func (r *repository) List(ctx context.Context, siteID, tenantID int64) ([]Rule, error) {
	query := `
		SELECT id, site_id, tenant_id, actor_or_role, connector, context, action, source_ip, created_at
		FROM exclusion_rules
		WHERE site_id = $1 AND tenant_id IN ($2, 0)
		ORDER BY tenant_id DESC, id
	`

	rows, err := r.db.QueryContext(ctx, query, siteID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list exclusion rules: %w", err)
	}
	defer rows.Close()

	rules := make([]Rule, 0)
	for rows.Next() {
		var rule Rule
		err := rows.Scan(
			&rule.ID, &rule.SiteID, &rule.TenantID, &rule.ActorOrRole,
			&rule.Connector, &rule.Context, &rule.Action, &rule.SourceIP,
			&rule.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan exclusion rule: %w", err)
		}
		rules = append(rules, rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return rules, nil
}
