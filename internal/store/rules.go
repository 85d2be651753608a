// ABOUTME: Authorization rule entity and store methods
// ABOUTME: Rules are served in ascending position order for first-match evaluation

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// CreateRule inserts a rule. Generates the ID if unset.
// Returns ErrNameExists when the rule name is taken.
func (s *SQLiteStore) CreateRule(ctx context.Context, rule *Rule) error {
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}

	var roles *string
	if rule.Roles != nil {
		data, err := json.Marshal(rule.Roles)
		if err != nil {
			return fmt.Errorf("marshaling rule roles: %w", err)
		}
		str := string(data)
		roles = &str
	}

	query := `
		INSERT INTO rules (id, name, position, description, host_pattern, path_pattern, roles, action)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		rule.ID,
		rule.Name,
		rule.Position,
		rule.Description,
		nullable(rule.HostPattern),
		nullable(rule.PathPattern),
		roles,
		string(rule.Action),
	)
	if isUniqueViolation(err) {
		return ErrNameExists
	}
	if err != nil {
		return fmt.Errorf("inserting rule: %w", err)
	}

	s.logger.Debug("created rule", "name", rule.Name, "position", rule.Position, "action", rule.Action)
	return nil
}

// ListRules returns all rules in ascending position order.
func (s *SQLiteStore) ListRules(ctx context.Context) ([]*Rule, error) {
	query := `
		SELECT id, name, position, description, host_pattern, path_pattern, roles, action
		FROM rules
		ORDER BY position ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying rules: %w", err)
	}
	defer rows.Close()

	var rules []*Rule
	for rows.Next() {
		var rule Rule
		var host, path, roles sql.NullString
		var action string
		if err := rows.Scan(
			&rule.ID,
			&rule.Name,
			&rule.Position,
			&rule.Description,
			&host,
			&path,
			&roles,
			&action,
		); err != nil {
			return nil, fmt.Errorf("scanning rule: %w", err)
		}
		rule.HostPattern = host.String
		rule.PathPattern = path.String
		rule.Action = Action(action)
		if roles.Valid {
			if err := json.Unmarshal([]byte(roles.String), &rule.Roles); err != nil {
				return nil, fmt.Errorf("unmarshaling rule roles: %w", err)
			}
		}
		rules = append(rules, &rule)
	}
	return rules, rows.Err()
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
