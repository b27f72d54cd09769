// Package anonymize replaces personal data in imported tables with
// deterministic placeholders.
package anonymize

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

// Rule rewrites one column. Template may contain ${index}, which is replaced by
// the row's position when the table is ordered by id.
type Rule struct {
	Table    string `yaml:"table"`
	Column   string `yaml:"column"`
	Template string `yaml:"template"`
}

// RuleSet is the YAML document read by LoadRules
type RuleSet struct {
	Rules []Rule `yaml:"rules"`
}

// DefaultRules scrub the visitor data collected by the public forms
var DefaultRules = []Rule{
	{Table: "contact_inquiries", Column: "name", Template: "Visitor ${index}"},
	{Table: "contact_inquiries", Column: "email", Template: "visitor${index}@example.invalid"},
	{Table: "contact_inquiries", Column: "phone", Template: "+000 ${index}"},
	{Table: "newsletter_subscriptions", Column: "email", Template: "subscriber${index}@example.invalid"},
}

// LoadRules reads a rule set from a YAML file
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	var set RuleSet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("failed to parse rules file: %w", err)
	}

	for i, r := range set.Rules {
		if r.Table == "" || r.Column == "" {
			return nil, fmt.Errorf("rule %d: table and column are required", i+1)
		}
	}
	return set.Rules, nil
}

// GenerateSQL generates one UPDATE per table. Rows are numbered by id so the
// same data always produces the same placeholders. NULL values stay NULL.
func GenerateSQL(rules []Rule) []string {
	if len(rules) == 0 {
		return nil
	}

	// Group rules by table, keeping first-seen order
	var tables []string
	tableRules := make(map[string][]Rule)
	for _, rule := range rules {
		if _, ok := tableRules[rule.Table]; !ok {
			tables = append(tables, rule.Table)
		}
		tableRules[rule.Table] = append(tableRules[rule.Table], rule)
	}

	statements := make([]string, 0, len(tables))
	for _, table := range tables {
		statements = append(statements, generateTableUpdateSQL(table, tableRules[table]))
	}
	return statements
}

// generateTableUpdateSQL generates the UPDATE statement for a single table
func generateTableUpdateSQL(table string, rules []Rule) string {
	var setClauses []string
	for _, rule := range rules {
		col := quoteIdentifier(rule.Column)
		setClauses = append(setClauses, fmt.Sprintf("%s = CASE WHEN %s IS NULL THEN NULL ELSE %s END",
			col, col, renderTemplate(rule.Template)))
	}

	return fmt.Sprintf(`UPDATE %s
SET %s
FROM (
  SELECT id, row_number() OVER (ORDER BY id) AS _row_num
  FROM %s
) AS numbered_rows
WHERE %s.id = numbered_rows.id;`,
		quoteIdentifier(table),
		strings.Join(setClauses, ",\n    "),
		quoteIdentifier(table),
		quoteIdentifier(table),
	)
}

// renderTemplate converts a template into a SQL expression, replacing
// ${index} with the row number
func renderTemplate(template string) string {
	if !strings.Contains(template, "${index}") {
		return quoteLiteral(template)
	}

	parts := strings.Split(template, "${index}")

	var sqlParts []string
	for i, part := range parts {
		if part != "" {
			sqlParts = append(sqlParts, quoteLiteral(part))
		}
		if i < len(parts)-1 {
			sqlParts = append(sqlParts, "numbered_rows._row_num")
		}
	}
	return strings.Join(sqlParts, " || ")
}

func quoteIdentifier(name string) string {
	return fmt.Sprintf("\"%s\"", strings.ReplaceAll(name, "\"", "\"\""))
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// Apply validates rules against the schema and runs them in one transaction.
// Returns the number of rules applied.
func Apply(ctx context.Context, db *gorm.DB, rules []Rule, logger zerolog.Logger) (int, error) {
	if len(rules) == 0 {
		logger.Info().Msg("No anonymization rules configured, skipping")
		return 0, nil
	}

	m := db.Migrator()
	for _, r := range rules {
		if !m.HasTable(r.Table) {
			return 0, fmt.Errorf("unknown table %q", r.Table)
		}
		if !m.HasColumn(r.Table, r.Column) {
			return 0, fmt.Errorf("unknown column %q in table %q", r.Column, r.Table)
		}
	}

	logger.Info().Int("rule_count", len(rules)).Msg("Applying anonymization rules")

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, stmt := range GenerateSQL(rules) {
			if err := tx.Exec(stmt).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to apply anonymization rules")
		return 0, fmt.Errorf("anonymization failed: %w", err)
	}

	logger.Info().Int("rule_count", len(rules)).Msg("Anonymization rules applied successfully")
	return len(rules), nil
}
