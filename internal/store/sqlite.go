package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"ledger-matching-engine/internal/models"
	"ledger-matching-engine/internal/rules"
	"ledger-matching-engine/pkg/errors"

	"github.com/avast/retry-go"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStore is a SQLite-backed implementation of the rule store,
// pattern store and execution log sink.
//
// Pattern metric updates use optimistic concurrency: each pattern row
// carries a version counter, the update re-reads and re-applies the
// mutation when the versioned UPDATE hits a conflict, so concurrent
// feedback events never lose increments.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

const schema = `
CREATE TABLE IF NOT EXISTS rules (
	id            TEXT PRIMARY KEY,
	tenant_id     TEXT NOT NULL,
	name          TEXT NOT NULL,
	priority      INTEGER NOT NULL DEFAULT 0,
	match_logic   TEXT NOT NULL DEFAULT 'ALL',
	is_active     INTEGER NOT NULL DEFAULT 1,
	stop_on_match INTEGER NOT NULL DEFAULT 1,
	times_matched INTEGER NOT NULL DEFAULT 0,
	last_matched  TIMESTAMP,
	created_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE (tenant_id, name)
);
CREATE INDEX IF NOT EXISTS idx_rules_tenant_active ON rules (tenant_id, is_active, priority DESC);

CREATE TABLE IF NOT EXISTS rule_conditions (
	id              TEXT PRIMARY KEY,
	rule_id         TEXT NOT NULL REFERENCES rules (id) ON DELETE CASCADE,
	field           TEXT NOT NULL,
	operator        TEXT NOT NULL,
	value           TEXT NOT NULL DEFAULT '',
	value_secondary TEXT NOT NULL DEFAULT '',
	case_sensitive  INTEGER NOT NULL DEFAULT 0,
	ord             INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_conditions_rule ON rule_conditions (rule_id, ord);

CREATE TABLE IF NOT EXISTS rule_actions (
	id                   TEXT PRIMARY KEY,
	rule_id              TEXT NOT NULL REFERENCES rules (id) ON DELETE CASCADE,
	sequence             INTEGER NOT NULL DEFAULT 1,
	description_template TEXT NOT NULL DEFAULT '',
	account_code         TEXT NOT NULL,
	allocation_type      TEXT NOT NULL,
	value                TEXT NOT NULL DEFAULT '0'
);
CREATE INDEX IF NOT EXISTS idx_actions_rule ON rule_actions (rule_id, sequence);

CREATE TABLE IF NOT EXISTS patterns (
	id                     TEXT PRIMARY KEY,
	tenant_id              TEXT,
	pattern_name           TEXT NOT NULL UNIQUE,
	pattern_type           TEXT NOT NULL DEFAULT 'contains',
	description_pattern    TEXT NOT NULL,
	amount_min             TEXT,
	amount_max             TEXT,
	direction_filter       TEXT,
	suggested_who          TEXT NOT NULL DEFAULT '',
	suggested_account_code TEXT NOT NULL DEFAULT '',
	times_seen             INTEGER NOT NULL DEFAULT 0,
	times_accepted         INTEGER NOT NULL DEFAULT 0,
	times_rejected         INTEGER NOT NULL DEFAULT 0,
	accuracy_rate          REAL NOT NULL DEFAULT 0,
	confidence             REAL NOT NULL DEFAULT 50,
	is_active              INTEGER NOT NULL DEFAULT 1,
	auto_apply             INTEGER NOT NULL DEFAULT 0,
	version                INTEGER NOT NULL DEFAULT 0,
	last_trained           TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_patterns_tenant_active ON patterns (tenant_id, is_active);

CREATE TABLE IF NOT EXISTS execution_log (
	id          TEXT PRIMARY KEY,
	rule_id     TEXT NOT NULL,
	rule_name   TEXT NOT NULL,
	tenant_id   TEXT NOT NULL,
	transaction_data TEXT NOT NULL,
	matched     INTEGER NOT NULL,
	result_data TEXT,
	executed_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_execution_log_rule ON execution_log (rule_id, executed_at);
`

// NewSQLiteStore opens (creating if needed) a SQLite database at dbPath
// and applies the schema.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		return nil, errors.ValidationError(errors.CodeMissingField, "db_path", dbPath)
	}

	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite does not benefit from multiple connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLiteStore{db: db, dbPath: dbPath}, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateRule persists a rule with its conditions and actions, assigning
// IDs when missing, and returns the stored rule.
func (s *SQLiteStore) CreateRule(ctx context.Context, rule models.Rule) (models.Rule, error) {
	if err := rule.Validate(); err != nil {
		return models.Rule{}, errors.ValidationError(errors.CodeInvalidRule, rule.Name, err.Error())
	}

	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Rule{}, errors.StoreError(errors.CodeStoreUnavailable, "create rule", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO rules (id, tenant_id, name, priority, match_logic, is_active, stop_on_match)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rule.ID, rule.TenantID, rule.Name, rule.Priority, string(rule.MatchLogic), rule.IsActive, rule.StopOnMatch)
	if err != nil {
		return models.Rule{}, errors.StoreError(errors.CodeStoreUnavailable, "create rule", err)
	}

	for i := range rule.Conditions {
		if rule.Conditions[i].ID == "" {
			rule.Conditions[i].ID = uuid.NewString()
		}
		cond := rule.Conditions[i]
		_, err = tx.ExecContext(ctx,
			`INSERT INTO rule_conditions (id, rule_id, field, operator, value, value_secondary, case_sensitive, ord)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			cond.ID, rule.ID, string(cond.Field), string(cond.Operator), cond.Value, cond.ValueSecondary, cond.CaseSensitive, cond.Order)
		if err != nil {
			return models.Rule{}, errors.StoreError(errors.CodeStoreUnavailable, "create rule condition", err)
		}
	}

	for i := range rule.Actions {
		if rule.Actions[i].ID == "" {
			rule.Actions[i].ID = uuid.NewString()
		}
		action := rule.Actions[i]
		_, err = tx.ExecContext(ctx,
			`INSERT INTO rule_actions (id, rule_id, sequence, description_template, account_code, allocation_type, value)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			action.ID, rule.ID, action.Sequence, action.DescriptionTemplate, action.AccountCode, string(action.AllocationType), action.Value.String())
		if err != nil {
			return models.Rule{}, errors.StoreError(errors.CodeStoreUnavailable, "create rule action", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return models.Rule{}, errors.StoreError(errors.CodeStoreUnavailable, "create rule", err)
	}

	return rule, nil
}

// ActiveRulesForTenant returns the active rules scoped to a tenant with
// conditions and actions attached, ordered by descending priority.
func (s *SQLiteStore) ActiveRulesForTenant(ctx context.Context, tenantID string) ([]models.Rule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tenant_id, name, priority, match_logic, is_active, stop_on_match, times_matched, last_matched
		 FROM rules
		 WHERE tenant_id = ? AND is_active = 1
		 ORDER BY priority DESC, created_at, id`,
		tenantID)
	if err != nil {
		return nil, errors.StoreError(errors.CodeStoreUnavailable, "fetch rules", err)
	}
	defer func() { _ = rows.Close() }()

	var result []models.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.StoreError(errors.CodeStoreUnavailable, "fetch rules", err)
	}

	for i := range result {
		if err := s.loadRuleChildren(ctx, &result[i]); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// GetRule fetches one rule by ID within a tenant scope
func (s *SQLiteStore) GetRule(ctx context.Context, tenantID, ruleID string) (models.Rule, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, name, priority, match_logic, is_active, stop_on_match, times_matched, last_matched
		 FROM rules
		 WHERE id = ? AND tenant_id = ?`,
		ruleID, tenantID)

	rule, err := scanRule(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return models.Rule{}, errors.StoreError(errors.CodeNotFound, "get rule", nil).
				WithContext("rule_id", ruleID)
		}
		return models.Rule{}, err
	}

	if err := s.loadRuleChildren(ctx, &rule); err != nil {
		return models.Rule{}, err
	}

	return rule, nil
}

// RecordRuleMatch increments the rule's usage counter and refreshes its
// last_matched timestamp
func (s *SQLiteStore) RecordRuleMatch(ctx context.Context, tenantID, ruleID string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE rules SET times_matched = times_matched + 1, last_matched = ? WHERE id = ? AND tenant_id = ?`,
		time.Now().UTC(), ruleID, tenantID)
	if err != nil {
		return errors.StoreError(errors.CodeStoreUnavailable, "record rule match", err)
	}

	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return errors.StoreError(errors.CodeNotFound, "record rule match", nil).
			WithContext("rule_id", ruleID)
	}

	return nil
}

// CreatePattern persists a pattern, assigning an ID when missing, and
// returns the stored pattern.
func (s *SQLiteStore) CreatePattern(ctx context.Context, pattern models.Pattern) (models.Pattern, error) {
	if err := pattern.Validate(); err != nil {
		return models.Pattern{}, errors.ValidationError(errors.CodeInvalidPattern, pattern.PatternName, err.Error())
	}

	if pattern.ID == "" {
		pattern.ID = uuid.NewString()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO patterns (id, tenant_id, pattern_name, pattern_type, description_pattern,
		                       amount_min, amount_max, direction_filter,
		                       suggested_who, suggested_account_code,
		                       times_seen, times_accepted, times_rejected,
		                       accuracy_rate, confidence, is_active, auto_apply, version, last_trained)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		pattern.ID, nullString(pattern.TenantID), pattern.PatternName, string(pattern.PatternType), pattern.DescriptionPattern,
		nullDecimal(pattern.AmountMin), nullDecimal(pattern.AmountMax), nullString(string(pattern.DirectionFilter)),
		pattern.SuggestedWho, pattern.SuggestedAccountCode,
		pattern.TimesSeen, pattern.TimesAccepted, pattern.TimesRejected,
		pattern.AccuracyRate, pattern.Confidence, pattern.IsActive, pattern.AutoApply, pattern.Version, pattern.LastTrained)
	if err != nil {
		return models.Pattern{}, errors.StoreError(errors.CodeStoreUnavailable, "create pattern", err)
	}

	return pattern, nil
}

// ActivePatternsForTenant returns active patterns for the tenant plus
// tenant-agnostic global patterns
func (s *SQLiteStore) ActivePatternsForTenant(ctx context.Context, tenantID string) ([]models.Pattern, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tenant_id, pattern_name, pattern_type, description_pattern,
		        amount_min, amount_max, direction_filter,
		        suggested_who, suggested_account_code,
		        times_seen, times_accepted, times_rejected,
		        accuracy_rate, confidence, is_active, auto_apply, version, last_trained
		 FROM patterns
		 WHERE is_active = 1 AND (tenant_id = ? OR tenant_id IS NULL)
		 ORDER BY accuracy_rate DESC, times_seen DESC`,
		tenantID)
	if err != nil {
		return nil, errors.StoreError(errors.CodeStoreUnavailable, "fetch patterns", err)
	}
	defer func() { _ = rows.Close() }()

	var result []models.Pattern
	for rows.Next() {
		pattern, err := scanPattern(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, pattern)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.StoreError(errors.CodeStoreUnavailable, "fetch patterns", err)
	}

	return result, nil
}

// GetPattern fetches one pattern by ID
func (s *SQLiteStore) GetPattern(ctx context.Context, patternID string) (models.Pattern, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, pattern_name, pattern_type, description_pattern,
		        amount_min, amount_max, direction_filter,
		        suggested_who, suggested_account_code,
		        times_seen, times_accepted, times_rejected,
		        accuracy_rate, confidence, is_active, auto_apply, version, last_trained
		 FROM patterns
		 WHERE id = ?`,
		patternID)

	pattern, err := scanPattern(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return models.Pattern{}, errors.StoreError(errors.CodeNotFound, "get pattern", nil).
				WithContext("pattern_id", patternID)
		}
		return models.Pattern{}, err
	}

	return pattern, nil
}

// UpdatePatternMetrics applies a mutation to a pattern's metrics with
// optimistic concurrency: the UPDATE is guarded by the row version and
// the whole read-mutate-write cycle retries on conflict.
func (s *SQLiteStore) UpdatePatternMetrics(ctx context.Context, patternID string, mutate func(*models.Pattern) error) (models.Pattern, error) {
	var updated models.Pattern

	err := retry.Do(
		func() error {
			pattern, err := s.GetPattern(ctx, patternID)
			if err != nil {
				return retry.Unrecoverable(err)
			}

			expectedVersion := pattern.Version
			if err := mutate(&pattern); err != nil {
				return retry.Unrecoverable(fmt.Errorf("pattern metric update: %w", err))
			}
			pattern.Version = expectedVersion + 1

			result, err := s.db.ExecContext(ctx,
				`UPDATE patterns
				 SET times_seen = ?, times_accepted = ?, times_rejected = ?,
				     accuracy_rate = ?, confidence = ?, auto_apply = ?,
				     version = ?, last_trained = ?
				 WHERE id = ? AND version = ?`,
				pattern.TimesSeen, pattern.TimesAccepted, pattern.TimesRejected,
				pattern.AccuracyRate, pattern.Confidence, pattern.AutoApply,
				pattern.Version, pattern.LastTrained,
				patternID, expectedVersion)
			if err != nil {
				return retry.Unrecoverable(errors.StoreError(errors.CodeStoreUnavailable, "update pattern metrics", err))
			}

			affected, err := result.RowsAffected()
			if err != nil {
				return retry.Unrecoverable(errors.StoreError(errors.CodeStoreUnavailable, "update pattern metrics", err))
			}
			if affected == 0 {
				// Version moved under us; re-read and retry
				return errors.StoreError(errors.CodeUpdateConflict, "update pattern metrics", nil).
					WithContext("pattern_id", patternID)
			}

			updated = pattern
			return nil
		},
		retry.Attempts(10),
		retry.Delay(10*time.Millisecond),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return models.Pattern{}, err
	}

	return updated, nil
}

// Record writes one execution log entry
func (s *SQLiteStore) Record(ctx context.Context, entry rules.ExecutionLogEntry) error {
	txData, err := json.Marshal(entry.Transaction)
	if err != nil {
		return errors.StoreError(errors.CodeStoreUnavailable, "record execution log", err)
	}

	var resultData []byte
	if entry.SplitLines != nil {
		resultData, err = json.Marshal(entry.SplitLines)
		if err != nil {
			return errors.StoreError(errors.CodeStoreUnavailable, "record execution log", err)
		}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO execution_log (id, rule_id, rule_name, tenant_id, transaction_data, matched, result_data, executed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), entry.RuleID, entry.RuleName, entry.TenantID,
		string(txData), entry.Matched, nullBytes(resultData), entry.ExecutedAt)
	if err != nil {
		return errors.StoreError(errors.CodeStoreUnavailable, "record execution log", err)
	}

	return nil
}

// rowScanner abstracts sql.Row and sql.Rows for the scan helpers
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRule(scanner rowScanner) (models.Rule, error) {
	var rule models.Rule
	var matchLogic string
	var lastMatched sql.NullTime

	err := scanner.Scan(&rule.ID, &rule.TenantID, &rule.Name, &rule.Priority,
		&matchLogic, &rule.IsActive, &rule.StopOnMatch, &rule.TimesMatched, &lastMatched)
	if err != nil {
		if err == sql.ErrNoRows {
			return models.Rule{}, err
		}
		return models.Rule{}, errors.StoreError(errors.CodeStoreUnavailable, "scan rule", err)
	}

	rule.MatchLogic = models.MatchLogic(matchLogic)
	if lastMatched.Valid {
		rule.LastMatched = &lastMatched.Time
	}

	return rule, nil
}

func (s *SQLiteStore) loadRuleChildren(ctx context.Context, rule *models.Rule) error {
	condRows, err := s.db.QueryContext(ctx,
		`SELECT id, field, operator, value, value_secondary, case_sensitive, ord
		 FROM rule_conditions WHERE rule_id = ? ORDER BY ord, id`,
		rule.ID)
	if err != nil {
		return errors.StoreError(errors.CodeStoreUnavailable, "fetch rule conditions", err)
	}
	defer func() { _ = condRows.Close() }()

	for condRows.Next() {
		var cond models.Condition
		var field, operator string
		if err := condRows.Scan(&cond.ID, &field, &operator, &cond.Value, &cond.ValueSecondary, &cond.CaseSensitive, &cond.Order); err != nil {
			return errors.StoreError(errors.CodeStoreUnavailable, "scan rule condition", err)
		}
		cond.Field = models.ConditionField(field)
		cond.Operator = models.ConditionOperator(operator)
		rule.Conditions = append(rule.Conditions, cond)
	}
	if err := condRows.Err(); err != nil {
		return errors.StoreError(errors.CodeStoreUnavailable, "fetch rule conditions", err)
	}

	actionRows, err := s.db.QueryContext(ctx,
		`SELECT id, sequence, description_template, account_code, allocation_type, value
		 FROM rule_actions WHERE rule_id = ? ORDER BY sequence, id`,
		rule.ID)
	if err != nil {
		return errors.StoreError(errors.CodeStoreUnavailable, "fetch rule actions", err)
	}
	defer func() { _ = actionRows.Close() }()

	for actionRows.Next() {
		var action models.Action
		var allocationType, value string
		if err := actionRows.Scan(&action.ID, &action.Sequence, &action.DescriptionTemplate, &action.AccountCode, &allocationType, &value); err != nil {
			return errors.StoreError(errors.CodeStoreUnavailable, "scan rule action", err)
		}
		action.AllocationType = models.AllocationType(allocationType)
		action.Value, err = decimal.NewFromString(value)
		if err != nil {
			return errors.StoreError(errors.CodeStoreUnavailable, "scan rule action", err)
		}
		rule.Actions = append(rule.Actions, action)
	}
	if err := actionRows.Err(); err != nil {
		return errors.StoreError(errors.CodeStoreUnavailable, "fetch rule actions", err)
	}

	return nil
}

func scanPattern(scanner rowScanner) (models.Pattern, error) {
	var pattern models.Pattern
	var tenantID, patternType, amountMin, amountMax, directionFilter sql.NullString
	var lastTrained sql.NullTime

	err := scanner.Scan(&pattern.ID, &tenantID, &pattern.PatternName, &patternType, &pattern.DescriptionPattern,
		&amountMin, &amountMax, &directionFilter,
		&pattern.SuggestedWho, &pattern.SuggestedAccountCode,
		&pattern.TimesSeen, &pattern.TimesAccepted, &pattern.TimesRejected,
		&pattern.AccuracyRate, &pattern.Confidence, &pattern.IsActive, &pattern.AutoApply, &pattern.Version, &lastTrained)
	if err != nil {
		if err == sql.ErrNoRows {
			return models.Pattern{}, err
		}
		return models.Pattern{}, errors.StoreError(errors.CodeStoreUnavailable, "scan pattern", err)
	}

	pattern.TenantID = tenantID.String
	pattern.PatternType = models.PatternType(patternType.String)
	pattern.DirectionFilter = models.Direction(directionFilter.String)
	if lastTrained.Valid {
		pattern.LastTrained = &lastTrained.Time
	}

	if amountMin.Valid && amountMin.String != "" {
		d, err := decimal.NewFromString(amountMin.String)
		if err != nil {
			return models.Pattern{}, errors.StoreError(errors.CodeStoreUnavailable, "scan pattern", err)
		}
		pattern.AmountMin = &d
	}
	if amountMax.Valid && amountMax.String != "" {
		d, err := decimal.NewFromString(amountMax.String)
		if err != nil {
			return models.Pattern{}, errors.StoreError(errors.CodeStoreUnavailable, "scan pattern", err)
		}
		pattern.AmountMax = &d
	}

	return pattern, nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullDecimal(d *decimal.Decimal) interface{} {
	if d == nil {
		return nil
	}
	return d.String()
}

func nullBytes(b []byte) interface{} {
	if b == nil {
		return nil
	}
	return string(b)
}
