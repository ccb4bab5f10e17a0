// Package store provides the persistence collaborators the matching
// engines consume: rule and pattern stores plus the execution log sink.
// Two implementations are included: an in-memory store for tests and
// fixture-driven CLI runs, and a SQLite-backed store for durable use.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ledger-matching-engine/internal/models"
	"ledger-matching-engine/internal/rules"
	"ledger-matching-engine/pkg/errors"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory implementation of the rule store, pattern
// store and execution log sink. Safe for concurrent use; the pattern
// metric update holds the write lock for the whole read-modify-write so
// concurrent feedback events cannot lose increments.
type MemoryStore struct {
	mu       sync.RWMutex
	rules    map[string]models.Rule
	patterns map[string]models.Pattern
	logs     []rules.ExecutionLogEntry
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rules:    make(map[string]models.Rule),
		patterns: make(map[string]models.Pattern),
	}
}

// AddRule inserts a rule, assigning an ID when missing, and returns it
func (s *MemoryStore) AddRule(rule models.Rule) (models.Rule, error) {
	if err := rule.Validate(); err != nil {
		return models.Rule{}, errors.ValidationError(errors.CodeInvalidRule, rule.Name, err.Error())
	}

	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules[rule.ID] = rule

	return rule, nil
}

// AddPattern inserts a pattern, assigning an ID when missing, and returns it
func (s *MemoryStore) AddPattern(pattern models.Pattern) (models.Pattern, error) {
	if err := pattern.Validate(); err != nil {
		return models.Pattern{}, errors.ValidationError(errors.CodeInvalidPattern, pattern.PatternName, err.Error())
	}

	if pattern.ID == "" {
		pattern.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.patterns[pattern.ID] = pattern

	return pattern, nil
}

// ActiveRulesForTenant returns the active rules scoped to a tenant,
// ordered by descending priority with stable insertion-order ties.
func (s *MemoryStore) ActiveRulesForTenant(_ context.Context, tenantID string) ([]models.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []models.Rule
	for _, rule := range s.rules {
		if rule.TenantID == tenantID && rule.IsActive {
			result = append(result, rule)
		}
	}

	return rules.SortRulesByPriority(result), nil
}

// GetRule fetches one rule by ID within a tenant scope
func (s *MemoryStore) GetRule(_ context.Context, tenantID, ruleID string) (models.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rule, ok := s.rules[ruleID]
	if !ok || rule.TenantID != tenantID {
		return models.Rule{}, errors.StoreError(errors.CodeNotFound, "get rule", nil).
			WithContext("rule_id", ruleID)
	}

	return rule, nil
}

// RecordRuleMatch increments the rule's usage counter and refreshes its
// last_matched timestamp
func (s *MemoryStore) RecordRuleMatch(_ context.Context, tenantID, ruleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rule, ok := s.rules[ruleID]
	if !ok || rule.TenantID != tenantID {
		return errors.StoreError(errors.CodeNotFound, "record rule match", nil).
			WithContext("rule_id", ruleID)
	}

	now := time.Now().UTC()
	rule.TimesMatched++
	rule.LastMatched = &now
	s.rules[ruleID] = rule

	return nil
}

// ActivePatternsForTenant returns active patterns for the tenant plus
// tenant-agnostic global patterns
func (s *MemoryStore) ActivePatternsForTenant(_ context.Context, tenantID string) ([]models.Pattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []models.Pattern
	for _, pattern := range s.patterns {
		if !pattern.IsActive {
			continue
		}
		if pattern.TenantID == tenantID || pattern.TenantID == "" {
			result = append(result, pattern)
		}
	}

	return result, nil
}

// GetPattern fetches one pattern by ID
func (s *MemoryStore) GetPattern(_ context.Context, patternID string) (models.Pattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pattern, ok := s.patterns[patternID]
	if !ok {
		return models.Pattern{}, errors.StoreError(errors.CodeNotFound, "get pattern", nil).
			WithContext("pattern_id", patternID)
	}

	return pattern, nil
}

// UpdatePatternMetrics applies a mutation to a pattern under the write
// lock, making the read-modify-write atomic
func (s *MemoryStore) UpdatePatternMetrics(_ context.Context, patternID string, mutate func(*models.Pattern) error) (models.Pattern, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pattern, ok := s.patterns[patternID]
	if !ok {
		return models.Pattern{}, errors.StoreError(errors.CodeNotFound, "update pattern metrics", nil).
			WithContext("pattern_id", patternID)
	}

	if err := mutate(&pattern); err != nil {
		return models.Pattern{}, fmt.Errorf("pattern metric update: %w", err)
	}

	pattern.Version++
	s.patterns[patternID] = pattern

	return pattern, nil
}

// Record appends an execution log entry
func (s *MemoryStore) Record(_ context.Context, entry rules.ExecutionLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, entry)
	return nil
}

// ExecutionLog returns a copy of the recorded execution log entries
func (s *MemoryStore) ExecutionLog() []rules.ExecutionLogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	logs := make([]rules.ExecutionLogEntry, len(s.logs))
	copy(logs, s.logs)
	return logs
}
