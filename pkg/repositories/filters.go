// Package repositories contains the data-access layer. Every repository
// resolves its querier from the request context so calls compose into the
// caller's transaction.
package repositories

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/taskhive/taskhive/pkg/models"
)

// MaxListLimit caps every list, search, and recommendation query.
const MaxListLimit = 100

// EntityFilters is the shared filter set for findByFilters queries.
// Include/exclude lists compose as: IN (include) AND NOT IN (exclude).
type EntityFilters struct {
	ProjectID     *uuid.UUID
	FeatureID     *uuid.UUID
	StatusIn      []string
	StatusNotIn   []string
	PriorityIn    []models.Priority
	PriorityNotIn []models.Priority
	Tags          []string
	MatchAllTags  bool
	TextQuery     string
	Limit         int
}

// ClampLimit applies the list cap. Zero and negative limits stay as-is;
// callers treat limit<=0 as "return nothing".
func ClampLimit(limit int) int {
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

// filterBuilder accumulates WHERE clauses and their arguments.
type filterBuilder struct {
	clauses []string
	args    []any
}

func (b *filterBuilder) add(clause string, args ...any) {
	b.clauses = append(b.clauses, clause)
	b.args = append(b.args, args...)
}

func (b *filterBuilder) addIn(column string, values []string, negate bool) {
	if len(values) == 0 {
		return
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(values)), ",")
	op := "IN"
	if negate {
		op = "NOT IN"
	}
	b.clauses = append(b.clauses, fmt.Sprintf("LOWER(%s) %s (%s)", column, op, placeholders))
	for _, v := range values {
		b.args = append(b.args, strings.ToLower(v))
	}
}

// addTextSearch appends one LIKE clause per whitespace-separated token,
// ANDed together over the lowercased search vector. Returns false when the
// query contains no tokens, which callers treat as an empty result.
func (b *filterBuilder) addTextSearch(column, query string) bool {
	tokens := strings.Fields(strings.ToLower(query))
	if len(tokens) == 0 {
		return false
	}
	for _, tok := range tokens {
		b.add(column+` LIKE ? ESCAPE '\'`, "%"+escapeLike(tok)+"%")
	}
	return true
}

// addTagMatch filters entities by tag membership through entity_tags.
// ANY-match uses a single EXISTS with IN; ALL-match requires one EXISTS
// per tag. Tag comparison is case-insensitive for classification.
func (b *filterBuilder) addTagMatch(entityType models.EntityType, idColumn string, tags []string, matchAll bool) {
	if len(tags) == 0 {
		return
	}
	if matchAll {
		for _, tag := range tags {
			b.add(fmt.Sprintf(
				`EXISTS (SELECT 1 FROM entity_tags et WHERE et.entity_type = ? AND et.entity_id = %s AND LOWER(et.tag) = ?)`,
				idColumn), string(entityType), strings.ToLower(tag))
		}
		return
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(tags)), ",")
	args := []any{string(entityType)}
	for _, tag := range tags {
		args = append(args, strings.ToLower(tag))
	}
	b.add(fmt.Sprintf(
		`EXISTS (SELECT 1 FROM entity_tags et WHERE et.entity_type = ? AND et.entity_id = %s AND LOWER(et.tag) IN (%s))`,
		idColumn, placeholders), args...)
}

func (b *filterBuilder) where() string {
	if len(b.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.clauses, " AND ")
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func prioritiesToStrings(ps []models.Priority) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = string(p)
	}
	return out
}
