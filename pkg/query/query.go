// Package query implements the list-query pipeline shared by every collection
// endpoint: whitelisted filtering, free-text search, sorting, projection and
// pagination composed over a single table and executed exactly once.
package query

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jmoiron/sqlx"
)

// Field kinds drive value coercion for filter parameters.
type Kind int

// Supported filter value kinds.
const (
	KindText Kind = iota
	KindInt
	KindFloat
	KindBool
	KindTime
)

// Field declares a filterable column and how its values are coerced.
type Field struct {
	Column string
	Kind   Kind
}

// Pagination describes the window of a list response.
type Pagination struct {
	Page        int  `json:"page"`
	Limit       int  `json:"limit"`
	Total       int  `json:"total"`
	TotalPages  int  `json:"total_pages"`
	HasNext     bool `json:"has_next"`
	HasPrevious bool `json:"has_previous"`
}

const (
	defaultLimit  = 10
	maxLimit      = 100
	minSearchLen  = 2
	defaultSortBy = "created_at DESC"
)

// Builder accumulates query stages. It holds no connection and performs no
// I/O until Execute runs; caller-supplied url.Values are never mutated.
type Builder struct {
	table      string
	idColumn   string
	columns    []string
	conditions []string
	args       []interface{}
	orderBy    []string
	page       int
	limit      int
}

// New starts a builder for the given table with default pagination.
func New(table string) *Builder {
	return &Builder{
		table:    table,
		idColumn: "id",
		columns:  []string{"*"},
		page:     1,
		limit:    defaultLimit,
	}
}

// Where appends a raw predicate using ? placeholders.
func (b *Builder) Where(cond string, args ...interface{}) *Builder {
	b.conditions = append(b.conditions, cond)
	b.args = append(b.args, args...)
	return b
}

// ActiveOnly intersects the query with the soft-delete flag. List call sites
// opt in explicitly; the admin bypass simply omits the call.
func (b *Builder) ActiveOnly() *Builder {
	return b.Where("active = TRUE")
}

// Filter maps whitelisted query parameters to predicates. Plain values become
// equality checks, [gte]/[lte] suffixes become range bounds combined
// conjunctively. Unrecognised keys are ignored; a value that cannot
// be coerced to the declared kind yields a contradiction so the query matches
// nothing instead of erroring.
func (b *Builder) Filter(values url.Values, fields map[string]Field) *Builder {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		field := fields[name]
		if raw := values.Get(name); raw != "" {
			b.addComparison(field, "=", raw)
		}
		if raw := values.Get(name + "[gte]"); raw != "" {
			b.addComparison(field, ">=", raw)
		}
		if raw := values.Get(name + "[lte]"); raw != "" {
			b.addComparison(field, "<=", raw)
		}
	}
	return b
}

func (b *Builder) addComparison(field Field, op, raw string) {
	value, ok := coerce(field.Kind, raw)
	if !ok {
		b.conditions = append(b.conditions, "1=0")
		return
	}
	b.conditions = append(b.conditions, fmt.Sprintf("%s %s ?", field.Column, op))
	b.args = append(b.args, value)
}

// Search adds a disjunctive case-insensitive substring match across the given
// columns. Terms shorter than two characters are ignored.
func (b *Builder) Search(values url.Values, columns ...string) *Builder {
	term := strings.TrimSpace(values.Get("search"))
	if utf8.RuneCountInString(term) < minSearchLen || len(columns) == 0 {
		return b
	}
	pattern := "%" + escapeLike(term) + "%"
	parts := make([]string, len(columns))
	for i, col := range columns {
		parts[i] = col + " ILIKE ?"
		b.args = append(b.args, pattern)
	}
	b.conditions = append(b.conditions, "("+strings.Join(parts, " OR ")+")")
	return b
}

// Sort parses the comma-separated sort parameter, with a leading dash meaning
// descending. Fields missing from the whitelist are skipped; schema validation
// upstream is expected to have rejected them already. Creation time descending
// applies when nothing usable is given, and the primary key always breaks ties.
func (b *Builder) Sort(values url.Values, allowed map[string]string) *Builder {
	for _, part := range strings.Split(values.Get("sort"), ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		direction := "ASC"
		if strings.HasPrefix(part, "-") {
			direction = "DESC"
			part = part[1:]
		}
		column, ok := allowed[part]
		if !ok {
			continue
		}
		b.orderBy = append(b.orderBy, column+" "+direction)
	}
	return b
}

// Project limits the selected columns. A plain list selects those fields, a
// dash-prefixed list removes fields from the defaults. Fields absent from the
// whitelist (password hashes, the soft-delete flag) can never be selected.
func (b *Builder) Project(values url.Values, allowed map[string]string, defaults []string) *Builder {
	includes, excludes := splitProjection(values.Get("fields"))

	var cols []string
	if len(includes) > 0 {
		seen := map[string]struct{}{}
		for _, name := range includes {
			column, ok := allowed[name]
			if !ok {
				continue
			}
			if _, dup := seen[column]; dup {
				continue
			}
			seen[column] = struct{}{}
			cols = append(cols, column)
		}
		if _, ok := seen[b.idColumn]; !ok && len(cols) > 0 {
			cols = append([]string{b.idColumn}, cols...)
		}
	} else if len(excludes) > 0 {
		excluded := map[string]struct{}{}
		for _, name := range excludes {
			if column, ok := allowed[name]; ok {
				excluded[column] = struct{}{}
			}
		}
		for _, column := range defaults {
			if _, skip := excluded[column]; !skip {
				cols = append(cols, column)
			}
		}
	} else if len(defaults) > 0 {
		cols = append(cols, defaults...)
	}

	if len(cols) > 0 {
		b.columns = cols
	}
	return b
}

// Paginate reads page and limit, clamping to page >= 1 and 1 <= limit <= 100.
func (b *Builder) Paginate(values url.Values) *Builder {
	if page, err := strconv.Atoi(values.Get("page")); err == nil && page >= 1 {
		b.page = page
	}
	if limit, err := strconv.Atoi(values.Get("limit")); err == nil && limit >= 1 {
		if limit > maxLimit {
			limit = maxLimit
		}
		b.limit = limit
	}
	return b
}

// SQL renders the SELECT statement with $n placeholders.
func (b *Builder) SQL() (string, []interface{}) {
	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(b.columns, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(b.table)
	sb.WriteString(b.whereClause())
	sb.WriteString(" ORDER BY ")
	if len(b.orderBy) > 0 {
		sb.WriteString(strings.Join(b.orderBy, ", "))
	} else {
		sb.WriteString(defaultSortBy)
	}
	sb.WriteString(", " + b.idColumn + " ASC")
	fmt.Fprintf(&sb, " LIMIT %d OFFSET %d", b.limit, (b.page-1)*b.limit)
	return sqlx.Rebind(sqlx.DOLLAR, sb.String()), b.args
}

// CountSQL renders the matching COUNT statement, ignoring pagination.
func (b *Builder) CountSQL() (string, []interface{}) {
	raw := "SELECT COUNT(*) FROM " + b.table + b.whereClause()
	return sqlx.Rebind(sqlx.DOLLAR, raw), b.args
}

func (b *Builder) whereClause() string {
	if len(b.conditions) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.conditions, " AND ")
}

// Execute is the pipeline terminal: it runs the composed query and its count
// once against the store and returns the rows with pagination metadata.
// len(results) never exceeds the limit and Total reflects the full
// filtered+searched count.
func Execute[T any](ctx context.Context, db sqlx.QueryerContext, b *Builder) ([]T, *Pagination, error) {
	listSQL, args := b.SQL()
	results := make([]T, 0, b.limit)
	if err := sqlx.SelectContext(ctx, db, &results, listSQL, args...); err != nil {
		return nil, nil, fmt.Errorf("list %s: %w", b.table, err)
	}

	countSQL, countArgs := b.CountSQL()
	var total int
	if err := sqlx.GetContext(ctx, db, &total, countSQL, countArgs...); err != nil {
		return nil, nil, fmt.Errorf("count %s: %w", b.table, err)
	}

	totalPages := total / b.limit
	if total%b.limit != 0 {
		totalPages++
	}
	return results, &Pagination{
		Page:        b.page,
		Limit:       b.limit,
		Total:       total,
		TotalPages:  totalPages,
		HasNext:     b.page < totalPages,
		HasPrevious: b.page > 1 && total > 0,
	}, nil
}

func coerce(kind Kind, raw string) (interface{}, bool) {
	switch kind {
	case KindInt:
		v, err := strconv.ParseInt(raw, 10, 64)
		return v, err == nil
	case KindFloat:
		v, err := strconv.ParseFloat(raw, 64)
		return v, err == nil
	case KindBool:
		v, err := strconv.ParseBool(raw)
		return v, err == nil
	case KindTime:
		for _, layout := range []string{time.RFC3339, "2006-01-02"} {
			if v, err := time.Parse(layout, raw); err == nil {
				return v, true
			}
		}
		return nil, false
	default:
		return raw, true
	}
}

func splitProjection(spec string) (includes, excludes []string) {
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if strings.HasPrefix(part, "-") {
			excludes = append(excludes, part[1:])
		} else {
			includes = append(includes, part)
		}
	}
	return includes, excludes
}

func escapeLike(term string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(term)
}
