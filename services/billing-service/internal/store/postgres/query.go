package postgres

import (
	"fmt"
	"strings"
)

// selectQuery assembles a SELECT with `?` predicates rewritten to $n.
// It satisfies tenancy.Filter so the tenant predicate is attached the same
// way as every other condition.
type selectQuery struct {
	base   string
	wheres []string
	args   []any
	suffix string
}

func newSelect(base string) *selectQuery {
	return &selectQuery{base: base}
}

func (q *selectQuery) Where(clause string, args ...any) {
	var b strings.Builder
	n := 0
	for _, r := range clause {
		if r == '?' && n < len(args) {
			q.args = append(q.args, args[n])
			fmt.Fprintf(&b, "$%d", len(q.args))
			n++
			continue
		}
		b.WriteRune(r)
	}
	q.wheres = append(q.wheres, b.String())
}

// Tail appends ORDER BY / LIMIT / FOR UPDATE text; `?` placeholders bind args.
func (q *selectQuery) Tail(clause string, args ...any) {
	before := len(q.wheres)
	q.Where(clause, args...)
	q.suffix += " " + q.wheres[before]
	q.wheres = q.wheres[:before]
}

func (q *selectQuery) SQL() string {
	s := q.base
	if len(q.wheres) > 0 {
		s += " WHERE " + strings.Join(q.wheres, " AND ")
	}
	return s + q.suffix
}

func (q *selectQuery) Args() []any { return q.args }
