package storage

import (
	"strconv"
	"strings"
)

// query accumulates predicates and their positional arguments. Each call to
// arg appends a value and returns its $n placeholder, so fragments compose
// without manual numbering.
type query struct {
	args  []any
	conds []string
}

func (q *query) arg(v any) string {
	q.args = append(q.args, v)
	return "$" + strconv.Itoa(len(q.args))
}

// where adds a predicate. All predicates are combined with AND.
func (q *query) where(cond string) {
	q.conds = append(q.conds, cond)
}

func (q *query) whereClause() string {
	if len(q.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(q.conds, " AND ")
}

// escapeLike makes s match literally inside a LIKE/ILIKE pattern that uses
// the default backslash escape.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
