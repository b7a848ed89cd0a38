// Package sqlxrepos implements the core repositories on PostgreSQL via sqlx.
package sqlxrepos

import (
	"strings"

	"github.com/trezcool/darasa/core"
)

func orderBy(ordering []core.DBOrdering, deflt core.DBOrdering) string {
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{deflt}
	}
	clauses := make([]string, len(ordering))
	for i, ord := range ordering {
		clauses[i] = ord.String()
	}
	return ` ORDER BY ` + strings.Join(clauses, ", ")
}
