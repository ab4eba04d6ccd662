package repositories

import (
	"route-validation-service/internal/platform/db"
	"strconv"
	"strings"
)

// rebind rewrites ? placeholders to $n for drivers that need positional
// parameters. Queries in this package never contain a literal '?'.
func rebind(driver, query string) string {
	if driver != db.DriverPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
