package duckdb

import (
	"fmt"
	"strings"
	"time"
)

// InterpolateQuery substitutes args into the placeholders of query for trace logging.
// The result is valid DuckDB SQL for the argument types the island stores.
func InterpolateQuery(query string, args []any) string {
	for _, arg := range args {
		query = strings.Replace(query, "?", literal(arg), 1)
	}
	return strings.Join(strings.Fields(query), " ")
}

func literal(arg any) string {
	switch v := arg.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + strings.ReplaceAll(v, "'", "''") + "'"
	case bool:
		if v {
			return "true"
		}
		return "false"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", v)
	case float32, float64:
		return fmt.Sprintf("%v", v)
	case time.Time:
		return "'" + v.Format(time.RFC3339Nano) + "'"
	case *int64:
		if v == nil {
			return "NULL"
		}
		return fmt.Sprintf("%d", *v)
	case *string:
		if v == nil {
			return "NULL"
		}
		return literal(*v)
	case *time.Time:
		if v == nil {
			return "NULL"
		}
		return literal(*v)
	default:
		return fmt.Sprintf("'%v'", v)
	}
}
