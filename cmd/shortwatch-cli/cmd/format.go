package cmd

import (
	"fmt"
	"sort"
	"strconv"

	"shortwatch-backend/lib/snapshot"
)

// valueFields returns the union of value field names across the given
// records, sorted so table and CSV columns are stable between runs.
func valueFields(records []snapshot.Record) []string {
	seen := map[string]bool{}
	for _, record := range records {
		for name := range record.Values {
			seen[name] = true
		}
	}
	fields := make([]string, 0, len(seen))
	for name := range seen {
		fields = append(fields, name)
	}
	sort.Strings(fields)
	return fields
}

func formatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case string:
		return v
	}
	return fmt.Sprint(value)
}
