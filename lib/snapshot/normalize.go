package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// RawRow is one row as produced by a source fetcher, all values still text.
type RawRow map[string]string

// ErrSchemaMismatch means a required column was absent from every row of a
// snapshot: the source changed shape and the whole cycle must be aborted
// rather than persisting a partial diff.
var ErrSchemaMismatch = errors.New("snapshot: schema mismatch")

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05Z07:00",
	"2006/01/02",
	"02/01/2006",
}

// Normalize coerces raw fetched rows into canonical records stamped with
// observedAt (the confirmed remote marker time, not wall clock).
//
// Rows failing coercion on a required field are dropped and logged as
// data-quality events; they never fail the cycle. Duplicate keys within one
// snapshot resolve last-write-wins, keeping the position of the first
// occurrence.
func Normalize(ctx context.Context, rows []RawRow, schema Schema, observedAt time.Time) ([]Record, error) {
	if err := checkColumns(rows, schema); err != nil {
		return nil, err
	}

	var out []Record
	position := map[string]int{}

	for _, raw := range rows {
		values, err := coerceRow(raw, schema)
		if err != nil {
			slog.WarnContext(ctx, "dropping malformed row",
				"dataset", schema.Dataset, "err", err)
			continue
		}

		rec := Record{
			Key:        schema.KeyOf(values),
			Values:     values,
			ObservedAt: observedAt,
		}

		id := rec.Key.ID()
		if at, seen := position[id]; seen {
			out[at] = rec
			continue
		}
		position[id] = len(out)
		out = append(out, rec)
	}

	return out, nil
}

// checkColumns distinguishes a structural source change from per-row noise:
// a required column missing from every single row aborts the cycle. An
// empty scrape is held to the same standard when drops are recorded, since
// accepting it would materialize an absence row for every known key.
func checkColumns(rows []RawRow, schema Schema) error {
	if len(rows) == 0 {
		if schema.RecordDrops {
			return fmt.Errorf("%w: dataset %q produced an empty snapshot",
				ErrSchemaMismatch, schema.Dataset)
		}
		return nil
	}
	for _, f := range schema.Fields {
		if !f.Required && !f.Key {
			continue
		}
		found := false
		for _, raw := range rows {
			if _, ok := raw[f.Name]; ok {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%w: dataset %q is missing column %q",
				ErrSchemaMismatch, schema.Dataset, f.Name)
		}
	}
	return nil
}

func coerceRow(raw RawRow, schema Schema) (map[string]any, error) {
	values := make(map[string]any, len(schema.Fields))
	for _, f := range schema.Fields {
		required := f.Required || f.Key

		text, ok := raw[f.Name]
		text = strings.TrimSpace(text)
		if !ok || text == "" {
			if required {
				return nil, fmt.Errorf("missing required field %q", f.Name)
			}
			continue
		}

		v, err := coerceValue(text, f.Kind)
		if err != nil {
			if required {
				return nil, fmt.Errorf("field %q: %w", f.Name, err)
			}
			continue
		}
		values[f.Name] = v
	}
	return values, nil
}

func coerceValue(text string, kind FieldKind) (any, error) {
	switch kind {
	case FieldString:
		return text, nil
	case FieldFloat:
		return parseFloat(text)
	case FieldDate:
		return parseDate(text)
	}
	return nil, fmt.Errorf("unknown field kind %d", kind)
}

// parseFloat accepts the numeric spellings seen in scraped sources:
// percent suffixes, space or non-breaking-space thousand separators, and
// comma decimals.
func parseFloat(text string) (float64, error) {
	s := strings.TrimSuffix(text, "%")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, " ", "")
	if strings.Contains(s, ",") {
		if strings.Contains(s, ".") {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.ReplaceAll(s, ",", ".")
		}
	}
	s = strings.TrimSpace(s)
	return strconv.ParseFloat(s, 64)
}

// parseDate canonicalizes any accepted layout to "2006-01-02" so date
// strings from reruns compare equal.
func parseDate(text string) (string, error) {
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, text)
		if err == nil {
			return t.Format("2006-01-02"), nil
		}
	}
	return "", fmt.Errorf("unrecognized date %q", text)
}
