package snapshot

import (
	"math"
	"time"
)

// Diff compares a normalized snapshot against the last known record per key
// and returns the union of the three disjoint change sets: keys that newly
// appeared, keys whose values changed, and keys that disappeared.
//
// lastKnown is keyed by Key.ID() and should hold the most recent record per
// key across all history, so a skipped or failed cycle never corrupts the
// baseline. An empty result is a normal outcome.
// observedAt is the current cycle's marker time; dropped records are
// stamped with it even when the snapshot itself is empty.
func Diff(current []Record, lastKnown map[string]Record, schema Schema, observedAt time.Time) []Change {
	var changes []Change

	// current is already deduplicated by the normalizer, but dedupe again
	// so Diff stands alone: last write wins.
	byKey := make(map[string]Record, len(current))
	order := make([]string, 0, len(current))
	for _, rec := range current {
		id := rec.Key.ID()
		if _, seen := byKey[id]; !seen {
			order = append(order, id)
		}
		byKey[id] = rec
	}

	for _, id := range order {
		rec := byKey[id]

		prev, known := lastKnown[id]
		if !known {
			changes = append(changes, Change{Record: rec, Kind: KindNew})
			continue
		}
		if !valuesEqual(rec.Values, prev.Values, schema) {
			changes = append(changes, Change{Record: rec, Kind: KindChanged})
		}
	}

	if !schema.RecordDrops {
		return changes
	}

	for id, prev := range lastKnown {
		if _, stillPresent := byKey[id]; stillPresent {
			continue
		}
		// a key falling out of the snapshot is a data point in its
		// own right: record it with float fields forced to the
		// absence value rather than forgetting it.
		if isAbsence(prev, schema) {
			// already recorded as dropped in a previous cycle
			continue
		}
		changes = append(changes, Change{
			Record: Record{
				Key:        prev.Key,
				Values:     absentValues(prev.Values, schema),
				ObservedAt: observedAt,
			},
			Kind: KindDropped,
		})
	}

	return changes
}

func valuesEqual(a, b map[string]any, schema Schema) bool {
	for _, f := range schema.Fields {
		av, aok := a[f.Name]
		bv, bok := b[f.Name]
		if aok != bok {
			return false
		}
		if !aok {
			continue
		}
		switch f.Kind {
		case FieldFloat:
			af, _ := av.(float64)
			bf, _ := bv.(float64)
			if math.Abs(af-bf) > schema.Tolerance {
				return false
			}
		default:
			if av != bv {
				return false
			}
		}
	}
	return true
}

func absentValues(prev map[string]any, schema Schema) map[string]any {
	values := make(map[string]any, len(prev))
	for _, f := range schema.Fields {
		v, ok := prev[f.Name]
		if !ok {
			continue
		}
		if f.Kind == FieldFloat {
			values[f.Name] = schema.AbsenceValue
			continue
		}
		values[f.Name] = v
	}
	return values
}

// isAbsence reports whether a record already carries the absence value in
// every float field, i.e. its disappearance was recorded earlier.
func isAbsence(rec Record, schema Schema) bool {
	sawFloat := false
	for _, f := range schema.Fields {
		if f.Kind != FieldFloat {
			continue
		}
		v, ok := rec.Values[f.Name]
		if !ok {
			continue
		}
		sawFloat = true
		fv, _ := v.(float64)
		if math.Abs(fv-schema.AbsenceValue) > schema.Tolerance {
			return false
		}
	}
	return sawFloat
}
