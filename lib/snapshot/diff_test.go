package snapshot

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
)

var (
	t0 = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	t1 = time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC)
)

func record(company, lei string, percent float64, at time.Time) Record {
	return Record{
		Key: Key{company, lei},
		Values: map[string]any{
			"company": company,
			"lei":     lei,
			"percent": percent,
		},
		ObservedAt: at,
	}
}

func baseline(records ...Record) map[string]Record {
	out := map[string]Record{}
	for _, r := range records {
		out[r.Key.ID()] = r
	}
	return out
}

func kinds(changes []Change) map[ChangeKind]int {
	out := map[ChangeKind]int{}
	for _, c := range changes {
		out[c.Kind]++
	}
	return out
}

func TestDiffFirstCycle(t *testing.T) {
	current := []Record{
		record("A", "LEI-A", 5.0, t1),
		record("B", "LEI-B", 2.0, t1),
	}

	changes := Diff(current, nil, testSchema, t1)
	require.Len(t, changes, 2)
	require.Equal(t, map[ChangeKind]int{KindNew: 2}, kinds(changes))
}

func TestDiffNewKeyOnly(t *testing.T) {
	last := baseline(record("A", "LEI-A", 5.0, t0))
	current := []Record{
		record("A", "LEI-A", 5.0, t1),
		record("B", "LEI-B", 2.0, t1),
	}

	changes := Diff(current, last, testSchema, t1)
	require.Len(t, changes, 1)
	require.Equal(t, KindNew, changes[0].Kind)
	require.Equal(t, Key{"B", "LEI-B"}, changes[0].Key)
}

func TestDiffChangedValue(t *testing.T) {
	last := baseline(record("A", "LEI-A", 5.0, t0))
	current := []Record{record("A", "LEI-A", 6.2, t1)}

	changes := Diff(current, last, testSchema, t1)
	require.Len(t, changes, 1)
	require.Equal(t, KindChanged, changes[0].Kind)
	// the full new record is emitted, not a field delta
	require.Equal(t, 6.2, changes[0].Values["percent"])
	require.Equal(t, t1, changes[0].ObservedAt)
}

func TestDiffDroppedKey(t *testing.T) {
	last := baseline(
		record("A", "LEI-A", 5.0, t0),
		record("B", "LEI-B", 2.0, t0),
	)
	current := []Record{record("A", "LEI-A", 5.0, t1)}

	changes := Diff(current, last, testSchema, t1)
	require.Len(t, changes, 1)
	require.Equal(t, KindDropped, changes[0].Kind)
	require.Equal(t, Key{"B", "LEI-B"}, changes[0].Key)
	// disappearance is recorded with the absence value at the current
	// cycle's time
	require.Equal(t, 0.0, changes[0].Values["percent"])
	require.Equal(t, "B", changes[0].Values["company"])
	require.Equal(t, t1, changes[0].ObservedAt)
}

func TestDiffDroppedOnlyOnce(t *testing.T) {
	last := baseline(record("A", "LEI-A", 5.0, t0))

	changes := Diff(nil, last, testSchema, t1)
	require.Len(t, changes, 1)
	require.Equal(t, KindDropped, changes[0].Kind)

	// apply and diff again: the absence row is the latest known value,
	// no second drop is emitted
	last[changes[0].Key.ID()] = changes[0].Record
	again := Diff(nil, last, testSchema, t1)
	require.Empty(t, again)
}

func TestDiffDropsDisabled(t *testing.T) {
	schema := testSchema
	schema.RecordDrops = false

	last := baseline(record("A", "LEI-A", 5.0, t0))
	changes := Diff(nil, last, schema, t1)
	require.Empty(t, changes)
}

func TestDiffTolerance(t *testing.T) {
	schema := testSchema
	schema.Tolerance = 0.01

	last := baseline(record("A", "LEI-A", 5.0, t0))
	current := []Record{record("A", "LEI-A", 5.004, t1)}

	changes := Diff(current, last, schema, t1)
	require.Empty(t, changes)

	current = []Record{record("A", "LEI-A", 5.02, t1)}
	changes = Diff(current, last, schema, t1)
	require.Len(t, changes, 1)
	require.Equal(t, KindChanged, changes[0].Kind)
}

func TestDiffIdempotence(t *testing.T) {
	last := baseline(
		record("A", "LEI-A", 5.0, t0),
		record("B", "LEI-B", 2.0, t0),
	)
	current := []Record{
		record("A", "LEI-A", 6.0, t1),
		record("C", "LEI-C", 1.0, t1),
	}

	changes := Diff(current, last, testSchema, t1)
	require.NotEmpty(t, changes)

	for _, c := range changes {
		last[c.Key.ID()] = c.Record
	}
	again := Diff(current, last, testSchema, t1)
	require.Empty(t, again)
}

func TestDiffPartition(t *testing.T) {
	last := baseline(
		record("A", "LEI-A", 5.0, t0),
		record("B", "LEI-B", 2.0, t0),
		record("C", "LEI-C", 3.0, t0),
	)
	current := []Record{
		record("A", "LEI-A", 5.0, t1), // unchanged
		record("B", "LEI-B", 9.0, t1), // changed
		record("D", "LEI-D", 4.0, t1), // new
		// C dropped
	}

	changes := Diff(current, last, testSchema, t1)
	seen := map[string]int{}
	for _, c := range changes {
		seen[c.Key.ID()]++
	}
	for id, n := range seen {
		require.Equal(t, 1, n, "key %q appeared in more than one change set", id)
	}
	require.Len(t, changes, 3)
}

func TestDiffExactChangeSets(t *testing.T) {
	testCases := []struct {
		name     string
		last     map[string]Record
		current  []Record
		expected []Change
	}{
		{
			name: "mixed cycle",
			last: baseline(
				record("A", "LEI-A", 5.0, t0),
				record("B", "LEI-B", 2.0, t0),
			),
			current: []Record{
				record("A", "LEI-A", 6.0, t1),
				record("C", "LEI-C", 1.0, t1),
			},
			expected: []Change{
				{Record: record("A", "LEI-A", 6.0, t1), Kind: KindChanged},
				{Record: record("C", "LEI-C", 1.0, t1), Kind: KindNew},
				{Record: record("B", "LEI-B", 0.0, t1), Kind: KindDropped},
			},
		},
		{
			name:     "steady state",
			last:     baseline(record("A", "LEI-A", 5.0, t0)),
			current:  []Record{record("A", "LEI-A", 5.0, t1)},
			expected: []Change{},
		},
	}

	sortChanges := cmpopts.SortSlices(func(a, b Change) bool {
		return a.Key.ID() < b.Key.ID()
	})
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			changes := Diff(testCase.current, testCase.last, testSchema, t1)
			diff := cmp.Diff(testCase.expected, changes, sortChanges, cmpopts.EquateEmpty())
			if diff != "" {
				t.Fatalf("unexpected change set (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDiffLastWriteWinsWithinSnapshot(t *testing.T) {
	last := baseline(record("A", "LEI-A", 5.0, t0))
	current := []Record{
		record("A", "LEI-A", 5.5, t1),
		record("A", "LEI-A", 5.0, t1),
	}

	changes := Diff(current, last, testSchema, t1)
	require.Empty(t, changes)
}
