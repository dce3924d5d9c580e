package dispatch

import (
	"testing"
	"time"

	"shortwatch-backend/lib/snapshot"

	"github.com/stretchr/testify/require"
)

var testSchema = snapshot.Schema{
	Dataset: "shortinterest",
	Fields: []snapshot.Field{
		{Name: "company", Kind: snapshot.FieldString, Key: true},
		{Name: "percent", Kind: snapshot.FieldFloat, Required: true},
	},
	ValueField:  "percent",
	RecordDrops: true,
}

func change(kind snapshot.ChangeKind, company string, percent float64, at time.Time) snapshot.Change {
	return snapshot.Change{
		Record: snapshot.Record{
			Key: snapshot.Key{company},
			Values: map[string]any{
				"company": company,
				"percent": percent,
			},
			ObservedAt: at,
		},
		Kind: kind,
	}
}

func TestDispatchFiltersToTrackedKeys(t *testing.T) {
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	changes := []snapshot.Change{
		change(snapshot.KindChanged, "Embracer Group AB", 6.2, at),
		change(snapshot.KindNew, "Untracked Corp", 1.0, at),
	}

	events := Dispatch(changes, nil, testSchema, Config{
		Tracked: []string{"embracer group ab"},
	})
	require.Len(t, events, 1)
	require.Equal(t, "Embracer Group AB", events[0].Subject)
	require.Equal(t, snapshot.KindChanged, events[0].Kind)
	require.Equal(t, 6.2, events[0].NewValue)
	require.Equal(t, at, events[0].ObservedAt)
}

func TestDispatchSubstringMatch(t *testing.T) {
	at := time.Now()
	changes := []snapshot.Change{
		change(snapshot.KindChanged, "Embracer Group AB", 6.2, at),
		change(snapshot.KindChanged, "Starbreeze AB", 1.2, at),
	}

	events := Dispatch(changes, nil, testSchema, Config{
		Tracked:        []string{"embracer"},
		MatchSubstring: true,
	})
	require.Len(t, events, 1)
	require.Equal(t, "Embracer Group AB", events[0].Subject)
}

func TestDispatchDelta(t *testing.T) {
	at := time.Now()
	prev := change(snapshot.KindNew, "Embracer Group AB", 5.0, at.Add(-time.Hour))
	lastKnown := map[string]snapshot.Record{
		prev.Key.ID(): prev.Record,
	}

	changes := []snapshot.Change{
		change(snapshot.KindChanged, "Embracer Group AB", 6.2, at),
		change(snapshot.KindNew, "Embracer Games II", 2.0, at),
	}

	events := Dispatch(changes, lastKnown, testSchema, Config{
		Tracked:        []string{"embracer"},
		MatchSubstring: true,
	})
	require.Len(t, events, 2)

	require.NotNil(t, events[0].Delta)
	require.InDelta(t, 1.2, *events[0].Delta, 1e-9)

	// a key with no prior value has no delta
	require.Nil(t, events[1].Delta)
}

func TestDispatchEmptyAllowList(t *testing.T) {
	changes := []snapshot.Change{
		change(snapshot.KindChanged, "Embracer Group AB", 6.2, time.Now()),
	}
	events := Dispatch(changes, nil, testSchema, Config{})
	require.Empty(t, events)
}
