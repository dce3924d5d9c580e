package snapshotstore

import (
	"context"
	"testing"
	"time"

	"shortwatch-backend/lib/snapshot"
	"shortwatch-backend/lib/testutil"

	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) Store {
	return NewStore(testutil.SetupDB(t, "snapshotstore", Schema))
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

func TestStoreAppendAndLatest(t *testing.T) {
	store := setup(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	t0 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)

	{
		_, found, err := store.Latest(ctx, "shortinterest", snapshot.Key{"Embracer"})
		require.NoError(t, err)
		require.False(t, found)
	}

	err := store.AppendChanges(ctx, "shortinterest", []snapshot.Change{
		change(snapshot.KindNew, "Embracer", 5.0, t0),
		change(snapshot.KindNew, "Starbreeze", 2.0, t0),
	})
	require.NoError(t, err)

	err = store.AppendChanges(ctx, "shortinterest", []snapshot.Change{
		change(snapshot.KindChanged, "Embracer", 6.2, t1),
	})
	require.NoError(t, err)

	{
		rec, found, err := store.Latest(ctx, "shortinterest", snapshot.Key{"Embracer"})
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, 6.2, rec.Values["percent"])
		require.Equal(t, t1.Unix(), rec.ObservedAt.Unix())
	}
	{
		all, err := store.LatestAll(ctx, "shortinterest")
		require.NoError(t, err)
		require.Len(t, all, 2)
		require.Equal(t, 6.2, all[snapshot.Key{"Embracer"}.ID()].Values["percent"])
		require.Equal(t, 2.0, all[snapshot.Key{"Starbreeze"}.ID()].Values["percent"])
	}
}

func TestStoreHistoryMonotonic(t *testing.T) {
	store := setup(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	t0 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	key := snapshot.Key{"Embracer"}

	// appended out of chronological order on purpose
	err := store.AppendChanges(ctx, "shortinterest", []snapshot.Change{
		change(snapshot.KindChanged, "Embracer", 6.0, t0.Add(2*time.Hour)),
		change(snapshot.KindNew, "Embracer", 5.0, t0),
		change(snapshot.KindChanged, "Embracer", 5.5, t0.Add(time.Hour)),
	})
	require.NoError(t, err)

	history, err := store.History(ctx, "shortinterest", key, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, history, 3)
	for i := 1; i < len(history); i++ {
		require.False(t, history[i].ObservedAt.Before(history[i-1].ObservedAt))
	}

	latest, found, err := store.Latest(ctx, "shortinterest", key)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, history[len(history)-1].ObservedAt.Unix(), latest.ObservedAt.Unix())

	// bounded range
	bounded, err := store.History(ctx, "shortinterest", key, t0.Add(30*time.Minute), t0.Add(90*time.Minute))
	require.NoError(t, err)
	require.Len(t, bounded, 1)
	require.Equal(t, 5.5, bounded[0].Values["percent"])

	// both bounds are inclusive
	bounded, err = store.History(ctx, "shortinterest", key, t0, t0.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, bounded, 2)
	require.Equal(t, 5.0, bounded[0].Values["percent"])
	require.Equal(t, 5.5, bounded[1].Values["percent"])
}

func TestStoreRetryIsIdempotent(t *testing.T) {
	store := setup(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	t0 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	batch := []snapshot.Change{
		change(snapshot.KindNew, "Embracer", 5.0, t0),
		change(snapshot.KindNew, "Starbreeze", 2.0, t0),
	}

	// a crashed cycle may re-run the same batch; the (key, observed_at)
	// primary key keeps the store free of duplicates
	require.NoError(t, store.AppendChanges(ctx, "shortinterest", batch))
	require.NoError(t, store.AppendChanges(ctx, "shortinterest", batch))

	history, err := store.History(ctx, "shortinterest", snapshot.Key{"Embracer"}, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, history, 1)
}

func TestStoreDatasetsAreDisjoint(t *testing.T) {
	store := setup(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	t0 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.AppendChanges(ctx, "shortinterest", []snapshot.Change{
		change(snapshot.KindNew, "Embracer", 5.0, t0),
	}))
	require.NoError(t, store.AppendChanges(ctx, "storefront", []snapshot.Change{
		change(snapshot.KindNew, "Embracer", 1.0, t0),
	}))

	all, err := store.LatestAll(ctx, "shortinterest")
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, 5.0, all[snapshot.Key{"Embracer"}.ID()].Values["percent"])

	keys, err := store.Keys(ctx, "storefront")
	require.NoError(t, err)
	require.Len(t, keys, 1)
}

func TestStoreEmptyBatchIsNoop(t *testing.T) {
	store := setup(t)
	ctx := context.Background()

	require.NoError(t, store.AppendChanges(ctx, "shortinterest", nil))

	all, err := store.LatestAll(ctx, "shortinterest")
	require.NoError(t, err)
	require.Empty(t, all)
}
