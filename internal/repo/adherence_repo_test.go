package repo

import (
	"context"
	"testing"
)

func TestAdherence_MissingCellReadsFalse(t *testing.T) {
	db := newTestDB(t)
	taken, err := GetTaken(context.Background(), db, "u1", "2026-03-10", "med-a")
	if err != nil {
		t.Fatalf("GetTaken: %v", err)
	}
	if taken {
		t.Fatal("missing cell must read as false")
	}
}

func TestAdherence_SetCreatesThenUpdates(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	stored, err := SetTaken(ctx, db, "u1", "2026-03-10", "med-a", true)
	if err != nil {
		t.Fatalf("SetTaken create: %v", err)
	}
	if !stored {
		t.Fatal("expected stored=true after first toggle")
	}

	if taken, _ := GetTaken(ctx, db, "u1", "2026-03-10", "med-a"); !taken {
		t.Fatal("cell not persisted")
	}

	stored, err = SetTaken(ctx, db, "u1", "2026-03-10", "med-a", false)
	if err != nil {
		t.Fatalf("SetTaken update: %v", err)
	}
	if stored {
		t.Fatal("expected stored=false after untoggle")
	}
	if taken, _ := GetTaken(ctx, db, "u1", "2026-03-10", "med-a"); taken {
		t.Fatal("untoggle not persisted")
	}
}

func TestAdherence_SetIsIdempotentPerValue(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := SetTaken(ctx, db, "u1", "2026-03-10", "med-a", true); err != nil {
			t.Fatalf("SetTaken #%d: %v", i, err)
		}
	}

	snap, err := HistorySnapshot(ctx, db, "u1")
	if err != nil {
		t.Fatalf("HistorySnapshot: %v", err)
	}
	if len(snap) != 1 || len(snap["2026-03-10"]) != 1 {
		t.Fatalf("repeated sets must not duplicate rows: %+v", snap)
	}
}

func TestAdherence_TakenOn(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	mustSet := func(date, med string, v bool) {
		t.Helper()
		if _, err := SetTaken(ctx, db, "u1", date, med, v); err != nil {
			t.Fatalf("SetTaken(%s,%s): %v", date, med, err)
		}
	}
	mustSet("2026-03-10", "med-a", true)
	mustSet("2026-03-10", "med-b", false)
	mustSet("2026-03-11", "med-a", true)

	day, err := TakenOn(ctx, db, "u1", "2026-03-10")
	if err != nil {
		t.Fatalf("TakenOn: %v", err)
	}
	if len(day) != 2 || !day["med-a"] || day["med-b"] {
		t.Fatalf("unexpected day map: %+v", day)
	}
}

func TestAdherence_SnapshotShape(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, err := SetTaken(ctx, db, "u1", "2026-03-10", "med-a", true); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := SetTaken(ctx, db, "u1", "2026-03-11", "med-b", false); err != nil {
		t.Fatalf("seed: %v", err)
	}
	// Another user's cells must not leak into the snapshot.
	if _, err := SetTaken(ctx, db, "u2", "2026-03-10", "med-a", true); err != nil {
		t.Fatalf("seed: %v", err)
	}

	snap, err := HistorySnapshot(ctx, db, "u1")
	if err != nil {
		t.Fatalf("HistorySnapshot: %v", err)
	}
	want := map[string]map[string]bool{
		"2026-03-10": {"med-a": true},
		"2026-03-11": {"med-b": false},
	}
	if len(snap) != len(want) {
		t.Fatalf("snapshot = %+v, want %+v", snap, want)
	}
	for date, meds := range want {
		got, ok := snap[date]
		if !ok {
			t.Fatalf("missing date %s in %+v", date, snap)
		}
		for med, v := range meds {
			if got[med] != v {
				t.Errorf("snap[%s][%s] = %v, want %v", date, med, got[med], v)
			}
		}
	}
}

func TestAdherenceStats(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	count, maxTS, err := AdherenceStats(ctx, db, "u1")
	if err != nil || count != 0 || maxTS != nil {
		t.Fatalf("empty stats = (%d, %v, %v)", count, maxTS, err)
	}

	if _, err := SetTaken(ctx, db, "u1", "2026-03-10", "med-a", true); err != nil {
		t.Fatalf("seed: %v", err)
	}
	count, maxTS, err = AdherenceStats(ctx, db, "u1")
	if err != nil || count != 1 || maxTS == nil {
		t.Fatalf("stats after write = (%d, %v, %v)", count, maxTS, err)
	}
}
