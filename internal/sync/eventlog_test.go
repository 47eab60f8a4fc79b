package syncx_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/campuslabs/examportal/internal/db"
	syncx "github.com/campuslabs/examportal/internal/sync"
)

func TestAppendAndSince(t *testing.T) {
	ctx := context.Background()
	dsn := "file:" + filepath.Join(t.TempDir(), "events.db")
	h, err := db.Open(ctx, db.DriverSQLite, dsn)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { h.Close() })

	repo := syncx.NewEventRepo(h, "site-a")
	for _, typ := range []string{"attempt_started", "attempt_submitted", "attempt_abandoned"} {
		if err := repo.Append(ctx, typ, "att1", map[string]string{"attempt_id": "att1"}); err != nil {
			t.Fatal(err)
		}
	}

	all, err := repo.Since(ctx, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d events, want 3", len(all))
	}
	if all[0].Type != "attempt_started" || all[0].SiteID != "site-a" || all[0].Key != "att1" {
		t.Fatalf("first event = %+v", all[0])
	}
	// offsets are strictly increasing
	if !(all[0].Offset < all[1].Offset && all[1].Offset < all[2].Offset) {
		t.Fatalf("offsets not monotonic: %d %d %d", all[0].Offset, all[1].Offset, all[2].Offset)
	}

	// resume from a cursor
	tail, err := repo.Since(ctx, all[0].Offset, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(tail) != 2 || tail[0].Type != "attempt_submitted" {
		t.Fatalf("tail = %+v", tail)
	}
}
