package job

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/ahmethakanbesel/candle-csv/internal/apperror"
	domain "github.com/ahmethakanbesel/candle-csv/internal/job"
	"github.com/ahmethakanbesel/candle-csv/internal/platform/sqlite"
)

func setupTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newJob(id string, created time.Time) *domain.Job {
	return &domain.Job{
		ID:        id,
		Status:    domain.StatusStarting,
		Symbol:    "BTC",
		Timeframe: "1h",
		Start:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli(),
		End:       time.Date(2024, 1, 1, 23, 59, 59, 999e6, time.UTC).UnixMilli(),
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestCreateIfAbsent_And_Get(t *testing.T) {
	store := NewStore(setupTestDB(t).DB)
	ctx := context.Background()
	created := time.Date(2024, 5, 1, 12, 0, 0, 123456789, time.UTC)

	j := newJob("a", created)
	ok, err := store.CreateIfAbsent(ctx, j)
	if err != nil || !ok {
		t.Fatalf("create: %v, %v", ok, err)
	}

	got, err := store.Get(ctx, "a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if diff := cmp.Diff(*j, *got); diff != "" {
		t.Errorf("job mismatch (-want +got):\n%s", diff)
	}

	dup := newJob("a", created)
	dup.Symbol = "ETH"
	ok, err = store.CreateIfAbsent(ctx, dup)
	if err != nil || ok {
		t.Fatalf("duplicate create: %v, %v; want false, nil", ok, err)
	}
	got, _ = store.Get(ctx, "a")
	if got.Symbol != "BTC" {
		t.Errorf("symbol = %q, want BTC", got.Symbol)
	}
}

func TestGet_NotFound(t *testing.T) {
	store := NewStore(setupTestDB(t).DB)

	_, err := store.Get(context.Background(), "missing")
	if apperror.CodeOf(err) != apperror.NotFound {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestSet_Lifecycle(t *testing.T) {
	store := NewStore(setupTestDB(t).DB)
	ctx := context.Background()

	j := newJob("a", time.Now().UTC())
	if _, err := store.CreateIfAbsent(ctx, j); err != nil {
		t.Fatal(err)
	}

	_ = j.Run()
	j.ResolvedSymbol = "BTC/USDT"
	_ = j.SetProgress(40)
	if err := store.Set(ctx, j); err != nil {
		t.Fatalf("set running: %v", err)
	}
	got, _ := store.Get(ctx, "a")
	if got.Status != domain.StatusRunning || got.Progress != 40 || got.ResolvedSymbol != "BTC/USDT" {
		t.Errorf("running job = %+v", got)
	}

	_ = j.Complete("BTCUSDT-1h-240101-240101-a.csv", 24)
	if err := store.Set(ctx, j); err != nil {
		t.Fatalf("set done: %v", err)
	}
	got, _ = store.Get(ctx, "a")
	if got.Status != domain.StatusDone || got.Progress != 100 || got.Rows != 24 || got.Filename != j.Filename {
		t.Errorf("done job = %+v", got)
	}

	late := *got
	late.Status = domain.StatusError
	late.Error = "late"
	if err := store.Set(ctx, &late); apperror.CodeOf(err) != apperror.Conflict {
		t.Fatalf("set after done: err = %v, want conflict", err)
	}
}

func TestSet_NotFound(t *testing.T) {
	store := NewStore(setupTestDB(t).DB)

	err := store.Set(context.Background(), newJob("missing", time.Now()))
	if apperror.CodeOf(err) != apperror.NotFound {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestList(t *testing.T) {
	store := NewStore(setupTestDB(t).DB)
	ctx := context.Background()

	jobs, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(jobs) != 0 {
		t.Fatalf("len = %d, want 0", len(jobs))
	}

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range 3 {
		if _, err := store.CreateIfAbsent(ctx, newJob(fmt.Sprintf("job-%d", i), base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatal(err)
		}
	}

	jobs, err = store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var ids []string
	for _, j := range jobs {
		ids = append(ids, j.ID)
	}
	if diff := cmp.Diff([]string{"job-2", "job-1", "job-0"}, ids); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestFailInterrupted(t *testing.T) {
	store := NewStore(setupTestDB(t).DB)
	ctx := context.Background()
	now := time.Now().UTC()

	starting := newJob("starting", now)
	running := newJob("running", now)
	done := newJob("done", now)
	for _, j := range []*domain.Job{starting, running, done} {
		if _, err := store.CreateIfAbsent(ctx, j); err != nil {
			t.Fatal(err)
		}
	}
	_ = running.Run()
	_ = store.Set(ctx, running)
	_ = done.Run()
	_ = done.Complete("done.csv", 1)
	_ = store.Set(ctx, done)

	n, err := store.FailInterrupted(ctx)
	if err != nil {
		t.Fatalf("fail interrupted: %v", err)
	}
	if n != 2 {
		t.Errorf("affected = %d, want 2", n)
	}

	for _, id := range []string{"starting", "running"} {
		got, _ := store.Get(ctx, id)
		if got.Status != domain.StatusError || got.Error != "interrupted by restart" || got.ErrorKind != apperror.Cancelled {
			t.Errorf("%s = %+v", id, got)
		}
	}
	got, _ := store.Get(ctx, "done")
	if got.Status != domain.StatusDone || got.Filename != "done.csv" {
		t.Errorf("done job changed: %+v", got)
	}
}
