package sqlledger_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/zephyrtronium/casino/ledger"
	"github.com/zephyrtronium/casino/ledger/sqlledger"
	"github.com/zephyrtronium/casino/privacy"
)

var dbCount atomic.Int64

func testDB(ctx context.Context) *sqlitex.Pool {
	k := dbCount.Add(1)
	pool, err := sqlitex.NewPool(fmt.Sprintf("file:test-ledger-%d.db?mode=memory&cache=shared", k), sqlitex.PoolOptions{Flags: sqlite.OpenReadWrite | sqlite.OpenCreate | sqlite.OpenMemory | sqlite.OpenSharedCache | sqlite.OpenURI})
	if err != nil {
		panic(err)
	}
	if err := sqlledger.Init(ctx, pool); err != nil {
		panic(err)
	}
	return pool
}

func TestInitTwice(t *testing.T) {
	ctx := context.Background()
	db := testDB(ctx)
	if err := sqlledger.Init(ctx, db); err != nil {
		t.Errorf("couldn't initialize twice: %v", err)
	}
}

// TestCohabitant tests that a ledger and a privacy list can exist in the
// same database.
func TestCohabitant(t *testing.T) {
	ctx := context.Background()
	db := testDB(ctx)
	if err := privacy.Init(ctx, db); err != nil {
		t.Errorf("couldn't create privacy list together with ledger: %v", err)
	}
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := testDB(ctx)
	s, err := sqlledger.Open(ctx, db)
	if err != nil {
		t.Fatal(err)
	}
	want := []ledger.Account{
		{Group: "kessoku", User: "bocchi", Name: "Bocchi", Balance: 500, Created: time.Unix(1700000000, 0).UTC()},
		{Group: "kessoku", User: "ryou", Name: "Ryou", Balance: 0, Created: time.Unix(1700000001, 0).UTC()},
		{Group: "sick", User: "bocchi", Name: "Bocchi", Balance: 7, Created: time.Unix(1700000002, 0).UTC()},
	}
	if err := s.Save(ctx, want); err != nil {
		t.Fatalf("couldn't save: %v", err)
	}
	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("couldn't load: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("wrong accounts (-want +got):\n%s", diff)
	}
	// Saving a smaller set removes the rest.
	if err := s.Save(ctx, want[:1]); err != nil {
		t.Fatalf("couldn't save again: %v", err)
	}
	got, err = s.Load(ctx)
	if err != nil {
		t.Fatalf("couldn't load again: %v", err)
	}
	if diff := cmp.Diff(want[:1], got); diff != "" {
		t.Errorf("wrong accounts after shrinking (-want +got):\n%s", diff)
	}
}

func TestSaveRollback(t *testing.T) {
	ctx := context.Background()
	db := testDB(ctx)
	s, err := sqlledger.Open(ctx, db)
	if err != nil {
		t.Fatal(err)
	}
	want := []ledger.Account{
		{Group: "kessoku", User: "nijika", Name: "Nijika", Balance: 9, Created: time.Unix(1700000000, 0).UTC()},
	}
	if err := s.Save(ctx, want); err != nil {
		t.Fatalf("couldn't save: %v", err)
	}
	// A negative balance violates the table constraint partway through.
	bad := []ledger.Account{
		{Group: "kessoku", User: "kita", Name: "Kita", Balance: 3, Created: time.Unix(1700000001, 0).UTC()},
		{Group: "kessoku", User: "seika", Name: "Seika", Balance: -1, Created: time.Unix(1700000002, 0).UTC()},
	}
	if err := s.Save(ctx, bad); err == nil {
		t.Fatal("saved a negative balance")
	}
	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("couldn't load: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("failed save left changes (-want +got):\n%s", diff)
	}
}

func TestLedger(t *testing.T) {
	ctx := context.Background()
	db := testDB(ctx)
	s, err := sqlledger.Open(ctx, db)
	if err != nil {
		t.Fatal(err)
	}
	l, err := ledger.Open(ctx, s)
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Create(ctx, "kessoku", "bocchi", "Bocchi", 100); err != nil {
		t.Fatal(err)
	}
	if err := l.Create(ctx, "kessoku", "ryou", "Ryou", 0); err != nil {
		t.Fatal(err)
	}
	if err := l.Transfer(ctx, "kessoku", "bocchi", "ryou", 60); err != nil {
		t.Fatal(err)
	}
	if err := l.Transfer(ctx, "kessoku", "ryou", "bocchi", 61); !errors.Is(err, ledger.ErrInsufficientBalance) {
		t.Errorf("wrong error for overdraft: %v", err)
	}
	r, err := ledger.Open(ctx, s)
	if err != nil {
		t.Fatal(err)
	}
	if b, _ := r.Balance("kessoku", "bocchi"); b != 40 {
		t.Errorf("wrong sender balance: want 40, got %d", b)
	}
	if b, _ := r.Balance("kessoku", "ryou"); b != 60 {
		t.Errorf("wrong receiver balance: want 60, got %d", b)
	}
}
