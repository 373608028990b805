package kvtranscript_test

import (
	"context"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/go-cmp/cmp"

	"github.com/zephyrtronium/casino/relay"
	"github.com/zephyrtronium/casino/relay/kvtranscript"
)

func testDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestTranscript(t *testing.T) {
	ctx := context.Background()
	d := kvtranscript.New(testDB(t))
	base := time.Date(2024, 2, 21, 12, 0, 0, 0, time.UTC)
	lines := []relay.Line{
		{Name: "Bocchi", Content: "h-hello", Time: base},
		{Name: "Robot", Content: "hi", Time: base.Add(time.Second)},
		{Name: "Bocchi", Content: "same time", Time: base.Add(time.Second)},
		{Name: "Bocchi", Content: "bye", Time: base.Add(time.Hour)},
	}
	// Record out of order. The transcript is in time order regardless.
	for _, i := range []int{3, 0, 1} {
		if err := d.Append(ctx, "bocchi", lines[i]); err != nil {
			t.Fatalf("couldn't append: %v", err)
		}
	}
	if err := d.Append(ctx, "bocchi", lines[2]); err != nil {
		t.Fatalf("couldn't append: %v", err)
	}
	// A user whose ID extends another's must not share its transcript.
	if err := d.Append(ctx, "bocchi2", relay.Line{Name: "Other", Content: "x", Time: base}); err != nil {
		t.Fatalf("couldn't append: %v", err)
	}
	got, err := d.Lines(ctx, "bocchi")
	if err != nil {
		t.Fatalf("couldn't get lines: %v", err)
	}
	if len(got) != len(lines) {
		t.Fatalf("wrong number of lines: want %d, got %d: %v", len(lines), len(got), got)
	}
	// Lines with equal times are in arbitrary order.
	if got[1].Content == "same time" {
		got[1], got[2] = got[2], got[1]
	}
	if diff := cmp.Diff(lines, got); diff != "" {
		t.Errorf("wrong lines (-want +got):\n%s", diff)
	}

	if err := d.Forget(ctx, "bocchi"); err != nil {
		t.Fatalf("couldn't forget: %v", err)
	}
	got, err = d.Lines(ctx, "bocchi")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("forgotten lines remain: %v", got)
	}
	got, err = d.Lines(ctx, "bocchi2")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Errorf("wrong other lines: %v", got)
	}
}

func TestRelay(t *testing.T) {
	ctx := context.Background()
	d := kvtranscript.New(testDB(t))
	r := relay.New(d, echo{}, "", "Robot", 0)
	now := time.Date(2024, 2, 21, 12, 0, 0, 0, time.UTC)
	reply, err := r.Converse(ctx, relay.Turn{User: "1", Name: "Kita", Content: "kitakita", Time: now})
	if err != nil {
		t.Fatalf("couldn't converse: %v", err)
	}
	if reply != "kitakita" {
		t.Errorf("wrong reply %q", reply)
	}
	got, err := d.Lines(ctx, "1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Name != "Kita" || got[1].Name != "Robot" {
		t.Errorf("wrong transcript %v", got)
	}
}

type echo struct{}

func (echo) Complete(ctx context.Context, prompt []relay.Message) (string, error) {
	return prompt[len(prompt)-1].Content, nil
}
