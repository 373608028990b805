package jsonfile_test

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/zephyrtronium/casino/jsonfile"
)

type doc struct {
	Name    string           `json:"name"`
	Balance int64            `json:"balance"`
	Tags    map[string]int64 `json:"tags"`
}

func TestSaveLoad(t *testing.T) {
	name := filepath.Join(t.TempDir(), "doc.json")
	want := doc{Name: "bocchi", Balance: 500, Tags: map[string]int64{"guitar": 1, "box": 2}}
	if err := jsonfile.Save(name, &want); err != nil {
		t.Fatalf("couldn't save: %v", err)
	}
	var got doc
	if err := jsonfile.Load(name, &got); err != nil {
		t.Fatalf("couldn't load: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("wrong document after round trip (-want +got):\n%s", diff)
	}
}

func TestSaveReplaces(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "doc.json")
	if err := jsonfile.Save(name, &doc{Name: "ryou"}); err != nil {
		t.Fatalf("couldn't save first: %v", err)
	}
	if err := jsonfile.Save(name, &doc{Name: "nijika"}); err != nil {
		t.Fatalf("couldn't save second: %v", err)
	}
	var got doc
	if err := jsonfile.Load(name, &got); err != nil {
		t.Fatalf("couldn't load: %v", err)
	}
	if got.Name != "nijika" {
		t.Errorf("wrong name after replace: want %q, got %q", "nijika", got.Name)
	}
	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(ents) != 1 {
		t.Errorf("temporary files left behind: %v", ents)
	}
}

func TestSaveFailureKeepsOld(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "doc.json")
	if err := jsonfile.Save(name, &doc{Name: "kita"}); err != nil {
		t.Fatalf("couldn't save: %v", err)
	}
	// Channels can't be encoded, so this save must fail before touching disk.
	if err := jsonfile.Save(name, make(chan int)); err == nil {
		t.Error("saved an unencodable value")
	}
	var got doc
	if err := jsonfile.Load(name, &got); err != nil {
		t.Fatalf("couldn't load: %v", err)
	}
	if got.Name != "kita" {
		t.Errorf("old document damaged: got %+v", got)
	}
}

func TestLoadMissing(t *testing.T) {
	name := filepath.Join(t.TempDir(), "nothing.json")
	var got doc
	err := jsonfile.Load(name, &got)
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("wrong error for missing file: %v", err)
	}
	ok, err := jsonfile.LoadOr(name, &got)
	if ok || err != nil {
		t.Errorf("LoadOr on missing file: want false, nil; got %t, %v", ok, err)
	}
}
