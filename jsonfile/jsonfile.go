// Package jsonfile persists whole JSON documents to files.
//
// Saves never leave a partially written document in place of the previous
// one: the new document is written to a temporary file in the same directory
// and then renamed over the target.
package jsonfile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
)

// Load decodes the document in the named file into v.
// If the file does not exist, the returned error wraps [fs.ErrNotExist] and
// v is unchanged.
func Load(name string, v any) error {
	b, err := os.ReadFile(name)
	if err != nil {
		return fmt.Errorf("couldn't read %s: %w", name, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("couldn't decode %s: %w", name, err)
	}
	return nil
}

// LoadOr is like [Load], but a missing file is not an error.
// The returned bool reports whether the file existed.
func LoadOr(name string, v any) (bool, error) {
	err := Load(name, v)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

// Save replaces the named file with the JSON encoding of v.
func Save(name string, v any) (err error) {
	b, err := json.Marshal(v, jsontext.WithIndent("\t"), json.Deterministic(true))
	if err != nil {
		return fmt.Errorf("couldn't encode %s: %w", name, err)
	}
	b = append(b, '\n')
	dir, base := filepath.Split(name)
	if dir == "" {
		dir = "."
	}
	f, err := os.CreateTemp(dir, base+".*.tmp")
	if err != nil {
		return fmt.Errorf("couldn't create temporary file for %s: %w", name, err)
	}
	defer func() {
		if err != nil {
			// Cleanup is best-effort. The original error is the interesting one.
			os.Remove(f.Name())
		}
	}()
	if _, err := f.Write(b); err != nil {
		f.Close()
		return fmt.Errorf("couldn't write %s: %w", name, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("couldn't sync %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("couldn't close %s: %w", name, err)
	}
	if err := os.Rename(f.Name(), name); err != nil {
		return fmt.Errorf("couldn't replace %s: %w", name, err)
	}
	return nil
}
