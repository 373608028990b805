// Package jsontranscript stores relay transcripts as a single JSON document
// mapping user IDs to their conversations:
//
//	{"user": [{"name": "...", "content": "...", "timestamp": "2006-01-02T15:04:05Z"}]}
//
// The whole document is rewritten on every change.
package jsontranscript

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/zephyrtronium/casino/jsonfile"
	"github.com/zephyrtronium/casino/relay"
)

type line struct {
	Name      string    `json:"name"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// File is a [relay.Transcript] backed by a JSON file.
type File struct {
	mu   sync.Mutex
	path string
	doc  map[string][]line
}

var _ relay.Transcript = (*File)(nil)

// Open loads the transcript at path. The file need not exist.
func Open(path string) (*File, error) {
	var doc map[string][]line
	if _, err := jsonfile.LoadOr(path, &doc); err != nil {
		return nil, fmt.Errorf("couldn't load transcript: %w", err)
	}
	if doc == nil {
		doc = make(map[string][]line)
	}
	return &File{path: path, doc: doc}, nil
}

// commit saves doc and makes it current. The caller must hold f.mu.
func (f *File) commit(doc map[string][]line) error {
	if err := jsonfile.Save(f.path, doc); err != nil {
		return fmt.Errorf("couldn't save transcript: %w", err)
	}
	f.doc = doc
	return nil
}

// Append adds a line to a user's transcript and saves the document.
func (f *File) Append(ctx context.Context, user string, l relay.Line) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc := maps.Clone(f.doc)
	// Clip so that a failed save can't leave a shared backing array modified.
	doc[user] = append(slices.Clip(f.doc[user]), line{Name: l.Name, Content: l.Content, Timestamp: l.Time.UTC()})
	return f.commit(doc)
}

// Lines returns a user's transcript.
func (f *File) Lines(ctx context.Context, user string) ([]relay.Line, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.doc[user]
	if len(s) == 0 {
		return nil, nil
	}
	r := make([]relay.Line, len(s))
	for i, l := range s {
		r[i] = relay.Line{Name: l.Name, Content: l.Content, Time: l.Timestamp}
	}
	return r, nil
}

// Forget deletes a user's transcript and saves the document.
func (f *File) Forget(ctx context.Context, user string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.doc[user]; !ok {
		return nil
	}
	doc := maps.Clone(f.doc)
	delete(doc, user)
	return f.commit(doc)
}
