// Package kvtranscript stores relay transcripts in a Badger database.
package kvtranscript

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/go-json-experiment/json"
	"github.com/google/uuid"

	"github.com/zephyrtronium/casino/relay"
)

/*
Key structure:
User × \x00 × Time × UUID
- User is the user ID. User IDs never contain \x00.
- Time is the big-endian unix nanosecond time with the sign bit flipped,
	so that keys sort chronologically.
- UUID is a raw random UUID distinguishing lines with equal times.

Values are JSON objects holding the speaker's name and the content.
*/

type value struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// DB is a [relay.Transcript] backed by Badger.
type DB struct {
	db *badger.DB
}

var _ relay.Transcript = (*DB)(nil)

// New creates a transcript store in db.
func New(db *badger.DB) *DB {
	return &DB{db: db}
}

func userPrefix(b []byte, user string) []byte {
	b = append(b, user...)
	return append(b, 0)
}

func appendTime(b []byte, t time.Time) []byte {
	return binary.BigEndian.AppendUint64(b, uint64(t.UnixNano())^1<<63)
}

func keyTime(key []byte, prefix int) time.Time {
	n := binary.BigEndian.Uint64(key[prefix:])
	return time.Unix(0, int64(n^1<<63)).UTC()
}

// Append records a line.
func (d *DB) Append(ctx context.Context, user string, l relay.Line) error {
	key := userPrefix(make([]byte, 0, len(user)+1+8+16), user)
	key = appendTime(key, l.Time)
	id := uuid.New()
	key = append(key, id[:]...)
	val, err := json.Marshal(value{Name: l.Name, Content: l.Content})
	if err != nil {
		return fmt.Errorf("couldn't encode line: %w", err)
	}
	err = d.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, val)
	})
	if err != nil {
		return fmt.Errorf("couldn't record line: %w", err)
	}
	return nil
}

// Lines returns a user's transcript in chronological order.
func (d *DB) Lines(ctx context.Context, user string) ([]relay.Line, error) {
	var r []relay.Line
	opts := badger.DefaultIteratorOptions
	opts.Prefix = userPrefix(nil, user)
	err := d.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			var v value
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &v)
			})
			if err != nil {
				return fmt.Errorf("couldn't decode line %q: %w", item.Key(), err)
			}
			t := keyTime(item.Key(), len(opts.Prefix))
			r = append(r, relay.Line{Name: v.Name, Content: v.Content, Time: t})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("couldn't read transcript: %w", err)
	}
	return r, nil
}

// Forget deletes a user's transcript.
func (d *DB) Forget(ctx context.Context, user string) error {
	if err := d.db.DropPrefix(userPrefix(nil, user)); err != nil {
		return fmt.Errorf("couldn't forget transcript: %w", err)
	}
	return nil
}
