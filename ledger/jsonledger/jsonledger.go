// Package jsonledger stores ledgers as a single JSON document.
//
// The document maps group IDs to user IDs to account records:
//
//	{"group": {"user": {"name": "...", "balance": 500, "created_at": "2006-01-02 15:04:05"}}}
package jsonledger

import (
	"context"
	"fmt"
	"time"

	"github.com/zephyrtronium/casino/jsonfile"
	"github.com/zephyrtronium/casino/ledger"
)

// TimeLayout is the layout of account creation times.
const TimeLayout = time.DateTime

type entry struct {
	Name    string `json:"name"`
	Balance int64  `json:"balance"`
	Created string `json:"created_at"`
}

// File is a [ledger.Store] backed by a JSON file.
type File struct {
	path string
}

var _ ledger.Store = (*File)(nil)

// New creates a store at the given path. The file need not exist.
func New(path string) *File {
	return &File{path: path}
}

// Load reads the accounts in the file.
// If the file does not exist, there are no accounts.
func (f *File) Load(ctx context.Context) ([]ledger.Account, error) {
	var doc map[string]map[string]entry
	if _, err := jsonfile.LoadOr(f.path, &doc); err != nil {
		return nil, err
	}
	var r []ledger.Account
	for group, users := range doc {
		for user, e := range users {
			t, err := time.ParseInLocation(TimeLayout, e.Created, time.UTC)
			if err != nil {
				return nil, fmt.Errorf("couldn't parse creation time of account %s/%s: %w", group, user, err)
			}
			a := ledger.Account{
				Group:   group,
				User:    user,
				Name:    e.Name,
				Balance: e.Balance,
				Created: t,
			}
			r = append(r, a)
		}
	}
	return r, nil
}

// Save replaces the file with the given accounts.
func (f *File) Save(ctx context.Context, accounts []ledger.Account) error {
	doc := make(map[string]map[string]entry)
	for _, a := range accounts {
		g := doc[a.Group]
		if g == nil {
			g = make(map[string]entry)
			doc[a.Group] = g
		}
		g[a.User] = entry{
			Name:    a.Name,
			Balance: a.Balance,
			Created: a.Created.UTC().Format(TimeLayout),
		}
	}
	return jsonfile.Save(f.path, doc)
}
