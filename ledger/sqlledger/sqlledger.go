// Package sqlledger stores ledgers in SQLite.
package sqlledger

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/zephyrtronium/casino/ledger"
)

// Store is a [ledger.Store] backed by an SQLite database.
// Each save replaces the entire account table in one transaction.
type Store struct {
	db *sqlitex.Pool
}

var _ ledger.Store = (*Store)(nil)

// Open opens a ledger store in a database initialized with [Init].
func Open(ctx context.Context, db *sqlitex.Pool) (*Store, error) {
	return &Store{db: db}, nil
}

//go:embed schema.sql
var schemaSQL string

// Init initializes an SQLite DB to hold ledgers.
// For convenience, it accepts either a single connection or a pool.
func Init[DB *sqlite.Conn | *sqlitex.Pool](ctx context.Context, db DB) error {
	var conn *sqlite.Conn
	switch db := any(db).(type) {
	case *sqlite.Conn:
		conn = db
	case *sqlitex.Pool:
		var err error
		conn, err = db.Take(ctx)
		defer db.Put(conn)
		if err != nil {
			return fmt.Errorf("couldn't get connection from pool: %w", err)
		}
	}
	if err := sqlitex.ExecuteScript(conn, schemaSQL, nil); err != nil {
		return fmt.Errorf("couldn't initialize ledger schema: %w", err)
	}
	return nil
}

// Load reads all accounts.
func (s *Store) Load(ctx context.Context) ([]ledger.Account, error) {
	conn, err := s.db.Take(ctx)
	defer s.db.Put(conn)
	if err != nil {
		return nil, fmt.Errorf("couldn't get connection to load ledger: %w", err)
	}
	var r []ledger.Account
	opts := sqlitex.ExecOptions{
		ResultFunc: func(st *sqlite.Stmt) error {
			a := ledger.Account{
				Group:   st.ColumnText(0),
				User:    st.ColumnText(1),
				Name:    st.ColumnText(2),
				Balance: st.ColumnInt64(3),
				Created: time.Unix(st.ColumnInt64(4), 0).UTC(),
			}
			r = append(r, a)
			return nil
		},
	}
	const sel = `SELECT grp, user, name, balance, created FROM account ORDER BY created, grp, user`
	if err := sqlitex.Execute(conn, sel, &opts); err != nil {
		return nil, fmt.Errorf("couldn't load ledger: %w", err)
	}
	return r, nil
}

// Save replaces all accounts.
func (s *Store) Save(ctx context.Context, accounts []ledger.Account) (err error) {
	conn, err := s.db.Take(ctx)
	defer s.db.Put(conn)
	if err != nil {
		return fmt.Errorf("couldn't get connection to save ledger: %w", err)
	}
	defer sqlitex.Transaction(conn)(&err)
	if err := sqlitex.Execute(conn, `DELETE FROM account`, nil); err != nil {
		return fmt.Errorf("couldn't clear ledger: %w", err)
	}
	const insert = `INSERT INTO account (grp, user, name, balance, created) VALUES (:grp, :user, :name, :balance, :created)`
	st, err := conn.Prepare(insert)
	if err != nil {
		return fmt.Errorf("couldn't prepare statement to save account: %w", err)
	}
	for _, a := range accounts {
		st.SetText(":grp", a.Group)
		st.SetText(":user", a.User)
		st.SetText(":name", a.Name)
		st.SetInt64(":balance", a.Balance)
		st.SetInt64(":created", a.Created.Unix())
		if _, err := st.Step(); err != nil {
			return fmt.Errorf("couldn't save account %s/%s: %w", a.Group, a.User, err)
		}
		if err := st.Reset(); err != nil {
			return fmt.Errorf("couldn't reset statement: %w", err)
		}
	}
	return nil
}
