// Package privacy tracks users who have opted out of having their messages
// kept for the chat relay.
package privacy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// ErrPrivate is an error returned by Check when the user is in the list.
var ErrPrivate = errors.New("user is private")

// List is a privacy list backed by an SQL database.
type List struct {
	db *sqlitex.Pool
}

// Open opens an existing privacy list in an SQL database.
func Open(ctx context.Context, db *sqlitex.Pool) (*List, error) {
	return &List{db: db}, nil
}

// Init initializes a list in an SQL database.
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
	const create = `CREATE TABLE IF NOT EXISTS relay_privacy (user TEXT PRIMARY KEY, since INTEGER NOT NULL) STRICT, WITHOUT ROWID`
	if err := sqlitex.ExecuteTransient(conn, create, nil); err != nil {
		return fmt.Errorf("couldn't create privacy list: %w", err)
	}
	return nil
}

// Add adds a user to the list. Adding a user who is already private keeps
// the original time.
func (l *List) Add(ctx context.Context, user string, now time.Time) error {
	conn, err := l.db.Take(ctx)
	defer l.db.Put(conn)
	if err != nil {
		return fmt.Errorf("couldn't get connection to add user to privacy list: %w", err)
	}
	opts := sqlitex.ExecOptions{Args: []any{user, now.Unix()}}
	err = sqlitex.Execute(conn, `INSERT INTO relay_privacy (user, since) VALUES (?, ?) ON CONFLICT DO NOTHING`, &opts)
	if err != nil {
		return fmt.Errorf("couldn't add user to privacy list: %w", err)
	}
	return nil
}

// Remove removes a user from the list.
func (l *List) Remove(ctx context.Context, user string) error {
	conn, err := l.db.Take(ctx)
	defer l.db.Put(conn)
	if err != nil {
		return fmt.Errorf("couldn't get connection to remove user from privacy list: %w", err)
	}
	opts := sqlitex.ExecOptions{Args: []any{user}}
	err = sqlitex.Execute(conn, `DELETE FROM relay_privacy WHERE user=?`, &opts)
	if err != nil {
		return fmt.Errorf("couldn't remove user from privacy list: %w", err)
	}
	return nil
}

// Check returns ErrPrivate if the user is in the list.
func (l *List) Check(ctx context.Context, user string) error {
	_, ok, err := l.Since(ctx, user)
	if err != nil {
		return err
	}
	if ok {
		return ErrPrivate
	}
	return nil
}

// Since returns the time at which a user became private.
// The second result is false if the user is not private.
func (l *List) Since(ctx context.Context, user string) (time.Time, bool, error) {
	conn, err := l.db.Take(ctx)
	defer l.db.Put(conn)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("couldn't get connection to check user privacy: %w", err)
	}
	st, err := conn.Prepare(`SELECT since FROM relay_privacy WHERE user=?`)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("couldn't prepare statement to check user privacy: %w", err)
	}
	st.BindText(1, user)
	ok, err := st.Step()
	if err != nil {
		return time.Time{}, false, fmt.Errorf("couldn't check user privacy: %w", err)
	}
	if !ok {
		return time.Time{}, false, nil
	}
	since := st.ColumnInt64(0)
	// Finish the statement so the connection can be reused.
	st.Step()
	return time.Unix(since, 0), true, nil
}
