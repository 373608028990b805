// Package ledger implements a store of virtual currency accounts keyed by
// group and user.
package ledger

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"slices"
	"sync"
	"time"
)

var (
	// ErrNoAccount is returned for operations on accounts which do not exist.
	ErrNoAccount = errors.New("no such account")
	// ErrAccountExists is returned when creating an account which already exists.
	ErrAccountExists = errors.New("account already exists")
	// ErrInsufficientBalance is returned when an account cannot cover an amount.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrInvalidAmount is returned for negative amounts, or for amounts that
	// would overflow a balance.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrSameParty is returned when transferring from an account to itself.
	ErrSameParty = errors.New("sender and receiver are the same")
)

// Account is an account's state.
type Account struct {
	// Group is the group in which the account exists, e.g. a server ID.
	Group string
	// User is the account holder's user ID.
	User string
	// Name is the holder's display name as of account creation.
	Name string
	// Balance is the account balance. It is never negative.
	Balance int64
	// Created is the time at which the account was created.
	Created time.Time
}

// Store is a durable copy of a ledger.
// Saves always receive every account and replace whatever was saved before.
type Store interface {
	Load(ctx context.Context) ([]Account, error)
	Save(ctx context.Context, accounts []Account) error
}

type key struct {
	group, user string
}

// Ledger is a collection of accounts.
// Its methods are safe to call concurrently.
// Mutations are written through to the ledger's store before they become
// visible; if saving fails, the ledger is unchanged.
type Ledger struct {
	// Log receives an info record of every change to the ledger.
	// Open sets it to slog.Default(). Set it before using the ledger.
	Log *slog.Logger

	mu       sync.Mutex
	store    Store
	accounts map[key]Account
	now      func() time.Time
}

// Open loads a ledger from a store.
func Open(ctx context.Context, store Store) (*Ledger, error) {
	l, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("couldn't load ledger: %w", err)
	}
	m := make(map[key]Account, len(l))
	for _, a := range l {
		if a.Balance < 0 {
			return nil, fmt.Errorf("account %s/%s has negative balance %d", a.Group, a.User, a.Balance)
		}
		m[key{a.Group, a.User}] = a
	}
	return &Ledger{Log: slog.Default(), store: store, accounts: m, now: time.Now}, nil
}

// commitLocked saves next and makes it the ledger's state.
// The ledger's mutex must be held.
func (l *Ledger) commitLocked(ctx context.Context, next map[key]Account) error {
	s := slices.SortedFunc(maps.Values(next), byAge)
	if err := l.store.Save(ctx, s); err != nil {
		return fmt.Errorf("couldn't save ledger: %w", err)
	}
	l.accounts = next
	return nil
}

// updateLocked applies account changes.
// The ledger's mutex must be held.
func (l *Ledger) updateLocked(ctx context.Context, changes ...Account) error {
	next := maps.Clone(l.accounts)
	if next == nil {
		next = make(map[key]Account, len(changes))
	}
	for _, a := range changes {
		next[key{a.Group, a.User}] = a
	}
	return l.commitLocked(ctx, next)
}

// Create creates a new account with an initial balance.
func (l *Ledger) Create(ctx context.Context, group, user, name string, initial int64) error {
	if initial < 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.accounts[key{group, user}]; ok {
		return ErrAccountExists
	}
	a := Account{
		Group:   group,
		User:    user,
		Name:    name,
		Balance: initial,
		// Persisted creation times have second precision.
		Created: l.now().Truncate(time.Second),
	}
	if err := l.updateLocked(ctx, a); err != nil {
		return err
	}
	l.Log.InfoContext(ctx, "account opened",
		slog.String("group", group),
		slog.String("user", user),
		slog.String("name", name),
		slog.Int64("balance", initial),
	)
	return nil
}

// Deposit adds to an account's balance.
func (l *Ledger) Deposit(ctx context.Context, group, user string, amount int64) error {
	if amount < 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	a, ok := l.accounts[key{group, user}]
	if !ok {
		return ErrNoAccount
	}
	if a.Balance > math.MaxInt64-amount {
		return ErrInvalidAmount
	}
	a.Balance += amount
	if err := l.updateLocked(ctx, a); err != nil {
		return err
	}
	l.changed(ctx, "deposit", a, amount)
	return nil
}

// Withdraw subtracts from an account's balance.
func (l *Ledger) Withdraw(ctx context.Context, group, user string, amount int64) error {
	if amount < 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	a, ok := l.accounts[key{group, user}]
	if !ok {
		return ErrNoAccount
	}
	if a.Balance < amount {
		return ErrInsufficientBalance
	}
	a.Balance -= amount
	if err := l.updateLocked(ctx, a); err != nil {
		return err
	}
	l.changed(ctx, "withdraw", a, amount)
	return nil
}

// Transfer moves an amount between two accounts in the same group.
// Either both balances change or neither does.
func (l *Ledger) Transfer(ctx context.Context, group, from, to string, amount int64) error {
	if from == to {
		return ErrSameParty
	}
	if amount < 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	src, ok := l.accounts[key{group, from}]
	if !ok {
		return fmt.Errorf("sender: %w", ErrNoAccount)
	}
	dst, ok := l.accounts[key{group, to}]
	if !ok {
		return fmt.Errorf("receiver: %w", ErrNoAccount)
	}
	if src.Balance < amount {
		return ErrInsufficientBalance
	}
	if dst.Balance > math.MaxInt64-amount {
		return ErrInvalidAmount
	}
	src.Balance -= amount
	dst.Balance += amount
	if err := l.updateLocked(ctx, src, dst); err != nil {
		return err
	}
	l.Log.InfoContext(ctx, "transfer",
		slog.String("group", group),
		slog.String("from", from),
		slog.String("to", to),
		slog.Int64("amount", amount),
	)
	return nil
}

// Set sets an account's balance.
func (l *Ledger) Set(ctx context.Context, group, user string, amount int64) error {
	if amount < 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	a, ok := l.accounts[key{group, user}]
	if !ok {
		return ErrNoAccount
	}
	a.Balance = amount
	if err := l.updateLocked(ctx, a); err != nil {
		return err
	}
	l.changed(ctx, "set balance", a, amount)
	return nil
}

// Wipe deletes every account in a group.
func (l *Ledger) Wipe(ctx context.Context, group string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	next := maps.Clone(l.accounts)
	maps.DeleteFunc(next, func(k key, _ Account) bool { return k.group == group })
	n := len(l.accounts) - len(next)
	if err := l.commitLocked(ctx, next); err != nil {
		return err
	}
	l.Log.InfoContext(ctx, "wipe", slog.String("group", group), slog.Int("accounts", n))
	return nil
}

// changed logs a change to a single account.
func (l *Ledger) changed(ctx context.Context, op string, a Account, amount int64) {
	l.Log.InfoContext(ctx, op,
		slog.String("group", a.Group),
		slog.String("user", a.User),
		slog.Int64("amount", amount),
		slog.Int64("balance", a.Balance),
	)
}

// Account gets an account.
func (l *Ledger) Account(group, user string) (Account, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	a, ok := l.accounts[key{group, user}]
	return a, ok
}

// Balance gets an account's balance.
func (l *Ledger) Balance(group, user string) (int64, error) {
	a, ok := l.Account(group, user)
	if !ok {
		return 0, ErrNoAccount
	}
	return a.Balance, nil
}

// CanAfford reports whether an account exists and has at least amount.
func (l *Ledger) CanAfford(group, user string, amount int64) bool {
	a, ok := l.Account(group, user)
	return ok && a.Balance >= amount
}

// Accounts returns the accounts in a group, ranked by balance.
// Ties are ordered by account age.
func (l *Ledger) Accounts(group string) []Account {
	l.mu.Lock()
	r := make([]Account, 0, 16)
	for k, a := range l.accounts {
		if k.group == group {
			r = append(r, a)
		}
	}
	l.mu.Unlock()
	slices.SortFunc(r, byRank)
	return r
}

// All returns accounts across all groups, ranked by balance.
// A user with accounts in several groups appears once, with their largest
// balance.
func (l *Ledger) All() []Account {
	l.mu.Lock()
	r := slices.Collect(maps.Values(l.accounts))
	l.mu.Unlock()
	slices.SortFunc(r, byRank)
	seen := make(map[string]bool, len(r))
	return slices.DeleteFunc(r, func(a Account) bool {
		if seen[a.User] {
			return true
		}
		seen[a.User] = true
		return false
	})
}

// byAge orders accounts by creation time, falling back to IDs so that the
// order is total.
func byAge(a, b Account) int {
	if c := a.Created.Compare(b.Created); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Group, b.Group); c != 0 {
		return c
	}
	return cmp.Compare(a.User, b.User)
}

// byRank orders accounts by descending balance, then by age.
func byRank(a, b Account) int {
	if c := cmp.Compare(b.Balance, a.Balance); c != 0 {
		return c
	}
	return byAge(a, b)
}
