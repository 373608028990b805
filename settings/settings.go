// Package settings persists module settings as flat JSON documents.
package settings

import (
	"fmt"
	"maps"
	"sync"

	"github.com/zephyrtronium/casino/jsonfile"
)

// File is a settings document of type T stored in a JSON file.
// Its methods are safe to call concurrently.
type File[T any] struct {
	mu    sync.Mutex
	path  string
	val   T
	clone func(T) T
}

// Open loads settings from a file. If the file does not exist, the settings
// start from def and the file is created on the first update.
// clone must return a copy of a value that shares no mutable state with it;
// it may be nil if T has no reference fields.
func Open[T any](path string, def T, clone func(T) T) (*File[T], error) {
	if clone == nil {
		clone = func(v T) T { return v }
	}
	v := clone(def)
	if _, err := jsonfile.LoadOr(path, &v); err != nil {
		return nil, fmt.Errorf("couldn't load settings: %w", err)
	}
	return &File[T]{path: path, val: v, clone: clone}, nil
}

// Get returns a copy of the current settings.
func (f *File[T]) Get() T {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clone(f.val)
}

// Update modifies the settings and saves them. If saving fails, the settings
// are unchanged.
func (f *File[T]) Update(fn func(*T)) (T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v := f.clone(f.val)
	fn(&v)
	if err := jsonfile.Save(f.path, v); err != nil {
		return f.clone(f.val), fmt.Errorf("couldn't save settings: %w", err)
	}
	f.val = v
	return f.clone(v), nil
}

// Economy is the per-group economy configuration.
type Economy struct {
	// PaydayTime is the number of seconds between paydays.
	PaydayTime int64 `json:"PAYDAY_TIME"`
	// PaydayCredits is the number of credits granted each payday.
	PaydayCredits int64 `json:"PAYDAY_CREDITS"`
}

// DefaultEconomy is the economy for groups that have never been configured.
var DefaultEconomy = Economy{
	PaydayTime:    86400,
	PaydayCredits: 500,
}

// Economies is per-group economy settings.
type Economies struct {
	f *File[map[string]Economy]
}

// OpenEconomies opens economy settings at a path.
func OpenEconomies(path string) (*Economies, error) {
	f, err := Open(path, map[string]Economy{}, maps.Clone[map[string]Economy])
	if err != nil {
		return nil, err
	}
	return &Economies{f: f}, nil
}

// For returns the economy settings for a group.
func (e *Economies) For(group string) Economy {
	m := e.f.Get()
	if v, ok := m[group]; ok {
		return v
	}
	return DefaultEconomy
}

// Update modifies the economy of a group.
func (e *Economies) Update(group string, fn func(*Economy)) (Economy, error) {
	var r Economy
	_, err := e.f.Update(func(m *map[string]Economy) {
		if *m == nil {
			*m = make(map[string]Economy)
		}
		v, ok := (*m)[group]
		if !ok {
			v = DefaultEconomy
		}
		fn(&v)
		(*m)[group] = v
		r = v
	})
	return r, err
}

// Blackjack is the blackjack table configuration shared by all tables.
type Blackjack struct {
	// Min is the minimum bet.
	Min int64 `json:"BLACKJACK_MIN"`
	// Max is the maximum bet, when MaxEnabled is set.
	Max int64 `json:"BLACKJACK_MAX"`
	// MaxEnabled enables the maximum bet.
	MaxEnabled bool `json:"BLACKJACK_MAX_ENABLED"`
	// GameTime is the number of seconds players have to act after the deal.
	GameTime int64 `json:"BLACKJACK_GAME_TIME"`
	// PreGameTime is the number of seconds bets are open before the deal.
	PreGameTime int64 `json:"BLACKJACK_PRE_GAME_TIME"`
	// ImagesEnabled enables rendered hand images where available.
	ImagesEnabled bool `json:"BLACKJACK_IMAGES_ENABLED"`
}

// DefaultBlackjack is the blackjack configuration before any changes.
var DefaultBlackjack = Blackjack{
	Min:           10,
	Max:           5000,
	MaxEnabled:    false,
	GameTime:      60,
	PreGameTime:   15,
	ImagesEnabled: true,
}
