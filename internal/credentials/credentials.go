// Package credentials keeps per-user personal API keys and turns them into
// generators on demand.
//
// A user may register their own key so their requests bill against their own
// quota instead of the shared deployment key. The Source picks the personal
// key when one exists and falls back to the default generator otherwise.
package credentials

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"

	"github.com/fyrsmithlabs/campusconnect/internal/config"
	"github.com/fyrsmithlabs/campusconnect/internal/genai"
	"github.com/fyrsmithlabs/campusconnect/internal/logging"
	"go.uber.org/zap"
)

var (
	// ErrEmptyUserID is returned when a key operation names no user.
	ErrEmptyUserID = errors.New("user id cannot be empty")

	// ErrEmptyKey is returned by Set for a blank key.
	ErrEmptyKey = errors.New("api key cannot be empty")

	// ErrKeysUnsupported is returned by Set when the configured provider
	// makes no remote calls, so a personal key would have no effect.
	ErrKeysUnsupported = errors.New("personal api keys are not used by the configured provider")
)

// Store holds personal keys in memory, keyed by user ID.
type Store struct {
	mu      sync.RWMutex
	keys    map[string]config.Secret
	refuse  error
	removed []func(config.Secret)
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{keys: make(map[string]config.Secret)}
}

// Set registers key for userID, replacing any previous key.
func (s *Store) Set(userID string, key config.Secret) error {
	if userID == "" {
		return ErrEmptyUserID
	}
	if !key.IsSet() {
		return ErrEmptyKey
	}

	s.mu.Lock()
	if s.refuse != nil {
		s.mu.Unlock()
		return s.refuse
	}
	old, replaced := s.keys[userID]
	s.keys[userID] = key
	hooks := s.removed
	s.mu.Unlock()

	if replaced && old != key {
		notify(hooks, old)
	}
	return nil
}

// Clear removes the key for userID. It reports whether one existed.
func (s *Store) Clear(userID string) bool {
	s.mu.Lock()
	old, ok := s.keys[userID]
	delete(s.keys, userID)
	hooks := s.removed
	s.mu.Unlock()

	if ok {
		notify(hooks, old)
	}
	return ok
}

// onRemove registers fn to run, outside the lock, whenever a key is replaced
// or cleared.
func (s *Store) onRemove(fn func(config.Secret)) {
	s.mu.Lock()
	s.removed = append(s.removed, fn)
	s.mu.Unlock()
}

// refuseWith makes every later Set fail with err.
func (s *Store) refuseWith(err error) {
	s.mu.Lock()
	s.refuse = err
	s.mu.Unlock()
}

func notify(hooks []func(config.Secret), key config.Secret) {
	for _, fn := range hooks {
		fn(key)
	}
}

// Get returns the key for userID.
func (s *Store) Get(userID string) (config.Secret, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.keys[userID]
	return key, ok
}

// Has reports whether userID has a personal key.
func (s *Store) Has(userID string) bool {
	_, ok := s.Get(userID)
	return ok
}

// Fingerprint derives a stable, non-reversible identifier for a key. It is
// safe to log.
func Fingerprint(key config.Secret) string {
	sum := sha256.Sum256([]byte(key.Value()))
	return hex.EncodeToString(sum[:8])
}

// Factory builds a generator from provider configuration.
type Factory func(genai.Config) (genai.Generator, error)

// Source implements genai.Source on top of a Store.
type Source struct {
	store    *Store
	base     genai.Config
	fallback genai.Generator
	factory  Factory

	mu    sync.Mutex
	cache map[string]genai.Generator
}

// SourceOption configures a Source.
type SourceOption func(*Source)

// WithFactory overrides genai.New, mostly for tests.
func WithFactory(f Factory) SourceOption {
	return func(s *Source) {
		if f != nil {
			s.factory = f
		}
	}
}

// NewSource returns a Source that builds personal generators from base with
// the user's key swapped in, and hands out fallback to everyone else. A nil
// fallback means users without a key get genai.ErrDisabled.
//
// The Source evicts a cached generator when its key is replaced or cleared in
// store. When base names a provider that takes no key, store refuses new keys
// with ErrKeysUnsupported.
func NewSource(store *Store, base genai.Config, fallback genai.Generator, opts ...SourceOption) *Source {
	s := &Source{
		store:    store,
		base:     base,
		fallback: fallback,
		factory:  genai.New,
		cache:    make(map[string]genai.Generator),
	}
	for _, opt := range opts {
		opt(s)
	}
	if store != nil {
		store.onRemove(s.evict)
		if !base.UsesAPIKey() {
			store.refuseWith(ErrKeysUnsupported)
		}
	}
	return s
}

// evict drops the generator built for key. Another user sharing the key gets
// a fresh one on the next call.
func (s *Source) evict(key config.Secret) {
	s.mu.Lock()
	delete(s.cache, Fingerprint(key))
	s.mu.Unlock()
}


// Generator returns the generator for userID. Personal generators are built
// once per distinct key and reused.
func (s *Source) Generator(ctx context.Context, userID string) (genai.Generator, error) {
	if userID != "" && s.store != nil {
		if key, ok := s.store.Get(userID); ok {
			return s.personal(ctx, key)
		}
	}
	if s.fallback == nil {
		return nil, genai.ErrDisabled
	}
	return s.fallback, nil
}

func (s *Source) personal(ctx context.Context, key config.Secret) (genai.Generator, error) {
	fp := Fingerprint(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	if g, ok := s.cache[fp]; ok {
		return g, nil
	}
	g, err := s.factory(s.base.WithAPIKey(key))
	if err != nil {
		return nil, err
	}
	s.cache[fp] = g
	logging.FromContext(ctx).Debug(ctx, "built personal generator",
		zap.String("key_fingerprint", fp),
		logging.Secret("api_key", key),
		zap.String("provider", s.base.Provider))
	return g, nil
}

var _ genai.Source = (*Source)(nil)
