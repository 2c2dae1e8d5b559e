package credentials

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/campusconnect/internal/config"
	"github.com/fyrsmithlabs/campusconnect/internal/genai"
)

type namedGenerator struct {
	name string
}

func (n namedGenerator) Generate(context.Context, genai.Request) (*genai.Response, error) {
	return &genai.Response{Text: n.name}, nil
}

func (s *Source) cached() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cache)
}

func TestStore(t *testing.T) {
	s := NewStore()

	assert.ErrorIs(t, s.Set("", "k"), ErrEmptyUserID)
	assert.ErrorIs(t, s.Set("u1", ""), ErrEmptyKey)
	assert.False(t, s.Has("u1"))

	require.NoError(t, s.Set("u1", "key-one"))
	assert.True(t, s.Has("u1"))
	key, ok := s.Get("u1")
	require.True(t, ok)
	assert.Equal(t, "key-one", key.Value())

	require.NoError(t, s.Set("u1", "key-two"))
	key, _ = s.Get("u1")
	assert.Equal(t, "key-two", key.Value())

	assert.True(t, s.Clear("u1"))
	assert.False(t, s.Clear("u1"))
	assert.False(t, s.Has("u1"))
}

func TestStore_Concurrent(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Set("u1", "k")
			_ = s.Has("u1")
			s.Clear("u1")
		}()
	}
	wg.Wait()
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint("AIzaSyExampleKey")
	b := Fingerprint("AIzaSyExampleKey")
	c := Fingerprint("AIzaSyOtherKey")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 16)
	assert.NotContains(t, a, "AIza")
}

func TestSource_FallbackWithoutKey(t *testing.T) {
	fallback := namedGenerator{name: "shared"}
	src := NewSource(NewStore(), genai.Config{Provider: config.ProviderGemini}, fallback)

	g, err := src.Generator(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, fallback, g)

	g, err = src.Generator(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, fallback, g)
}

func TestSource_NoFallbackIsDisabled(t *testing.T) {
	src := NewSource(NewStore(), genai.Config{}, nil)

	_, err := src.Generator(context.Background(), "u1")
	assert.ErrorIs(t, err, genai.ErrDisabled)
}

func TestSource_PersonalKey(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.Set("u1", "personal-key"))
	require.NoError(t, store.Set("u2", "personal-key"))
	require.NoError(t, store.Set("u3", "another-key"))

	var got []string
	factory := func(cfg genai.Config) (genai.Generator, error) {
		got = append(got, cfg.APIKey.Value())
		assert.Equal(t, "gemini-test", cfg.Model)
		return namedGenerator{name: cfg.APIKey.Value()}, nil
	}

	src := NewSource(store,
		genai.Config{Provider: config.ProviderGemini, Model: "gemini-test", APIKey: "shared-key"},
		namedGenerator{name: "shared"},
		WithFactory(factory))

	ctx := context.Background()
	g1, err := src.Generator(ctx, "u1")
	require.NoError(t, err)
	g2, err := src.Generator(ctx, "u2")
	require.NoError(t, err)
	g3, err := src.Generator(ctx, "u3")
	require.NoError(t, err)

	assert.Equal(t, namedGenerator{name: "personal-key"}, g1)
	assert.Equal(t, g1, g2)
	assert.Equal(t, namedGenerator{name: "another-key"}, g3)
	assert.Equal(t, []string{"personal-key", "another-key"}, got, "same key should be built once")
}

func TestSource_FactoryError(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.Set("u1", "k"))

	boom := errors.New("boom")
	src := NewSource(store, genai.Config{Provider: config.ProviderGemini}, namedGenerator{name: "shared"},
		WithFactory(func(genai.Config) (genai.Generator, error) { return nil, boom }))

	_, err := src.Generator(context.Background(), "u1")
	assert.ErrorIs(t, err, boom)
}

func TestSource_DefaultFactory(t *testing.T) {
	store := NewStore()
	src := NewSource(store, genai.Config{Provider: config.ProviderGemini, APIKey: "shared-key"}, nil)
	require.NoError(t, store.Set("u1", "personal-key"))

	g, err := src.Generator(context.Background(), "u1")
	require.NoError(t, err)
	assert.NotNil(t, g)
}

func TestSource_RefusesKeysWithoutRemoteProvider(t *testing.T) {
	for _, provider := range []string{"", config.ProviderDisabled, config.ProviderHeuristic} {
		t.Run("provider="+provider, func(t *testing.T) {
			store := NewStore()
			NewSource(store, genai.Config{Provider: provider}, nil)

			assert.ErrorIs(t, store.Set("u1", "k"), ErrKeysUnsupported)
			assert.False(t, store.Has("u1"))
		})
	}
}

func TestSource_EvictsReplacedAndClearedKeys(t *testing.T) {
	store := NewStore()
	builds := 0
	src := NewSource(store, genai.Config{Provider: config.ProviderGemini}, nil,
		WithFactory(func(cfg genai.Config) (genai.Generator, error) {
			builds++
			return namedGenerator{name: cfg.APIKey.Value()}, nil
		}))
	ctx := context.Background()

	for i, key := range []config.Secret{"k1", "k2", "k3"} {
		require.NoError(t, store.Set("u1", key))
		g, err := src.Generator(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, namedGenerator{name: key.Value()}, g)
		assert.Equal(t, 1, src.cached(), "rotation %d should not grow the cache", i)
	}

	// Re-registering the same key keeps the cached generator.
	require.NoError(t, store.Set("u1", "k3"))
	assert.Equal(t, 1, src.cached())

	assert.True(t, store.Clear("u1"))
	assert.Equal(t, 0, src.cached())
	assert.Equal(t, 3, builds)
}
