package logging

import (
	"testing"

	"github.com/fyrsmithlabs/campusconnect/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func encodeWith(t *testing.T, add func(enc zapcore.Encoder)) string {
	t.Helper()
	enc, err := NewRedactingEncoder(newEncoder("json"), NewDefaultConfig().Redaction)
	require.NoError(t, err)

	add(enc)
	buf, err := enc.EncodeEntry(zapcore.Entry{Message: "m"}, nil)
	require.NoError(t, err)
	defer buf.Free()
	return buf.String()
}

func TestRedactingEncoder(t *testing.T) {
	t.Run("sensitive key", func(t *testing.T) {
		out := encodeWith(t, func(enc zapcore.Encoder) {
			enc.AddString("email", "alex.j@university.edu")
		})
		assert.Contains(t, out, `"email":"[REDACTED]"`)
		assert.NotContains(t, out, "university.edu")
	})

	t.Run("key match is case insensitive", func(t *testing.T) {
		out := encodeWith(t, func(enc zapcore.Encoder) {
			enc.AddString("API_KEY", "abc")
		})
		assert.Contains(t, out, `"API_KEY":"[REDACTED]"`)
	})

	t.Run("value pattern", func(t *testing.T) {
		out := encodeWith(t, func(enc zapcore.Encoder) {
			enc.AddString("header", "Bearer abc.def")
		})
		assert.Contains(t, out, `"header":"[REDACTED:pattern]"`)
	})

	t.Run("ordinary field passes", func(t *testing.T) {
		out := encodeWith(t, func(enc zapcore.Encoder) {
			enc.AddString("major", "Computer Science")
		})
		assert.Contains(t, out, `"major":"Computer Science"`)
	})
}

func TestNewRedactingEncoder_RejectsBadPattern(t *testing.T) {
	cfg := RedactionConfig{Enabled: true, Patterns: []string{"[unclosed"}}
	_, err := NewRedactingEncoder(newEncoder("json"), cfg)
	assert.Error(t, err)
}

func TestSecretField(t *testing.T) {
	tl := NewTestLogger()
	tl.Logger.Underlying().Info("loaded key", Secret("api_key", config.Secret("AIzaSyExample")))

	entries := tl.FilterMessage("loaded key").All()
	require.Len(t, entries, 1)
	ctx := entries[0].ContextMap()
	assert.Equal(t, map[string]interface{}{"api_key": "[REDACTED:13]"}, ctx["api_key"])
	tl.AssertNoSecrets(t)
}
