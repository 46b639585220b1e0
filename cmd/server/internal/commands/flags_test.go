package commands

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionFlagsValidate(t *testing.T) {
	valid := func() SessionFlags {
		return SessionFlags{
			TTL:             4 * time.Hour,
			RememberTTL:     720 * time.Hour,
			CleanupInterval: 10 * time.Minute,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*SessionFlags)
		wantErr string
	}{
		{name: "defaults", mutate: func(*SessionFlags) {}},
		{name: "long secret", mutate: func(f *SessionFlags) { f.Secret = strings.Repeat("s", 32) }},
		{name: "short secret", mutate: func(f *SessionFlags) { f.Secret = "short" }, wantErr: "at least 32 bytes"},
		{name: "zero ttl", mutate: func(f *SessionFlags) { f.TTL = 0 }, wantErr: "session TTL"},
		{name: "remember shorter than ttl", mutate: func(f *SessionFlags) { f.RememberTTL = time.Hour }, wantErr: "remember TTL"},
		{name: "zero cleanup interval", mutate: func(f *SessionFlags) { f.CleanupInterval = 0 }, wantErr: "cleanup interval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flags := valid()
			tt.mutate(&flags)

			err := flags.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestSessionFlagsSecretBytes(t *testing.T) {
	t.Run("configured", func(t *testing.T) {
		flags := SessionFlags{Secret: strings.Repeat("k", 40)}

		secret, generated, err := flags.secretBytes()
		require.NoError(t, err)
		assert.False(t, generated)
		assert.Equal(t, []byte(flags.Secret), secret)
	})

	t.Run("generated", func(t *testing.T) {
		flags := SessionFlags{}

		first, generated, err := flags.secretBytes()
		require.NoError(t, err)
		assert.True(t, generated)
		assert.Len(t, first, 32)

		second, _, err := flags.secretBytes()
		require.NoError(t, err)
		assert.NotEqual(t, first, second)
	})
}

func TestPostgresStoreFlagsValidate(t *testing.T) {
	flags := PostgresStoreFlags{MaxConns: 10, MinConns: 1}
	require.ErrorContains(t, flags.Validate(), "connection string is required")

	flags.ConnString = "postgres://localhost/portal"
	require.NoError(t, flags.Validate())

	flags.MinConns = 11
	require.ErrorContains(t, flags.Validate(), "must not exceed max conns")
}

func TestJournalFlagsValidate(t *testing.T) {
	require.NoError(t, (&JournalFlags{ArchiveRetentionDays: 0}).Validate())
	require.NoError(t, (&JournalFlags{ArchiveRetentionDays: 30}).Validate())
	require.Error(t, (&JournalFlags{ArchiveRetentionDays: -1}).Validate())
}
