package storage

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := &FileStore{dir: t.TempDir()}
	require.NoError(t, f.Init(ctx))

	_, err := f.LoadAccess(ctx, "user@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.LoadCookies(ctx, "user@example.com")
	assert.ErrorIs(t, err, ErrNotFound)

	access := Access{
		Token:      "tok123",
		Identities: map[string]string{"account_id": "0015E", "name": "Jane"},
		Context:    json.RawMessage(`{"mode":"PROD"}`),
		SavedAt:    time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, f.SaveAccess(ctx, "user@example.com", access))

	got, err := f.LoadAccess(ctx, "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, access.Token, got.Token)
	assert.Equal(t, access.Identities, got.Identities)
	assert.JSONEq(t, string(access.Context), string(got.Context))
	assert.True(t, access.SavedAt.Equal(got.SavedAt))

	cookies := []Cookie{{Name: "sid", Value: "abc"}, {Name: "oinfo", Value: "def"}}
	require.NoError(t, f.SaveCookies(ctx, "user@example.com", cookies))

	gotCookies, err := f.LoadCookies(ctx, "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, cookies, gotCookies)
}

func TestFileStoreAccountIsolation(t *testing.T) {
	ctx := context.Background()
	f := &FileStore{dir: t.TempDir()}
	require.NoError(t, f.Init(ctx))

	require.NoError(t, f.SaveAccess(ctx, "a@example.com", Access{Token: "a"}))

	_, err := f.LoadAccess(ctx, "b@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSanitizeAccount(t *testing.T) {
	assert.Equal(t, "a_b", sanitizeAccount("a/b"))
	assert.Equal(t, "a_b", sanitizeAccount(`a\b`))
	assert.Equal(t, "_etc_passwd", sanitizeAccount("/etc/passwd"))
}

func TestDiscard(t *testing.T) {
	ctx := context.Background()
	var s Store = Discard{}

	require.NoError(t, s.SaveAccess(ctx, "x", Access{Token: "t"}))
	_, err := s.LoadAccess(ctx, "x")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.SaveCookies(ctx, "x", []Cookie{{Name: "a"}}))
	_, err = s.LoadCookies(ctx, "x")
	assert.ErrorIs(t, err, ErrNotFound)
}
