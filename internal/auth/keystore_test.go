package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashKey(t *testing.T) {
	t.Parallel()

	h1 := HashKey("mgw_some_key")
	h2 := HashKey("mgw_some_key")
	h3 := HashKey("mgw_other_key")

	assert.Equal(t, h1, h2, "hashing must be deterministic")
	assert.NotEqual(t, h1, h3)
	assert.Len(t, h1, 64, "SHA-256 hex digest is 64 characters")
}

func TestKeyStore_Lookup(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	db := newFakeDB()
	principalID := db.addPrincipal(10, 1000)
	validKeyID := db.addKey("valid-key", principalID, true, nil)
	db.addKey("disabled-key", principalID, false, nil)
	expiredKeyID := db.addKey("expired-key", principalID, true, &past)
	futureKeyID := db.addKey("future-key", principalID, true, &future)

	store := NewKeyStore(db)
	store.now = func() time.Time { return now }

	tests := []struct {
		name      string
		rawKey    string
		wantKeyID string
		wantErr   error
	}{
		{
			name:      "valid key resolves",
			rawKey:    "valid-key",
			wantKeyID: validKeyID.String(),
		},
		{
			name:      "key with future expiry resolves",
			rawKey:    "future-key",
			wantKeyID: futureKeyID.String(),
		},
		{
			name:    "unknown key",
			rawKey:  "no-such-key",
			wantErr: ErrKeyNotFound,
		},
		{
			name:    "disabled key is indistinguishable from unknown",
			rawKey:  "disabled-key",
			wantErr: ErrKeyNotFound,
		},
		{
			name:      "expired key",
			rawKey:    "expired-key",
			wantKeyID: expiredKeyID.String(),
			wantErr:   ErrKeyExpired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			record, err := store.Lookup(context.Background(), tt.rawKey)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			if tt.wantKeyID != "" {
				assert.Equal(t, tt.wantKeyID, record.KeyID.String())
				assert.Equal(t, principalID, record.PrincipalID)
			}
		})
	}
}

func TestKeyStore_Lookup_ExpiryBoundary(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	db := newFakeDB()
	principalID := db.addPrincipal(10, 1000)
	db.addKey("boundary-key", principalID, true, &now)

	store := NewKeyStore(db)
	store.now = func() time.Time { return now }

	// A key expiring exactly now is already expired.
	_, err := store.Lookup(context.Background(), "boundary-key")
	require.ErrorIs(t, err, ErrKeyExpired)
}
