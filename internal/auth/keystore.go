package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/modelgate/modelgate-server/internal/db/sqlc"
)

// Sentinel errors returned by KeyStore.Lookup.
var (
	ErrKeyNotFound = errors.New("api key not found")
	ErrKeyExpired  = errors.New("api key expired")
)

// KeyQuerier is the database surface the key store needs.
type KeyQuerier interface {
	GetAPIKeyByHash(ctx context.Context, keyHash string) (sqlc.ApiKey, error)
}

// KeyRecord identifies the credential and the principal that owns it.
type KeyRecord struct {
	KeyID       uuid.UUID
	PrincipalID uuid.UUID
}

// KeyStore resolves raw API keys to principals. Raw keys are never persisted;
// only their SHA-256 digest is stored and compared.
type KeyStore struct {
	querier KeyQuerier
	now     func() time.Time
}

// NewKeyStore creates a KeyStore backed by the given querier.
func NewKeyStore(querier KeyQuerier) *KeyStore {
	return &KeyStore{
		querier: querier,
		now:     time.Now,
	}
}

// HashKey returns the lowercase hex SHA-256 digest of a raw key.
func HashKey(rawKey string) string {
	sum := sha256.Sum256([]byte(rawKey))
	return hex.EncodeToString(sum[:])
}

// Lookup resolves a raw key to its record. Disabled keys are indistinguishable
// from unknown ones. An expired key returns ErrKeyExpired along with the
// record so callers can still attribute the attempt.
func (s *KeyStore) Lookup(ctx context.Context, rawKey string) (KeyRecord, error) {
	key, err := s.querier.GetAPIKeyByHash(ctx, HashKey(rawKey))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return KeyRecord{}, ErrKeyNotFound
		}
		return KeyRecord{}, fmt.Errorf("failed to look up api key: %w", err)
	}

	record := KeyRecord{
		KeyID:       key.ID,
		PrincipalID: key.PrincipalID,
	}
	if key.ExpiresAt != nil && !key.ExpiresAt.After(s.now()) {
		return record, ErrKeyExpired
	}
	return record, nil
}
