package auth

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/guarzo/listforge/internal/model"
)

const redisKeyPrefix = "listforge:oauth:"

// RedisBackend shares tokens between instances. Tokens are sealed with
// XChaCha20-Poly1305 under a key derived from the configured master key,
// with the marketplace id as associated data.
type RedisBackend struct {
	client redis.Cmdable
	aead   cipher.AEAD
}

// NewRedisBackend creates a backend; masterKey must be 32 bytes
func NewRedisBackend(client redis.Cmdable, masterKey []byte) (*RedisBackend, error) {
	aead, err := newTokenCipher(masterKey)
	if err != nil {
		return nil, err
	}
	return &RedisBackend{client: client, aead: aead}, nil
}

func newTokenCipher(masterKey []byte) (cipher.AEAD, error) {
	if len(masterKey) != 32 {
		return nil, errors.New("token encryption key must be 32 bytes")
	}

	key := make([]byte, chacha20poly1305.KeySize)
	kdf := hkdf.New(sha256.New, masterKey, nil, []byte("listforge oauth tokens v1"))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("deriving token key: %w", err)
	}

	return chacha20poly1305.NewX(key)
}

func (b *RedisBackend) Load(ctx context.Context, m model.MarketplaceID) (*Token, error) {
	data, err := b.client.Get(ctx, redisKeyPrefix+string(m)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading token: %w", err)
	}
	return openToken(b.aead, m, data)
}

func (b *RedisBackend) Save(ctx context.Context, m model.MarketplaceID, t *Token) error {
	sealed, err := sealToken(b.aead, m, t)
	if err != nil {
		return err
	}
	if err := b.client.Set(ctx, redisKeyPrefix+string(m), sealed, 0).Err(); err != nil {
		return fmt.Errorf("writing token: %w", err)
	}
	return nil
}

func (b *RedisBackend) Delete(ctx context.Context, m model.MarketplaceID) error {
	if err := b.client.Del(ctx, redisKeyPrefix+string(m)).Err(); err != nil {
		return fmt.Errorf("deleting token: %w", err)
	}
	return nil
}

func sealToken(aead cipher.AEAD, m model.MarketplaceID, t *Token) ([]byte, error) {
	plaintext, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("encoding token: %w", err)
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, plaintext, []byte(m)), nil
}

func openToken(aead cipher.AEAD, m model.MarketplaceID, data []byte) (*Token, error) {
	if len(data) < aead.NonceSize() {
		return nil, errors.New("sealed token too short")
	}

	nonce, ciphertext := data[:aead.NonceSize()], data[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, []byte(m))
	if err != nil {
		return nil, fmt.Errorf("decrypting token: %w", err)
	}

	var t Token
	if err := json.Unmarshal(plaintext, &t); err != nil {
		return nil, fmt.Errorf("decoding token: %w", err)
	}
	return &t, nil
}
