/**
 * @description
 * Encrypted storage for custody wallet keys. One record per
 * (network, currency, accountType), encrypted with AES-256-GCM under a key
 * derived from APP_KEY via scrypt. An unsafe plaintext variant exists for
 * development setups, mirroring the upstream tooling.
 *
 * @dependencies
 * - golang.org/x/crypto/scrypt: Key derivation from the configured app key.
 * - github.com/redis/go-redis/v9: Record storage.
 */
package store

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/scrypt"
)

// ErrKeyNotFound is returned when no key material is stored for the selector.
var ErrKeyNotFound = errors.New("no key stored for account")

// keySalt is fixed: the app key is already a high-entropy secret, the KDF
// only stretches it to the AES-256 size.
var keySalt = []byte("signer-service.keystore.v1")

// KeyMaterial is what callers store and recover for a custody account.
type KeyMaterial struct {
	PrivateKey string `json:"privateKey"`
	Mnemonic   string `json:"mnemonic,omitempty"`
}

type keyRecord struct {
	Nonce     string `json:"nonce,omitempty"`
	Data      string `json:"data"`
	Encrypted bool   `json:"encrypted"`
	Timestamp string `json:"timestamp"`
}

// KeyRepository stores custody key material in Redis.
type KeyRepository struct {
	client redis.UniversalClient
	aead   cipher.AEAD
}

// NewKeyRepository derives the encryption key from appKey and returns the
// repository.
func NewKeyRepository(client redis.UniversalClient, appKey string) (*KeyRepository, error) {
	derived, err := scrypt.Key([]byte(appKey), keySalt, 1<<15, 8, 1, 32)
	if err != nil {
		return nil, fmt.Errorf("derive storage key: %w", err)
	}
	block, err := aes.NewCipher(derived)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init gcm: %w", err)
	}
	return &KeyRepository{client: client, aead: aead}, nil
}

func accountKey(network, currency, accountType string) string {
	return "keys:" + network + ":" + currency + ":" + accountType
}

// StoreEncrypted encrypts and persists key material for the selector.
func (r *KeyRepository) StoreEncrypted(ctx context.Context, network, currency, accountType string, material KeyMaterial) error {
	plain, err := json.Marshal(material)
	if err != nil {
		return fmt.Errorf("marshal key material: %w", err)
	}
	nonce := make([]byte, r.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}
	sealed := r.aead.Seal(nil, nonce, plain, nil)
	record := keyRecord{
		Nonce:     hex.EncodeToString(nonce),
		Data:      hex.EncodeToString(sealed),
		Encrypted: true,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	return r.save(ctx, network, currency, accountType, record)
}

// StorePlain persists key material without encryption. Development only.
func (r *KeyRepository) StorePlain(ctx context.Context, network, currency, accountType string, material KeyMaterial) error {
	plain, err := json.Marshal(material)
	if err != nil {
		return fmt.Errorf("marshal key material: %w", err)
	}
	record := keyRecord{
		Data:      hex.EncodeToString(plain),
		Encrypted: false,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	return r.save(ctx, network, currency, accountType, record)
}

func (r *KeyRepository) save(ctx context.Context, network, currency, accountType string, record keyRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal key record: %w", err)
	}
	if err := r.client.Set(ctx, accountKey(network, currency, accountType), data, 0).Err(); err != nil {
		return fmt.Errorf("store key for %s/%s/%s: %w", network, currency, accountType, err)
	}
	return nil
}

// Load decrypts and returns the key material for the selector.
func (r *KeyRepository) Load(ctx context.Context, network, currency, accountType string) (KeyMaterial, error) {
	data, err := r.client.Get(ctx, accountKey(network, currency, accountType)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return KeyMaterial{}, ErrKeyNotFound
		}
		return KeyMaterial{}, fmt.Errorf("load key for %s/%s/%s: %w", network, currency, accountType, err)
	}
	var record keyRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return KeyMaterial{}, fmt.Errorf("decode key record: %w", err)
	}

	payload, err := hex.DecodeString(record.Data)
	if err != nil {
		return KeyMaterial{}, fmt.Errorf("decode key data: %w", err)
	}
	if record.Encrypted {
		nonce, err := hex.DecodeString(record.Nonce)
		if err != nil {
			return KeyMaterial{}, fmt.Errorf("decode nonce: %w", err)
		}
		if payload, err = r.aead.Open(nil, nonce, payload, nil); err != nil {
			return KeyMaterial{}, fmt.Errorf("decrypt key material: %w", err)
		}
	}

	var material KeyMaterial
	if err := json.Unmarshal(payload, &material); err != nil {
		return KeyMaterial{}, fmt.Errorf("decode key material: %w", err)
	}
	return material, nil
}

// IsStored reports whether key material exists for the selector.
func (r *KeyRepository) IsStored(ctx context.Context, network, currency, accountType string) (bool, error) {
	n, err := r.client.Exists(ctx, accountKey(network, currency, accountType)).Result()
	if err != nil {
		return false, fmt.Errorf("check key for %s/%s/%s: %w", network, currency, accountType, err)
	}
	return n > 0, nil
}
