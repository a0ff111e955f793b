package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/scenesync/pkg/domain"
	"github.com/aretw0/scenesync/pkg/ports"
)

// EnvelopeNodeID and EnvelopeField locate the ciphertext inside a stored envelope.
const (
	EnvelopeNodeID = "encrypted"
	EnvelopeField  = "ciphertext"
)

// ErrNotEncrypted is returned when a stored snapshot is not an envelope.
var ErrNotEncrypted = errors.New("snapshot is missing encrypted envelope")

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey encrypts new snapshots. Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys are tried in order when the active key cannot decrypt,
	// so keys can be rotated without rewriting stored documents.
	FallbackKeys [][]byte
}

type encryptionMiddleware struct {
	next   ports.SnapshotStore
	config EncryptionConfig
}

// NewEncryption returns a middleware that stores snapshots sealed with AES-GCM.
// The envelope keeps the document id and version in the clear; the tree is opaque.
func NewEncryption(config EncryptionConfig) (Middleware, error) {
	if len(config.ActiveKey) != 32 {
		return nil, fmt.Errorf("active key must be 32 bytes (AES-256), got %d", len(config.ActiveKey))
	}
	for i, k := range config.FallbackKeys {
		if len(k) != 32 {
			return nil, fmt.Errorf("fallback key %d must be 32 bytes (AES-256), got %d", i, len(k))
		}
	}
	return func(next ports.SnapshotStore) ports.SnapshotStore {
		return &encryptionMiddleware{next: next, config: config}
	}, nil
}

// DecodeKey parses a base64 key as written in config files.
func DecodeKey(s string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode key: %w", err)
	}
	return key, nil
}

func (m *encryptionMiddleware) Save(ctx context.Context, snapshot *domain.DocumentSnapshot) error {
	plainText, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	ciphertext, err := encrypt(plainText, m.config.ActiveKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt snapshot: %w", err)
	}

	envelope := &domain.DocumentSnapshot{
		ID:      snapshot.ID,
		Version: snapshot.Version,
		Root: domain.NodeSnapshot{
			ID: EnvelopeNodeID,
			Fields: map[string]domain.FieldSnapshot{
				EnvelopeField: {Type: domain.FieldString, Value: base64.StdEncoding.EncodeToString(ciphertext)},
			},
		},
	}
	return m.next.Save(ctx, envelope)
}

func (m *encryptionMiddleware) Load(ctx context.Context, documentID string) (*domain.DocumentSnapshot, error) {
	envelope, err := m.next.Load(ctx, documentID)
	if err != nil {
		return nil, err
	}

	field, ok := envelope.Root.Fields[EnvelopeField]
	if envelope.Root.ID != EnvelopeNodeID || !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotEncrypted, documentID)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(field.Value)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext base64: %w", err)
	}

	plainText, err := decryptWithRotation(ciphertext, m.config.ActiveKey, m.config.FallbackKeys)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt snapshot %s: %w", documentID, err)
	}

	var snapshot domain.DocumentSnapshot
	if err := json.Unmarshal(plainText, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal decrypted snapshot: %w", err)
	}
	return &snapshot, nil
}

func (m *encryptionMiddleware) Delete(ctx context.Context, documentID string) error {
	return m.next.Delete(ctx, documentID)
}

func (m *encryptionMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func encrypt(plaintext []byte, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decryptWithRotation(ciphertext []byte, activeKey []byte, fallbackKeys [][]byte) ([]byte, error) {
	if plain, err := decrypt(ciphertext, activeKey); err == nil {
		return plain, nil
	}
	for _, key := range fallbackKeys {
		if plain, err := decrypt(ciphertext, key); err == nil {
			return plain, nil
		}
	}
	return nil, errors.New("decryption failed with all available keys")
}

func decrypt(ciphertext []byte, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, sealed := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, sealed, nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
