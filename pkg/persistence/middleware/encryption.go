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

	"github.com/tessellate-io/weft/pkg/domain"
	"github.com/tessellate-io/weft/pkg/ports"
)

// envelopeKey is the private context slot carrying the ciphertext.
const envelopeKey = "__encrypted__"

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey encrypts new writes. Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys are tried in order when decryption with the active key
	// fails, enabling zero-downtime key rotation.
	FallbackKeys [][]byte
}

type encryptionMiddleware struct {
	next   ports.SessionStore
	config EncryptionConfig
}

// NewEncryptionMiddleware encrypts sessions at rest with AES-GCM. Persisted
// records are opaque envelopes exposing only id, workflow, and status; the
// full session is sealed inside.
func NewEncryptionMiddleware(config EncryptionConfig) Middleware {
	if len(config.ActiveKey) != 32 {
		panic("active key must be 32 bytes (AES-256)")
	}
	return func(next ports.SessionStore) ports.SessionStore {
		return &encryptionMiddleware{next: next, config: config}
	}
}

func (m *encryptionMiddleware) Create(ctx context.Context, session *domain.Session) error {
	envelope, err := m.seal(session)
	if err != nil {
		return err
	}
	return m.next.Create(ctx, envelope)
}

func (m *encryptionMiddleware) Save(ctx context.Context, session *domain.Session) error {
	envelope, err := m.seal(session)
	if err != nil {
		return err
	}
	return m.next.Save(ctx, envelope)
}

func (m *encryptionMiddleware) Load(ctx context.Context, id string) (*domain.Session, error) {
	envelope, err := m.next.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	encoded, ok := envelope.Context.Private[envelopeKey].(string)
	if !ok {
		// A record without an envelope was written before encryption was
		// enabled. Fail secure rather than serving it.
		return nil, errors.New("session record is missing its encryption envelope")
	}
	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode session envelope: %w", err)
	}

	plaintext, err := decryptWithRotation(ciphertext, m.config.ActiveKey, m.config.FallbackKeys)
	if err != nil {
		return nil, fmt.Errorf("decrypt session %s: %w", id, err)
	}

	var session domain.Session
	if err := json.Unmarshal(plaintext, &session); err != nil {
		return nil, fmt.Errorf("unmarshal decrypted session: %w", err)
	}
	return &session, nil
}

func (m *encryptionMiddleware) Delete(ctx context.Context, id string) error {
	return m.next.Delete(ctx, id)
}

// seal serializes and encrypts the session into an opaque envelope that
// keeps id, workflow, status, and timestamps visible for monitoring.
func (m *encryptionMiddleware) seal(session *domain.Session) (*domain.Session, error) {
	plaintext, err := json.Marshal(session)
	if err != nil {
		return nil, fmt.Errorf("marshal session: %w", err)
	}
	ciphertext, err := encrypt(plaintext, m.config.ActiveKey)
	if err != nil {
		return nil, fmt.Errorf("encrypt session: %w", err)
	}

	envelope := &domain.Session{
		ID:        session.ID,
		Workflow:  session.Workflow,
		Status:    session.Status,
		Context:   domain.NewContext(),
		CreatedAt: session.CreatedAt,
		UpdatedAt: session.UpdatedAt,
	}
	envelope.Context.Private[envelopeKey] = base64.StdEncoding.EncodeToString(ciphertext)
	return envelope, nil
}

func encrypt(plaintext, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decryptWithRotation(ciphertext, activeKey []byte, fallbackKeys [][]byte) ([]byte, error) {
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

func decrypt(ciphertext, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, sealed := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, sealed, nil)
}
