// Package middleware wraps session stores with cross-cutting behavior.
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
	"strings"
	"time"

	"github.com/aretw0/concierge/pkg/domain"
	"github.com/aretw0/concierge/pkg/ports"
)

// envelopePrefix marks the single history turn that carries the ciphertext.
const envelopePrefix = "enc:v1:"

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new data.
	// Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys is a list of old keys to try when decryption fails.
	// This enables zero-downtime key rotation.
	FallbackKeys [][]byte
}

// ParseKeys decodes base64 keys; the first becomes the active key.
func ParseKeys(encoded ...string) (EncryptionConfig, error) {
	var cfg EncryptionConfig
	for i, s := range encoded {
		key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
		if err != nil {
			return cfg, fmt.Errorf("key %d is not valid base64: %w", i, err)
		}
		if i == 0 {
			cfg.ActiveKey = key
		} else {
			cfg.FallbackKeys = append(cfg.FallbackKeys, key)
		}
	}
	return cfg, nil
}

type encryptionMiddleware struct {
	ports.SessionStore
	config EncryptionConfig
}

// NewEncryptionMiddleware encrypts the conversation history of every session
// with AES-GCM. Stage, contact fields and timestamps stay readable so the
// store can still search and sweep sessions.
func NewEncryptionMiddleware(config EncryptionConfig) (Middleware, error) {
	if len(config.ActiveKey) != 32 {
		return nil, fmt.Errorf("%w: active key must be 32 bytes (AES-256)", domain.ErrInvalidInput)
	}
	return func(next ports.SessionStore) ports.SessionStore {
		return &encryptionMiddleware{SessionStore: next, config: config}
	}, nil
}

func (m *encryptionMiddleware) SaveSession(ctx context.Context, sess *domain.Session) error {
	plainText, err := json.Marshal(sess.History)
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}
	ciphertext, err := encrypt(plainText, m.config.ActiveKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt history: %w", err)
	}

	// Shallow copy; the caller keeps its plain history.
	envelope := *sess
	envelope.History = []domain.Turn{{
		Role:    domain.RoleSystem,
		Content: envelopePrefix + base64.StdEncoding.EncodeToString(ciphertext),
		At:      lastTurn(sess),
	}}
	return m.SessionStore.SaveSession(ctx, &envelope)
}

func (m *encryptionMiddleware) LoadSession(ctx context.Context, userID string) (*domain.Session, error) {
	sess, err := m.SessionStore.LoadSession(ctx, userID)
	if err != nil {
		return nil, err
	}
	return m.open(sess)
}

func (m *encryptionMiddleware) ListSessions(ctx context.Context) ([]*domain.Session, error) {
	return m.openAll(m.SessionStore.ListSessions(ctx))
}

func (m *encryptionMiddleware) ListIdleSessions(ctx context.Context, before time.Time) ([]*domain.Session, error) {
	return m.openAll(m.SessionStore.ListIdleSessions(ctx, before))
}

func (m *encryptionMiddleware) FindSessionByPhone(ctx context.Context, phone string) (*domain.Session, error) {
	sess, err := m.SessionStore.FindSessionByPhone(ctx, phone)
	if err != nil {
		return nil, err
	}
	return m.open(sess)
}

func (m *encryptionMiddleware) FindSessionByCounterpart(ctx context.Context, operatorID string) (*domain.Session, error) {
	sess, err := m.SessionStore.FindSessionByCounterpart(ctx, operatorID)
	if err != nil {
		return nil, err
	}
	return m.open(sess)
}

func (m *encryptionMiddleware) openAll(sessions []*domain.Session, err error) ([]*domain.Session, error) {
	if err != nil {
		return nil, err
	}
	for i, sess := range sessions {
		if sessions[i], err = m.open(sess); err != nil {
			return nil, err
		}
	}
	return sessions, nil
}

// open replaces the envelope with the decrypted history. Sessions without an
// envelope are rejected rather than trusted.
func (m *encryptionMiddleware) open(sess *domain.Session) (*domain.Session, error) {
	if len(sess.History) != 1 || !strings.HasPrefix(sess.History[0].Content, envelopePrefix) {
		return nil, fmt.Errorf("session %s is missing its encrypted history envelope", sess.UserID)
	}

	ciphertext, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(sess.History[0].Content, envelopePrefix))
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext base64: %w", err)
	}
	plainText, err := decryptWithRotation(ciphertext, m.config.ActiveKey, m.config.FallbackKeys)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt session %s: %w", sess.UserID, err)
	}

	var history []domain.Turn
	if err := json.Unmarshal(plainText, &history); err != nil {
		return nil, fmt.Errorf("failed to unmarshal decrypted history: %w", err)
	}
	if history == nil {
		history = []domain.Turn{}
	}
	sess.History = history
	return sess, nil
}

func lastTurn(sess *domain.Session) time.Time {
	if n := len(sess.History); n > 0 {
		return sess.History[n-1].At
	}
	return sess.UpdatedAt
}

// Helpers

func encrypt(plaintext []byte, key []byte) ([]byte, error) {
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

	nonce := ciphertext[:gcm.NonceSize()]
	return gcm.Open(nil, nonce, ciphertext[gcm.NonceSize():], nil)
}
