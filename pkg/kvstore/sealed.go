package kvstore

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const (
	sealFormatVersion = 1
	sealInfo          = "fhevm-session/sigstore"
	// MinSecretLength is the shortest secret NewSealed accepts.
	MinSecretLength = 16
)

// ErrSealBroken is returned when a stored value cannot be opened with the
// configured secret.
var ErrSealBroken = errors.New("sealed value is corrupted or was sealed with another key")

type sealedBlob struct {
	V      int    `json:"v"`
	Nonce  []byte `json:"nonce"`
	Cipher []byte `json:"cipher"`
}

// Sealed encrypts values before handing them to the wrapped store. The key
// is bound into the associated data so a value cannot be moved to another key.
type Sealed struct {
	inner Store
	aead  cipher.AEAD
}

// NewSealed wraps inner with XChaCha20-Poly1305 using a key derived from secret.
func NewSealed(inner Store, secret []byte) (*Sealed, error) {
	if inner == nil {
		return nil, errors.New("sealed store requires an inner store")
	}
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("seal secret must be at least %d bytes, got %d", MinSecretLength, len(secret))
	}
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(sealInfo)), key); err != nil {
		return nil, fmt.Errorf("failed to derive seal key: %w", err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return &Sealed{inner: inner, aead: aead}, nil
}

func (s *Sealed) GetItem(ctx context.Context, key string) (string, bool, error) {
	raw, ok, err := s.inner.GetItem(ctx, key)
	if err != nil || !ok {
		return "", ok, err
	}
	pt, err := s.open(key, raw)
	if err != nil {
		return "", false, err
	}
	return string(pt), true, nil
}

func (s *Sealed) SetItem(ctx context.Context, key, value string) error {
	sealed, err := s.seal(key, []byte(value))
	if err != nil {
		return err
	}
	return s.inner.SetItem(ctx, key, sealed)
}

func (s *Sealed) RemoveItem(ctx context.Context, key string) error {
	return s.inner.RemoveItem(ctx, key)
}

func (s *Sealed) seal(key string, pt []byte) (string, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	b, err := json.Marshal(sealedBlob{
		V:      sealFormatVersion,
		Nonce:  nonce,
		Cipher: s.aead.Seal(nil, nonce, pt, []byte(key)),
	})
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

func (s *Sealed) open(key, raw string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, ErrSealBroken
	}
	var bl sealedBlob
	if err := json.Unmarshal(b, &bl); err != nil {
		return nil, ErrSealBroken
	}
	if bl.V > sealFormatVersion {
		return nil, fmt.Errorf("unsupported sealed value version %d", bl.V)
	}
	if len(bl.Nonce) != s.aead.NonceSize() {
		return nil, ErrSealBroken
	}
	pt, err := s.aead.Open(nil, bl.Nonce, bl.Cipher, []byte(key))
	if err != nil {
		return nil, ErrSealBroken
	}
	return pt, nil
}
