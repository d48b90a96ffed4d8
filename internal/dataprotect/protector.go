// Package dataprotect encrypts small secrets (OAuth tokens, signed state) at
// rest. Keys are derived per purpose from one master secret, so a payload
// protected for one purpose cannot be unprotected under another.
package dataprotect

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/smallbiznis/caskr/internal/config"
	"golang.org/x/crypto/hkdf"
)

const envelopeVersion = 1

var (
	ErrSecretMissing     = errors.New("encryption_secret_missing")
	ErrInvalidPayload    = errors.New("invalid_protected_payload")
	ErrPurposeMismatch   = errors.New("protected_payload_purpose_mismatch")
	ErrPurposeRequired   = errors.New("protection_purpose_required")
	errUnsupportedFormat = errors.New("unsupported protected payload version")
)

// Protector encrypts and decrypts payloads for a single purpose.
type Protector interface {
	Protect(plaintext []byte) (string, error)
	Unprotect(protected string) ([]byte, error)
}

// Provider creates purpose-scoped protectors from a master secret.
type Provider struct {
	master []byte
}

type envelope struct {
	Version    int    `json:"version"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

func NewProvider(secret string) (*Provider, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, ErrSecretMissing
	}
	sum := sha256.Sum256([]byte(secret))
	return &Provider{master: sum[:]}, nil
}

// NewProviderFromConfig is the fx constructor.
func NewProviderFromConfig(cfg config.Config) (*Provider, error) {
	return NewProvider(cfg.TokenEncryptionSecret)
}

func (p *Provider) CreateProtector(purpose string) (Protector, error) {
	purpose = strings.TrimSpace(purpose)
	if purpose == "" {
		return nil, ErrPurposeRequired
	}

	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, p.master, nil, []byte(purpose)), key); err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &aeadProtector{aead: gcm, purpose: []byte(purpose)}, nil
}

type aeadProtector struct {
	aead    cipher.AEAD
	purpose []byte
}

func (p *aeadProtector) Protect(plaintext []byte) (string, error) {
	nonce := make([]byte, p.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	ciphertext := p.aead.Seal(nil, nonce, plaintext, p.purpose)
	out, err := json.Marshal(envelope{
		Version:    envelopeVersion,
		Nonce:      base64.RawStdEncoding.EncodeToString(nonce),
		Ciphertext: base64.RawStdEncoding.EncodeToString(ciphertext),
	})
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (p *aeadProtector) Unprotect(protected string) ([]byte, error) {
	if strings.TrimSpace(protected) == "" {
		return nil, ErrInvalidPayload
	}

	var env envelope
	if err := json.Unmarshal([]byte(protected), &env); err != nil {
		return nil, ErrInvalidPayload
	}
	if env.Version != envelopeVersion {
		return nil, errUnsupportedFormat
	}

	nonce, err := base64.RawStdEncoding.DecodeString(env.Nonce)
	if err != nil || len(nonce) != p.aead.NonceSize() {
		return nil, ErrInvalidPayload
	}
	ciphertext, err := base64.RawStdEncoding.DecodeString(env.Ciphertext)
	if err != nil {
		return nil, ErrInvalidPayload
	}

	plain, err := p.aead.Open(nil, nonce, ciphertext, p.purpose)
	if err != nil {
		return nil, ErrPurposeMismatch
	}
	return plain, nil
}

// ProtectJSON serializes v as JSON and protects the result.
func ProtectJSON(p Protector, v any) (string, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return p.Protect(payload)
}

// UnprotectJSON reverses ProtectJSON into dest.
func UnprotectJSON(p Protector, protected string, dest any) error {
	plain, err := p.Unprotect(protected)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(plain, dest); err != nil {
		return ErrInvalidPayload
	}
	return nil
}
