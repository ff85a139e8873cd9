// Package secrets decrypts credential values that job files carry as
// ASCII-armored age ciphertext.
package secrets

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"filippo.io/age"
	"filippo.io/age/armor"
)

var (
	// ErrNoIdentity is returned when an encrypted value is found but no
	// identity is configured.
	ErrNoIdentity = errors.New("encrypted value found but no age identity configured")
	// ErrNoRecipient is returned when encrypting without a recipient.
	ErrNoRecipient = errors.New("no age recipient configured for encryption")
	// ErrDecryptionFailed is returned when decryption fails.
	ErrDecryptionFailed = errors.New("decryption failed")
	// ErrEncryptionFailed is returned when encryption fails.
	ErrEncryptionFailed = errors.New("encryption failed")
	// ErrInvalidKey is returned when a key is invalid.
	ErrInvalidKey = errors.New("invalid key format")
)

// Service encrypts and decrypts armored age values.
type Service struct {
	identities []age.Identity
	recipients []age.Recipient
	logger     *slog.Logger
}

// Config holds the keys of a Service. Either side may be empty.
type Config struct {
	// Identity is an age identity (AGE-SECRET-KEY-1...) or the contents of
	// an identity file, one key per line.
	Identity string
	// IdentityFile is read when Identity is empty.
	IdentityFile string
	// Recipients are age public keys (age1...).
	Recipients []string
}

// NewService parses the configured keys.
func NewService(cfg Config, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	svc := &Service{logger: logger}

	identity := cfg.Identity
	if identity == "" && cfg.IdentityFile != "" {
		data, err := os.ReadFile(cfg.IdentityFile)
		if err != nil {
			return nil, fmt.Errorf("reading identity file: %w", err)
		}
		identity = string(data)
	}
	if strings.TrimSpace(identity) != "" {
		ids, err := age.ParseIdentities(strings.NewReader(identity))
		if err != nil {
			return nil, fmt.Errorf("%w: invalid identity: %v", ErrInvalidKey, err)
		}
		svc.identities = ids
	}

	for _, r := range cfg.Recipients {
		recipient, err := age.ParseX25519Recipient(strings.TrimSpace(r))
		if err != nil {
			return nil, fmt.Errorf("%w: invalid recipient: %v", ErrInvalidKey, err)
		}
		svc.recipients = append(svc.recipients, recipient)
	}

	return svc, nil
}

// IsEncrypted reports whether value is armored age ciphertext.
func IsEncrypted(value string) bool {
	return strings.HasPrefix(strings.TrimSpace(value), armor.Header)
}

// Resolve returns value unchanged unless it is armored age ciphertext, in
// which case the decrypted plaintext is returned.
func (s *Service) Resolve(value string) (string, error) {
	if !IsEncrypted(value) {
		return value, nil
	}
	plaintext, err := s.Decrypt(value)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(plaintext, "\r\n"), nil
}

// Decrypt decrypts armored ciphertext.
func (s *Service) Decrypt(armored string) (string, error) {
	if len(s.identities) == 0 {
		return "", ErrNoIdentity
	}

	r, err := age.Decrypt(armor.NewReader(strings.NewReader(strings.TrimSpace(armored))), s.identities...)
	if err != nil {
		s.logger.Error("failed to create age decryptor", "error", err)
		return "", fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}

	plaintext, err := io.ReadAll(r)
	if err != nil {
		s.logger.Error("failed to read decrypted data", "error", err)
		return "", fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	return string(plaintext), nil
}

// Encrypt encrypts plaintext to the configured recipients and returns
// armored ciphertext.
func (s *Service) Encrypt(plaintext string) (string, error) {
	if len(s.recipients) == 0 {
		return "", ErrNoRecipient
	}

	var buf bytes.Buffer
	aw := armor.NewWriter(&buf)
	w, err := age.Encrypt(aw, s.recipients...)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}
	if _, err := io.WriteString(w, plaintext); err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}
	if err := aw.Close(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}
	return buf.String(), nil
}

// GenerateKeyPair generates a new age key pair.
func GenerateKeyPair() (publicKey, privateKey string, err error) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return "", "", fmt.Errorf("failed to generate age key pair: %w", err)
	}
	return identity.Recipient().String(), identity.String(), nil
}
