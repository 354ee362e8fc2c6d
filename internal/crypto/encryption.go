package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/crypto/hkdf"
)

// sealedPrefix versions the stored envelope so the scheme can change later
const sealedPrefix = "v1."

const keyInfo = "meetsync-cookie-jar"

// ErrUnsealed is returned for values that were not produced by Encrypt
var ErrUnsealed = errors.New("value is not a sealed cookie jar")

// EncryptionService seals stored cookie jars with a per-user AES-256-GCM key
// derived from one master key. The user ID is bound as additional data.
type EncryptionService struct {
	masterKey []byte
	aeads     sync.Map // userID -> cipher.AEAD
}

// NewEncryptionService takes the master key as 64 hex characters
func NewEncryptionService(masterKeyHex string) (*EncryptionService, error) {
	masterKeyHex = strings.TrimSpace(masterKeyHex)
	if masterKeyHex == "" {
		return nil, errors.New("encryption master key is required")
	}

	masterKey, err := hex.DecodeString(masterKeyHex)
	switch {
	case err != nil:
		return nil, fmt.Errorf("invalid master key format (must be hex): %w", err)
	case len(masterKey) != 32:
		return nil, fmt.Errorf("master key must be 32 bytes (64 hex characters), got %d bytes", len(masterKey))
	}
	return &EncryptionService{masterKey: masterKey}, nil
}

// aead returns the user's cipher, deriving it with HKDF on first use
func (e *EncryptionService) aead(userID string) (cipher.AEAD, error) {
	if userID == "" {
		return nil, errors.New("user ID is required for key derivation")
	}
	if cached, ok := e.aeads.Load(userID); ok {
		return cached.(cipher.AEAD), nil
	}

	userKey := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, e.masterKey, []byte(userID), []byte(keyInfo)), userKey); err != nil {
		return nil, fmt.Errorf("failed to derive key for %s: %w", userID, err)
	}
	block, err := aes.NewCipher(userKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	actual, _ := e.aeads.LoadOrStore(userID, gcm)
	return actual.(cipher.AEAD), nil
}

// Encrypt seals plaintext for userID. Empty input yields an empty string.
func (e *EncryptionService) Encrypt(userID string, plaintext []byte) (string, error) {
	if len(plaintext) == 0 {
		return "", nil
	}
	gcm, err := e.aead(userID)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize(), gcm.NonceSize()+len(plaintext)+gcm.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := gcm.Seal(nonce, nonce, plaintext, []byte(userID))
	return sealedPrefix + base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt for the same user
func (e *EncryptionService) Decrypt(userID string, sealed string) ([]byte, error) {
	if sealed == "" {
		return nil, nil
	}
	encoded, ok := strings.CutPrefix(sealed, sealedPrefix)
	if !ok {
		return nil, ErrUnsealed
	}
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode cookie jar: %w", err)
	}

	gcm, err := e.aead(userID)
	if err != nil {
		return nil, err
	}
	if len(raw) < gcm.NonceSize()+gcm.Overhead() {
		return nil, errors.New("sealed cookie jar too short")
	}

	nonce, body := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, body, []byte(userID))
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt cookie jar: %w", err)
	}
	return plaintext, nil
}

// IsSealed reports whether a stored value carries the sealed envelope
func IsSealed(value string) bool {
	return strings.HasPrefix(value, sealedPrefix)
}

// GenerateMasterKey returns a random key suitable for ENCRYPTION_MASTER_KEY
func GenerateMasterKey() (string, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}
	return hex.EncodeToString(key), nil
}
