package service

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"sync"

	"school-messaging/pkg/logger"

	"go.uber.org/zap"
)

// DecryptionFallback is returned in place of plaintext when a stored body
// cannot be decrypted. One corrupt row must not fail a whole conversation
// render.
const DecryptionFallback = "[message could not be decrypted]"

// KeyStore hands out the symmetric key of a conversation, creating it on
// first use. Implementations must make lookup-or-create mutually exclusive
// across concurrent callers.
type KeyStore interface {
	GetOrCreate(conversationID uint, create func() []byte) []byte
}

// memoryKeyStore is the in-process KeyStore: a map behind a single lock.
type memoryKeyStore struct {
	mu   sync.Mutex
	keys map[uint][]byte
}

// NewMemoryKeyStore creates an empty in-process key store.
func NewMemoryKeyStore() KeyStore {
	return &memoryKeyStore{keys: make(map[uint][]byte)}
}

func (s *memoryKeyStore) GetOrCreate(conversationID uint, create func() []byte) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if key, ok := s.keys[conversationID]; ok {
		return key
	}
	key := create()
	s.keys[conversationID] = key
	return key
}

// EncryptionService encrypts message bodies per conversation with
// AES-256-CFB. When no key has been generated for a conversation, a
// deterministic key is derived from the master secret and the conversation
// id so decryption stays reproducible without key storage. The integrity
// hash is computed over the plaintext and serves deduplication and
// tamper-evidence, not decryption.
type EncryptionService struct {
	masterSecret string
	keys         KeyStore
}

// NewEncryptionService creates an EncryptionService.
func NewEncryptionService(masterSecret string, keys KeyStore) *EncryptionService {
	return &EncryptionService{
		masterSecret: masterSecret,
		keys:         keys,
	}
}

// conversationKey returns the conversation's key, deriving the
// deterministic fallback on first use.
func (s *EncryptionService) conversationKey(conversationID uint) []byte {
	return s.keys.GetOrCreate(conversationID, func() []byte {
		return s.deriveKey(conversationID)
	})
}

func (s *EncryptionService) deriveKey(conversationID uint) []byte {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", s.masterSecret, conversationID)))
	return sum[:]
}

// GenerateConversationKey installs a fresh random key for the conversation
// and returns it. Once generated, the random key wins over the derived
// fallback for all subsequent operations in this process.
func (s *EncryptionService) GenerateConversationKey(conversationID uint) ([]byte, error) {
	var genErr error
	key := s.keys.GetOrCreate(conversationID, func() []byte {
		fresh := make([]byte, 32)
		if _, err := io.ReadFull(rand.Reader, fresh); err != nil {
			genErr = err
			return s.deriveKey(conversationID)
		}
		return fresh
	})
	if genErr != nil {
		return nil, fmt.Errorf("generate conversation key: %w", genErr)
	}
	return key, nil
}

// Encrypt encrypts plaintext under the conversation's key. The random IV
// is prefixed to the ciphertext and the whole blob is base64 encoded for
// storage. Also returns the plaintext integrity hash.
func (s *EncryptionService) Encrypt(plaintext string, conversationID uint) (string, string, error) {
	key := s.conversationKey(conversationID)

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", "", fmt.Errorf("init cipher: %w", err)
	}

	data := []byte(plaintext)
	out := make([]byte, aes.BlockSize+len(data))
	iv := out[:aes.BlockSize]
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", "", fmt.Errorf("generate iv: %w", err)
	}

	stream := cipher.NewCFBEncrypter(block, iv)
	stream.XORKeyStream(out[aes.BlockSize:], data)

	return base64.StdEncoding.EncodeToString(out), s.ComputeHash(plaintext), nil
}

// Decrypt reverses Encrypt. Failures are logged with full context and
// degrade to the fixed fallback string; they never propagate.
func (s *EncryptionService) Decrypt(cipherText string, conversationID uint) string {
	raw, err := base64.StdEncoding.DecodeString(cipherText)
	if err != nil {
		logger.Error("decrypt failed: invalid base64",
			zap.Uint("conversation_id", conversationID),
			zap.Int("cipher_len", len(cipherText)),
			zap.Error(err),
		)
		return DecryptionFallback
	}
	if len(raw) < aes.BlockSize {
		logger.Error("decrypt failed: ciphertext shorter than iv",
			zap.Uint("conversation_id", conversationID),
			zap.Int("raw_len", len(raw)),
		)
		return DecryptionFallback
	}

	key := s.conversationKey(conversationID)
	block, err := aes.NewCipher(key)
	if err != nil {
		logger.Error("decrypt failed: init cipher",
			zap.Uint("conversation_id", conversationID),
			zap.Error(err),
		)
		return DecryptionFallback
	}

	iv := raw[:aes.BlockSize]
	body := raw[aes.BlockSize:]
	plain := make([]byte, len(body))
	stream := cipher.NewCFBDecrypter(block, iv)
	stream.XORKeyStream(plain, body)

	return string(plain)
}

// ComputeHash returns the hex SHA-256 of the text.
func (s *EncryptionService) ComputeHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// VerifyIntegrity checks plaintext against a stored hash.
func (s *EncryptionService) VerifyIntegrity(plaintext, hash string) bool {
	return s.ComputeHash(plaintext) == hash
}
