package service

import (
	"encoding/base64"
	"testing"
)

func newTestEncryption() *EncryptionService {
	return NewEncryptionService("test-master-secret", NewMemoryKeyStore())
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	svc := newTestEncryption()

	plaintext := "Velinizle görüşmek istiyorum, müsait misiniz?"
	encrypted, hash, err := svc.Encrypt(plaintext, 42)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if encrypted == plaintext {
		t.Fatal("ciphertext equals plaintext")
	}
	if hash == "" {
		t.Fatal("empty content hash")
	}

	decrypted := svc.Decrypt(encrypted, 42)
	if decrypted != plaintext {
		t.Fatalf("round trip mismatch: got %q", decrypted)
	}
	if !svc.VerifyIntegrity(decrypted, hash) {
		t.Error("integrity check failed on round-tripped plaintext")
	}
}

func TestEncryptProducesDifferentCiphertexts(t *testing.T) {
	svc := newTestEncryption()

	a, _, err := svc.Encrypt("same message", 1)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	b, _, err := svc.Encrypt("same message", 1)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	// Random IV: identical plaintext must not repeat on the wire.
	if a == b {
		t.Error("two encryptions of the same plaintext are identical")
	}
}

func TestDecryptWithWrongConversationKey(t *testing.T) {
	svc := newTestEncryption()

	encrypted, _, err := svc.Encrypt("confidential", 1)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	decrypted := svc.Decrypt(encrypted, 2)
	if decrypted == "confidential" {
		t.Error("cross-conversation decryption produced the plaintext")
	}
}

func TestDecryptCorruptInputFallsBack(t *testing.T) {
	svc := newTestEncryption()

	if got := svc.Decrypt("not-valid-base64!!!", 1); got != DecryptionFallback {
		t.Errorf("invalid base64: got %q, want fallback", got)
	}

	short := base64.StdEncoding.EncodeToString([]byte("tiny"))
	if got := svc.Decrypt(short, 1); got != DecryptionFallback {
		t.Errorf("short ciphertext: got %q, want fallback", got)
	}
}

func TestVerifyIntegrityDetectsTampering(t *testing.T) {
	svc := newTestEncryption()

	hash := svc.ComputeHash("original")
	if !svc.VerifyIntegrity("original", hash) {
		t.Error("matching plaintext failed verification")
	}
	if svc.VerifyIntegrity("tampered", hash) {
		t.Error("tampered plaintext passed verification")
	}
}

func TestGenerateConversationKeyWinsOverDerived(t *testing.T) {
	store := NewMemoryKeyStore()
	svc := NewEncryptionService("secret", store)

	key, err := svc.GenerateConversationKey(7)
	if err != nil {
		t.Fatalf("GenerateConversationKey: %v", err)
	}
	if len(key) != 32 {
		t.Fatalf("key length = %d, want 32", len(key))
	}

	// The same key must come back for every later operation.
	encrypted, _, err := svc.Encrypt("hello", 7)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if got := svc.Decrypt(encrypted, 7); got != "hello" {
		t.Fatalf("decrypt with generated key: got %q", got)
	}
}

func TestDerivedKeyIsDeterministic(t *testing.T) {
	a := NewEncryptionService("shared-secret", NewMemoryKeyStore())
	b := NewEncryptionService("shared-secret", NewMemoryKeyStore())

	encrypted, _, err := a.Encrypt("hello", 3)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	// A second instance with the same master secret can decrypt.
	if got := b.Decrypt(encrypted, 3); got != "hello" {
		t.Fatalf("cross-instance decrypt: got %q", got)
	}
}
