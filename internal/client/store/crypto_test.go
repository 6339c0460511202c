package store

import (
	"strings"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := DeriveKey("hunter2")

	for _, plaintext := range []string{
		"",
		"short",
		strings.Repeat("eyJhbGciOiJSUzI1NiJ9.", 200), // JWT-shaped, compresses well
	} {
		encrypted, err := encrypt([]byte(plaintext), key)
		if err != nil {
			t.Fatalf("encrypt: %v", err)
		}
		decrypted, err := decrypt(encrypted, key)
		if err != nil {
			t.Fatalf("decrypt: %v", err)
		}
		if string(decrypted) != plaintext {
			t.Errorf("round trip lost data: got %d bytes, want %d", len(decrypted), len(plaintext))
		}
	}
}

func TestEncryptNeverRepeatsCiphertext(t *testing.T) {
	key := DeriveKey("hunter2")

	a, err := encrypt([]byte("same plaintext"), key)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	b, err := encrypt([]byte("same plaintext"), key)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if a == b {
		t.Error("identical ciphertexts for the same plaintext, nonce is not fresh")
	}
}

func TestDecryptWrongKey(t *testing.T) {
	encrypted, err := encrypt([]byte("secret"), DeriveKey("right-key"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if _, err := decrypt(encrypted, DeriveKey("wrong-key")); err == nil {
		t.Fatal("decrypt succeeded with the wrong key")
	}
}

func TestDecryptRejectsTampering(t *testing.T) {
	key := DeriveKey("hunter2")

	for _, encoded := range []string{
		"",
		"not base64!!!",
		"c2hvcnQ", // valid base64, shorter than a nonce
	} {
		if _, err := decrypt(encoded, key); err == nil {
			t.Errorf("decrypt(%q) succeeded, want error", encoded)
		}
	}

	encrypted, err := encrypt([]byte("secret"), key)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	flipped := []byte(encrypted)
	flipped[len(flipped)-2] ^= 1
	if _, err := decrypt(string(flipped), key); err == nil {
		t.Error("decrypt accepted a flipped ciphertext byte")
	}
}

func TestDeriveKeyIs32Bytes(t *testing.T) {
	for _, secret := range []string{"", "short", strings.Repeat("x", 100)} {
		if got := len(DeriveKey(secret)); got != 32 {
			t.Errorf("DeriveKey(%q) length = %d, want 32", secret, got)
		}
	}
}
