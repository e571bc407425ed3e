package crypto

import (
	"errors"
	"testing"
)

func TestEncryptRoundTrip(t *testing.T) {
	enc, err := NewEncryptor([]byte("short secret"))
	if err != nil {
		t.Fatal(err)
	}
	sealed, err := enc.Encrypt("ya29.token")
	if err != nil {
		t.Fatal(err)
	}
	if sealed == "ya29.token" {
		t.Fatal("plaintext returned")
	}
	plain, err := enc.Decrypt(sealed)
	if err != nil || plain != "ya29.token" {
		t.Fatalf("Decrypt = %q, %v", plain, err)
	}
}

func TestDecryptWithWrongKey(t *testing.T) {
	a, _ := NewEncryptor([]byte("key-a"))
	b, _ := NewEncryptor([]byte("key-b"))
	sealed, _ := a.Encrypt("secret")
	if _, err := b.Decrypt(sealed); !errors.Is(err, ErrDecryptionFailed) {
		t.Fatalf("expected ErrDecryptionFailed, got %v", err)
	}
}

func TestEmptyValues(t *testing.T) {
	if _, err := NewEncryptor(nil); !errors.Is(err, ErrEmptyKey) {
		t.Fatalf("expected ErrEmptyKey, got %v", err)
	}
	enc, _ := NewEncryptor([]byte("k"))
	if s, _ := enc.Encrypt(""); s != "" {
		t.Errorf("Encrypt(\"\") = %q", s)
	}
	if _, err := enc.Decrypt("AAAA"); !errors.Is(err, ErrInvalidCiphertext) {
		t.Errorf("expected ErrInvalidCiphertext, got %v", err)
	}
}
