package sealer

import (
	"bytes"
	"errors"
	"testing"
)

func TestSealOpenRoundTrip(t *testing.T) {
	s, err := New(bytes.Repeat([]byte{7}, KeySize))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	sealed, err := s.Seal("Temp0rary!pass")
	if err != nil {
		t.Fatalf("Seal error: %v", err)
	}
	if sealed == "Temp0rary!pass" {
		t.Fatal("sealed value must not equal plaintext")
	}

	plain, err := s.Open(sealed)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	if plain != "Temp0rary!pass" {
		t.Fatalf("unexpected plaintext %q", plain)
	}
}

func TestSealUsesFreshNonce(t *testing.T) {
	s, _ := New(bytes.Repeat([]byte{7}, KeySize))
	a, _ := s.Seal("same")
	b, _ := s.Seal("same")
	if a == b {
		t.Fatal("expected distinct ciphertexts")
	}
}

func TestOpenWithWrongKey(t *testing.T) {
	s1, _ := New(bytes.Repeat([]byte{1}, KeySize))
	s2, _ := New(bytes.Repeat([]byte{2}, KeySize))

	sealed, err := s1.Seal("secret")
	if err != nil {
		t.Fatalf("Seal error: %v", err)
	}
	if _, err := s2.Open(sealed); !errors.Is(err, ErrOpen) {
		t.Fatalf("expected ErrOpen, got %v", err)
	}
}

func TestOpenMalformed(t *testing.T) {
	s, _ := New(bytes.Repeat([]byte{1}, KeySize))
	for _, in := range []string{"", "!!!", "c2hvcnQ"} {
		if _, err := s.Open(in); !errors.Is(err, ErrMalformed) {
			t.Fatalf("Open(%q): expected ErrMalformed, got %v", in, err)
		}
	}
}

func TestNewRejectsKeySize(t *testing.T) {
	if _, err := New([]byte("short")); !errors.Is(err, ErrKeySize) {
		t.Fatalf("expected ErrKeySize, got %v", err)
	}
}
