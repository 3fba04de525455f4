package auth

import (
	"testing"
)

func TestHashPIN_Deterministic(t *testing.T) {
	a := HashPIN("1234", "somesalt00000001")
	b := HashPIN("1234", "somesalt00000001")
	if a != b {
		t.Error("same pin and salt must produce the same digest")
	}

	if HashPIN("1234", "somesalt00000002") == a {
		t.Error("different salt must produce a different digest")
	}
	if HashPIN("1235", "somesalt00000001") == a {
		t.Error("different pin must produce a different digest")
	}
	if len(a) != hashKeyLength*2 {
		t.Errorf("digest length = %d, want %d hex chars", len(a), hashKeyLength*2)
	}
}

func TestVerifyPIN(t *testing.T) {
	salt, err := GenerateSalt()
	if err != nil {
		t.Fatalf("GenerateSalt() error: %v", err)
	}
	digest := HashPIN("4321", salt)

	if !VerifyPIN("4321", salt, digest) {
		t.Error("correct pin should verify")
	}
	if VerifyPIN("4322", salt, digest) {
		t.Error("wrong pin should not verify")
	}
	if VerifyPIN("4321", "othersalt0000001", digest) {
		t.Error("wrong salt should not verify")
	}
}

func TestGenerateSalt(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		salt, err := GenerateSalt()
		if err != nil {
			t.Fatalf("GenerateSalt() error: %v", err)
		}
		if len(salt) != saltLength {
			t.Fatalf("salt length = %d, want %d", len(salt), saltLength)
		}
		for _, c := range salt {
			isAlnum := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
			if !isAlnum {
				t.Fatalf("salt contains non-alphanumeric character %q", c)
			}
		}
		if seen[salt] {
			t.Fatal("salts should not repeat")
		}
		seen[salt] = true
	}
}
