package auth

import (
	"errors"
	"strings"
	"testing"
)

func TestHashVerify(t *testing.T) {
	ps := NewPasswordServiceForTest()

	cases := []struct {
		name     string
		password string
	}{
		{"ascii", "correct-horse-battery-staple"},
		{"symbols", "p@$$w0rd!#%"},
		{"unicode", "пароль-密码"},
		{"exactly 72 bytes", strings.Repeat("a", MaxPasswordLength)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			hash, err := ps.Hash(tc.password)
			if err != nil {
				t.Fatalf("Hash() error = %v", err)
			}
			if !strings.HasPrefix(hash, "$2") {
				t.Errorf("Hash() = %q, does not look like bcrypt", hash)
			}
			if err := ps.Verify(hash, tc.password); err != nil {
				t.Errorf("Verify() error = %v", err)
			}
		})
	}
}

func TestHash_Salted(t *testing.T) {
	ps := NewPasswordServiceForTest()

	h1, _ := ps.Hash("same-password")
	h2, _ := ps.Hash("same-password")
	if h1 == h2 {
		t.Error("two hashes of the same password must differ")
	}
}

func TestHash_TooLong(t *testing.T) {
	ps := NewPasswordServiceForTest()

	if _, err := ps.Hash(strings.Repeat("a", MaxPasswordLength+1)); err == nil {
		t.Fatal("Hash() should reject passwords over 72 bytes")
	}
}

func TestVerify_Mismatch(t *testing.T) {
	ps := NewPasswordServiceForTest()
	hash, _ := ps.Hash("the-real-password")

	for _, attempt := range []string{"the-wrong-password", ""} {
		if err := ps.Verify(hash, attempt); !errors.Is(err, ErrInvalidPassword) {
			t.Errorf("Verify(%q) error = %v, want ErrInvalidPassword", attempt, err)
		}
	}
}

func TestVerify_GarbageHash(t *testing.T) {
	ps := NewPasswordServiceForTest()

	err := ps.Verify("not-a-bcrypt-hash", "password")
	if err == nil || errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("Verify() error = %v, want a hash error", err)
	}
}
