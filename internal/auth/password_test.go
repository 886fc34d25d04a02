package auth

import (
	"strings"
	"testing"
)

// Cost 4 is bcrypt's minimum; it keeps each hash under a millisecond.
func newTestPasswordService() *PasswordService {
	return NewPasswordServiceForTest(4)
}

func TestHashVerifyRoundTrip(t *testing.T) {
	ps := newTestPasswordService()

	cases := []struct {
		name     string
		password string
	}{
		{"simple", "secret1"},
		{"special characters", "p@$$w0rd!#%"},
		{"unicode", "пароль-密码"},
		{"whitespace kept", "  leading and trailing  "},
		{"single space", " "},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			hash, err := ps.Hash(tc.password)
			if err != nil {
				t.Fatalf("Hash(%q) error = %v", tc.password, err)
			}
			if !strings.HasPrefix(hash, "$2") {
				t.Errorf("not a bcrypt hash: %q", hash)
			}
			if err := ps.Verify(hash, tc.password); err != nil {
				t.Errorf("Verify() failed for %q: %v", tc.password, err)
			}
		})
	}
}

func TestHashSaltIsRandom(t *testing.T) {
	ps := newTestPasswordService()

	hash1, _ := ps.Hash("same-password")
	hash2, _ := ps.Hash("same-password")
	if hash1 == hash2 {
		t.Error("two hashes of the same password are identical")
	}
}

func TestHash72ByteBoundary(t *testing.T) {
	// bcrypt silently truncates beyond 72 bytes, so longer input is an
	// error instead.
	ps := newTestPasswordService()

	if _, err := ps.Hash(strings.Repeat("a", 73)); err == nil {
		t.Fatal("Hash() accepted a 73-byte password")
	}
	if _, err := ps.Hash(strings.Repeat("a", 72)); err != nil {
		t.Fatalf("Hash() rejected a 72-byte password: %v", err)
	}
}

func TestVerifyWrongPassword(t *testing.T) {
	ps := newTestPasswordService()

	hash, _ := ps.Hash("the-real-password")
	if err := ps.Verify(hash, "the-wrong-password"); err == nil {
		t.Fatal("Verify() accepted a wrong password")
	}
	if err := ps.Verify(hash, ""); err == nil {
		t.Fatal("Verify() accepted an empty password")
	}
}

func TestVerifyGarbageHash(t *testing.T) {
	ps := newTestPasswordService()

	if err := ps.Verify("not-a-valid-bcrypt-hash", "secret1"); err == nil {
		t.Fatal("Verify() accepted a garbage hash")
	}
}
