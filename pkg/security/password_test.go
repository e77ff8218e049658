package security_test

import (
	"strings"
	"testing"

	"github.com/angelmondragon/boxlink-backend/pkg/config"
	"github.com/angelmondragon/boxlink-backend/pkg/security"
)

func testHasher() *security.Hasher {
	return security.NewHasher(config.PasswordConfig{
		ArgonMemoryKB:    32768,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     16,
		ArgonKeyLen:      32,
	})
}

func TestHashAndMatches(t *testing.T) {
	hasher := testHasher()

	hash, err := hasher.Hash("very-secure-password")
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}
	if hash == "" {
		t.Fatal("Hash returned empty string")
	}
	if strings.Contains(hash, "very-secure-password") {
		t.Fatal("hash must not contain the plaintext")
	}

	ok, err := hasher.Matches("very-secure-password", hash)
	if err != nil {
		t.Fatalf("Matches returned error for valid hash: %v", err)
	}
	if !ok {
		t.Fatal("Matches failed for the correct password")
	}

	ok, err = hasher.Matches("bogus-password", hash)
	if err != nil {
		t.Fatalf("Matches returned error for invalid password: %v", err)
	}
	if ok {
		t.Fatal("Matches returned true for incorrect password")
	}
}

func TestHashIsSalted(t *testing.T) {
	hasher := testHasher()

	first, err := hasher.Hash("same-input")
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}
	second, err := hasher.Hash("same-input")
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}
	if first == second {
		t.Fatal("expected two hashes of the same input to differ")
	}
	for _, h := range []string{first, second} {
		ok, err := hasher.Matches("same-input", h)
		if err != nil || !ok {
			t.Fatalf("expected both hashes to verify, ok=%v err=%v", ok, err)
		}
	}
}

func TestMatchesUsesStoredParameters(t *testing.T) {
	cheap := security.NewHasher(config.PasswordConfig{ArgonTime: 1, ArgonMemoryKB: 8192, ArgonParallelism: 1})
	hash, err := cheap.Hash("legacy-password")
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}

	current := testHasher()
	ok, err := current.Matches("legacy-password", hash)
	if err != nil || !ok {
		t.Fatalf("expected older hash to verify, ok=%v err=%v", ok, err)
	}
	if !current.NeedsRehash(hash) {
		t.Fatal("expected hash with old parameters to need a rehash")
	}

	fresh, err := current.Hash("legacy-password")
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}
	if current.NeedsRehash(fresh) {
		t.Fatal("expected hash with current parameters to be kept")
	}
	if !current.NeedsRehash("garbage") {
		t.Fatal("expected malformed hash to need a rehash")
	}
}

func TestHashRejectsEmptyPassword(t *testing.T) {
	if _, err := testHasher().Hash(""); err == nil {
		t.Fatal("expected empty password to be rejected")
	}
}

func TestMatchesBadHash(t *testing.T) {
	for _, encoded := range []string{"not-a-hash", "$argon2id$v=19$m=0,t=1,p=1$c2FsdA$aGFzaA", "$bcrypt$v=19$m=1,t=1,p=1$c2FsdA$aGFzaA", "$argon2id$v=16$m=8,t=1,p=1$c2FsdA$aGFzaA", "$argon2id$v=19$m=8,t=1,p=1$$aGFzaA"} {
		if _, err := testHasher().Matches("irrelevant", encoded); err == nil {
			t.Fatalf("expected error for malformed hash %q", encoded)
		}
	}
}
