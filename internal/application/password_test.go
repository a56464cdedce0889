package application

import (
	"errors"
	"testing"
)

func TestPasswordHash(t *testing.T) {
	t.Parallel()

	params := Argon2idParams{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16}
	hash, err := NewArgon2idHasher(params)("s3cret-pass")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}

	if err := VerifyPassword(hash, "s3cret-pass"); err != nil {
		t.Fatalf("expected password to verify: %v", err)
	}
	if err := VerifyPassword(hash, "other-pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if err := VerifyPassword("plain", "plain"); !errors.Is(err, ErrInvalidPasswordHash) {
		t.Fatalf("expected ErrInvalidPasswordHash, got %v", err)
	}

	again, err := CreatePasswordHash("s3cret-pass", params)
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	if again == hash {
		t.Fatal("expected a fresh salt per hash")
	}
}

func TestParsePasswordDigest(t *testing.T) {
	t.Parallel()

	hash, err := CreatePasswordHash("s3cret-pass", Argon2idParams{})
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	digest, err := parsePasswordDigest(hash)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if digest.params != DefaultArgon2idParams {
		t.Fatalf("expected default params for zero input, got %+v", digest.params)
	}
	if digest.String() != hash {
		t.Fatalf("expected digest to re-encode identically, got %q", digest.String())
	}

	cases := map[string]error{
		"$bcrypt$v=19$m=1,t=1,p=1$AAAA$AAAA":    ErrInvalidPasswordHash,
		"$argon2id$v=16$m=1,t=1,p=1$AAAA$AAAA":  ErrIncompatiblePasswordVersion,
		"$argon2id$v=19$m=x,t=1,p=1$AAAA$AAAA":  ErrInvalidPasswordHash,
		"$argon2id$v=19$m=1,t=1,p=1$!!$AAAA":    ErrInvalidPasswordHash,
		"$argon2id$v=19$m=1,t=1,p=1$$":          ErrInvalidPasswordHash,
		"x$argon2id$v=19$m=1,t=1,p=1$AAAA$AAAA": ErrInvalidPasswordHash,
	}
	for encoded, want := range cases {
		if _, err := parsePasswordDigest(encoded); !errors.Is(err, want) {
			t.Errorf("parsePasswordDigest(%q) = %v, want %v", encoded, err, want)
		}
	}
}
