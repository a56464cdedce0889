package application

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Password hash sentinels. Authentication maps both to ErrInvalidCredentials.
var (
	ErrInvalidPasswordHash         = errors.New("invalid password hash format")
	ErrIncompatiblePasswordVersion = errors.New("incompatible password hash version")
)

// Argon2idParams tunes the argon2id key derivation for staff passwords.
type Argon2idParams struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2idParams is used for new hashes unless the process overrides it.
var DefaultArgon2idParams = Argon2idParams{
	Memory:      64 * 1024,
	Iterations:  3,
	Parallelism: 2,
	SaltLength:  16,
	KeyLength:   32,
}

func (p Argon2idParams) orDefault() Argon2idParams {
	if p.Memory == 0 || p.Iterations == 0 || p.Parallelism == 0 || p.SaltLength == 0 || p.KeyLength == 0 {
		return DefaultArgon2idParams
	}
	return p
}

// NewArgon2idHasher returns a PasswordHasher bound to params.
func NewArgon2idHasher(params Argon2idParams) PasswordHasher {
	return func(password string) (string, error) {
		return CreatePasswordHash(password, params)
	}
}

// passwordDigest is the decoded form of a stored hash:
// $argon2id$v=19$m=<memory>,t=<iterations>,p=<parallelism>$<salt>$<key>
type passwordDigest struct {
	params Argon2idParams
	salt   []byte
	key    []byte
}

func (d passwordDigest) String() string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		d.params.Memory, d.params.Iterations, d.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(d.salt),
		base64.RawStdEncoding.EncodeToString(d.key),
	)
}

func (d passwordDigest) matches(password string) bool {
	candidate := argon2.IDKey([]byte(password), d.salt, d.params.Iterations, d.params.Memory, d.params.Parallelism, uint32(len(d.key)))
	return subtle.ConstantTimeCompare(d.key, candidate) == 1
}

func parsePasswordDigest(encoded string) (passwordDigest, error) {
	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" || fields[1] != "argon2id" {
		return passwordDigest{}, ErrInvalidPasswordHash
	}

	var version int
	if _, err := fmt.Sscanf(fields[2], "v=%d", &version); err != nil {
		return passwordDigest{}, fmt.Errorf("%w: %v", ErrInvalidPasswordHash, err)
	}
	if version != argon2.Version {
		return passwordDigest{}, ErrIncompatiblePasswordVersion
	}

	var digest passwordDigest
	if _, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d", &digest.params.Memory, &digest.params.Iterations, &digest.params.Parallelism); err != nil {
		return passwordDigest{}, fmt.Errorf("%w: %v", ErrInvalidPasswordHash, err)
	}

	var err error
	if digest.salt, err = base64.RawStdEncoding.DecodeString(fields[4]); err != nil {
		return passwordDigest{}, fmt.Errorf("%w: salt: %v", ErrInvalidPasswordHash, err)
	}
	if digest.key, err = base64.RawStdEncoding.DecodeString(fields[5]); err != nil {
		return passwordDigest{}, fmt.Errorf("%w: key: %v", ErrInvalidPasswordHash, err)
	}
	if len(digest.salt) == 0 || len(digest.key) == 0 {
		return passwordDigest{}, ErrInvalidPasswordHash
	}
	digest.params.SaltLength = uint32(len(digest.salt))
	digest.params.KeyLength = uint32(len(digest.key))
	return digest, nil
}

// CreatePasswordHash derives an argon2id hash with a random salt. Zero
// valued params fall back to DefaultArgon2idParams.
func CreatePasswordHash(password string, params Argon2idParams) (string, error) {
	params = params.orDefault()
	salt := make([]byte, params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("read password salt: %w", err)
	}

	return passwordDigest{
		params: params,
		salt:   salt,
		key:    argon2.IDKey([]byte(password), salt, params.Iterations, params.Memory, params.Parallelism, params.KeyLength),
	}.String(), nil
}

// VerifyPassword checks password against a hash produced by CreatePasswordHash
// using the parameters encoded in the hash.
func VerifyPassword(hashedPassword, password string) error {
	digest, err := parsePasswordDigest(hashedPassword)
	if err != nil {
		return err
	}
	if !digest.matches(password) {
		return ErrInvalidCredentials
	}
	return nil
}
