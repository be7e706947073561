// Package password hashes and verifies credentials. A stored hash is a
// models.PasswordHash tagged with the scheme that produced it, so verification
// dispatches on the tag and older schemes keep verifying after the default
// changes.
package password

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

// ErrHashingFailure reports an unusable stored hash or a failure of the
// hashing primitive itself. A wrong password is not an error.
var ErrHashingFailure = errors.New("password hashing failure")

const (
	SchemeBcrypt   = "bcrypt"
	SchemeArgon2id = "argon2id"
)

// MaxLength is the longest password accepted, in bytes. bcrypt ignores
// everything past it.
const MaxLength = 72

type scheme interface {
	hash(plaintext string) (models.PasswordHash, error)
	verify(plaintext string, h models.PasswordHash) (bool, error)
	outdated(h models.PasswordHash) bool
}

type Config struct {
	Scheme     string
	BcryptCost int
	Argon2     Argon2Params
}

// Hasher hashes with the configured scheme and verifies any known scheme.
type Hasher struct {
	current string
	schemes map[string]scheme
}

func NewHasher(cfg Config) (*Hasher, error) {
	if cfg.Scheme == "" {
		cfg.Scheme = SchemeBcrypt
	}
	if cfg.Argon2 == (Argon2Params{}) {
		cfg.Argon2 = DefaultArgon2Params
	}

	bc, err := newBcryptScheme(cfg.BcryptCost)
	if err != nil {
		return nil, err
	}
	a2, err := newArgon2Scheme(cfg.Argon2)
	if err != nil {
		return nil, err
	}

	h := &Hasher{
		current: cfg.Scheme,
		schemes: map[string]scheme{
			SchemeBcrypt:   bc,
			SchemeArgon2id: a2,
		},
	}
	if _, ok := h.schemes[cfg.Scheme]; !ok {
		return nil, fmt.Errorf("unknown password scheme %q", cfg.Scheme)
	}
	return h, nil
}

func (h *Hasher) Hash(plaintext string) (models.PasswordHash, error) {
	ph, err := h.schemes[h.current].hash(plaintext)
	if err != nil {
		return models.PasswordHash{}, fmt.Errorf("%w: %v", ErrHashingFailure, err)
	}
	return ph, nil
}

// Verify reports whether plaintext matches the stored hash. It fails with
// ErrHashingFailure for an unknown scheme or a malformed hash.
func (h *Hasher) Verify(plaintext string, stored models.PasswordHash) (bool, error) {
	s, ok := h.schemes[stored.Scheme]
	if !ok {
		return false, fmt.Errorf("%w: unknown scheme %q", ErrHashingFailure, stored.Scheme)
	}
	return s.verify(plaintext, stored)
}

// NeedsRehash reports whether stored was produced by another scheme or with
// weaker parameters than the current configuration.
func (h *Hasher) NeedsRehash(stored models.PasswordHash) bool {
	if stored.Scheme != h.current {
		return true
	}
	return h.schemes[h.current].outdated(stored)
}
