package password

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
)

type Argon2Params struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

var DefaultArgon2Params = Argon2Params{
	Memory:      64 * 1024,
	Time:        1,
	Parallelism: 4,
	SaltLength:  16,
	KeyLength:   32,
}

type argon2Scheme struct {
	params Argon2Params
}

func newArgon2Scheme(p Argon2Params) (*argon2Scheme, error) {
	switch {
	case p.Memory < minMemoryKB:
		return nil, errors.New("argon2 memory must be >= 8192 KB")
	case p.Time < minTimeCost:
		return nil, errors.New("argon2 time must be >= 1")
	case p.Parallelism < minParallelism:
		return nil, errors.New("argon2 parallelism must be >= 1")
	case p.SaltLength < minSaltLength:
		return nil, errors.New("argon2 salt length must be >= 16")
	case p.KeyLength < minKeyLength:
		return nil, errors.New("argon2 key length must be >= 16")
	}
	return &argon2Scheme{params: p}, nil
}

func (s *argon2Scheme) hash(plaintext string) (models.PasswordHash, error) {
	salt, err := common.GenerateRandByteArray(int(s.params.SaltLength))
	if err != nil {
		return models.PasswordHash{}, err
	}

	key := argon2.IDKey([]byte(plaintext), salt, s.params.Time, s.params.Memory, s.params.Parallelism, s.params.KeyLength)

	return models.PasswordHash{
		Scheme: SchemeArgon2id,
		Params: formatArgon2Params(s.params),
		Salt:   salt,
		Digest: key,
	}, nil
}

func (s *argon2Scheme) verify(plaintext string, h models.PasswordHash) (bool, error) {
	p, err := parseArgon2Params(h.Params)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrHashingFailure, err)
	}
	if len(h.Salt) < int(minSaltLength) || len(h.Digest) < int(minKeyLength) {
		return false, fmt.Errorf("%w: invalid salt or digest length", ErrHashingFailure)
	}

	computed := argon2.IDKey([]byte(plaintext), h.Salt, p.Time, p.Memory, p.Parallelism, uint32(len(h.Digest)))

	return subtle.ConstantTimeCompare(computed, h.Digest) == 1, nil
}

func (s *argon2Scheme) outdated(h models.PasswordHash) bool {
	p, err := parseArgon2Params(h.Params)
	if err != nil {
		return true
	}
	return s.params.Memory > p.Memory ||
		s.params.Time > p.Time ||
		s.params.Parallelism > p.Parallelism ||
		s.params.KeyLength != uint32(len(h.Digest))
}

func formatArgon2Params(p Argon2Params) string {
	return fmt.Sprintf("v=%d,m=%d,t=%d,p=%d", argon2.Version, p.Memory, p.Time, p.Parallelism)
}

func parseArgon2Params(s string) (Argon2Params, error) {
	var p Argon2Params
	var versionSet, memorySet, timeSet, parallelSet bool

	for _, pair := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			return p, errors.New("invalid parameter entry")
		}

		switch k {
		case "v":
			n, err := strconv.Atoi(v)
			if err != nil || n != argon2.Version {
				return p, errors.New("unsupported argon2 version")
			}
			versionSet = true
		case "m":
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil || n < uint64(minMemoryKB) {
				return p, errors.New("invalid memory parameter")
			}
			p.Memory = uint32(n)
			memorySet = true
		case "t":
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil || n < uint64(minTimeCost) {
				return p, errors.New("invalid time parameter")
			}
			p.Time = uint32(n)
			timeSet = true
		case "p":
			n, err := strconv.ParseUint(v, 10, 8)
			if err != nil || n < uint64(minParallelism) {
				return p, errors.New("invalid parallelism parameter")
			}
			p.Parallelism = uint8(n)
			parallelSet = true
		default:
			return p, errors.New("unsupported parameter")
		}
	}

	if !versionSet || !memorySet || !timeSet || !parallelSet {
		return p, errors.New("missing parameters")
	}
	return p, nil
}
