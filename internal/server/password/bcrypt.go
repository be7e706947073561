package password

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"golang.org/x/crypto/bcrypt"
)

// bcrypt embeds salt and cost in its digest; Params mirrors the cost for
// readability only.
type bcryptScheme struct {
	cost int
}

func newBcryptScheme(cost int) (*bcryptScheme, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range", cost)
	}
	return &bcryptScheme{cost: cost}, nil
}

func (s *bcryptScheme) hash(plaintext string) (models.PasswordHash, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), s.cost)
	if err != nil {
		return models.PasswordHash{}, err
	}
	return models.PasswordHash{
		Scheme: SchemeBcrypt,
		Params: "cost=" + strconv.Itoa(s.cost),
		Digest: digest,
	}, nil
}

func (s *bcryptScheme) verify(plaintext string, h models.PasswordHash) (bool, error) {
	err := bcrypt.CompareHashAndPassword(h.Digest, []byte(plaintext))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %v", ErrHashingFailure, err)
	}
}

func (s *bcryptScheme) outdated(h models.PasswordHash) bool {
	cost, err := bcrypt.Cost(h.Digest)
	return err != nil || cost < s.cost
}
