package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
)

const DefaultIssuer = "authkeeper"

// Claims is the payload of a session token. Timestamps have one-second
// precision: iat is rounded down and exp up, so a token lives at least its
// full lifetime.
type Claims struct {
	jwt.RegisteredClaims
	AccountID string      `json:"aid"`
	Email     string      `json:"email"`
	Role      models.Role `json:"role"`
}

func (c *Claims) ExpiresAtTime() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// Issuer signs and verifies HS256 session tokens. Verification is a pure
// function of the token, the secret and the supplied time.
type Issuer struct {
	secret   []byte
	lifetime time.Duration
	issuer   string
}

func NewIssuer(secret []byte, lifetime time.Duration) (*Issuer, error) {
	if len(secret) == 0 {
		return nil, errors.New("token secret is empty")
	}
	if lifetime <= 0 {
		return nil, errors.New("token lifetime must be positive")
	}
	return &Issuer{secret: secret, lifetime: lifetime, issuer: DefaultIssuer}, nil
}

func (i *Issuer) Issue(account *models.Account, now time.Time) (string, *Claims, error) {
	expires := now.Add(i.lifetime)
	if whole := expires.Truncate(time.Second); !whole.Equal(expires) {
		expires = whole.Add(time.Second)
	}

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   account.ID,
			IssuedAt:  jwt.NewNumericDate(now.Truncate(time.Second)),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		AccountID: account.ID,
		Email:     account.Email,
		Role:      account.Role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", nil, err
	}

	return signed, claims, nil
}

// Verify checks signature and expiry at now. Every failure, whatever the
// cause, is reported as common.ErrInvalidToken.
func (i *Issuer) Verify(tokenString string, now time.Time) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) {
			return i.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(i.issuer),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}

	if !token.Valid || claims.AccountID == "" {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}
