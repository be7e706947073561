package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
)

var (
	secret = []byte("0123456789abcdef0123456789abcdef")
	t0     = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
)

func testAccount() *models.Account {
	return &models.Account{ID: "acc-1", Email: "ana@x.com", Role: models.RoleAdministrator}
}

func newIssuer(t *testing.T) *Issuer {
	t.Helper()
	i, err := NewIssuer(secret, 24*time.Hour)
	if err != nil {
		t.Fatalf("NewIssuer error: %v", err)
	}
	return i
}

func TestNewIssuer_Invalid(t *testing.T) {
	t.Parallel()

	if _, err := NewIssuer(nil, time.Hour); err == nil {
		t.Fatal("expected error for empty secret")
	}
	if _, err := NewIssuer(secret, 0); err == nil {
		t.Fatal("expected error for zero lifetime")
	}
}

func TestIssueAndVerify_Success(t *testing.T) {
	t.Parallel()

	i := newIssuer(t)
	tok, issued, err := i.Issue(testAccount(), t0)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	if !issued.ExpiresAtTime().Equal(t0.Add(24 * time.Hour)) {
		t.Fatalf("expiresAt = %v", issued.ExpiresAtTime())
	}

	claims, err := i.Verify(tok, t0)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if claims.AccountID != "acc-1" || claims.Email != "ana@x.com" || claims.Role != models.RoleAdministrator {
		t.Fatalf("claims mismatch: %+v", claims)
	}
	if claims.IssuedAt == nil || !claims.IssuedAt.Time.Equal(t0) {
		t.Fatalf("issuedAt = %v, want %v", claims.IssuedAt, t0)
	}
}

func TestIssue_SubSecondExpiryRoundsUp(t *testing.T) {
	t.Parallel()

	i := newIssuer(t)
	at := t0.Add(999 * time.Millisecond)
	tok, issued, err := i.Issue(testAccount(), at)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	want := t0.Add(24*time.Hour + time.Second)
	if !issued.ExpiresAtTime().Equal(want) {
		t.Fatalf("expiresAt = %v, want %v", issued.ExpiresAtTime(), want)
	}
	if !issued.IssuedAt.Time.Equal(t0) {
		t.Fatalf("issuedAt = %v, want %v", issued.IssuedAt.Time, t0)
	}

	// still valid right up to the full lifetime measured from issuance
	if _, err := i.Verify(tok, at.Add(24*time.Hour-time.Millisecond)); err != nil {
		t.Fatalf("token expired before its lifetime: %v", err)
	}
	if _, err := i.Verify(tok, want); !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken at %v, got %v", want, err)
	}
}

func TestVerify_ValidityWindow(t *testing.T) {
	t.Parallel()

	i := newIssuer(t)
	tok, _, err := i.Issue(testAccount(), t0)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	tests := []struct {
		name  string
		at    time.Time
		valid bool
	}{
		{"at issue", t0, true},
		{"mid life", t0.Add(12 * time.Hour), true},
		{"one second before expiry", t0.Add(24*time.Hour - time.Second), true},
		{"at expiry", t0.Add(24 * time.Hour), false},
		{"after expiry", t0.Add(48 * time.Hour), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := i.Verify(tok, tt.at)
			if tt.valid && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tt.valid && !errors.Is(err, common.ErrInvalidToken) {
				t.Fatalf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	t.Parallel()

	tok, _, err := newIssuer(t).Issue(testAccount(), t0)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	other, _ := NewIssuer([]byte("another-secret-another-secret-xx"), time.Hour)
	if _, err := other.Verify(tok, t0); !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerify_TamperedPayload(t *testing.T) {
	t.Parallel()

	i := newIssuer(t)
	tok, _, err := i.Issue(testAccount(), t0)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	other := testAccount()
	other.Role = models.RoleStandard
	forged, _, err := i.Issue(other, t0)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	// payload of one token, signature of the other
	a, b := strings.Split(tok, "."), strings.Split(forged, ".")
	spliced := strings.Join([]string{a[0], b[1], a[2]}, ".")
	if _, err := i.Verify(spliced, t0); !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerify_MalformedString(t *testing.T) {
	t.Parallel()

	for _, tok := range []string{"", "not.a.jwt", "abc"} {
		if _, err := newIssuer(t).Verify(tok, t0); !errors.Is(err, common.ErrInvalidToken) {
			t.Fatalf("%q: expected ErrInvalidToken, got %v", tok, err)
		}
	}
}

func TestVerify_RejectsOtherAlgorithms(t *testing.T) {
	t.Parallel()

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    DefaultIssuer,
			ExpiresAt: jwt.NewNumericDate(t0.Add(time.Hour)),
		},
		AccountID: "acc-1",
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := newIssuer(t).Verify(tok, t0); !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}

	tok, err = jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("sign hs512: %v", err)
	}
	if _, err := newIssuer(t).Verify(tok, t0); !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}
