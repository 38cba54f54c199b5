package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "bandspace"

type Claims struct {
	jwt.RegisteredClaims

	Email string `json:"email,omitempty"`
}

// Verified is the identity carried by a valid access token.
type Verified struct {
	UserID    string
	Email     string
	TokenID   string
	ExpiresAt time.Time
}

// Issue signs an HS256 access token for userID valid for ttl from now.
func Issue(secret, userID, email string, ttl time.Duration, now time.Time) (string, *Verified, error) {
	if secret == "" {
		return "", nil, fmt.Errorf("missing signing secret")
	}
	if userID == "" {
		return "", nil, fmt.Errorf("missing subject")
	}
	exp := now.Add(ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Email: email,
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", nil, err
	}
	return s, &Verified{UserID: userID, Email: email, TokenID: claims.ID, ExpiresAt: exp}, nil
}

// Verify validates signature, issuer and validity window of an access token.
func Verify(tokenString, secret string, now time.Time) (*Verified, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("missing token")
	}
	if secret == "" {
		return nil, fmt.Errorf("missing signing secret")
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	claims := &Claims{}
	tok, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !tok.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("missing subject in token")
	}

	return &Verified{
		UserID:    claims.Subject,
		Email:     claims.Email,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
