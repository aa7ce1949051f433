// Package identity extracts the acting user from tokens issued by the
// upstream identity provider. The engine never authenticates credentials; it
// only verifies the token signature and reads (actor id, role) out of it.
package identity

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/voltmotors/be-warranty-claims/internal/apperr"
	"github.com/voltmotors/be-warranty-claims/internal/rolegate"
)

// Actor is the authenticated caller of a workflow operation.
type Actor struct {
	ID   string
	Role rolegate.Role
}

// Claims is the JWT claim set the identity provider issues.
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Verifier validates bearer tokens against the shared signing secret.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a token verifier.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// VerifyToken parses and validates a bearer token, returning the actor it
// identifies. Any parse, signature or claim problem is an Unauthorized error.
func (v *Verifier) VerifyToken(tokenString string) (*Actor, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindUnauthorized, "invalid token")
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, apperr.New(apperr.KindUnauthorized, "invalid token claims")
	}
	if claims.UserID == "" {
		return nil, apperr.New(apperr.KindUnauthorized, "token carries no user id")
	}
	role, ok := rolegate.ParseRole(claims.Role)
	if !ok {
		return nil, apperr.Newf(apperr.KindUnauthorized, "unknown role %q", claims.Role)
	}

	return &Actor{ID: claims.UserID, Role: role}, nil
}
