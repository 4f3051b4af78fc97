package auth

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/northwind-commerce/cart-service/internal/domain"
	"github.com/northwind-commerce/cart-service/internal/port"
)

// TokenResolver validates HMAC-signed bearer tokens issued by the
// identity provider and extracts the caller's session from the
// claims. Authentication itself is delegated; this only verifies.
type TokenResolver struct {
	secret []byte
}

func NewTokenResolver(secret string) port.SessionResolver {
	return &TokenResolver{secret: []byte(secret)}
}

func (r *TokenResolver) Session(_ context.Context, token string) (domain.Session, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return r.secret, nil
	})
	if err != nil {
		return domain.Session{}, domain.WrapE(err, domain.KindValidation, domain.CodeValidation, "invalid token")
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return domain.Session{}, domain.E(domain.KindValidation, domain.CodeValidation, "unexpected claims type")
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return domain.Session{}, domain.E(domain.KindValidation, domain.CodeValidation, "token has no subject")
	}

	session := domain.Session{ID: subject}
	if role, ok := claims["role"].(string); ok {
		session.Role = role
	}
	if email, ok := claims["email"].(string); ok {
		session.Email = email
	}

	return session, nil
}
