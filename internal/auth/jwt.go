package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/chatwave/chatwave/internal/config"
)

// Claims represents the JWT payload for resolved identities.
type Claims struct {
	Name  string `json:"name"`
	Role  string `json:"role"`
	Badge string `json:"badge,omitempty"`
	jwt.RegisteredClaims
}

// NewToken generates a signed JWT for the provided identity.
func NewToken(cfg config.JWTConfig, name, role, badge string) (string, error) {
	now := time.Now()
	claims := Claims{
		Name:  name,
		Role:  role,
		Badge: badge,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.Expiration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    cfg.Issuer,
			Subject:   name,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.Secret))
}

// ParseToken validates the provided token string and extracts claims.
func ParseToken(cfg config.JWTConfig, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(cfg.Secret), nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, jwt.ErrTokenInvalidClaims
}
