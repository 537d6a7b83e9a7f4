package utils

import (
	"errors"
	"fmt"
	"time"

	"recharge_desk/internal/model"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for expired, forged or malformed tokens
var ErrInvalidToken = errors.New("invalid token")

// JWTClaims custom claims for JWT. The subject is the user or admin ID.
type JWTClaims struct {
	Type string `json:"type"`
	jwt.RegisteredClaims
}

// Session converts the claims into the typed session they describe
func (c *JWTClaims) Session() (model.Session, error) {
	if c.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	switch c.Type {
	case model.RoleUser:
		return model.UserSession{UserID: c.Subject}, nil
	case model.RoleAdmin:
		return model.AdminSession{AdminID: c.Subject}, nil
	default:
		return nil, fmt.Errorf("%w: unknown session type %q", ErrInvalidToken, c.Type)
	}
}

// JWTUtil provides JWT generation and validation
type JWTUtil struct {
	secretKey string
	ttl       time.Duration
}

// NewJWTUtil creates a new JWTUtil
func NewJWTUtil(secretKey string, ttl time.Duration) *JWTUtil {
	return &JWTUtil{secretKey: secretKey, ttl: ttl}
}

// GenerateToken generates a new JWT token for the given subject and role
func (ju *JWTUtil) GenerateToken(subjectID, role string) (string, error) {
	now := time.Now()
	claims := &JWTClaims{
		Type: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ju.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   subjectID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(ju.secretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// ValidateToken validates the JWT token
func (ju *JWTUtil) ValidateToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(ju.secretKey), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, ErrInvalidToken
}

// ParseSession validates the token and returns the session it carries
func (ju *JWTUtil) ParseSession(tokenString string) (model.Session, error) {
	claims, err := ju.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return claims.Session()
}
