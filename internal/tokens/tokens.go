package tokens

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims is the self-describing payload carried by both token kinds:
// sub, exp and jti via RegisteredClaims, plus the access/refresh type tag.
type Claims struct {
	TokenType string `json:"type"`
	jwt.RegisteredClaims
}

type Engine struct {
	Secret []byte
	Method jwt.SigningMethod
}

func NewEngine(secret []byte, algorithm string) (*Engine, error) {
	method := jwt.GetSigningMethod(algorithm)
	if method == nil {
		return nil, errors.New("unknown signing algorithm " + algorithm)
	}
	if _, ok := method.(*jwt.SigningMethodHMAC); !ok {
		return nil, errors.New("signing algorithm must be HMAC family, got " + algorithm)
	}
	return &Engine{Secret: secret, Method: method}, nil
}

// Issue signs a token for subject with a freshly generated jti and
// expiry = now + ttl.
func (e *Engine) Issue(subject, tokenType string, ttl time.Duration) (string, error) {
	claims := Claims{
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(e.Method, claims)
	return token.SignedString(e.Secret)
}

// Parse verifies signature and expiry. Callers get the payload or a single
// invalid-token error; expired, malformed and tampered are not distinguished.
func (e *Engine) Parse(raw string) (*Claims, error) {
	var claims Claims
	tkn, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != e.Method.Alg() {
			return nil, errors.New("unexpected sign method")
		}
		return e.Secret, nil
	})
	if err != nil || !tkn.Valid {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}
