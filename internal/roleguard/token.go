// Package roleguard authenticates callers and enforces the four-role access
// model. A signed HS256 token carries the caller's identity and role; the
// middleware resolves it into a request principal, and role guards fence
// individual routes.
package roleguard

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	id "sevagate/pkg/domain"
	dErrors "sevagate/pkg/domain-errors"
	"sevagate/pkg/requestcontext"
)

// Claims is the token payload. Subject carries the user ID.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// TokenService signs and validates access tokens.
type TokenService struct {
	signingKey []byte
	issuer     string
	audience   string
}

func NewTokenService(signingKey, issuer, audience string) *TokenService {
	return &TokenService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
	}
}

// GenerateToken issues a signed token for the given user and role.
func (s *TokenService) GenerateToken(userID id.UserID, role id.Role, expiresIn time.Duration) (string, error) {
	if !role.Valid() {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown role %q", role)
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    s.issuer,
			Audience:  []string{s.audience},
			ID:        uuid.NewString(),
		},
	})
	return token.SignedString(s.signingKey)
}

// ValidateToken parses and verifies a token and resolves its principal.
func (s *TokenService) ValidateToken(tokenString string) (requestcontext.Principal, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return requestcontext.Principal{}, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return requestcontext.Principal{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	if !parsed.Valid {
		return requestcontext.Principal{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return requestcontext.Principal{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}

	userID, err := id.ParseUserID(claims.Subject)
	if err != nil {
		return requestcontext.Principal{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token subject")
	}
	role, err := id.ParseRole(claims.Role)
	if err != nil {
		return requestcontext.Principal{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token role")
	}

	return requestcontext.Principal{UserID: userID, Role: role}, nil
}
