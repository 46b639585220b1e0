package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/wolfeidau/studentportal/internal/models"
)

const tokenIssuer = "studentportal"

var errInvalidToken = errors.New("invalid session token")

// sessionClaims are carried in the cookie. The session record stays
// authoritative; the signature only stops forged or tampered cookies from
// reaching the session store.
type sessionClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

func (g *Gate) signToken(session *models.Session) (string, error) {
	claims := sessionClaims{
		SessionID: session.SessionID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   session.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(session.CreatedAt),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.cfg.Secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}

	return token, nil
}

// parseToken verifies the cookie value and returns the session ID it names.
func (g *Gate) parseToken(tokenStr string) (uuid.UUID, error) {
	claims := &sessionClaims{}

	_, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		return g.cfg.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(g.now),
		jwt.WithLeeway(5*time.Second),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %w", errInvalidToken, err)
	}

	sessionID, err := uuid.Parse(claims.SessionID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: bad session id", errInvalidToken)
	}

	return sessionID, nil
}
