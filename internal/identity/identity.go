// Package identity resolves who is behind a connection before any room
// operation is accepted.
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid token")

const (
	subjectKey  = "sub"
	usernameKey = "username"
	expiresKey  = "exp"
)

type Identity struct {
	UserId   string
	Username string
	// Verified identities carry an authoritative username.
	Verified bool
}

// JWTVerifier accepts HS256 tokens issued by the auth service with the user
// id in "sub" and the display name in "username".
type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

func (v *JWTVerifier) Issue(userId, username string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		subjectKey:  userId,
		usernameKey: username,
		expiresKey:  time.Now().Add(ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	return token.SignedString(v.secret)
}

func (v *JWTVerifier) Verify(_ context.Context, tokenString string) (Identity, error) {
	if tokenString == "" {
		return Identity{}, ErrInvalidToken
	}

	token, err := jwt.ParseWithClaims(tokenString, jwt.MapClaims{}, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if !token.Valid {
		return Identity{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, ErrInvalidToken
	}

	userId, ok := claims[subjectKey].(string)
	if !ok || userId == "" {
		return Identity{}, ErrInvalidToken
	}

	username, ok := claims[usernameKey].(string)
	if !ok || username == "" {
		return Identity{}, ErrInvalidToken
	}

	return Identity{
		UserId:   userId,
		Username: username,
		Verified: true,
	}, nil
}

// Anonymous hands out a throwaway user id per connection. The username is
// then taken from the create or join payload.
type Anonymous struct{}

func (Anonymous) Verify(context.Context, string) (Identity, error) {
	return Identity{UserId: uuid.NewString()}, nil
}
