// Package auth holds the two admission checks the relay performs before a
// connection may touch room state: bearer token verification and board
// membership. Token issuance lives in the login service; this package only
// verifies what it minted.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"

	"github.com/kkapil94/whiteBoard/config"
)

// ErrTokenInvalid covers every verification failure a client can cause:
// bad signature, expiry, malformed token, revocation. The gatekeeper maps
// it to a policy-violation close.
var ErrTokenInvalid = errors.New("token invalid")

// Identity is the verified subject of an admitted connection.
type Identity struct {
	UserID      string
	DisplayName string
}

// Claims is the token payload minted by the login service. The subject is
// the user ID; Name is an optional display name. The 'jti' from
// RegisteredClaims feeds the revocation check.
type Claims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Verifier validates bearer tokens against the shared HMAC secret and the
// Redis revocation list.
type Verifier struct {
	cfg         *config.AuthConfig
	redisClient *redis.Client
	log         *slog.Logger
}

func NewVerifier(cfg *config.AuthConfig, redisClient *redis.Client, log *slog.Logger) *Verifier {
	return &Verifier{
		cfg:         cfg,
		redisClient: redisClient,
		log:         log.With("component", "auth"),
	}
}

// Verify parses and validates a token string. It checks the signature,
// standard claims (expiry among them) and the revocation list, and returns
// the identity it vouches for.
func (v *Verifier) Verify(ctx context.Context, tokenString string) (Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(v.cfg.JWTSecret), nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !token.Valid {
		return Identity{}, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return Identity{}, fmt.Errorf("%w: unexpected claims type", ErrTokenInvalid)
	}
	if claims.Subject == "" {
		return Identity{}, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}

	revoked, err := v.isRevoked(ctx, claims.ID)
	if err != nil {
		// A Redis outage must not lock every user out; log and fail open.
		v.log.Error("failed to check token revocation status", "error", err)
	}
	if revoked {
		return Identity{}, fmt.Errorf("%w: token has been revoked", ErrTokenInvalid)
	}

	name := claims.Name
	if name == "" {
		name = claims.Subject
	}
	return Identity{UserID: claims.Subject, DisplayName: name}, nil
}

// isRevoked checks whether a token ID (jti) is on the Redis revocation list.
func (v *Verifier) isRevoked(ctx context.Context, jti string) (bool, error) {
	if v.redisClient == nil || jti == "" {
		if jti == "" {
			v.log.Warn("token is missing 'jti' claim, cannot check for revocation")
		}
		return false, nil
	}

	key := fmt.Sprintf("%s:%s", v.cfg.RevocationListKey, jti)
	exists, err := v.redisClient.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis command failed: %w", err)
	}
	return exists == 1, nil
}
