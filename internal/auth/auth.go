// Package auth implements the bearer-token authenticator for the object
// store: extracting a credential from either a plain Bearer header or a
// smuggled AWS4-HMAC-SHA256 Credential field, then verifying it as an HS256
// JWT against a rotating set of accepted secrets.
package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DevBypassToken is a literal credential that skips verification entirely.
// It exists to let local tooling exercise the engine without minting real
// tokens and must only be honored when Engine.AllowDevBypass is set.
const DevBypassToken = "foo"

// Claims is the claim set this engine requires on every token.
type Claims struct {
	Bucket string `json:"bucket"`
	jwt.RegisteredClaims
}

// Result is what a successful authentication yields.
type Result struct {
	Subject string
	Bucket  string
}

var (
	// ErrMissingCredential is returned when no usable Authorization header
	// was present.
	ErrMissingCredential = errors.New("auth: missing or unrecognized Authorization header")
	// ErrInvalidToken is returned when the token is malformed or its
	// signature does not verify against any accepted secret.
	ErrInvalidToken = errors.New("auth: invalid token")
	// ErrBucketMismatch is returned when the token's bucket claim does not
	// match the bucket named in the request path.
	ErrBucketMismatch = errors.New("auth: bucket claim does not match request")
)

// Engine verifies S3 bearer credentials for one tenant.
//
// Secrets holds the set of symmetric HS256 keys accepted for verification,
// in preference order; rotation is supported by trying each in turn, so an
// old secret can be retired once no outstanding tokens use it.
type Engine struct {
	Secrets        [][]byte
	AllowDevBypass bool
}

// NewEngine constructs an Engine over the given secrets. At least one
// secret should be provided in production; an empty set means every token
// fails verification (only the dev bypass, if enabled, would succeed).
func NewEngine(secrets [][]byte, allowDevBypass bool) *Engine {
	return &Engine{Secrets: secrets, AllowDevBypass: allowDevBypass}
}

// ExtractToken pulls the bearer credential out of an Authorization header
// value, supporting both the plain "Bearer <token>" form and the
// "AWS4-HMAC-SHA256 Credential=<token>/..., ..." form emitted by S3 SDKs
// pointed at this engine without a custom signer. Signature bytes beyond
// the Credential field's first path segment are never inspected.
func ExtractToken(authorizationHeader string) (string, bool) {
	h := strings.TrimSpace(authorizationHeader)
	if h == "" {
		return "", false
	}

	if rest, ok := strings.CutPrefix(h, "Bearer "); ok {
		token := strings.TrimSpace(rest)
		if token == "" {
			return "", false
		}
		return token, true
	}

	if strings.HasPrefix(h, "AWS4-HMAC-SHA256") {
		const marker = "Credential="
		idx := strings.Index(h, marker)
		if idx == -1 {
			return "", false
		}
		rest := h[idx+len(marker):]
		if slash := strings.IndexByte(rest, '/'); slash != -1 {
			rest = rest[:slash]
		} else if comma := strings.IndexByte(rest, ','); comma != -1 {
			rest = rest[:comma]
		}
		token := strings.TrimSpace(rest)
		if token == "" {
			return "", false
		}
		return token, true
	}

	return "", false
}

// Authenticate verifies token against bucket, returning the claim subject
// and bucket on success. The DevBypassToken short-circuits verification
// when e.AllowDevBypass is set.
func (e *Engine) Authenticate(token string, bucket string) (Result, error) {
	if e.AllowDevBypass && token == DevBypassToken {
		return Result{Subject: "dev", Bucket: bucket}, nil
	}

	if strings.Count(token, ".") != 2 {
		return Result{}, ErrInvalidToken
	}

	var (
		claims *Claims
		parsed bool
	)
	for _, secret := range e.Secrets {
		c := &Claims{}
		t, err := jwt.ParseWithClaims(token, c, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return secret, nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err == nil && t.Valid {
			claims = c
			parsed = true
			break
		}
	}
	if !parsed {
		return Result{}, ErrInvalidToken
	}

	if claims.Subject == "" || claims.Bucket == "" {
		return Result{}, ErrInvalidToken
	}
	if claims.ExpiresAt == nil || claims.ExpiresAt.Before(time.Now()) {
		return Result{}, ErrInvalidToken
	}

	if claims.Bucket != bucket {
		return Result{}, ErrBucketMismatch
	}

	return Result{Subject: claims.Subject, Bucket: claims.Bucket}, nil
}
