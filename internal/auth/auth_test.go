package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func sign(t *testing.T, secret []byte, sub, bucket string, expiresIn time.Duration) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":    sub,
		"bucket": bucket,
		"exp":    time.Now().Add(expiresIn).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)
	return token
}

func TestExtractTokenBearer(t *testing.T) {
	token, ok := ExtractToken("Bearer abc.def.ghi")
	require.True(t, ok)
	require.Equal(t, "abc.def.ghi", token)
}

func TestExtractTokenAWS4CredentialField(t *testing.T) {
	header := "AWS4-HMAC-SHA256 Credential=abc.def.ghi/20240101/auto/s3/aws4_request, SignedHeaders=host, Signature=deadbeef"
	token, ok := ExtractToken(header)
	require.True(t, ok)
	require.Equal(t, "abc.def.ghi", token)
}

func TestExtractTokenMissing(t *testing.T) {
	_, ok := ExtractToken("")
	require.False(t, ok)
	_, ok = ExtractToken("Basic dXNlcjpwYXNz")
	require.False(t, ok)
}

func TestAuthenticateValidToken(t *testing.T) {
	secret := []byte("s3cr3t")
	e := NewEngine([][]byte{secret}, false)

	token := sign(t, secret, "alice", "my-bucket", time.Hour)
	result, err := e.Authenticate(token, "my-bucket")
	require.NoError(t, err)
	require.Equal(t, "alice", result.Subject)
	require.Equal(t, "my-bucket", result.Bucket)
}

func TestAuthenticateExpiredToken(t *testing.T) {
	secret := []byte("s3cr3t")
	e := NewEngine([][]byte{secret}, false)

	token := sign(t, secret, "alice", "my-bucket", -time.Hour)
	_, err := e.Authenticate(token, "my-bucket")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthenticateBucketMismatch(t *testing.T) {
	secret := []byte("s3cr3t")
	e := NewEngine([][]byte{secret}, false)

	token := sign(t, secret, "alice", "other-bucket", time.Hour)
	_, err := e.Authenticate(token, "my-bucket")
	require.ErrorIs(t, err, ErrBucketMismatch)
}

func TestAuthenticateWrongSecret(t *testing.T) {
	e := NewEngine([][]byte{[]byte("s3cr3t")}, false)

	token := sign(t, []byte("wrong-secret"), "alice", "my-bucket", time.Hour)
	_, err := e.Authenticate(token, "my-bucket")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthenticateSecretRotation(t *testing.T) {
	oldSecret := []byte("old")
	newSecret := []byte("new")
	e := NewEngine([][]byte{newSecret, oldSecret}, false)

	token := sign(t, oldSecret, "alice", "my-bucket", time.Hour)
	result, err := e.Authenticate(token, "my-bucket")
	require.NoError(t, err)
	require.Equal(t, "alice", result.Subject)
}

func TestAuthenticateDevBypass(t *testing.T) {
	e := NewEngine(nil, true)
	result, err := e.Authenticate(DevBypassToken, "any-bucket")
	require.NoError(t, err)
	require.Equal(t, "any-bucket", result.Bucket)
}

func TestAuthenticateDevBypassDisabled(t *testing.T) {
	e := NewEngine(nil, false)
	_, err := e.Authenticate(DevBypassToken, "any-bucket")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthenticateMalformedToken(t *testing.T) {
	e := NewEngine([][]byte{[]byte("s3cr3t")}, false)
	_, err := e.Authenticate("not-a-jwt", "bucket")
	require.ErrorIs(t, err, ErrInvalidToken)
}
