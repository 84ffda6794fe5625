package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTokenRoundtrip(t *testing.T) {
	svc := NewService(nil, "pointstock", []byte("test-secret"), time.Hour)

	token, err := svc.signToken("user-42")
	require.NoError(t, err)

	userID, err := svc.ParseToken(token)
	require.NoError(t, err)
	require.Equal(t, "user-42", userID)
}

func TestParseToken_WrongSecret(t *testing.T) {
	signer := NewService(nil, "pointstock", []byte("secret-a"), time.Hour)
	verifier := NewService(nil, "pointstock", []byte("secret-b"), time.Hour)

	token, err := signer.signToken("user-42")
	require.NoError(t, err)

	_, err = verifier.ParseToken(token)
	require.Error(t, err)
}

func TestParseToken_WrongIssuer(t *testing.T) {
	signer := NewService(nil, "someone-else", []byte("test-secret"), time.Hour)
	verifier := NewService(nil, "pointstock", []byte("test-secret"), time.Hour)

	token, err := signer.signToken("user-42")
	require.NoError(t, err)

	_, err = verifier.ParseToken(token)
	require.Error(t, err)
}

func TestParseToken_Expired(t *testing.T) {
	svc := NewService(nil, "pointstock", []byte("test-secret"), -time.Minute)

	token, err := svc.signToken("user-42")
	require.NoError(t, err)

	_, err = svc.ParseToken(token)
	require.Error(t, err)
}

func TestParseToken_Garbage(t *testing.T) {
	svc := NewService(nil, "pointstock", []byte("test-secret"), time.Hour)
	_, err := svc.ParseToken("not-a-token")
	require.Error(t, err)
}
