package libauth_test

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/contenox/chatlog/libauth"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	mgr, err := libauth.NewManager("test-secret", time.Hour)
	require.NoError(t, err)

	token, err := mgr.CreateToken("admin")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	identity, err := mgr.VerifyToken(token)
	require.NoError(t, err)
	require.Equal(t, "admin", identity)
}

func TestVerifyToken_Expired(t *testing.T) {
	mgr, err := libauth.NewManager("test-secret", time.Millisecond)
	require.NoError(t, err)
	token, err := mgr.CreateToken("admin")
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	_, err = mgr.VerifyToken(token)
	require.ErrorIs(t, err, libauth.ErrTokenExpired)
}

func TestVerifyToken_WrongSecret(t *testing.T) {
	mgr1, err := libauth.NewManager("secret-one", time.Hour)
	require.NoError(t, err)
	mgr2, err := libauth.NewManager("secret-two", time.Hour)
	require.NoError(t, err)

	token, err := mgr1.CreateToken("admin")
	require.NoError(t, err)

	_, err = mgr2.VerifyToken(token)
	require.ErrorIs(t, err, libauth.ErrTokenParsingFailed)
}

func TestVerifyToken_Missing(t *testing.T) {
	mgr, err := libauth.NewManager("test-secret", time.Hour)
	require.NoError(t, err)

	_, err = mgr.VerifyToken("")
	require.ErrorIs(t, err, libauth.ErrTokenMissing)
}

func TestFromRequest(t *testing.T) {
	mgr, err := libauth.NewManager("test-secret", time.Hour)
	require.NoError(t, err)
	token, err := mgr.CreateToken("admin")
	require.NoError(t, err)

	r := httptest.NewRequest("GET", "/admin/conversations", nil)
	r.Header.Set("Authorization", "Bearer "+token)

	ctx, err := mgr.FromRequest(r)
	require.NoError(t, err)
	identity, ok := libauth.IdentityFromContext(ctx)
	require.True(t, ok)
	require.Equal(t, "admin", identity)
}

func TestFromRequest_NoHeader(t *testing.T) {
	mgr, err := libauth.NewManager("test-secret", time.Hour)
	require.NoError(t, err)

	r := httptest.NewRequest("GET", "/admin/conversations", nil)
	_, err = mgr.FromRequest(r)
	require.ErrorIs(t, err, libauth.ErrTokenMissing)
}
