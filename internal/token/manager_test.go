package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dewonderstruck/vapor-oauth-sub001/internal/models"
	"github.com/dewonderstruck/vapor-oauth-sub001/internal/store"
)

func newOpaque(t *testing.T) *OpaqueManager {
	t.Helper()
	return NewOpaqueManager(store.NewInMemoryTokenStore(), time.Hour, 0)
}

func newJWT(t *testing.T) *JWTManager {
	t.Helper()
	key, err := NewHMACKey("test-key", []byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	return NewJWTManager(
		NewKeyCollection(key),
		"https://auth.example.com",
		store.NewInMemoryTokenStore(),
		time.Hour, 0,
	)
}

// managers drives the same assertions across both implementations.
func managers(t *testing.T) map[string]Manager {
	return map[string]Manager{
		"opaque": newOpaque(t),
		"jwt":    newJWT(t),
	}
}

func TestManager_TokenPairIsDistinctAndResolvable(t *testing.T) {
	for name, m := range managers(t) {
		t.Run(name, func(t *testing.T) {
			access, refresh, err := m.GenerateTokenPair(Params{
				ClientID: "web-app",
				UserID:   "user-1",
				Scopes:   []string{"read", "write"},
			})
			require.NoError(t, err)
			assert.NotEmpty(t, access.TokenString)
			assert.NotEmpty(t, refresh.TokenString)
			assert.NotEqual(t, access.TokenString, refresh.TokenString)

			gotAccess, err := m.GetAccessToken(access.TokenString)
			require.NoError(t, err)
			assert.Equal(t, "user-1", gotAccess.UserID)
			assert.Equal(t, []string{"read", "write"}, gotAccess.Scopes)

			gotRefresh, err := m.GetRefreshToken(refresh.TokenString)
			require.NoError(t, err)
			assert.Equal(t, "web-app", gotRefresh.ClientID)
		})
	}
}

func TestManager_BareRefreshTokenIsRefreshCategory(t *testing.T) {
	for name, m := range managers(t) {
		t.Run(name, func(t *testing.T) {
			refresh, err := m.GenerateRefreshToken(Params{
				ClientID: "web-app",
				UserID:   "user-1",
				Scopes:   []string{"read"},
			})
			require.NoError(t, err)

			got, err := m.GetRefreshToken(refresh.TokenString)
			require.NoError(t, err)
			assert.Equal(t, models.TokenCategoryRefresh, got.TokenCategory)

			_, err = m.GetAccessToken(refresh.TokenString)
			assert.ErrorIs(t, err, ErrWrongCategory)
		})
	}
}

func TestManager_CategoryIsEnforced(t *testing.T) {
	for name, m := range managers(t) {
		t.Run(name, func(t *testing.T) {
			access, refresh, err := m.GenerateTokenPair(Params{ClientID: "web-app"})
			require.NoError(t, err)

			_, err = m.GetRefreshToken(access.TokenString)
			assert.ErrorIs(t, err, ErrWrongCategory)
			_, err = m.GetAccessToken(refresh.TokenString)
			assert.ErrorIs(t, err, ErrWrongCategory)
		})
	}
}

func TestManager_RevokedTokenIsRejected(t *testing.T) {
	for name, m := range managers(t) {
		t.Run(name, func(t *testing.T) {
			access, err := m.GenerateAccessToken(Params{ClientID: "web-app"})
			require.NoError(t, err)

			require.NoError(t, m.RevokeToken(access.TokenString))
			_, err = m.GetAccessToken(access.TokenString)
			assert.ErrorIs(t, err, ErrRevokedToken)
		})
	}
}

func TestManager_UnknownTokenIsInvalid(t *testing.T) {
	for name, m := range managers(t) {
		t.Run(name, func(t *testing.T) {
			_, err := m.GetAccessToken("nonexistent-token")
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestManager_RefreshScopeNarrowing(t *testing.T) {
	for name, m := range managers(t) {
		t.Run(name, func(t *testing.T) {
			_, refresh, err := m.GenerateTokenPair(Params{
				ClientID: "web-app",
				Scopes:   []string{"read", "write"},
			})
			require.NoError(t, err)

			require.NoError(t, m.UpdateRefreshTokenScopes(refresh.TokenString, []string{"read"}))
			got, err := m.GetRefreshToken(refresh.TokenString)
			require.NoError(t, err)
			assert.Equal(t, []string{"read"}, got.Scopes)
		})
	}
}

func TestJWTManager_ClaimsShape(t *testing.T) {
	m := newJWT(t)

	access, err := m.GenerateAccessToken(Params{
		ClientID: "web-app",
		UserID:   "user-1",
		Scopes:   []string{"read"},
	})
	require.NoError(t, err)

	parsed, err := jwt.Parse(access.TokenString, m.keys.Keyfunc)
	require.NoError(t, err)
	claims := parsed.Claims.(jwt.MapClaims)

	assert.Equal(t, "https://auth.example.com", claims["iss"])
	assert.Equal(t, "user-1", claims["sub"])
	assert.Equal(t, "web-app", claims["aud"])
	assert.Equal(t, "web-app", claims["client_id"])
	assert.Equal(t, "read", claims["scope"])
	assert.Equal(t, models.TokenCategoryAccess, claims["category"])
	assert.NotEmpty(t, claims["jti"])
	assert.Equal(t, "test-key", parsed.Header["kid"])
}

func TestJWTManager_ClientCredentialsSubject(t *testing.T) {
	m := newJWT(t)

	access, err := m.GenerateAccessToken(Params{ClientID: "svc"})
	require.NoError(t, err)

	parsed, err := jwt.Parse(access.TokenString, m.keys.Keyfunc)
	require.NoError(t, err)
	claims := parsed.Claims.(jwt.MapClaims)
	assert.Equal(t, "client:svc", claims["sub"])
}

func TestJWTManager_ForgedSignatureIsRejected(t *testing.T) {
	m := newJWT(t)

	otherKey, err := NewHMACKey("test-key", []byte("another-secret-another-secret-32"))
	require.NoError(t, err)
	forged, err := otherKey.Sign(jwt.MapClaims{"sub": "user-1"})
	require.NoError(t, err)

	_, err = m.GetAccessToken(forged)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestKeyCollection_ResolvesRotatedKeys(t *testing.T) {
	oldKey, err := NewHMACKey("2023", []byte("old-secret-old-secret-old-secret"))
	require.NoError(t, err)
	newKey, err := NewHMACKey("2024", []byte("new-secret-new-secret-new-secret"))
	require.NoError(t, err)

	signedWithOld, err := oldKey.Sign(jwt.MapClaims{"sub": "user-1"})
	require.NoError(t, err)

	keys := NewKeyCollection(newKey, oldKey)
	parsed, err := jwt.Parse(signedWithOld, keys.Keyfunc)
	require.NoError(t, err)
	assert.True(t, parsed.Valid)
}

func TestKeyCollection_UnknownKidIsRejected(t *testing.T) {
	strayKey, err := NewHMACKey("stray", []byte("stray-secret-stray-secret-stray!"))
	require.NoError(t, err)
	signed, err := strayKey.Sign(jwt.MapClaims{"sub": "user-1"})
	require.NoError(t, err)

	activeKey, err := NewHMACKey("active", []byte("active-secret-active-secret-act!"))
	require.NoError(t, err)
	keys := NewKeyCollection(activeKey)

	_, err = jwt.Parse(signed, keys.Keyfunc)
	assert.Error(t, err)
}

func TestOpaqueManager_NonExpiringRefreshToken(t *testing.T) {
	m := newOpaque(t)

	_, refresh, err := m.GenerateTokenPair(Params{ClientID: "web-app"})
	require.NoError(t, err)
	assert.True(t, refresh.ExpiresAt.IsZero())
	assert.False(t, refresh.IsExpired())
}
