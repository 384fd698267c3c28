package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dewonderstruck/vapor-oauth-sub001/internal/config"
	"github.com/dewonderstruck/vapor-oauth-sub001/internal/metrics"
	"github.com/dewonderstruck/vapor-oauth-sub001/internal/models"
	"github.com/dewonderstruck/vapor-oauth-sub001/internal/store"
	"github.com/dewonderstruck/vapor-oauth-sub001/internal/token"
	"github.com/dewonderstruck/vapor-oauth-sub001/internal/validator"
)

type fakeUserVerifier struct{}

func (fakeUserVerifier) AuthenticateUser(username, password string) (string, error) {
	if username == "alice" && password == "hunter2" {
		return "user-alice", nil
	}
	return "", errors.New("unknown user")
}

type tokenFixture struct {
	svc         *TokenService
	deviceCodes *store.InMemoryDeviceCodeManager
	cfg         *config.Config
}

func newTokenFixture(t *testing.T, rotation bool, clients ...*models.OAuthClient) *tokenFixture {
	t.Helper()

	clientStore := store.NewInMemoryClientStore()
	for _, c := range clients {
		require.NoError(t, clientStore.RegisterClient(c))
	}

	scopeValidator := validator.NewScopeValidator([]string{"read", "write", "admin"})
	clientValidator := validator.NewClientValidator(clientStore, scopeValidator, false)
	cfg := &config.Config{
		AccessTokenExpiration: time.Hour,
		EnableTokenRotation:   rotation,
		PollingInterval:       5,
	}
	deviceCodes := store.NewInMemoryDeviceCodeManager()
	tokens := token.NewOpaqueManager(store.NewInMemoryTokenStore(), time.Hour, 0)

	return &tokenFixture{
		svc: NewTokenService(
			tokens, deviceCodes, clientValidator, scopeValidator,
			fakeUserVerifier{}, cfg, metrics.NewNoopMetrics(),
		),
		deviceCodes: deviceCodes,
		cfg:         cfg,
	}
}

func confidentialClient(t *testing.T, grantType string) *models.OAuthClient {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	return &models.OAuthClient{
		ClientID:         "svc",
		ClientSecret:     string(hashed),
		ValidScopes:      []string{"read", "write"},
		Confidential:     true,
		AllowedGrantType: grantType,
	}
}

// ============================================================
// Client credentials grant
// ============================================================

func TestClientCredentials_Success(t *testing.T) {
	f := newTokenFixture(t, false, confidentialClient(t, models.GrantTypeClientCredentials))

	access, err := f.svc.IssueClientCredentialsToken(context.Background(), "svc", "s3cret", "read")
	require.NoError(t, err)
	assert.Equal(t, "svc", access.ClientID)
	assert.Empty(t, access.UserID)
	assert.Equal(t, []string{"read"}, access.Scopes)
}

func TestClientCredentials_EmptyScopeDefaultsToClientScopes(t *testing.T) {
	f := newTokenFixture(t, false, confidentialClient(t, models.GrantTypeClientCredentials))

	access, err := f.svc.IssueClientCredentialsToken(context.Background(), "svc", "s3cret", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"read", "write"}, access.Scopes)
}

func TestClientCredentials_PublicClientRejected(t *testing.T) {
	client := &models.OAuthClient{
		ClientID:         "public-app",
		ValidScopes:      []string{"read"},
		AllowedGrantType: models.GrantTypeClientCredentials,
	}
	f := newTokenFixture(t, false, client)

	_, err := f.svc.IssueClientCredentialsToken(context.Background(), "public-app", "", "read")
	assert.ErrorIs(t, err, validator.ErrClientNotConfidential)
}

func TestClientCredentials_UngrantedScopeRejected(t *testing.T) {
	f := newTokenFixture(t, false, confidentialClient(t, models.GrantTypeClientCredentials))

	_, err := f.svc.IssueClientCredentialsToken(context.Background(), "svc", "s3cret", "admin")
	var scopeErr *validator.ScopeError
	assert.ErrorAs(t, err, &scopeErr)
}

// ============================================================
// Refresh token grant
// ============================================================

func refreshSetup(t *testing.T, rotation bool) (*tokenFixture, string) {
	t.Helper()
	client := confidentialClient(t, models.GrantTypeAuthorization)
	client.ClientID = "web-app"
	f := newTokenFixture(t, rotation, client)

	_, refresh, err := f.svc.ExchangeAuthorizationCode(context.Background(), &models.AuthorizationCode{
		ClientID: "web-app",
		UserID:   "user-1",
		Scopes:   []string{"read", "write"},
	})
	require.NoError(t, err)
	return f, refresh.TokenString
}

func TestRefresh_Success(t *testing.T) {
	f, refreshString := refreshSetup(t, false)

	access, refresh, err := f.svc.RefreshAccessToken(
		context.Background(), refreshString, "web-app", "s3cret", "",
	)
	require.NoError(t, err)
	assert.Equal(t, "user-1", access.UserID)
	assert.Equal(t, []string{"read", "write"}, access.Scopes)

	// Without rotation the original refresh token is returned unchanged
	assert.Equal(t, refreshString, refresh.TokenString)
}

func TestRefresh_ScopeNarrowingSticks(t *testing.T) {
	f, refreshString := refreshSetup(t, false)

	access, _, err := f.svc.RefreshAccessToken(
		context.Background(), refreshString, "web-app", "s3cret", "read",
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"read"}, access.Scopes)

	// Narrowing is recorded: the dropped scope cannot come back
	_, _, err = f.svc.RefreshAccessToken(
		context.Background(), refreshString, "web-app", "s3cret", "write",
	)
	assert.ErrorIs(t, err, ErrInvalidScope)
}

func TestRefresh_ScopeWideningRejected(t *testing.T) {
	f, refreshString := refreshSetup(t, false)

	_, _, err := f.svc.RefreshAccessToken(
		context.Background(), refreshString, "web-app", "s3cret", "read write admin",
	)
	assert.ErrorIs(t, err, ErrInvalidScope)
}

func TestRefresh_OtherClientsTokenRejected(t *testing.T) {
	owner := confidentialClient(t, models.GrantTypeAuthorization)
	owner.ClientID = "web-app"
	other := confidentialClient(t, models.GrantTypeAuthorization)
	other.ClientID = "other-app"
	f := newTokenFixture(t, false, owner, other)

	_, refresh, err := f.svc.ExchangeAuthorizationCode(context.Background(), &models.AuthorizationCode{
		ClientID: "web-app",
		UserID:   "user-1",
		Scopes:   []string{"read"},
	})
	require.NoError(t, err)

	_, _, err = f.svc.RefreshAccessToken(
		context.Background(), refresh.TokenString, "other-app", "s3cret", "",
	)
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestRefresh_RotationRevokesOldToken(t *testing.T) {
	f, refreshString := refreshSetup(t, true)

	_, rotated, err := f.svc.RefreshAccessToken(
		context.Background(), refreshString, "web-app", "s3cret", "",
	)
	require.NoError(t, err)
	require.NotEqual(t, refreshString, rotated.TokenString)

	// The old refresh token is dead; the rotated one works
	_, _, err = f.svc.RefreshAccessToken(
		context.Background(), refreshString, "web-app", "s3cret", "",
	)
	assert.Error(t, err)

	_, _, err = f.svc.RefreshAccessToken(
		context.Background(), rotated.TokenString, "web-app", "s3cret", "",
	)
	assert.NoError(t, err)
}

// mintCountingManager records how many tokens each mint path creates.
type mintCountingManager struct {
	token.Manager
	accessMints  int
	refreshMints int
	pairMints    int
}

func (m *mintCountingManager) GenerateAccessToken(p token.Params) (*models.AccessToken, error) {
	m.accessMints++
	return m.Manager.GenerateAccessToken(p)
}

func (m *mintCountingManager) GenerateRefreshToken(p token.Params) (*models.AccessToken, error) {
	m.refreshMints++
	return m.Manager.GenerateRefreshToken(p)
}

func (m *mintCountingManager) GenerateTokenPair(p token.Params) (*models.AccessToken, *models.AccessToken, error) {
	m.pairMints++
	return m.Manager.GenerateTokenPair(p)
}

func TestRefresh_RotationMintsNoOrphanAccessToken(t *testing.T) {
	client := confidentialClient(t, models.GrantTypeAuthorization)
	client.ClientID = "web-app"
	clientStore := store.NewInMemoryClientStore()
	require.NoError(t, clientStore.RegisterClient(client))

	scopeValidator := validator.NewScopeValidator([]string{"read", "write"})
	clientValidator := validator.NewClientValidator(clientStore, scopeValidator, false)
	counting := &mintCountingManager{
		Manager: token.NewOpaqueManager(store.NewInMemoryTokenStore(), time.Hour, 0),
	}
	cfg := &config.Config{
		AccessTokenExpiration: time.Hour,
		EnableTokenRotation:   true,
		PollingInterval:       5,
	}
	svc := NewTokenService(
		counting, store.NewInMemoryDeviceCodeManager(), clientValidator,
		scopeValidator, nil, cfg, metrics.NewNoopMetrics(),
	)

	_, refresh, err := svc.ExchangeAuthorizationCode(context.Background(), &models.AuthorizationCode{
		ClientID: "web-app",
		UserID:   "user-1",
		Scopes:   []string{"read"},
	})
	require.NoError(t, err)
	counting.accessMints, counting.refreshMints, counting.pairMints = 0, 0, 0

	_, _, err = svc.RefreshAccessToken(
		context.Background(), refresh.TokenString, "web-app", "s3cret", "",
	)
	require.NoError(t, err)

	// One access token for the exchange, one refresh token for rotation,
	// nothing minted and thrown away
	assert.Equal(t, 1, counting.accessMints)
	assert.Equal(t, 1, counting.refreshMints)
	assert.Zero(t, counting.pairMints)
}

// ============================================================
// Password grant
// ============================================================

func TestPasswordGrant_Success(t *testing.T) {
	client := confidentialClient(t, models.GrantTypePassword)
	client.FirstParty = true
	f := newTokenFixture(t, false, client)

	access, refresh, err := f.svc.IssuePasswordGrantTokens(
		context.Background(), "svc", "s3cret", "alice", "hunter2", "read",
	)
	require.NoError(t, err)
	assert.Equal(t, "user-alice", access.UserID)
	assert.Equal(t, "alice", access.Username)
	require.NotNil(t, refresh)
}

func TestPasswordGrant_WrongUserCredentials(t *testing.T) {
	client := confidentialClient(t, models.GrantTypePassword)
	client.FirstParty = true
	f := newTokenFixture(t, false, client)

	_, _, err := f.svc.IssuePasswordGrantTokens(
		context.Background(), "svc", "s3cret", "alice", "wrong", "read",
	)
	assert.ErrorIs(t, err, ErrInvalidUserCredentials)
}

func TestPasswordGrant_ThirdPartyClientRejected(t *testing.T) {
	f := newTokenFixture(t, false, confidentialClient(t, models.GrantTypePassword))

	_, _, err := f.svc.IssuePasswordGrantTokens(
		context.Background(), "svc", "s3cret", "alice", "hunter2", "read",
	)
	assert.ErrorIs(t, err, validator.ErrClientNotFirstParty)
}

// ============================================================
// Revocation
// ============================================================

func TestRevoke_OwnTokenIsInvalidatedAfterwards(t *testing.T) {
	client := confidentialClient(t, models.GrantTypeClientCredentials)
	f := newTokenFixture(t, false, client)

	access, err := f.svc.IssueClientCredentialsToken(context.Background(), "svc", "s3cret", "read")
	require.NoError(t, err)

	require.NoError(t, f.svc.RevokeToken(context.Background(), access.TokenString, "", "svc", "s3cret"))
	_, err = f.svc.Manager().GetAccessToken(access.TokenString)
	assert.ErrorIs(t, err, token.ErrRevokedToken)
}

func TestRevoke_RefreshTokenHintChecksRefreshTokensFirst(t *testing.T) {
	f := newTokenFixture(t, false, confidentialClient(t, models.GrantTypeClientCredentials))

	_, refresh, err := f.svc.Manager().GenerateTokenPair(token.Params{ClientID: "svc"})
	require.NoError(t, err)

	require.NoError(t, f.svc.RevokeToken(
		context.Background(), refresh.TokenString, "refresh_token", "svc", "s3cret",
	))
	_, err = f.svc.Manager().GetRefreshToken(refresh.TokenString)
	assert.ErrorIs(t, err, token.ErrRevokedToken)
}

func TestRevoke_MismatchedHintStillRevokes(t *testing.T) {
	f := newTokenFixture(t, false, confidentialClient(t, models.GrantTypeClientCredentials))

	access, err := f.svc.IssueClientCredentialsToken(context.Background(), "svc", "s3cret", "read")
	require.NoError(t, err)

	// RFC 7009 §2.1: the search extends beyond the hinted type
	require.NoError(t, f.svc.RevokeToken(
		context.Background(), access.TokenString, "refresh_token", "svc", "s3cret",
	))
	_, err = f.svc.Manager().GetAccessToken(access.TokenString)
	assert.ErrorIs(t, err, token.ErrRevokedToken)
}

func TestRevoke_UnknownTokenReportsSuccess(t *testing.T) {
	f := newTokenFixture(t, false, confidentialClient(t, models.GrantTypeClientCredentials))

	assert.NoError(t, f.svc.RevokeToken(context.Background(), "nonexistent", "", "svc", "s3cret"))
}

func TestRevoke_OtherClientsTokenReportsSuccessWithoutRevoking(t *testing.T) {
	svc := confidentialClient(t, models.GrantTypeClientCredentials)
	other := confidentialClient(t, models.GrantTypeClientCredentials)
	other.ClientID = "other-svc"
	f := newTokenFixture(t, false, svc, other)

	access, err := f.svc.IssueClientCredentialsToken(context.Background(), "svc", "s3cret", "read")
	require.NoError(t, err)

	require.NoError(t, f.svc.RevokeToken(context.Background(), access.TokenString, "", "other-svc", "s3cret"))

	// The token still resolves: revocation never acts across clients
	_, err = f.svc.Manager().GetAccessToken(access.TokenString)
	assert.NoError(t, err)
}

func TestRevoke_BadClientCredentialsPropagate(t *testing.T) {
	f := newTokenFixture(t, false, confidentialClient(t, models.GrantTypeClientCredentials))

	err := f.svc.RevokeToken(context.Background(), "whatever", "", "svc", "wrong")
	assert.ErrorIs(t, err, validator.ErrInvalidClientSecret)
}

// ============================================================
// Device code exchange
// ============================================================

func deviceClient() *models.OAuthClient {
	return &models.OAuthClient{
		ClientID:         "tv-app",
		ValidScopes:      []string{"read"},
		AllowedGrantType: models.GrantTypeDeviceCode,
	}
}

func mintDeviceCode(t *testing.T, f *tokenFixture, interval int) *models.DeviceCode {
	t.Helper()
	dc, err := f.deviceCodes.GenerateDeviceCode(store.DeviceCodeParams{
		ClientID:        "tv-app",
		Scopes:          []string{"read"},
		VerificationURI: "https://auth.example.com/device",
		Interval:        interval,
	}, 5*time.Minute)
	require.NoError(t, err)
	return dc
}

func TestDeviceExchange_PendingCode(t *testing.T) {
	f := newTokenFixture(t, false, deviceClient())
	dc := mintDeviceCode(t, f, 5)

	_, _, err := f.svc.ExchangeDeviceCode(context.Background(), dc.DeviceCode, "tv-app")
	assert.ErrorIs(t, err, ErrAuthorizationPending)
}

func TestDeviceExchange_PrematurePollSlowsDown(t *testing.T) {
	f := newTokenFixture(t, false, deviceClient())
	dc := mintDeviceCode(t, f, 5)

	// Simulate a poll that just happened
	require.NoError(t, f.deviceCodes.UpdateLastPolled(dc.DeviceCode, time.Now()))

	_, _, err := f.svc.ExchangeDeviceCode(context.Background(), dc.DeviceCode, "tv-app")
	assert.ErrorIs(t, err, ErrSlowDown)

	fetched, err := f.deviceCodes.GetDeviceCode(dc.DeviceCode)
	require.NoError(t, err)
	assert.Equal(t, 5+slowDownIncrement, fetched.Interval)

	// Repeated premature polls keep growing the interval
	_, _, err = f.svc.ExchangeDeviceCode(context.Background(), dc.DeviceCode, "tv-app")
	require.ErrorIs(t, err, ErrSlowDown)
	fetched, err = f.deviceCodes.GetDeviceCode(dc.DeviceCode)
	require.NoError(t, err)
	assert.Equal(t, 5+2*slowDownIncrement, fetched.Interval)
}

func TestDeviceExchange_AuthorizedCodeIsSingleUse(t *testing.T) {
	f := newTokenFixture(t, false, deviceClient())
	dc := mintDeviceCode(t, f, 1)

	require.NoError(t, f.deviceCodes.AuthorizeDeviceCode(dc.UserCode, "user-7"))
	// Pretend the last poll was long enough ago
	require.NoError(t, f.deviceCodes.UpdateLastPolled(dc.DeviceCode, time.Now().Add(-time.Minute)))

	access, refresh, err := f.svc.ExchangeDeviceCode(context.Background(), dc.DeviceCode, "tv-app")
	require.NoError(t, err)
	assert.Equal(t, "user-7", access.UserID)
	assert.Equal(t, []string{"read"}, access.Scopes)
	require.NotNil(t, refresh)

	// The consumed code is gone; a replay looks expired
	_, _, err = f.svc.ExchangeDeviceCode(context.Background(), dc.DeviceCode, "tv-app")
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestDeviceExchange_DeclinedCode(t *testing.T) {
	f := newTokenFixture(t, false, deviceClient())
	dc := mintDeviceCode(t, f, 1)

	require.NoError(t, f.deviceCodes.DeclineDeviceCode(dc.UserCode))
	require.NoError(t, f.deviceCodes.UpdateLastPolled(dc.DeviceCode, time.Now().Add(-time.Minute)))

	_, _, err := f.svc.ExchangeDeviceCode(context.Background(), dc.DeviceCode, "tv-app")
	assert.ErrorIs(t, err, ErrAccessDenied)

	// A declined code is removed on first observation
	_, _, err = f.svc.ExchangeDeviceCode(context.Background(), dc.DeviceCode, "tv-app")
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestDeviceExchange_ClientMismatch(t *testing.T) {
	f := newTokenFixture(t, false, deviceClient())
	dc := mintDeviceCode(t, f, 5)

	_, _, err := f.svc.ExchangeDeviceCode(context.Background(), dc.DeviceCode, "other-app")
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestDeviceExchange_UnknownCode(t *testing.T) {
	f := newTokenFixture(t, false, deviceClient())

	_, _, err := f.svc.ExchangeDeviceCode(context.Background(), "nonexistent", "tv-app")
	assert.ErrorIs(t, err, ErrExpiredToken)
}
