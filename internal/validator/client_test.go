package validator

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dewonderstruck/vapor-oauth-sub001/internal/models"
)

type fakeClientRetriever struct {
	clients map[string]*models.OAuthClient
}

func (f *fakeClientRetriever) GetClient(clientID string) (*models.OAuthClient, error) {
	client, ok := f.clients[clientID]
	if !ok {
		return nil, ErrInvalidClientID
	}
	return client, nil
}

func newTestValidator(t *testing.T, production bool, clients ...*models.OAuthClient) *ClientValidator {
	t.Helper()
	retriever := &fakeClientRetriever{clients: make(map[string]*models.OAuthClient)}
	for _, c := range clients {
		retriever.clients[c.ClientID] = c
	}
	return NewClientValidator(retriever, NewScopeValidator([]string{"read", "write", "admin"}), production)
}

func publicCodeClient() *models.OAuthClient {
	return &models.OAuthClient{
		ClientID:         "web-app",
		RedirectURIs:     []string{"https://app.example.com/callback"},
		ValidScopes:      []string{"read", "write"},
		AllowedGrantType: models.GrantTypeAuthorization,
	}
}

// ============================================================
// ValidateClient
// ============================================================

func TestValidateClient_Success(t *testing.T) {
	v := newTestValidator(t, false, publicCodeClient())

	client, err := v.ValidateClient(
		"web-app", ResponseTypeCode, "https://app.example.com/callback",
		[]string{"read"}, nil,
	)
	require.NoError(t, err)
	assert.Equal(t, "web-app", client.ClientID)
}

func TestValidateClient_UnknownClient(t *testing.T) {
	v := newTestValidator(t, false)

	_, err := v.ValidateClient("ghost", ResponseTypeCode, "https://x/cb", nil, nil)
	assert.ErrorIs(t, err, ErrInvalidClientID)
}

func TestValidateClient_RedirectURIMustMatchExactly(t *testing.T) {
	v := newTestValidator(t, false, publicCodeClient())

	_, err := v.ValidateClient(
		"web-app", ResponseTypeCode, "https://app.example.com/callback/extra", nil, nil,
	)
	assert.ErrorIs(t, err, ErrInvalidRedirectURI)

	_, err = v.ValidateClient(
		"web-app", ResponseTypeCode, "https://app.example.com/Callback", nil, nil,
	)
	assert.ErrorIs(t, err, ErrInvalidRedirectURI)
}

func TestValidateClient_ConfidentialClientCannotUseTokenResponseType(t *testing.T) {
	client := publicCodeClient()
	client.Confidential = true
	client.AllowedGrantType = models.GrantTypeImplicit
	v := newTestValidator(t, false, client)

	_, err := v.ValidateClient(
		"web-app", ResponseTypeToken, "https://app.example.com/callback", nil, nil,
	)
	assert.ErrorIs(t, err, ErrConfidentialClientTokenGrant)
}

func TestValidateClient_GrantGating(t *testing.T) {
	client := publicCodeClient()
	client.AllowedGrantType = models.GrantTypeClientCredentials
	v := newTestValidator(t, false, client)

	_, err := v.ValidateClient(
		"web-app", ResponseTypeCode, "https://app.example.com/callback", nil, nil,
	)
	assert.ErrorIs(t, err, ErrUnauthorizedClient)
}

func TestValidateClient_ProductionRejectsHTTPRedirect(t *testing.T) {
	client := publicCodeClient()
	client.RedirectURIs = []string{"http://app.example.com/callback"}
	v := newTestValidator(t, true, client)

	_, err := v.ValidateClient(
		"web-app", ResponseTypeCode, "http://app.example.com/callback", nil, nil,
	)
	assert.ErrorIs(t, err, ErrHTTPRedirectURI)
}

func TestValidateClient_DevelopmentAllowsHTTPRedirect(t *testing.T) {
	client := publicCodeClient()
	client.RedirectURIs = []string{"http://localhost:9090/callback"}
	v := newTestValidator(t, false, client)

	_, err := v.ValidateClient(
		"web-app", ResponseTypeCode, "http://localhost:9090/callback", nil, nil,
	)
	assert.NoError(t, err)
}

func TestValidateClient_OriginCheckedWhenDeclared(t *testing.T) {
	client := publicCodeClient()
	client.AuthorizedOrigins = []string{"*.example.com"}
	v := newTestValidator(t, false, client)

	r, _ := http.NewRequest(http.MethodGet, "https://auth.example.com/oauth/authorize", nil)
	r.Header.Set("Origin", "https://evil.com")

	_, err := v.ValidateClient(
		"web-app", ResponseTypeCode, "https://app.example.com/callback", nil, r,
	)
	assert.ErrorIs(t, err, ErrUnauthorizedOrigin)

	r.Header.Set("Origin", "https://app.example.com")
	_, err = v.ValidateClient(
		"web-app", ResponseTypeCode, "https://app.example.com/callback", nil, r,
	)
	assert.NoError(t, err)
}

// ============================================================
// AuthenticateClient
// ============================================================

func TestAuthenticateClient_BcryptSecret(t *testing.T) {
	hashed, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	client := &models.OAuthClient{
		ClientID:         "svc",
		ClientSecret:     string(hashed),
		Confidential:     true,
		AllowedGrantType: models.GrantTypeClientCredentials,
	}
	v := newTestValidator(t, false, client)

	_, err = v.AuthenticateClient("svc", "s3cret", models.GrantTypeClientCredentials, true)
	assert.NoError(t, err)

	_, err = v.AuthenticateClient("svc", "wrong", models.GrantTypeClientCredentials, true)
	assert.ErrorIs(t, err, ErrInvalidClientSecret)
}

func TestAuthenticateClient_PublicClientNeedsNoSecret(t *testing.T) {
	client := publicCodeClient()
	v := newTestValidator(t, false, client)

	_, err := v.AuthenticateClient("web-app", "", models.GrantTypeAuthorization, false)
	assert.NoError(t, err)
}

func TestAuthenticateClient_ConfidentialRequiredForClientCredentials(t *testing.T) {
	client := publicCodeClient()
	client.AllowedGrantType = models.GrantTypeClientCredentials
	v := newTestValidator(t, false, client)

	_, err := v.AuthenticateClient("web-app", "", models.GrantTypeClientCredentials, true)
	assert.ErrorIs(t, err, ErrClientNotConfidential)
}

func TestAuthenticateClient_PasswordGrantRequiresFirstParty(t *testing.T) {
	client := publicCodeClient()
	client.AllowedGrantType = models.GrantTypePassword
	v := newTestValidator(t, false, client)

	_, err := v.AuthenticateClient("web-app", "", models.GrantTypePassword, false)
	assert.ErrorIs(t, err, ErrClientNotFirstParty)
}

func TestAuthenticateClient_RefreshIsContinuationOfAuthorization(t *testing.T) {
	v := newTestValidator(t, false, publicCodeClient())

	// A client configured for the authorization grant may also refresh
	_, err := v.AuthenticateClient("web-app", "", models.GrantTypeRefresh, false)
	assert.NoError(t, err)
}

func TestAuthenticateClient_UnrelatedGrantStillRejected(t *testing.T) {
	v := newTestValidator(t, false, publicCodeClient())

	_, err := v.AuthenticateClient("web-app", "", models.GrantTypeDeviceCode, false)
	assert.ErrorIs(t, err, ErrUnauthorizedClient)
}
