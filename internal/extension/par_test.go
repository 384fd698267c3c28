package extension

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dewonderstruck/vapor-oauth-sub001/internal/config"
	"github.com/dewonderstruck/vapor-oauth-sub001/internal/models"
	"github.com/dewonderstruck/vapor-oauth-sub001/internal/store"
	"github.com/dewonderstruck/vapor-oauth-sub001/internal/validator"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type parFixture struct {
	ext    *PARExtension
	router *gin.Engine
}

func newPARFixture(t *testing.T) *parFixture {
	t.Helper()

	clients := store.NewInMemoryClientStore()
	require.NoError(t, clients.RegisterClient(&models.OAuthClient{
		ClientID:         "web-app",
		RedirectURIs:     []string{"https://app.example.com/callback"},
		ValidScopes:      []string{"read"},
		AllowedGrantType: models.GrantTypeAuthorization,
	}))

	scopeValidator := validator.NewScopeValidator([]string{"read"})
	clientValidator := validator.NewClientValidator(clients, scopeValidator, false)
	cfg := &config.Config{
		BaseURL:              "https://auth.example.com",
		PARRequestExpiration: time.Minute,
	}

	ext := NewPARExtension(store.NewInMemoryPARStore(), clientValidator, cfg)
	require.NoError(t, ext.Initialize())

	router := gin.New()
	ext.AddRoutes(router.Group("/oauth"))
	return &parFixture{ext: ext, router: router}
}

func unmarshalBody(w *httptest.ResponseRecorder, v any) error {
	return json.Unmarshal(w.Body.Bytes(), v)
}

func (f *parFixture) push(form url.Values) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodPost, "/oauth/par", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, r)
	return w
}

func TestPAR_InitializeRequiresStore(t *testing.T) {
	ext := NewPARExtension(nil, nil, &config.Config{PARRequestExpiration: time.Minute})

	var extErr *Error
	require.ErrorAs(t, ext.Initialize(), &extErr)
	assert.Equal(t, ErrCodeConfiguration, extErr.Code)
}

func TestPAR_PushAndSubstitute(t *testing.T) {
	f := newPARFixture(t)

	w := f.push(url.Values{
		"client_id":     {"web-app"},
		"response_type": {"code"},
		"redirect_uri":  {"https://app.example.com/callback"},
		"scope":         {"read"},
		"state":         {"xyz"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))

	var created struct {
		RequestURI string `json:"request_uri"`
		ExpiresIn  int    `json:"expires_in"`
	}
	require.NoError(t, unmarshalBody(w, &created))
	assert.True(t, strings.HasPrefix(created.RequestURI, store.RequestURIPrefix))
	assert.Equal(t, 60, created.ExpiresIn)

	params, err := f.ext.ProcessAuthorizationRequest(nil, url.Values{
		"client_id":   {"web-app"},
		"request_uri": {created.RequestURI},
	})
	require.NoError(t, err)
	assert.Equal(t, "code", params.Get("response_type"))
	assert.Equal(t, "https://app.example.com/callback", params.Get("redirect_uri"))
	assert.Equal(t, "read", params.Get("scope"))
	assert.Equal(t, "xyz", params.Get("state"))
}

func TestPAR_RequestURIIsSingleUse(t *testing.T) {
	f := newPARFixture(t)

	w := f.push(url.Values{"client_id": {"web-app"}, "response_type": {"code"}})
	require.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		RequestURI string `json:"request_uri"`
	}
	require.NoError(t, unmarshalBody(w, &created))

	params := url.Values{"client_id": {"web-app"}, "request_uri": {created.RequestURI}}
	_, err := f.ext.ProcessAuthorizationRequest(nil, params)
	require.NoError(t, err)

	_, err = f.ext.ProcessAuthorizationRequest(nil, params)
	var extErr *Error
	require.ErrorAs(t, err, &extErr)
	assert.Equal(t, ErrCodeValidationFailed, extErr.Code)
}

func TestPAR_ClientBinding(t *testing.T) {
	f := newPARFixture(t)

	w := f.push(url.Values{"client_id": {"web-app"}, "response_type": {"code"}})
	require.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		RequestURI string `json:"request_uri"`
	}
	require.NoError(t, unmarshalBody(w, &created))

	_, err := f.ext.ProcessAuthorizationRequest(nil, url.Values{
		"client_id":   {"other-app"},
		"request_uri": {created.RequestURI},
	})
	var extErr *Error
	require.ErrorAs(t, err, &extErr)
	assert.Equal(t, ErrCodeValidationFailed, extErr.Code)
}

func TestPAR_UnknownRequestURI(t *testing.T) {
	f := newPARFixture(t)

	_, err := f.ext.ProcessAuthorizationRequest(nil, url.Values{
		"request_uri": {store.RequestURIPrefix + "nonexistent"},
	})
	var extErr *Error
	require.ErrorAs(t, err, &extErr)
	assert.Equal(t, ErrCodeInvalidParameter, extErr.Code)
}

func TestPAR_ForeignRequestURIFormatRejected(t *testing.T) {
	f := newPARFixture(t)

	_, err := f.ext.ProcessAuthorizationRequest(nil, url.Values{
		"request_uri": {"https://evil.example.com/request"},
	})
	assert.Error(t, err)
}

func TestPAR_NoRequestURIPassesThrough(t *testing.T) {
	f := newPARFixture(t)

	params, err := f.ext.ProcessAuthorizationRequest(nil, url.Values{
		"client_id": {"web-app"},
	})
	require.NoError(t, err)
	assert.Nil(t, params)
}

func TestPAR_PushRejectsNestedRequestURI(t *testing.T) {
	f := newPARFixture(t)

	w := f.push(url.Values{
		"client_id":     {"web-app"},
		"response_type": {"code"},
		"request_uri":   {store.RequestURIPrefix + "whatever"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPAR_PushRequiresKnownClient(t *testing.T) {
	f := newPARFixture(t)

	w := f.push(url.Values{"client_id": {"ghost"}, "response_type": {"code"}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPAR_PushNeverStoresClientSecret(t *testing.T) {
	f := newPARFixture(t)

	w := f.push(url.Values{
		"client_id":     {"web-app"},
		"client_secret": {"should-not-persist"},
		"response_type": {"code"},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		RequestURI string `json:"request_uri"`
	}
	require.NoError(t, unmarshalBody(w, &created))

	params, err := f.ext.ProcessAuthorizationRequest(nil, url.Values{
		"client_id":   {"web-app"},
		"request_uri": {created.RequestURI},
	})
	require.NoError(t, err)
	assert.Empty(t, params.Get("client_secret"))
}

func TestPAR_Metadata(t *testing.T) {
	f := newPARFixture(t)

	assert.Equal(t, "https://auth.example.com/oauth/par",
		f.ext.Metadata()["pushed_authorization_request_endpoint"])
}
