package validator

import (
	"crypto/subtle"
	"net/http"
	"net/url"
	"strings"

	"github.com/dewonderstruck/vapor-oauth-sub001/internal/models"

	"golang.org/x/crypto/bcrypt"
)

// Response types at the authorization endpoint (RFC 6749 §3.1.1).
const (
	ResponseTypeCode  = "code"
	ResponseTypeToken = "token" // implicit, deprecated
)

// ClientRetriever is the lookup the validator needs; satisfied by
// store.ClientRetriever.
type ClientRetriever interface {
	GetClient(clientID string) (*models.OAuthClient, error)
}

// ClientValidator enforces client-level rules for the authorization and
// token endpoints: registration, redirect URI matching, grant gating,
// secret authentication, and browser-origin checking.
type ClientValidator struct {
	retriever      ClientRetriever
	scopeValidator *ScopeValidator
	production     bool
}

func NewClientValidator(
	retriever ClientRetriever,
	scopeValidator *ScopeValidator,
	production bool,
) *ClientValidator {
	return &ClientValidator{
		retriever:      retriever,
		scopeValidator: scopeValidator,
		production:     production,
	}
}

// ValidateClient validates an authorization-endpoint request. The request
// parameter supplies the Origin header for clients that declare
// authorizedOrigins; it may be nil when origin checking is not wanted.
func (v *ClientValidator) ValidateClient(
	clientID, responseType, redirectURI string,
	scopes []string,
	r *http.Request,
) (*models.OAuthClient, error) {
	client, err := v.retriever.GetClient(clientID)
	if err != nil {
		return nil, ErrInvalidClientID
	}

	if responseType == ResponseTypeToken && client.Confidential {
		return nil, ErrConfidentialClientTokenGrant
	}

	if !client.HasRedirectURI(redirectURI) {
		return nil, ErrInvalidRedirectURI
	}
	if v.production {
		parsed, err := url.Parse(redirectURI)
		if err != nil || parsed.Scheme != "https" {
			return nil, ErrHTTPRedirectURI
		}
	}

	requiredGrant := models.GrantTypeAuthorization
	if responseType == ResponseTypeToken {
		requiredGrant = models.GrantTypeImplicit
	}
	if !client.AllowsGrant(requiredGrant) {
		return nil, ErrUnauthorizedClient
	}

	if err := v.scopeValidator.ValidateScope(client, scopes); err != nil {
		return nil, err
	}

	if len(client.AuthorizedOrigins) > 0 && r != nil {
		if err := v.validateRequestOrigin(client, r); err != nil {
			return nil, err
		}
	}

	return client, nil
}

// AuthenticateClient authenticates a client at the token, revocation or
// PAR endpoint and checks its configured grant. checkConfidential demands
// a confidential client (client_credentials grant).
func (v *ClientValidator) AuthenticateClient(
	clientID, clientSecret, grantType string,
	checkConfidential bool,
) (*models.OAuthClient, error) {
	client, err := v.retriever.GetClient(clientID)
	if err != nil {
		return nil, ErrInvalidClientID
	}

	if checkConfidential && !client.Confidential {
		return nil, ErrClientNotConfidential
	}
	if grantType == models.GrantTypePassword && !client.FirstParty {
		return nil, ErrClientNotFirstParty
	}
	if grantType != "" && !client.AllowsGrant(grantType) {
		// Refresh exchanges are a continuation of the original grant, so
		// clients configured for the authorization grant may refresh.
		refreshContinuation := grantType == models.GrantTypeRefresh &&
			client.AllowsGrant(models.GrantTypeAuthorization)
		if !refreshContinuation {
			return nil, ErrUnauthorizedClient
		}
	}

	if client.Confidential || client.ClientSecret != "" {
		if !verifyClientSecret(client.ClientSecret, clientSecret) {
			return nil, ErrInvalidClientSecret
		}
	}

	return client, nil
}

// ValidateRequestOrigin applies origin checking outside the authorization
// endpoint (device authorization, when a browser is detected).
func (v *ClientValidator) ValidateRequestOrigin(
	client *models.OAuthClient,
	r *http.Request,
) error {
	if len(client.AuthorizedOrigins) == 0 {
		return nil
	}
	return v.validateRequestOrigin(client, r)
}

func (v *ClientValidator) validateRequestOrigin(
	client *models.OAuthClient,
	r *http.Request,
) error {
	origin := ExtractOrigin(r)
	if origin == "" {
		return ErrMissingOrigin
	}
	if !ValidateOrigin(origin, client.AuthorizedOrigins) {
		return ErrUnauthorizedOrigin
	}
	return nil
}

// verifyClientSecret compares the presented secret against the stored
// value: bcrypt when the stored form is a bcrypt hash, constant-time
// equality otherwise.
func verifyClientSecret(storedSecret, presentedSecret string) bool {
	if storedSecret == "" || presentedSecret == "" {
		return false
	}
	if strings.HasPrefix(storedSecret, "$2a$") ||
		strings.HasPrefix(storedSecret, "$2b$") ||
		strings.HasPrefix(storedSecret, "$2y$") {
		return bcrypt.CompareHashAndPassword([]byte(storedSecret), []byte(presentedSecret)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(storedSecret), []byte(presentedSecret)) == 1
}
