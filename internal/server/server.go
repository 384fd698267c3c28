// Package server is the facade that wires validators, stores, services,
// handlers and extensions into one OAuth authorization server and exposes
// its endpoint set to the hosting gin engine.
package server

import (
	"context"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dewonderstruck/vapor-oauth-sub001/internal/config"
	"github.com/dewonderstruck/vapor-oauth-sub001/internal/extension"
	"github.com/dewonderstruck/vapor-oauth-sub001/internal/handlers"
	"github.com/dewonderstruck/vapor-oauth-sub001/internal/metrics"
	"github.com/dewonderstruck/vapor-oauth-sub001/internal/models"
	"github.com/dewonderstruck/vapor-oauth-sub001/internal/services"
	"github.com/dewonderstruck/vapor-oauth-sub001/internal/store"
	"github.com/dewonderstruck/vapor-oauth-sub001/internal/token"
	"github.com/dewonderstruck/vapor-oauth-sub001/internal/validator"
)

// Options collects the collaborators a deployment injects. Config,
// Clients, Codes and Tokens are required; everything else enables an
// optional capability when present.
type Options struct {
	Config *config.Config

	Clients store.ClientRetriever
	Codes   store.CodeManager
	Tokens  token.Manager

	// DeviceCodes enables the device authorization grant.
	DeviceCodes store.DeviceCodeManager

	// ResourceServers enables the introspection endpoint.
	ResourceServers store.ResourceServerRetriever

	// Users enables the deprecated password grant.
	Users store.UserVerifier

	// AuthorizeHandler renders consent UI; a JSON fallback is used when
	// nil so headless deployments still function.
	AuthorizeHandler handlers.AuthorizeHandler

	// MetadataProvider overrides the built-in discovery document.
	MetadataProvider handlers.ServerMetadataProvider

	// Extensions are registered in order; order decides pipeline order.
	Extensions []extension.OAuthExtension

	// Metrics defaults to the Prometheus recorder when Config enables
	// metrics, and to a no-op recorder otherwise.
	Metrics metrics.Recorder
}

// Server is the wired authorization-server engine.
type Server struct {
	config     *config.Config
	extensions *extension.Manager

	authorizationService *services.AuthorizationService
	tokenService         *services.TokenService
	deviceService        *services.DeviceService
	introspectionService *services.IntrospectionService

	authorizationHandler *handlers.AuthorizationHandler
	tokenHandler         *handlers.TokenHandler
	deviceHandler        *handlers.DeviceAuthorizationHandler
	revocationHandler    *handlers.TokenRevocationHandler
	introspectionHandler *handlers.TokenIntrospectionHandler
	metadataHandler      *handlers.MetadataHandler
}

func New(opts Options) (*Server, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}
	if opts.Clients == nil || opts.Codes == nil || opts.Tokens == nil {
		return nil, fmt.Errorf("client, code and token stores are required")
	}

	recorder := opts.Metrics
	if recorder == nil {
		recorder = metrics.Init(opts.Config.MetricsEnabled)
	}

	scopeValidator := validator.NewScopeValidator(opts.Config.ValidScopes)
	clientValidator := validator.NewClientValidator(
		opts.Clients, scopeValidator, opts.Config.IsProduction(),
	)

	extManager := extension.NewManager(recorder)
	for _, ext := range opts.Extensions {
		if err := extManager.Register(ext); err != nil {
			return nil, err
		}
	}

	s := &Server{
		config:     opts.Config,
		extensions: extManager,
	}

	s.authorizationService = services.NewAuthorizationService(
		opts.Codes, clientValidator, opts.Config, recorder,
	)
	s.tokenService = services.NewTokenService(
		opts.Tokens, opts.DeviceCodes, clientValidator, scopeValidator,
		opts.Users, opts.Config, recorder,
	)

	delegate := opts.AuthorizeHandler
	if delegate == nil {
		delegate = jsonAuthorizeHandler{}
	}
	s.authorizationHandler = handlers.NewAuthorizationHandler(
		s.authorizationService, s.tokenService, extManager, delegate,
	)
	s.tokenHandler = handlers.NewTokenHandler(
		s.tokenService, s.authorizationService, extManager,
	)
	s.revocationHandler = handlers.NewTokenRevocationHandler(s.tokenService)

	if opts.DeviceCodes != nil {
		s.deviceService = services.NewDeviceService(
			opts.DeviceCodes, clientValidator, scopeValidator, opts.Config, recorder,
		)
		s.deviceHandler = handlers.NewDeviceAuthorizationHandler(s.deviceService)
	}

	if opts.ResourceServers != nil {
		s.introspectionService = services.NewIntrospectionService(
			opts.Tokens, opts.ResourceServers, recorder,
		)
		s.introspectionHandler = handlers.NewTokenIntrospectionHandler(s.introspectionService)
	}

	provider := opts.MetadataProvider
	if provider == nil {
		provider = &defaultMetadataProvider{
			config:        opts.Config,
			extensions:    extManager,
			deviceGrant:   opts.DeviceCodes != nil,
			introspection: opts.ResourceServers != nil,
			passwordGrant: opts.Users != nil,
		}
	}
	s.metadataHandler = handlers.NewMetadataHandler(provider)

	return s, nil
}

// RegisterRoutes mounts the OAuth endpoint set on the hosting engine.
// Session middleware (for CSRF state) must already be installed.
func (s *Server) RegisterRoutes(r *gin.Engine) {
	oauth := r.Group("/oauth")
	{
		oauth.GET("/authorize", s.authorizationHandler.Authorize)
		oauth.POST("/authorize", s.authorizationHandler.AuthorizeDecision)
		oauth.POST("/token", s.tokenHandler.Token)
		oauth.POST("/revoke", s.revocationHandler.Revoke)

		if s.deviceHandler != nil {
			oauth.POST("/device_authorization", s.deviceHandler.DeviceAuthorization)
		}
		if s.introspectionHandler != nil {
			oauth.POST("/token_info", s.introspectionHandler.Introspect)
		}

		s.extensions.AddRoutes(oauth)
	}

	r.GET("/.well-known/oauth-authorization-server", s.metadataHandler.Metadata)
}

// AuthorizeDeviceCode records the user's out-of-band approval of a device
// code; deployments call this from their verification UI.
func (s *Server) AuthorizeDeviceCode(ctx context.Context, userCode, userID string) error {
	if s.deviceService == nil {
		return fmt.Errorf("device grant is not configured")
	}
	return s.deviceService.AuthorizeDeviceCode(ctx, userCode, userID)
}

// DeclineDeviceCode records the user's denial of a device code.
func (s *Server) DeclineDeviceCode(ctx context.Context, userCode string) error {
	if s.deviceService == nil {
		return fmt.Errorf("device grant is not configured")
	}
	return s.deviceService.DeclineDeviceCode(ctx, userCode)
}

// DeviceCodeForUserCode resolves the pending request behind a user code
// so verification UIs can show what is being approved.
func (s *Server) DeviceCodeForUserCode(userCode string) (*models.DeviceCode, error) {
	if s.deviceService == nil {
		return nil, fmt.Errorf("device grant is not configured")
	}
	return s.deviceService.GetDeviceCodeByUserCode(userCode)
}

// defaultMetadataProvider builds the RFC 8414 document from configuration
// and extension contributions. Optional endpoints appear only when the
// matching capability is wired.
type defaultMetadataProvider struct {
	config        *config.Config
	extensions    *extension.Manager
	deviceGrant   bool
	introspection bool
	passwordGrant bool
}

func (p *defaultMetadataProvider) ServerMetadata() map[string]any {
	base := strings.TrimRight(p.config.BaseURL, "/")

	grantTypes := []string{"authorization_code", "client_credentials", "refresh_token"}
	if p.deviceGrant {
		grantTypes = append(grantTypes, "urn:ietf:params:oauth:grant-type:device_code")
	}
	if p.passwordGrant {
		grantTypes = append(grantTypes, "password")
	}

	doc := map[string]any{
		"issuer":                 base,
		"authorization_endpoint": base + "/oauth/authorize",
		"token_endpoint":         base + "/oauth/token",
		"jwks_uri":               base + "/.well-known/jwks.json",
		"response_types_supported": []string{
			validator.ResponseTypeCode, validator.ResponseTypeToken,
		},
		"subject_types_supported": []string{"public"},
		"id_token_signing_alg_values_supported": []string{
			"HS256", "RS256", "ES256",
		},
		"grant_types_supported": grantTypes,
		"scopes_supported":      p.config.ValidScopes,
		"code_challenge_methods_supported": []string{
			validator.CodeChallengeMethodPlain, validator.CodeChallengeMethodS256,
		},
		"token_revocation_endpoint": base + "/oauth/revoke",
		"token_endpoint_auth_methods_supported": []string{
			"client_secret_basic", "client_secret_post",
		},
	}
	if p.deviceGrant {
		doc["device_authorization_endpoint"] = base + "/oauth/device_authorization"
	}
	if p.introspection {
		doc["token_introspection_endpoint"] = base + "/oauth/token_info"
	}

	for k, v := range p.extensions.Metadata() {
		doc[k] = v
	}
	return doc
}

// jsonAuthorizeHandler is the headless fallback consent delegate: it
// describes the validated request (or the failure) as JSON so API-only
// deployments can drive their own UI.
type jsonAuthorizeHandler struct{}

func (jsonAuthorizeHandler) HandleAuthorizationRequest(c *gin.Context, req *services.AuthorizationRequest) {
	c.JSON(200, gin.H{
		"client_id":     req.Client.ClientID,
		"response_type": req.ResponseType,
		"redirect_uri":  req.RedirectURI,
		"scope":         strings.Join(req.Scopes, " "),
		"state":         req.State,
		"csrf_token":    req.CSRFToken,
	})
}

func (jsonAuthorizeHandler) HandleAuthorizationError(c *gin.Context, err error) {
	c.JSON(400, gin.H{
		"error":             "invalid_request",
		"error_description": err.Error(),
	})
}
