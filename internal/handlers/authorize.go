package handlers

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"github.com/dewonderstruck/vapor-oauth-sub001/internal/extension"
	"github.com/dewonderstruck/vapor-oauth-sub001/internal/middleware"
	"github.com/dewonderstruck/vapor-oauth-sub001/internal/models"
	"github.com/dewonderstruck/vapor-oauth-sub001/internal/services"
	"github.com/dewonderstruck/vapor-oauth-sub001/internal/validator"
)

// maxStateLength bounds the state parameter so it survives cookie and
// redirect limits.
const maxStateLength = 512

// AuthorizeHandler is the external collaborator that renders consent UI.
// The engine validates the request and hands over presentation.
type AuthorizeHandler interface {
	// HandleAuthorizationRequest renders the login/consent step for a
	// fully validated request.
	HandleAuthorizationRequest(c *gin.Context, req *services.AuthorizationRequest)

	// HandleAuthorizationError presents failures that cannot safely
	// redirect (unknown client, bad redirect URI).
	HandleAuthorizationError(c *gin.Context, err error)
}

// AuthorizationHandler drives GET and POST /oauth/authorize: validation,
// the extension pipeline, CSRF minting/checking, and the final redirect
// with a code, token fragment, or error.
type AuthorizationHandler struct {
	authorizationService *services.AuthorizationService
	tokenService         *services.TokenService
	extensions           *extension.Manager
	delegate             AuthorizeHandler
}

func NewAuthorizationHandler(
	as *services.AuthorizationService,
	ts *services.TokenService,
	extensions *extension.Manager,
	delegate AuthorizeHandler,
) *AuthorizationHandler {
	return &AuthorizationHandler{
		authorizationService: as,
		tokenService:         ts,
		extensions:           extensions,
		delegate:             delegate,
	}
}

// Authorize handles GET /oauth/authorize.
func (h *AuthorizationHandler) Authorize(c *gin.Context) {
	params, err := h.extensions.ProcessAuthorizationRequest(c, c.Request.URL.Query())
	if err != nil {
		// PAR failures happen before a trusted redirect target exists.
		h.delegate.HandleAuthorizationError(c, err)
		return
	}

	state := params.Get("state")
	redirectURI := params.Get("redirect_uri")

	if len(state) > maxStateLength {
		h.redirectWithError(c, redirectURI, state, errInvalidRequest,
			"state parameter exceeds maximum length")
		return
	}

	req, err := h.authorizationService.ValidateAuthorizationRequest(
		params.Get("client_id"),
		params.Get("response_type"),
		redirectURI,
		params.Get("scope"),
		state,
		params.Get("code_challenge"),
		params.Get("code_challenge_method"),
		c.Request,
	)
	if err != nil {
		if cannotRedirect(err) {
			h.delegate.HandleAuthorizationError(c, err)
			return
		}
		h.redirectWithError(c, redirectURI, state, authorizationErrorCode(err), err.Error())
		return
	}

	csrfToken, err := middleware.MintCSRFToken(c)
	if err != nil {
		h.delegate.HandleAuthorizationError(c, err)
		return
	}
	req.CSRFToken = csrfToken

	req, err = h.extensions.ProcessValidatedAuthorizationRequest(c, req)
	if err != nil {
		h.redirectWithError(c, redirectURI, state, authorizationErrorCode(err), err.Error())
		return
	}

	h.delegate.HandleAuthorizationRequest(c, req)
}

// AuthorizeDecision handles POST /oauth/authorize: the consent form
// submission from an authenticated resource owner.
func (h *AuthorizationHandler) AuthorizeDecision(c *gin.Context) {
	userID := resourceOwnerID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":             errAccessDenied,
			"error_description": "an authenticated resource owner is required",
		})
		return
	}

	// A CSRF mismatch is a structural failure of the consent form, not a
	// protocol error to redirect.
	if !middleware.ValidateCSRFToken(c, c.PostForm("csrf_token")) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             errInvalidRequest,
			"error_description": "CSRF token validation failed",
		})
		return
	}

	state := c.PostForm("state")
	redirectURI := c.PostForm("redirect_uri")

	req, err := h.authorizationService.ValidateAuthorizationRequest(
		c.PostForm("client_id"),
		c.PostForm("response_type"),
		redirectURI,
		c.PostForm("scope"),
		state,
		c.PostForm("code_challenge"),
		c.PostForm("code_challenge_method"),
		c.Request,
	)
	if err != nil {
		if cannotRedirect(err) {
			h.delegate.HandleAuthorizationError(c, err)
			return
		}
		h.redirectWithError(c, redirectURI, state, authorizationErrorCode(err), err.Error())
		return
	}

	if c.PostForm("approve") != "true" {
		h.redirectWithError(c, redirectURI, state, errAccessDenied,
			"the resource owner denied the request")
		return
	}

	if req.ResponseType == validator.ResponseTypeToken {
		h.issueImplicitToken(c, req, userID)
		return
	}
	h.issueCode(c, req, userID)
}

func (h *AuthorizationHandler) issueCode(c *gin.Context, req *services.AuthorizationRequest, userID string) {
	code, err := h.authorizationService.CreateAuthorizationCode(c.Request.Context(), req, userID)
	if err != nil {
		h.redirectWithError(c, req.RedirectURI, req.State, errServerError,
			"failed to issue authorization code")
		return
	}

	query := url.Values{}
	query.Set("code", code)
	if req.State != "" {
		query.Set("state", req.State)
	}
	if len(req.Scopes) > 0 {
		query.Set("scope", strings.Join(req.Scopes, " "))
	}
	c.Redirect(http.StatusFound, appendQuery(req.RedirectURI, query))
}

// issueImplicitToken serves the deprecated implicit grant: the access
// token rides in the URI fragment (RFC 6749 §4.2.2).
func (h *AuthorizationHandler) issueImplicitToken(c *gin.Context, req *services.AuthorizationRequest, userID string) {
	access, err := h.tokenService.IssueImplicitToken(
		c.Request.Context(), req.Client.ClientID, userID, req.Scopes,
	)
	if err != nil {
		h.redirectWithError(c, req.RedirectURI, req.State, errServerError,
			"failed to issue access token")
		return
	}

	fragment := url.Values{}
	fragment.Set("access_token", access.TokenString)
	fragment.Set("token_type", models.TokenTypeBearer)
	fragment.Set("expires_in", fmt.Sprintf("%d",
		int(time.Until(access.ExpiresAt).Round(time.Second).Seconds())))
	if len(req.Scopes) > 0 {
		fragment.Set("scope", strings.Join(req.Scopes, " "))
	}
	if req.State != "" {
		fragment.Set("state", req.State)
	}
	c.Redirect(http.StatusFound, req.RedirectURI+"#"+fragment.Encode())
}

// redirectWithError encodes the failure into the redirect URI per
// RFC 6749 §4.1.2.1, echoing state when present.
func (h *AuthorizationHandler) redirectWithError(
	c *gin.Context,
	redirectURI, state, code, description string,
) {
	if redirectURI == "" {
		h.delegate.HandleAuthorizationError(c,
			fmt.Errorf("%s: %s", code, description))
		return
	}
	query := url.Values{}
	query.Set("error", code)
	query.Set("error_description", description)
	if state != "" {
		query.Set("state", state)
	}
	c.Redirect(http.StatusFound, appendQuery(redirectURI, query))
}

// appendQuery merges query parameters into a redirect URI that may
// already carry a query string.
func appendQuery(redirectURI string, query url.Values) string {
	separator := "?"
	if strings.Contains(redirectURI, "?") {
		separator = "&"
	}
	return redirectURI + separator + query.Encode()
}

// resourceOwnerID resolves the authenticated principal: the deployment's
// auth middleware sets user_id on the context or in the session.
func resourceOwnerID(c *gin.Context) string {
	if id, ok := c.Get("user_id"); ok {
		if s, ok := id.(string); ok {
			return s
		}
	}
	session := sessions.Default(c)
	if id, ok := session.Get("user_id").(string); ok {
		return id
	}
	return ""
}
