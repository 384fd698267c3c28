package services

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/dewonderstruck/vapor-oauth-sub001/internal/config"
	"github.com/dewonderstruck/vapor-oauth-sub001/internal/metrics"
	"github.com/dewonderstruck/vapor-oauth-sub001/internal/models"
	"github.com/dewonderstruck/vapor-oauth-sub001/internal/store"
	"github.com/dewonderstruck/vapor-oauth-sub001/internal/validator"
)

// Authorization code flow errors
var (
	ErrUnsupportedResponseType = errors.New("unsupported_response_type")
	ErrMissingChallengeMethod  = errors.New(
		"code_challenge_method is required when code_challenge is present",
	)
	ErrInvalidChallengeMethod = errors.New("code_challenge_method must be plain or S256")
	ErrAuthCodeNotFound       = errors.New("authorization code not found")
	ErrAuthCodeExpired        = errors.New("authorization code expired")
	ErrAuthCodeAlreadyUsed    = errors.New("authorization code already used")
	ErrCodeClientMismatch     = errors.New("authorization code was issued to another client")
	ErrCodeRedirectMismatch   = errors.New("redirect_uri does not match the authorization request")
	ErrCodeVerifierRequired   = errors.New("code_verifier is required")
	ErrInvalidCodeVerifier    = errors.New("invalid code_verifier")
)

// AuthorizationRequest holds the validated parameters of an authorization
// request, after extension processing and before user consent.
type AuthorizationRequest struct {
	Client              *models.OAuthClient
	ResponseType        string
	RedirectURI         string
	Scopes              []string
	State               string
	CodeChallenge       string
	CodeChallengeMethod string

	// CSRFToken is the per-session token the consent form must echo.
	CSRFToken string

	// AuthorizationDetails carries parsed RAR descriptors when the RAR
	// extension is registered.
	AuthorizationDetails []models.AuthorizationDetail
}

// AuthorizationService drives the OAuth 2.0 authorization code flow
// (RFC 6749 §4.1): request validation, code minting, code exchange.
type AuthorizationService struct {
	codes           store.CodeManager
	clientValidator *validator.ClientValidator
	config          *config.Config
	metrics         metrics.Recorder
}

func NewAuthorizationService(
	codes store.CodeManager,
	clientValidator *validator.ClientValidator,
	cfg *config.Config,
	m metrics.Recorder,
) *AuthorizationService {
	return &AuthorizationService{
		codes:           codes,
		clientValidator: clientValidator,
		config:          cfg,
		metrics:         m,
	}
}

// ValidateAuthorizationRequest validates all parameters of an incoming
// authorization request and returns the parsed request on success.
func (s *AuthorizationService) ValidateAuthorizationRequest(
	clientID, responseType, redirectURI, scope, state,
	codeChallenge, codeChallengeMethod string,
	r *http.Request,
) (*AuthorizationRequest, error) {
	if responseType != validator.ResponseTypeCode &&
		responseType != validator.ResponseTypeToken {
		return nil, ErrUnsupportedResponseType
	}

	scopes := validator.SplitScopes(scope)

	client, err := s.clientValidator.ValidateClient(
		clientID, responseType, redirectURI, scopes, r,
	)
	if err != nil {
		s.metrics.RecordAuthorizationRequest(responseType, false)
		return nil, err
	}

	// PKCE: a challenge without a method is malformed (RFC 7636 §4.3).
	if codeChallenge != "" {
		if codeChallengeMethod == "" {
			s.metrics.RecordAuthorizationRequest(responseType, false)
			return nil, ErrMissingChallengeMethod
		}
		if !validator.ValidCodeChallengeMethod(codeChallengeMethod) {
			s.metrics.RecordAuthorizationRequest(responseType, false)
			return nil, ErrInvalidChallengeMethod
		}
	}

	s.metrics.RecordAuthorizationRequest(responseType, true)
	return &AuthorizationRequest{
		Client:              client,
		ResponseType:        responseType,
		RedirectURI:         redirectURI,
		Scopes:              scopes,
		State:               state,
		CodeChallenge:       codeChallenge,
		CodeChallengeMethod: codeChallengeMethod,
	}, nil
}

// CreateAuthorizationCode mints a single-use code for an approved request
// and returns the plaintext code to place in the redirect.
func (s *AuthorizationService) CreateAuthorizationCode(
	ctx context.Context,
	req *AuthorizationRequest,
	userID string,
) (string, error) {
	plainCode, _, err := s.codes.GenerateCode(store.CodeParams{
		ClientID:            req.Client.ClientID,
		UserID:              userID,
		RedirectURI:         req.RedirectURI,
		Scopes:              req.Scopes,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: req.CodeChallengeMethod,
	}, s.config.AuthCodeExpiration)
	if err != nil {
		log.Printf("[Authorization] Code generation failed client=%s: %v",
			req.Client.ClientID, err)
		return "", err
	}
	return plainCode, nil
}

// ExchangeCode validates a plaintext authorization code and atomically
// marks it used. Marking happens before any token is minted, so a replay
// can never observe a window where both exchanges succeed.
func (s *AuthorizationService) ExchangeCode(
	ctx context.Context,
	plainCode, clientID, clientSecret, redirectURI, codeVerifier string,
) (*models.AuthorizationCode, error) {
	if _, err := s.clientValidator.AuthenticateClient(
		clientID, clientSecret, models.GrantTypeAuthorization, false,
	); err != nil {
		s.metrics.RecordCodeExchange("invalid")
		return nil, err
	}

	record, err := s.codes.GetCode(plainCode)
	if err != nil {
		s.metrics.RecordCodeExchange("invalid")
		return nil, ErrAuthCodeNotFound
	}

	if record.IsUsed() {
		s.metrics.RecordCodeExchange("replayed")
		return nil, ErrAuthCodeAlreadyUsed
	}
	if record.IsExpired() {
		s.metrics.RecordCodeExchange("expired")
		return nil, ErrAuthCodeExpired
	}
	if record.ClientID != clientID {
		s.metrics.RecordCodeExchange("invalid")
		return nil, ErrCodeClientMismatch
	}
	if record.RedirectURI != redirectURI {
		s.metrics.RecordCodeExchange("invalid")
		return nil, ErrCodeRedirectMismatch
	}

	// PKCE: a code bound to a challenge demands a matching verifier.
	if record.CodeChallenge != "" {
		if codeVerifier == "" {
			s.metrics.RecordCodeExchange("invalid")
			return nil, ErrCodeVerifierRequired
		}
		if !validator.ValidatePKCE(codeVerifier, record.CodeChallenge, record.CodeChallengeMethod) {
			s.metrics.RecordCodeExchange("invalid")
			return nil, ErrInvalidCodeVerifier
		}
	}

	// Atomic check-and-mark: only one concurrent exchange wins.
	if err := s.codes.CodeUsed(plainCode); err != nil {
		if errors.Is(err, store.ErrAuthCodeAlreadyUsed) {
			s.metrics.RecordCodeExchange("replayed")
			return nil, ErrAuthCodeAlreadyUsed
		}
		s.metrics.RecordCodeExchange("invalid")
		return nil, err
	}

	s.metrics.RecordCodeExchange("success")
	return record, nil
}
