package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/dewonderstruck/vapor-oauth-sub001/internal/config"
	"github.com/dewonderstruck/vapor-oauth-sub001/internal/metrics"
	"github.com/dewonderstruck/vapor-oauth-sub001/internal/models"
	"github.com/dewonderstruck/vapor-oauth-sub001/internal/store"
	"github.com/dewonderstruck/vapor-oauth-sub001/internal/token"
	"github.com/dewonderstruck/vapor-oauth-sub001/internal/validator"
)

// Token endpoint errors
var (
	ErrAuthorizationPending   = errors.New("authorization_pending")
	ErrSlowDown               = errors.New("slow_down")
	ErrAccessDenied           = errors.New("access_denied")
	ErrExpiredToken           = errors.New("expired_token")
	ErrInvalidScope           = errors.New("invalid_scope")
	ErrInvalidUserCredentials = errors.New("invalid resource owner credentials")
	ErrPasswordGrantDisabled  = errors.New("password grant requires a user verifier")
)

// TokenService composes the client validator, the token manager and the
// device code manager into the token-endpoint grant flows.
type TokenService struct {
	tokens          token.Manager
	deviceCodes     store.DeviceCodeManager
	clientValidator *validator.ClientValidator
	scopeValidator  *validator.ScopeValidator
	userVerifier    store.UserVerifier // nil disables the password grant
	config          *config.Config
	metrics         metrics.Recorder
}

func NewTokenService(
	tokens token.Manager,
	deviceCodes store.DeviceCodeManager,
	clientValidator *validator.ClientValidator,
	scopeValidator *validator.ScopeValidator,
	userVerifier store.UserVerifier,
	cfg *config.Config,
	m metrics.Recorder,
) *TokenService {
	return &TokenService{
		tokens:          tokens,
		deviceCodes:     deviceCodes,
		clientValidator: clientValidator,
		scopeValidator:  scopeValidator,
		userVerifier:    userVerifier,
		config:          cfg,
		metrics:         m,
	}
}

// Manager exposes the underlying token manager for handlers that need
// direct lookup (introspection, revocation).
func (s *TokenService) Manager() token.Manager {
	return s.tokens
}

// ExchangeAuthorizationCode mints the token pair for a consumed
// authorization code. The code must already have been validated and
// marked used by AuthorizationService.ExchangeCode.
func (s *TokenService) ExchangeAuthorizationCode(
	ctx context.Context,
	authCode *models.AuthorizationCode,
) (*models.AccessToken, *models.AccessToken, error) {
	start := time.Now()
	access, refresh, err := s.tokens.GenerateTokenPair(token.Params{
		ClientID: authCode.ClientID,
		UserID:   authCode.UserID,
		Scopes:   authCode.Scopes,
	})
	if err != nil {
		log.Printf("[Token] Token pair generation failed client=%s: %v",
			authCode.ClientID, err)
		return nil, nil, err
	}

	duration := time.Since(start)
	s.metrics.RecordTokenIssued(models.TokenCategoryAccess, "authorization_code", duration)
	s.metrics.RecordTokenIssued(models.TokenCategoryRefresh, "authorization_code", duration)
	return access, refresh, nil
}

// IssueClientCredentialsToken issues an access token for the
// client_credentials grant (RFC 6749 §4.4). Only confidential clients may
// use this flow, and no refresh token is issued (§4.4.3).
func (s *TokenService) IssueClientCredentialsToken(
	ctx context.Context,
	clientID, clientSecret, scope string,
) (*models.AccessToken, error) {
	client, err := s.clientValidator.AuthenticateClient(
		clientID, clientSecret, models.GrantTypeClientCredentials, true,
	)
	if err != nil {
		return nil, err
	}

	scopes := validator.SplitScopes(scope)
	if len(scopes) == 0 {
		scopes = client.ValidScopes
	} else if err := s.scopeValidator.ValidateScope(client, scopes); err != nil {
		return nil, err
	}

	start := time.Now()
	access, err := s.tokens.GenerateAccessToken(token.Params{
		ClientID: clientID,
		Scopes:   scopes,
	})
	if err != nil {
		log.Printf("[Token] Client credentials token generation failed client=%s: %v",
			clientID, err)
		return nil, err
	}

	s.metrics.RecordTokenIssued(models.TokenCategoryAccess, "client_credentials", time.Since(start))
	return access, nil
}

// RefreshAccessToken validates a refresh token and mints a new access
// token. Requested scopes may narrow the original grant, never widen it;
// narrowing is recorded on the refresh token. In rotation mode a new
// refresh token is issued and the old one revoked.
func (s *TokenService) RefreshAccessToken(
	ctx context.Context,
	refreshTokenString, clientID, clientSecret, scope string,
) (*models.AccessToken, *models.AccessToken, error) {
	if _, err := s.clientValidator.AuthenticateClient(
		clientID, clientSecret, models.GrantTypeRefresh, false,
	); err != nil {
		s.metrics.RecordTokenRefresh(false)
		return nil, nil, err
	}

	refreshToken, err := s.tokens.GetRefreshToken(refreshTokenString)
	if err != nil {
		s.metrics.RecordTokenRefresh(false)
		return nil, nil, err
	}
	if refreshToken.ClientID != clientID {
		s.metrics.RecordTokenRefresh(false)
		return nil, nil, ErrAccessDenied
	}

	effectiveScopes := refreshToken.Scopes
	if requested := validator.SplitScopes(scope); len(requested) > 0 {
		if !scopesSubset(refreshToken.Scopes, requested) {
			s.metrics.RecordTokenRefresh(false)
			return nil, nil, ErrInvalidScope
		}
		effectiveScopes = requested
		if err := s.tokens.UpdateRefreshTokenScopes(refreshTokenString, requested); err != nil {
			s.metrics.RecordTokenRefresh(false)
			return nil, nil, err
		}
	}

	start := time.Now()
	params := token.Params{
		ClientID:     refreshToken.ClientID,
		UserID:       refreshToken.UserID,
		Scopes:       effectiveScopes,
		Username:     refreshToken.Username,
		EmailAddress: refreshToken.EmailAddress,
	}

	newAccess, err := s.tokens.GenerateAccessToken(params)
	if err != nil {
		s.metrics.RecordTokenRefresh(false)
		return nil, nil, err
	}

	currentRefresh := refreshToken
	if s.config.EnableTokenRotation {
		rotated, err := s.tokens.GenerateRefreshToken(params)
		if err != nil {
			s.metrics.RecordTokenRefresh(false)
			return nil, nil, err
		}
		// Revoke the old refresh token last so a failed rotation never
		// strands the client.
		if err := s.tokens.RevokeToken(refreshTokenString); err != nil {
			s.metrics.RecordTokenRefresh(false)
			return nil, nil, err
		}
		currentRefresh = rotated
	}

	s.metrics.RecordTokenRefresh(true)
	s.metrics.RecordTokenIssued(models.TokenCategoryAccess, "refresh_token", time.Since(start))
	return newAccess, currentRefresh, nil
}

// IssuePasswordGrantTokens implements the deprecated resource owner
// password grant (RFC 6749 §4.3), restricted to first-party clients. The
// engine owns no user store; credentials are checked by the injected
// UserVerifier.
func (s *TokenService) IssuePasswordGrantTokens(
	ctx context.Context,
	clientID, clientSecret, username, password, scope string,
) (*models.AccessToken, *models.AccessToken, error) {
	client, err := s.clientValidator.AuthenticateClient(
		clientID, clientSecret, models.GrantTypePassword, false,
	)
	if err != nil {
		return nil, nil, err
	}

	if s.userVerifier == nil {
		return nil, nil, ErrPasswordGrantDisabled
	}
	userID, err := s.userVerifier.AuthenticateUser(username, password)
	if err != nil {
		return nil, nil, ErrInvalidUserCredentials
	}

	scopes := validator.SplitScopes(scope)
	if err := s.scopeValidator.ValidateScope(client, scopes); err != nil {
		return nil, nil, err
	}

	start := time.Now()
	access, refresh, err := s.tokens.GenerateTokenPair(token.Params{
		ClientID: clientID,
		UserID:   userID,
		Scopes:   scopes,
		Username: username,
	})
	if err != nil {
		return nil, nil, err
	}

	duration := time.Since(start)
	s.metrics.RecordTokenIssued(models.TokenCategoryAccess, "password", duration)
	s.metrics.RecordTokenIssued(models.TokenCategoryRefresh, "password", duration)
	return access, refresh, nil
}

// IssueImplicitToken mints a bare access token for the deprecated
// implicit grant (RFC 6749 §4.2). No refresh token is issued.
func (s *TokenService) IssueImplicitToken(
	ctx context.Context,
	clientID, userID string,
	scopes []string,
) (*models.AccessToken, error) {
	start := time.Now()
	access, err := s.tokens.GenerateAccessToken(token.Params{
		ClientID: clientID,
		UserID:   userID,
		Scopes:   scopes,
	})
	if err != nil {
		log.Printf("[Token] Implicit token generation failed client=%s: %v", clientID, err)
		return nil, err
	}
	s.metrics.RecordTokenIssued(models.TokenCategoryAccess, "implicit", time.Since(start))
	return access, nil
}

// RevokeToken implements RFC 7009: the presented token is invalidated if
// it exists and belongs to the authenticated client. token_type_hint
// orders the lookup; per §2.1 the search extends to the other category
// when the hint misses. Unknown tokens and other clients' tokens return
// nil so revocation cannot be used to probe token validity.
func (s *TokenService) RevokeToken(
	ctx context.Context,
	tokenString, tokenTypeHint, clientID, clientSecret string,
) error {
	if _, err := s.clientValidator.AuthenticateClient(
		clientID, clientSecret, "", false,
	); err != nil {
		return err
	}

	first, second := s.tokens.GetAccessToken, s.tokens.GetRefreshToken
	if tokenTypeHint == "refresh_token" {
		first, second = second, first
	}

	record, err := first(tokenString)
	if err != nil {
		if record, err = second(tokenString); err != nil {
			return nil
		}
	}
	if record.ClientID != clientID {
		return nil
	}

	if err := s.tokens.RevokeToken(tokenString); err != nil {
		return nil
	}
	s.metrics.RecordTokenRevoked(record.TokenCategory)
	return nil
}

// ExchangeDeviceCode is the token-endpoint polling step of the device
// grant (RFC 8628 §3.4-3.5). Unknown, expired and consumed codes all
// surface as expired_token; premature polls return slow_down and grow the
// stored interval monotonically; terminal codes are removed exactly once.
func (s *TokenService) ExchangeDeviceCode(
	ctx context.Context,
	deviceCode, clientID string,
) (*models.AccessToken, *models.AccessToken, error) {
	dc, err := s.deviceCodes.GetDeviceCode(deviceCode)
	if err != nil {
		s.metrics.RecordDeviceCodePoll("expired")
		return nil, nil, ErrExpiredToken
	}

	if dc.IsExpired() {
		_ = s.deviceCodes.RemoveDeviceCode(deviceCode)
		s.metrics.RecordDeviceCodePoll("expired")
		return nil, nil, ErrExpiredToken
	}
	if dc.ClientID != clientID {
		s.metrics.RecordDeviceCodePoll("denied")
		return nil, nil, ErrAccessDenied
	}

	// Poll-rate enforcement precedes the state check so a misbehaving
	// device backs off even while pending.
	now := time.Now()
	if !dc.LastPolled.IsZero() && now.Sub(dc.LastPolled) < time.Duration(dc.Interval)*time.Second {
		_ = s.deviceCodes.UpdateLastPolled(deviceCode, now)
		_ = s.deviceCodes.IncreaseInterval(deviceCode, dc.Interval+slowDownIncrement)
		s.metrics.RecordDeviceCodePoll("slow_down")
		return nil, nil, ErrSlowDown
	}
	if err := s.deviceCodes.UpdateLastPolled(deviceCode, now); err != nil {
		s.metrics.RecordDeviceCodePoll("expired")
		return nil, nil, ErrExpiredToken
	}

	switch dc.Status {
	case models.DeviceCodeStatusPending, models.DeviceCodeStatusUnauthorized:
		s.metrics.RecordDeviceCodePoll("pending")
		return nil, nil, ErrAuthorizationPending
	case models.DeviceCodeStatusDeclined:
		_ = s.deviceCodes.RemoveDeviceCode(deviceCode)
		s.metrics.RecordDeviceCodePoll("denied")
		return nil, nil, ErrAccessDenied
	case models.DeviceCodeStatusAuthorized:
		// fall through to token minting
	default:
		s.metrics.RecordDeviceCodePoll("expired")
		return nil, nil, ErrExpiredToken
	}

	start := time.Now()
	access, refresh, err := s.tokens.GenerateTokenPair(token.Params{
		ClientID: dc.ClientID,
		UserID:   dc.UserID,
		Scopes:   dc.Scopes,
	})
	if err != nil {
		log.Printf("[Token] Device code token generation failed client=%s: %v", clientID, err)
		return nil, nil, err
	}

	// Single use: the authorized code is gone after one successful poll.
	_ = s.deviceCodes.RemoveDeviceCode(deviceCode)

	duration := time.Since(start)
	s.metrics.RecordDeviceCodePoll("success")
	s.metrics.RecordTokenIssued(models.TokenCategoryAccess, "device_code", duration)
	s.metrics.RecordTokenIssued(models.TokenCategoryRefresh, "device_code", duration)
	return access, refresh, nil
}

// scopesSubset reports whether every requested scope is present in the
// original grant.
func scopesSubset(original, requested []string) bool {
	granted := make(map[string]bool, len(original))
	for _, s := range original {
		granted[s] = true
	}
	for _, s := range requested {
		if !granted[s] {
			return false
		}
	}
	return true
}
