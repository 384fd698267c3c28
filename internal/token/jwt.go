package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dewonderstruck/vapor-oauth-sub001/internal/models"
	"github.com/dewonderstruck/vapor-oauth-sub001/internal/store"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// JWTManager issues self-contained signed tokens with RFC 9068-shaped
// claims. Every minted token still gets a store record so revocation
// works: a verified JWT whose record is revoked is rejected.
type JWTManager struct {
	keys            *KeyCollection
	issuer          string
	store           store.TokenStore
	accessLifetime  time.Duration
	refreshLifetime time.Duration
}

var _ Manager = (*JWTManager)(nil)

func NewJWTManager(
	keys *KeyCollection,
	issuer string,
	s store.TokenStore,
	accessLifetime, refreshLifetime time.Duration,
) *JWTManager {
	return &JWTManager{
		keys:            keys,
		issuer:          strings.TrimRight(issuer, "/"),
		store:           s,
		accessLifetime:  accessLifetime,
		refreshLifetime: refreshLifetime,
	}
}

func (m *JWTManager) mint(params Params, category string) (*models.AccessToken, error) {
	now := time.Now()
	var expiresAt time.Time
	switch category {
	case models.TokenCategoryAccess:
		expiresAt = now.Add(m.accessLifetime)
	case models.TokenCategoryRefresh:
		if m.refreshLifetime > 0 {
			expiresAt = now.Add(m.refreshLifetime)
		}
	}

	subject := params.UserID
	if subject == "" {
		subject = "client:" + params.ClientID
	}

	claims := jwt.MapClaims{
		"iss":       m.issuer,
		"sub":       subject,
		"aud":       params.ClientID,
		"iat":       now.Unix(),
		"jti":       uuid.New().String(),
		"scope":     strings.Join(params.Scopes, " "),
		"client_id": params.ClientID,
		"category":  category,
	}
	if !expiresAt.IsZero() {
		claims["exp"] = expiresAt.Unix()
	}

	tokenString, err := m.keys.Active().Sign(claims)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenGeneration, err)
	}

	token := &models.AccessToken{
		ID:            uuid.New().String(),
		TokenString:   tokenString,
		TokenType:     "Bearer",
		TokenCategory: category,
		Status:        models.TokenStatusActive,
		ClientID:      params.ClientID,
		UserID:        params.UserID,
		Scopes:        append([]string(nil), params.Scopes...),
		Username:      params.Username,
		EmailAddress:  params.EmailAddress,
		ExpiresAt:     expiresAt,
		CreatedAt:     now,
	}

	if err := m.store.SaveToken(token); err != nil {
		return nil, fmt.Errorf("failed to save token: %w", err)
	}
	return token, nil
}

func (m *JWTManager) GenerateAccessToken(params Params) (*models.AccessToken, error) {
	return m.mint(params, models.TokenCategoryAccess)
}

func (m *JWTManager) GenerateRefreshToken(params Params) (*models.AccessToken, error) {
	return m.mint(params, models.TokenCategoryRefresh)
}

func (m *JWTManager) GenerateTokenPair(params Params) (*models.AccessToken, *models.AccessToken, error) {
	access, err := m.mint(params, models.TokenCategoryAccess)
	if err != nil {
		return nil, nil, err
	}
	refresh, err := m.mint(params, models.TokenCategoryRefresh)
	if err != nil {
		return nil, nil, err
	}
	return access, refresh, nil
}

func (m *JWTManager) get(tokenString, category string) (*models.AccessToken, error) {
	parsed, err := jwt.Parse(tokenString, m.keys.Keyfunc)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}

	// Signature checks out; revocation state lives in the store.
	record, err := m.store.GetToken(tokenString)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if err := checkTokenState(record, category); err != nil {
		return nil, err
	}
	return record, nil
}

func (m *JWTManager) GetAccessToken(tokenString string) (*models.AccessToken, error) {
	return m.get(tokenString, models.TokenCategoryAccess)
}

func (m *JWTManager) GetRefreshToken(tokenString string) (*models.AccessToken, error) {
	return m.get(tokenString, models.TokenCategoryRefresh)
}

func (m *JWTManager) UpdateRefreshTokenScopes(tokenString string, scopes []string) error {
	return m.store.UpdateTokenScopes(tokenString, scopes)
}

func (m *JWTManager) RevokeToken(tokenString string) error {
	return m.store.RevokeToken(tokenString)
}

func (m *JWTManager) AccessTokenLifetime() time.Duration {
	return m.accessLifetime
}
