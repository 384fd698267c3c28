package token

import (
	"fmt"
	"time"

	"github.com/dewonderstruck/vapor-oauth-sub001/internal/models"
	"github.com/dewonderstruck/vapor-oauth-sub001/internal/store"
	"github.com/dewonderstruck/vapor-oauth-sub001/internal/util"

	"github.com/google/uuid"
)

// OpaqueManager issues random-string tokens resolved by store lookup.
type OpaqueManager struct {
	store           store.TokenStore
	accessLifetime  time.Duration
	refreshLifetime time.Duration // zero = refresh tokens do not expire
}

var _ Manager = (*OpaqueManager)(nil)

func NewOpaqueManager(
	s store.TokenStore,
	accessLifetime, refreshLifetime time.Duration,
) *OpaqueManager {
	return &OpaqueManager{
		store:           s,
		accessLifetime:  accessLifetime,
		refreshLifetime: refreshLifetime,
	}
}

func (m *OpaqueManager) mint(params Params, category string) (*models.AccessToken, error) {
	// 32 random bytes = 256-bit opaque credential
	tokenString, err := util.CryptoRandomURLString(32)
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
		CreatedAt:     time.Now(),
	}
	switch category {
	case models.TokenCategoryAccess:
		token.ExpiresAt = time.Now().Add(m.accessLifetime)
	case models.TokenCategoryRefresh:
		if m.refreshLifetime > 0 {
			token.ExpiresAt = time.Now().Add(m.refreshLifetime)
		}
	}

	if err := m.store.SaveToken(token); err != nil {
		return nil, fmt.Errorf("failed to save token: %w", err)
	}
	return token, nil
}

func (m *OpaqueManager) GenerateAccessToken(params Params) (*models.AccessToken, error) {
	return m.mint(params, models.TokenCategoryAccess)
}

func (m *OpaqueManager) GenerateRefreshToken(params Params) (*models.AccessToken, error) {
	return m.mint(params, models.TokenCategoryRefresh)
}

func (m *OpaqueManager) GenerateTokenPair(params Params) (*models.AccessToken, *models.AccessToken, error) {
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

func (m *OpaqueManager) get(tokenString, category string) (*models.AccessToken, error) {
	token, err := m.store.GetToken(tokenString)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if err := checkTokenState(token, category); err != nil {
		return nil, err
	}
	return token, nil
}

func (m *OpaqueManager) GetAccessToken(tokenString string) (*models.AccessToken, error) {
	return m.get(tokenString, models.TokenCategoryAccess)
}

func (m *OpaqueManager) GetRefreshToken(tokenString string) (*models.AccessToken, error) {
	return m.get(tokenString, models.TokenCategoryRefresh)
}

func (m *OpaqueManager) UpdateRefreshTokenScopes(tokenString string, scopes []string) error {
	return m.store.UpdateTokenScopes(tokenString, scopes)
}

func (m *OpaqueManager) RevokeToken(tokenString string) error {
	return m.store.RevokeToken(tokenString)
}

func (m *OpaqueManager) AccessTokenLifetime() time.Duration {
	return m.accessLifetime
}
