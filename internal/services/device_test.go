package services

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dewonderstruck/vapor-oauth-sub001/internal/config"
	"github.com/dewonderstruck/vapor-oauth-sub001/internal/metrics"
	"github.com/dewonderstruck/vapor-oauth-sub001/internal/models"
	"github.com/dewonderstruck/vapor-oauth-sub001/internal/store"
	"github.com/dewonderstruck/vapor-oauth-sub001/internal/validator"
)

func newDeviceFixture(t *testing.T, clients ...*models.OAuthClient) *DeviceService {
	t.Helper()

	clientStore := store.NewInMemoryClientStore()
	for _, c := range clients {
		require.NoError(t, clientStore.RegisterClient(c))
	}

	scopeValidator := validator.NewScopeValidator([]string{"read", "write"})
	clientValidator := validator.NewClientValidator(clientStore, scopeValidator, false)
	cfg := &config.Config{
		BaseURL:              "https://auth.example.com",
		DeviceCodeExpiration: 5 * time.Minute,
		PollingInterval:      5,
	}

	return NewDeviceService(
		store.NewInMemoryDeviceCodeManager(), clientValidator, scopeValidator,
		cfg, metrics.NewNoopMetrics(),
	)
}

func TestGenerateDeviceCode_Success(t *testing.T) {
	svc := newDeviceFixture(t, deviceClient())

	dc, err := svc.GenerateDeviceCode(context.Background(), "tv-app", "", "read", nil)
	require.NoError(t, err)
	assert.Equal(t, "https://auth.example.com/device", dc.VerificationURI)
	assert.Contains(t, dc.VerificationURIComplete, "user_code=")
	assert.Equal(t, 5, dc.Interval)
	assert.Equal(t, models.DeviceCodeStatusPending, dc.Status)
}

func TestGenerateDeviceCode_UngrantedScope(t *testing.T) {
	svc := newDeviceFixture(t, deviceClient())

	_, err := svc.GenerateDeviceCode(context.Background(), "tv-app", "", "write", nil)
	var scopeErr *validator.ScopeError
	assert.ErrorAs(t, err, &scopeErr)
}

func TestGenerateDeviceCode_WrongGrantType(t *testing.T) {
	svc := newDeviceFixture(t, codeFlowClient())

	_, err := svc.GenerateDeviceCode(context.Background(), "web-app", "", "read", nil)
	assert.ErrorIs(t, err, validator.ErrUnauthorizedClient)
}

func TestGenerateDeviceCode_BrowserOriginChecked(t *testing.T) {
	client := deviceClient()
	client.AuthorizedOrigins = []string{"https://tv.example.com"}
	svc := newDeviceFixture(t, client)

	r, _ := http.NewRequest(http.MethodPost, "https://auth.example.com/oauth/device_authorization", nil)
	r.Header.Set("Origin", "https://evil.com")

	_, err := svc.GenerateDeviceCode(context.Background(), "tv-app", "", "read", r)
	assert.ErrorIs(t, err, validator.ErrUnauthorizedOrigin)

	// Device polls without browser headers skip the origin check
	plain, _ := http.NewRequest(http.MethodPost, "https://auth.example.com/oauth/device_authorization", nil)
	_, err = svc.GenerateDeviceCode(context.Background(), "tv-app", "", "read", plain)
	assert.NoError(t, err)
}

func TestAuthorizeDeviceCode_OnlyPendingTransitions(t *testing.T) {
	svc := newDeviceFixture(t, deviceClient())

	dc, err := svc.GenerateDeviceCode(context.Background(), "tv-app", "", "read", nil)
	require.NoError(t, err)

	require.NoError(t, svc.AuthorizeDeviceCode(context.Background(), dc.UserCode, "user-7"))

	// Terminal codes stay terminal
	assert.ErrorIs(t, svc.AuthorizeDeviceCode(context.Background(), dc.UserCode, "user-8"),
		ErrUserCodeNotFound)
	assert.ErrorIs(t, svc.DeclineDeviceCode(context.Background(), dc.UserCode),
		ErrUserCodeNotFound)
}

func TestDeclineDeviceCode_Pending(t *testing.T) {
	svc := newDeviceFixture(t, deviceClient())

	dc, err := svc.GenerateDeviceCode(context.Background(), "tv-app", "", "read", nil)
	require.NoError(t, err)

	require.NoError(t, svc.DeclineDeviceCode(context.Background(), dc.UserCode))

	fetched, err := svc.GetDeviceCodeByUserCode(dc.UserCode)
	require.NoError(t, err)
	assert.Equal(t, models.DeviceCodeStatusDeclined, fetched.Status)
}

func TestGetDeviceCodeByUserCode_Unknown(t *testing.T) {
	svc := newDeviceFixture(t, deviceClient())

	_, err := svc.GetDeviceCodeByUserCode("XXXX-XXXX")
	assert.ErrorIs(t, err, ErrUserCodeNotFound)
}
