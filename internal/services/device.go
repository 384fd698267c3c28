package services

import (
	"context"
	"errors"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/dewonderstruck/vapor-oauth-sub001/internal/config"
	"github.com/dewonderstruck/vapor-oauth-sub001/internal/metrics"
	"github.com/dewonderstruck/vapor-oauth-sub001/internal/models"
	"github.com/dewonderstruck/vapor-oauth-sub001/internal/store"
	"github.com/dewonderstruck/vapor-oauth-sub001/internal/validator"
)

// Device flow errors
var (
	ErrDeviceCodeNotFound = errors.New("device code not found")
	ErrDeviceCodeExpired  = errors.New("device code expired")
	ErrUserCodeNotFound   = errors.New("user code not found")
)

// slowDownIncrement is the number of seconds added to the poll interval
// on each premature poll (RFC 8628 §3.5).
const slowDownIncrement = 5

// DeviceService drives the device authorization grant (RFC 8628):
// code pair minting and the pending -> authorized/declined state machine.
// Terminal codes are consumed by TokenService.ExchangeDeviceCode.
type DeviceService struct {
	deviceCodes     store.DeviceCodeManager
	clientValidator *validator.ClientValidator
	scopeValidator  *validator.ScopeValidator
	config          *config.Config
	metrics         metrics.Recorder
}

func NewDeviceService(
	deviceCodes store.DeviceCodeManager,
	clientValidator *validator.ClientValidator,
	scopeValidator *validator.ScopeValidator,
	cfg *config.Config,
	m metrics.Recorder,
) *DeviceService {
	return &DeviceService{
		deviceCodes:     deviceCodes,
		clientValidator: clientValidator,
		scopeValidator:  scopeValidator,
		config:          cfg,
		metrics:         m,
	}
}

// GenerateDeviceCode validates the client and scopes and mints a
// device_code/user_code pair. Origin checking only applies when the
// request looks browser-originated; device polls carry no Origin.
func (s *DeviceService) GenerateDeviceCode(
	ctx context.Context,
	clientID, clientSecret, scope string,
	r *http.Request,
) (*models.DeviceCode, error) {
	scopes := validator.SplitScopes(scope)

	client, err := s.clientValidator.AuthenticateClient(
		clientID, clientSecret, models.GrantTypeDeviceCode, false,
	)
	if err != nil {
		s.metrics.RecordDeviceCodeGenerated(false)
		return nil, err
	}

	if err := s.scopeValidator.ValidateScope(client, scopes); err != nil {
		s.metrics.RecordDeviceCodeGenerated(false)
		return nil, err
	}

	if r != nil && validator.LooksLikeBrowserRequest(r) {
		if err := s.clientValidator.ValidateRequestOrigin(client, r); err != nil {
			s.metrics.RecordDeviceCodeGenerated(false)
			return nil, err
		}
	}

	verificationURI := s.config.DeviceVerificationURI
	if verificationURI == "" {
		verificationURI = strings.TrimRight(s.config.BaseURL, "/") + "/device"
	}

	dc, err := s.deviceCodes.GenerateDeviceCode(store.DeviceCodeParams{
		ClientID:        clientID,
		Scopes:          scopes,
		VerificationURI: verificationURI,
		Interval:        s.config.PollingInterval,
	}, s.config.DeviceCodeExpiration)
	if err != nil {
		log.Printf("[Device] Device code generation failed client=%s: %v", clientID, err)
		s.metrics.RecordDeviceCodeGenerated(false)
		return nil, err
	}

	dc.VerificationURIComplete = verificationURI + "?user_code=" +
		url.QueryEscape(store.FormatUserCode(dc.UserCode))

	s.metrics.RecordDeviceCodeGenerated(true)
	return dc, nil
}

// GetDeviceCodeByUserCode resolves the pending code behind a user code,
// lazily expiring it.
func (s *DeviceService) GetDeviceCodeByUserCode(userCode string) (*models.DeviceCode, error) {
	dc, err := s.deviceCodes.GetDeviceCodeByUserCode(userCode)
	if err != nil {
		return nil, ErrUserCodeNotFound
	}
	if dc.IsExpired() {
		_ = s.deviceCodes.RemoveDeviceCode(dc.DeviceCode)
		return nil, ErrDeviceCodeExpired
	}
	return dc, nil
}

// AuthorizeDeviceCode records the user's approval. Only a pending code
// can transition; terminal codes stay terminal.
func (s *DeviceService) AuthorizeDeviceCode(ctx context.Context, userCode, userID string) error {
	dc, err := s.GetDeviceCodeByUserCode(userCode)
	if err != nil {
		return err
	}
	if !dc.IsPending() {
		return ErrUserCodeNotFound
	}
	return s.deviceCodes.AuthorizeDeviceCode(userCode, userID)
}

// DeclineDeviceCode records the user's denial.
func (s *DeviceService) DeclineDeviceCode(ctx context.Context, userCode string) error {
	dc, err := s.GetDeviceCodeByUserCode(userCode)
	if err != nil {
		return err
	}
	if !dc.IsPending() {
		return ErrUserCodeNotFound
	}
	return s.deviceCodes.DeclineDeviceCode(userCode)
}
