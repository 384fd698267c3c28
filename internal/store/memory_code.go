package store

import (
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/dewonderstruck/vapor-oauth-sub001/internal/models"
	"github.com/dewonderstruck/vapor-oauth-sub001/internal/util"
)

// InMemoryCodeManager is the reference CodeManager. Codes are stored keyed
// by SHA-256 hash so a memory dump never exposes redeemable plaintext.
type InMemoryCodeManager struct {
	mu    sync.Mutex
	codes map[string]*models.AuthorizationCode // key: SHA256(plaintext code)
}

var _ CodeManager = (*InMemoryCodeManager)(nil)

func NewInMemoryCodeManager() *InMemoryCodeManager {
	return &InMemoryCodeManager{codes: make(map[string]*models.AuthorizationCode)}
}

func (s *InMemoryCodeManager) GenerateCode(
	params CodeParams,
	lifetime time.Duration,
) (string, *models.AuthorizationCode, error) {
	// 32 random bytes = 256-bit entropy, 64-char hex string
	rawBytes, err := util.CryptoRandomBytes(32)
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate authorization code: %w", err)
	}
	plainCode := hex.EncodeToString(rawBytes)

	record := &models.AuthorizationCode{
		CodeID:              util.SHA256Hex(plainCode),
		ClientID:            params.ClientID,
		UserID:              params.UserID,
		RedirectURI:         params.RedirectURI,
		Scopes:              params.Scopes,
		CodeChallenge:       params.CodeChallenge,
		CodeChallengeMethod: params.CodeChallengeMethod,
		ExpiryDate:          time.Now().Add(lifetime),
		CreatedAt:           time.Now(),
	}

	s.mu.Lock()
	s.codes[record.CodeID] = record
	s.mu.Unlock()

	return plainCode, record, nil
}

func (s *InMemoryCodeManager) GetCode(code string) (*models.AuthorizationCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.codes[util.SHA256Hex(code)]
	if !ok {
		return nil, ErrAuthCodeNotFound
	}
	copied := *record
	return &copied, nil
}

// CodeUsed marks the code consumed. The check and the mark happen under
// one lock, so concurrent exchanges of the same code see exactly one
// success; losers get ErrAuthCodeAlreadyUsed.
func (s *InMemoryCodeManager) CodeUsed(code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.codes[util.SHA256Hex(code)]
	if !ok {
		return ErrAuthCodeNotFound
	}
	if record.UsedAt != nil {
		return ErrAuthCodeAlreadyUsed
	}
	now := time.Now()
	record.UsedAt = &now
	return nil
}
