package store

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/dewonderstruck/vapor-oauth-sub001/internal/models"
	"github.com/dewonderstruck/vapor-oauth-sub001/internal/util"
)

// deviceCodeRecord pairs the stored model with its at-rest hash. The
// plaintext device code is never kept after generation.
type deviceCodeRecord struct {
	model *models.DeviceCode
	hash  string
	salt  string
}

// InMemoryDeviceCodeManager is the reference DeviceCodeManager. Device
// codes are attacker-pollable, so they are stored PBKDF2-hashed and
// compared in constant time; lookups index on the code's last 8 chars.
type InMemoryDeviceCodeManager struct {
	mu         sync.Mutex
	bySuffix   map[string][]*deviceCodeRecord
	byUserCode map[string]*deviceCodeRecord
}

var _ DeviceCodeManager = (*InMemoryDeviceCodeManager)(nil)

func NewInMemoryDeviceCodeManager() *InMemoryDeviceCodeManager {
	return &InMemoryDeviceCodeManager{
		bySuffix:   make(map[string][]*deviceCodeRecord),
		byUserCode: make(map[string]*deviceCodeRecord),
	}
}

func (s *InMemoryDeviceCodeManager) GenerateDeviceCode(
	params DeviceCodeParams,
	lifetime time.Duration,
) (*models.DeviceCode, error) {
	// 20 random bytes = 40 hex chars
	codeBytes, err := util.CryptoRandomBytes(20)
	if err != nil {
		return nil, fmt.Errorf("failed to generate device code: %w", err)
	}
	plaintext := hex.EncodeToString(codeBytes)

	salt, err := util.CryptoRandomHex(20)
	if err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	dc := &models.DeviceCode{
		DeviceCode:              plaintext,
		UserCode:                generateUserCode(),
		ClientID:                params.ClientID,
		Scopes:                  params.Scopes,
		VerificationURI:         params.VerificationURI,
		VerificationURIComplete: params.VerificationURIComplete,
		ExpiryDate:              time.Now().Add(lifetime),
		Interval:                params.Interval,
		Status:                  models.DeviceCodeStatusPending,
		CreatedAt:               time.Now(),
	}

	record := &deviceCodeRecord{
		model: dc,
		hash:  util.HashToken(plaintext, salt),
		salt:  salt,
	}

	s.mu.Lock()
	suffix := plaintext[len(plaintext)-8:]
	s.bySuffix[suffix] = append(s.bySuffix[suffix], record)
	s.byUserCode[dc.UserCode] = record
	s.mu.Unlock()

	copied := *dc
	return &copied, nil
}

// find locates a record by plaintext device code. Caller holds the lock.
func (s *InMemoryDeviceCodeManager) find(deviceCode string) *deviceCodeRecord {
	if len(deviceCode) != 40 {
		return nil
	}
	for _, x := range []byte(deviceCode) {
		if x < '0' || (x > '9' && x < 'a') || x > 'f' {
			return nil
		}
	}
	for _, record := range s.bySuffix[deviceCode[len(deviceCode)-8:]] {
		candidate := util.HashToken(deviceCode, record.salt)
		if subtle.ConstantTimeCompare([]byte(record.hash), []byte(candidate)) == 1 {
			return record
		}
	}
	return nil
}

func (s *InMemoryDeviceCodeManager) GetDeviceCode(deviceCode string) (*models.DeviceCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := s.find(deviceCode)
	if record == nil {
		return nil, ErrDeviceCodeNotFound
	}
	copied := *record.model
	copied.DeviceCode = deviceCode
	return &copied, nil
}

func (s *InMemoryDeviceCodeManager) GetDeviceCodeByUserCode(userCode string) (*models.DeviceCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.byUserCode[NormalizeUserCode(userCode)]
	if !ok {
		return nil, ErrUserCodeNotFound
	}
	copied := *record.model
	return &copied, nil
}

func (s *InMemoryDeviceCodeManager) AuthorizeDeviceCode(userCode, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.byUserCode[NormalizeUserCode(userCode)]
	if !ok {
		return ErrUserCodeNotFound
	}
	record.model.Status = models.DeviceCodeStatusAuthorized
	record.model.UserID = userID
	return nil
}

func (s *InMemoryDeviceCodeManager) DeclineDeviceCode(userCode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.byUserCode[NormalizeUserCode(userCode)]
	if !ok {
		return ErrUserCodeNotFound
	}
	record.model.Status = models.DeviceCodeStatusDeclined
	return nil
}

func (s *InMemoryDeviceCodeManager) RemoveDeviceCode(deviceCode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := s.find(deviceCode)
	if record == nil {
		return ErrDeviceCodeNotFound
	}

	suffix := deviceCode[len(deviceCode)-8:]
	remaining := s.bySuffix[suffix][:0]
	for _, r := range s.bySuffix[suffix] {
		if r != record {
			remaining = append(remaining, r)
		}
	}
	if len(remaining) == 0 {
		delete(s.bySuffix, suffix)
	} else {
		s.bySuffix[suffix] = remaining
	}
	delete(s.byUserCode, record.model.UserCode)
	return nil
}

func (s *InMemoryDeviceCodeManager) UpdateLastPolled(deviceCode string, polledAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := s.find(deviceCode)
	if record == nil {
		return ErrDeviceCodeNotFound
	}
	record.model.LastPolled = polledAt
	return nil
}

// IncreaseInterval grows the poll spacing. The interval is monotonic:
// requests to shrink it are ignored.
func (s *InMemoryDeviceCodeManager) IncreaseInterval(deviceCode string, seconds int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := s.find(deviceCode)
	if record == nil {
		return ErrDeviceCodeNotFound
	}
	if seconds > record.model.Interval {
		record.model.Interval = seconds
	}
	return nil
}

// NormalizeUserCode uppercases and strips the display separator so
// "abcd-efgh" matches the stored "ABCDEFGH".
func NormalizeUserCode(userCode string) string {
	return strings.ToUpper(strings.ReplaceAll(userCode, "-", ""))
}

// FormatUserCode renders a user code for display ("ABCDEFGH" -> "ABCD-EFGH").
func FormatUserCode(code string) string {
	if len(code) != 8 {
		return code
	}
	return code[:4] + "-" + code[4:]
}

// generateUserCode creates a human-typeable code like "ABCDEFGH".
// Avoids confusing characters: 0, O, 1, I, L
func generateUserCode() string {
	const charset = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
	code := make([]byte, 8)
	for i := range code {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		code[i] = charset[n.Int64()]
	}
	return string(code)
}
