package models

import "time"

// Device code statuses (RFC 8628 §3.3). StatusUnauthorized is a
// transitional alias of pending kept for deployments that record "no
// decision yet" explicitly; the polling handler treats both identically.
const (
	DeviceCodeStatusPending      = "pending"
	DeviceCodeStatusUnauthorized = "unauthorized"
	DeviceCodeStatusAuthorized   = "authorized"
	DeviceCodeStatusDeclined     = "declined"
)

// DeviceCode is one in-flight device authorization grant (RFC 8628).
// Created pending by the device authorization endpoint, resolved by an
// out-of-band user verification action, consumed at the token endpoint.
type DeviceCode struct {
	// DeviceCode is the plaintext code polled by the device. Stores may
	// keep only a salted hash of it at rest.
	DeviceCode string

	// UserCode is the short human-typeable code, stored normalized
	// (uppercase, no separator).
	UserCode string

	ClientID                string
	Scopes                  []string
	VerificationURI         string
	VerificationURIComplete string

	ExpiryDate time.Time

	// Interval is the advisory minimum poll spacing in seconds. It only
	// ever increases (slow_down backoff).
	Interval int

	Status string
	UserID string // set when the user authorizes

	// LastPolled drives slow_down enforcement at the token endpoint.
	LastPolled time.Time

	CreatedAt time.Time
}

func (d *DeviceCode) IsExpired() bool {
	return time.Now().After(d.ExpiryDate)
}

// IsPending reports whether no user decision has been recorded yet.
// The unauthorized status is an alias of pending.
func (d *DeviceCode) IsPending() bool {
	return d.Status == DeviceCodeStatusPending || d.Status == DeviceCodeStatusUnauthorized
}
