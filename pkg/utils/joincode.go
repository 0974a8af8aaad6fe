// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package utils

import (
	"crypto/rand"
	"fmt"

	"github.com/akamensky/base58"
)

// NewJoinCode returns a random base58 join code built from n random bytes.
// Base58 output contains only characters that are valid in NATS KV keys and provider
// room names.
func NewJoinCode(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("join code length must be positive")
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return base58.Encode(buf), nil
}

// IsJoinCode reports whether s decodes as a base58 join code.
func IsJoinCode(s string) bool {
	if s == "" {
		return false
	}
	decoded, err := base58.Decode(s)
	return err == nil && len(decoded) > 0
}
