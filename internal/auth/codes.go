// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// GenerateVerificationCode returns a 6-digit zero-padded numeric code, per
// spec §4.4.
func GenerateVerificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
