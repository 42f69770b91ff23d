// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocgully/construct/internal/bbserr"
)

func testParams() Params {
	// Smaller-than-policy memory for fast tests; PolicyParams enforcement
	// is tested separately.
	return Params{MemoryKiB: 64, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
}

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("hunter2", testParams())
	require.NoError(t, err)
	assert.Contains(t, hash, "$argon2id$")

	ok, err := VerifyPassword(hash, "hunter2")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword(hash, "wrong")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyPassword_MalformedHash(t *testing.T) {
	_, err := VerifyPassword("not-a-hash", "anything")
	require.Error(t, err)
	assert.True(t, bbserr.Is(err, bbserr.Crypto))
}

func TestPolicyParams_EnforcesFloor(t *testing.T) {
	p := PolicyParams(1024, 1, 0)
	assert.GreaterOrEqual(t, p.MemoryKiB, uint32(19*1024))
	assert.GreaterOrEqual(t, p.Iterations, uint32(2))
	assert.GreaterOrEqual(t, p.Parallelism, uint8(1))
}
