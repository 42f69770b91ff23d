// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package auth implements the Auth Core: password hashing, verification
// codes, and login rate limiting described in spec §4.4.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/ocgully/construct/internal/bbserr"
)

// Params are the Argon2id hashing parameters. Policy requires m >= 19 MiB,
// t >= 2 (spec §4.4).
type Params struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// PolicyParams builds Params enforcing the policy floor regardless of what
// a misconfigured caller supplies.
func PolicyParams(memoryKiB uint32, iterations uint32, parallelism uint8) Params {
	if memoryKiB < 19*1024 {
		memoryKiB = 19 * 1024
	}
	if iterations < 2 {
		iterations = 2
	}
	if parallelism == 0 {
		parallelism = 1
	}
	return Params{
		MemoryKiB:   memoryKiB,
		Iterations:  iterations,
		Parallelism: parallelism,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// HashPassword generates a PHC-encoded Argon2id hash of password.
func HashPassword(password string, p Params) (string, error) {
	salt := make([]byte, p.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", bbserr.Wrap(bbserr.Crypto, "generate salt", err)
	}

	hash := argon2.IDKey([]byte(password), salt, p.Iterations, p.MemoryKiB, p.Parallelism, p.KeyLength)

	b64Salt := base64.RawStdEncoding.EncodeToString(salt)
	b64Hash := base64.RawStdEncoding.EncodeToString(hash)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.MemoryKiB, p.Iterations, p.Parallelism, b64Salt, b64Hash,
	), nil
}

// VerifyPassword returns true if candidate matches storedHash. It returns
// false (not an error) on a simple mismatch, and a Crypto-kind error only
// when storedHash is malformed, per spec §4.4.
func VerifyPassword(storedHash, candidate string) (bool, error) {
	p, salt, hash, err := decodeHash(storedHash)
	if err != nil {
		return false, err
	}

	otherHash := argon2.IDKey([]byte(candidate), salt, p.Iterations, p.MemoryKiB, p.Parallelism, p.KeyLength)
	return subtle.ConstantTimeCompare(hash, otherHash) == 1, nil
}

func decodeHash(encoded string) (Params, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return Params{}, nil, nil, bbserr.New(bbserr.Crypto, "malformed password hash")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return Params{}, nil, nil, bbserr.Wrap(bbserr.Crypto, "malformed password hash version", err)
	}
	if version != argon2.Version {
		return Params{}, nil, nil, bbserr.New(bbserr.Crypto, "incompatible argon2 version")
	}

	p := Params{}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.MemoryKiB, &p.Iterations, &p.Parallelism); err != nil {
		return Params{}, nil, nil, bbserr.Wrap(bbserr.Crypto, "malformed password hash params", err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return Params{}, nil, nil, bbserr.Wrap(bbserr.Crypto, "malformed password hash salt", err)
	}
	hash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return Params{}, nil, nil, bbserr.Wrap(bbserr.Crypto, "malformed password hash digest", err)
	}
	p.SaltLength = uint32(len(salt))
	p.KeyLength = uint32(len(hash))

	return p, salt, hash, nil
}
