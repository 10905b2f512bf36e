// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package auth provides password hashing and administrator identity handling.
// Password hashes are PBKDF2-SHA256 with a deterministic per-identity salt so
// they can live in environment-level configuration: the hash for a given
// email and password is stable and can be generated once with the /api/auth/hash
// utility, then supplied as an environment variable.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"regexp"
	"strings"

	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/text/cases"
)

const (
	// PBKDF2Iterations follows the original deployment's parameters.
	PBKDF2Iterations = 100000
	// PBKDF2KeyLen is the derived key length in bytes.
	PBKDF2KeyLen = 32

	saltPrefix     = "staticlift_"
	secretNameBase = "SLIFT_ADMIN_PASSWORD_HASH_"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]`)

var foldCaser = cases.Fold()

// NormalizeEmail canonicalizes an administrator identity for comparison:
// trimmed and Unicode case-folded. Allow-list membership and password hash
// lookups both operate on normalized identities.
func NormalizeEmail(email string) string {
	return foldCaser.String(strings.TrimSpace(email))
}

// HashPassword derives the hex-encoded PBKDF2-SHA256 hash for an identity and
// password. The salt is derived from the normalized email, so the output is
// deterministic for a given pair.
func HashPassword(email, password string) string {
	salt := []byte(saltPrefix + NormalizeEmail(email))
	key := pbkdf2.Key([]byte(password), salt, PBKDF2Iterations, PBKDF2KeyLen, sha256.New)
	return hex.EncodeToString(key)
}

// CheckPassword verifies a password against a stored hash in constant time.
func CheckPassword(email, password, storedHash string) bool {
	computed := HashPassword(email, password)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(storedHash)) == 1
}

// SecretName returns the environment variable name under which the password
// hash for the given identity is expected, e.g.
// "jane.doe@example.com" -> "SLIFT_ADMIN_PASSWORD_HASH_JANE_DOE".
func SecretName(email string) string {
	local, _, _ := strings.Cut(NormalizeEmail(email), "@")
	return secretNameBase + strings.ToUpper(nonAlnum.ReplaceAllString(local, "_"))
}
