// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-josekit.
//
// go-josekit is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package types holds the error sentinels and small shared types used
// across the go-josekit packages.
package types

import "errors"

// Errors

var (
	// ErrUnknownAlgorithm is returned when an algorithm identifier does not
	// resolve against the registry the operation requires. Constructing an
	// identifier never fails; only operations that need its metadata do.
	ErrUnknownAlgorithm = errors.New("unknown algorithm")

	// ErrUnknownKeyType is returned when a (kty, crv) pair read from key
	// storage does not route to any registered key family.
	ErrUnknownKeyType = errors.New("unknown key type")

	// ErrKeyNotFound is returned when a required key or key field is absent,
	// e.g. a key-management operation with no key-encryption key.
	ErrKeyNotFound = errors.New("key not found")

	// ErrIncorrectKeySize is returned when key material has the wrong length
	// for the requested algorithm or curve.
	ErrIncorrectKeySize = errors.New("incorrect key size")

	// ErrInvalidKeyFormat is returned when key material cannot be decoded,
	// such as a JWK missing a required field for its declared kty.
	ErrInvalidKeyFormat = errors.New("invalid key format")

	// ErrAuthenticationFailure is returned on signature, MAC, or AEAD tag
	// mismatch.
	ErrAuthenticationFailure = errors.New("authentication failure")

	// ErrOperationNotAllowed is returned when a key cannot perform the
	// requested operation, e.g. exporting raw material from a key that
	// does not carry it.
	ErrOperationNotAllowed = errors.New("operation not allowed")
)
