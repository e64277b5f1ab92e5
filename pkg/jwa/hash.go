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

package jwa

import (
	"crypto"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"hash"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/blake2s"
	"golang.org/x/crypto/sha3"
)

// HashMetadata describes a registered named hash function.
type HashMetadata struct {
	// New constructs a fresh hash.Hash instance.
	New func() hash.Hash

	// Size is the digest size in bytes.
	Size int

	// CryptoHash is the corresponding crypto.Hash value, or 0 when the
	// standard library does not define one (e.g. keyed BLAKE2 variants).
	CryptoHash crypto.Hash
}

// defaultHashes returns the built-in named hash function table.
func defaultHashes() map[HashAlgorithm]HashMetadata {
	return map[HashAlgorithm]HashMetadata{
		SHA1: {
			New:        sha1.New,
			Size:       sha1.Size,
			CryptoHash: crypto.SHA1,
		},
		SHA256: {
			New:        sha256.New,
			Size:       sha256.Size,
			CryptoHash: crypto.SHA256,
		},
		SHA384: {
			New:        sha512.New384,
			Size:       sha512.Size384,
			CryptoHash: crypto.SHA384,
		},
		SHA512: {
			New:        sha512.New,
			Size:       sha512.Size,
			CryptoHash: crypto.SHA512,
		},
		SHA3_256: {
			New:        func() hash.Hash { return sha3.New256() },
			Size:       32,
			CryptoHash: crypto.SHA3_256,
		},
		SHA3_384: {
			New:        func() hash.Hash { return sha3.New384() },
			Size:       48,
			CryptoHash: crypto.SHA3_384,
		},
		SHA3_512: {
			New:        func() hash.Hash { return sha3.New512() },
			Size:       64,
			CryptoHash: crypto.SHA3_512,
		},
		BLAKE2b256: {
			New:  mustHash(func() (hash.Hash, error) { return blake2b.New256(nil) }),
			Size: 32,
		},
		BLAKE2b512: {
			New:  mustHash(func() (hash.Hash, error) { return blake2b.New512(nil) }),
			Size: 64,
		},
		BLAKE2s256: {
			New:  mustHash(func() (hash.Hash, error) { return blake2s.New256(nil) }),
			Size: 32,
		},
	}
}

// mustHash adapts a fallible hash constructor into a hash.Hash factory.
// The unkeyed BLAKE2 constructors only fail on invalid key sizes, which
// cannot occur with a nil key.
func mustHash(f func() (hash.Hash, error)) func() hash.Hash {
	return func() hash.Hash {
		h, err := f()
		if err != nil {
			panic(err)
		}
		return h
	}
}
