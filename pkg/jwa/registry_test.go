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
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistrySignatureAlgorithms(t *testing.T) {
	r := DefaultRegistry()

	tests := []struct {
		alg     SignatureAlgorithm
		keyType KeyType
		curve   EllipticCurve
		hash    HashAlgorithm
	}{
		{HS256, Oct, "", SHA256},
		{HS512, Oct, "", SHA512},
		{RS256, RSA, "", SHA256},
		{PS384, RSA, "", SHA384},
		{ES256, EC, P256, SHA256},
		{ES384, EC, P384, SHA384},
		{ES512, EC, P521, SHA512},
		{ES256K, EC, Secp256k1, SHA256},
		{EdDSA, OKP, Ed25519, ""},
		{MLDSA65, AKP, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.alg.String(), func(t *testing.T) {
			meta, ok := r.ResolveSignature(tt.alg)
			require.True(t, ok, "algorithm should be registered")
			assert.Equal(t, tt.keyType, meta.KeyType)
			assert.Equal(t, tt.curve, meta.Curve)
			assert.Equal(t, tt.hash, meta.Hash)
		})
	}
}

// This package cannot import keymgmt, so this test also pins that the
// key management metadata is present without keymgmt in the binary: a
// consumer linking only jwa/jwk still resolves key types and sizes.
func TestDefaultRegistryKeyManagementMetadata(t *testing.T) {
	r := DefaultRegistry()

	tests := []struct {
		alg     KeyManagementAlgorithm
		keyType KeyType
		keySize int
		hash    HashAlgorithm
	}{
		{Direct, Oct, 0, ""},
		{A128KW, Oct, 16, ""},
		{A256KW, Oct, 32, ""},
		{A192GCMKW, Oct, 24, ""},
		{PBES2HS256, Oct, 16, SHA256},
		{PBES2HS512, Oct, 32, SHA512},
		{ECDHES, EC, 0, SHA256},
		{ECDHESA256KW, EC, 32, SHA256},
		{RSA1_5, RSA, 0, ""},
		{RSAOAEP, RSA, 0, SHA1},
		{RSAOAEP256, RSA, 0, SHA256},
		{HPKEX25519SHA256A128GCM, OKP, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.alg.String(), func(t *testing.T) {
			meta, ok := r.ResolveKeyManagement(tt.alg)
			require.True(t, ok, "algorithm should be registered")
			assert.Equal(t, tt.keyType, meta.KeyType)
			assert.Equal(t, tt.keySize, meta.KeySize)
			assert.Equal(t, tt.hash, meta.Hash)
		})
	}
}

func TestDefaultRegistryContentEncryption(t *testing.T) {
	r := DefaultRegistry()

	tests := []struct {
		alg     ContentEncryptionAlgorithm
		keySize int
		ivSize  int
		tagSize int
	}{
		{A128GCM, 16, 12, 16},
		{A192GCM, 24, 12, 16},
		{A256GCM, 32, 12, 16},
		{A128CBCHS256, 32, 16, 16},
		{A192CBCHS384, 48, 16, 24},
		{A256CBCHS512, 64, 16, 32},
	}

	for _, tt := range tests {
		t.Run(tt.alg.String(), func(t *testing.T) {
			meta, ok := r.ResolveContentEncryption(tt.alg)
			require.True(t, ok)
			assert.Equal(t, tt.keySize, meta.KeySize)
			assert.Equal(t, tt.ivSize, meta.IVSize)
			assert.Equal(t, tt.tagSize, meta.TagSize)
		})
	}
}

func TestIdentifierTrimming(t *testing.T) {
	assert.Equal(t, ES256, NewSignatureAlgorithm("  ES256\t"))
	assert.Equal(t, A128GCM, NewContentEncryptionAlgorithm(" A128GCM\n"))
	assert.Equal(t, P256, NewEllipticCurve(" P-256 "))
}

func TestResolveUnknownIsNotAnError(t *testing.T) {
	r := DefaultRegistry()

	_, ok := r.ResolveSignature(NewSignatureAlgorithm("XS666"))
	assert.False(t, ok)

	// The same short identifier can be meaningful in one family only.
	_, ok = r.ResolveContentEncryption("A128GCM")
	assert.True(t, ok)
	_, ok = r.ResolveSignature("A128GCM")
	assert.False(t, ok)
}

func TestResolveAnyFixedOrder(t *testing.T) {
	r := DefaultRegistry()

	any := r.ResolveAny("ES256")
	assert.Equal(t, FamilySignature, any.Family())
	sig, ok := any.Signature()
	require.True(t, ok)
	assert.Equal(t, ES256, sig)

	any = r.ResolveAny("A128GCMKW")
	assert.Equal(t, FamilyKeyManagement, any.Family())

	any = r.ResolveAny("A128GCM")
	assert.Equal(t, FamilyContentEncryption, any.Family())

	// Unknown identifiers still carry the raw string.
	any = r.ResolveAny("  BrandNewAlg ")
	assert.Equal(t, FamilyUnknown, any.Family())
	assert.Equal(t, "BrandNewAlg", any.String())
	_, ok = any.Signature()
	assert.False(t, ok)
}

func TestRegisterExtensionIsolation(t *testing.T) {
	r := NewRegistry()
	registerDefaults(r)

	before, ok := r.ResolveSignature(ES256)
	require.True(t, ok)

	r.RegisterSignature("ES256-CUSTOM", SignatureMetadata{
		KeyType: EC,
		Curve:   P256,
		Hash:    SHA3_256,
	})

	after, ok := r.ResolveSignature(ES256)
	require.True(t, ok)
	assert.Equal(t, before, after, "existing entries must be unaffected by registration")

	custom, ok := r.ResolveSignature("ES256-CUSTOM")
	require.True(t, ok)
	assert.Equal(t, SHA3_256, custom.Hash)
}

func TestRegisterLastWriterWins(t *testing.T) {
	r := NewRegistry()

	r.RegisterHash("X-HASH", HashMetadata{Size: 16})
	r.RegisterHash("X-HASH", HashMetadata{Size: 32})

	meta, ok := r.ResolveHash("X-HASH")
	require.True(t, ok)
	assert.Equal(t, 32, meta.Size)
}

func TestHashRegistryDigests(t *testing.T) {
	r := DefaultRegistry()

	tests := []struct {
		alg        HashAlgorithm
		size       int
		cryptoHash crypto.Hash
	}{
		{SHA256, 32, crypto.SHA256},
		{SHA384, 48, crypto.SHA384},
		{SHA512, 64, crypto.SHA512},
		{SHA3_256, 32, crypto.SHA3_256},
		{BLAKE2b256, 32, 0},
		{BLAKE2s256, 32, 0},
	}

	for _, tt := range tests {
		t.Run(tt.alg.String(), func(t *testing.T) {
			meta, ok := r.ResolveHash(tt.alg)
			require.True(t, ok)
			assert.Equal(t, tt.size, meta.Size)
			assert.Equal(t, tt.cryptoHash, meta.CryptoHash)

			h := meta.New()
			h.Write([]byte("digest me"))
			assert.Len(t, h.Sum(nil), tt.size)
		})
	}
}

func TestCurveForCoordinateSize(t *testing.T) {
	r := DefaultRegistry()

	crv, ok := r.CurveForCoordinateSize(48)
	require.True(t, ok)
	assert.Equal(t, P384, crv)

	crv, ok = r.CurveForCoordinateSize(66)
	require.True(t, ok)
	assert.Equal(t, P521, crv)

	// 32 bytes is ambiguous between P-256 and secp256k1; the NIST curve
	// wins deterministically.
	crv, ok = r.CurveForCoordinateSize(32)
	require.True(t, ok)
	assert.Equal(t, P256, crv)

	_, ok = r.CurveForCoordinateSize(17)
	assert.False(t, ok)
}

func TestConcurrentResolveAndRegister(t *testing.T) {
	r := NewRegistry()
	registerDefaults(r)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				r.RegisterSignature(SignatureAlgorithm(fmt.Sprintf("CUSTOM-%d-%d", n, j)), SignatureMetadata{
					KeyType: Oct,
					Hash:    SHA256,
				})
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				meta, ok := r.ResolveSignature(ES256)
				require.True(t, ok)
				require.Equal(t, P256, meta.Curve, "reader must never observe a partially-written table")
			}
		}()
	}
	wg.Wait()
}

func TestCompressionProbe(t *testing.T) {
	r := DefaultRegistry()

	_, ok := r.ResolveCompression(Deflate)
	assert.True(t, ok)

	_, ok = r.ResolveCompression("GZIP")
	assert.False(t, ok)
}
