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

package keymgmt

import (
	"crypto"
	"crypto/rand"
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-josekit/pkg/jwa"
	"github.com/jeremyhahn/go-josekit/pkg/jwk"
	"github.com/jeremyhahn/go-josekit/pkg/types"
)

// header is the minimal JOSE header collaborator used by the tests.
type header map[string]any

func (h header) Get(name string) (any, bool) {
	v, ok := h[name]
	return v, ok
}

func (h header) Set(name string, value any) {
	h[name] = value
}

func newHeader(alg jwa.KeyManagementAlgorithm, enc jwa.ContentEncryptionAlgorithm) header {
	return header{HeaderAlg: alg.String(), HeaderEnc: enc.String()}
}

func randomCEK(t *testing.T, size int) []byte {
	t.Helper()
	cek := make([]byte, size)
	_, err := rand.Read(cek)
	require.NoError(t, err)
	return cek
}

func resolve(t *testing.T, alg jwa.KeyManagementAlgorithm) jwa.KeyManagementMetadata {
	t.Helper()
	meta, ok := jwa.DefaultRegistry().ResolveKeyManagement(alg)
	require.True(t, ok, "%s must be registered", alg)
	require.NotNil(t, meta.Produce)
	require.NotNil(t, meta.Consume)
	return meta
}

func TestAllAlgorithmsRegistered(t *testing.T) {
	algs := []jwa.KeyManagementAlgorithm{
		jwa.Direct,
		jwa.A128KW, jwa.A192KW, jwa.A256KW,
		jwa.A128GCMKW, jwa.A192GCMKW, jwa.A256GCMKW,
		jwa.PBES2HS256, jwa.PBES2HS384, jwa.PBES2HS512,
		jwa.ECDHES, jwa.ECDHESA128KW, jwa.ECDHESA192KW, jwa.ECDHESA256KW,
		jwa.RSA1_5, jwa.RSAOAEP, jwa.RSAOAEP256, jwa.RSAOAEP384, jwa.RSAOAEP512,
		jwa.HPKEP256SHA256A128GCM, jwa.HPKEX25519SHA256C20P,
	}
	for _, alg := range algs {
		resolve(t, alg)
	}
}

func TestDirect(t *testing.T) {
	meta := resolve(t, jwa.Direct)
	key, err := jwk.GenerateOct(32)
	require.NoError(t, err)
	secret, err := key.Raw()
	require.NoError(t, err)

	h := newHeader(jwa.Direct, jwa.A256GCM)
	var cek []byte
	encryptedKey, err := meta.Produce(h, jwa.Direct, key, jwa.A256GCM, &cek)
	require.NoError(t, err)
	assert.Empty(t, encryptedKey, "direct encryption has no encrypted key")
	assert.Equal(t, secret, cek, "the KEK is the CEK")

	var recovered []byte
	require.NoError(t, meta.Consume(h, key, nil, &recovered))
	assert.Equal(t, secret, recovered)

	// A caller-chosen CEK that differs from the shared key is refused.
	foreign := randomCEK(t, 32)
	_, err = meta.Produce(h, jwa.Direct, key, jwa.A256GCM, &foreign)
	assert.ErrorIs(t, err, types.ErrOperationNotAllowed)

	err = meta.Consume(h, key, []byte{1}, &recovered)
	assert.ErrorIs(t, err, types.ErrInvalidKeyFormat)
}

func TestAESKWRoundTrip(t *testing.T) {
	cases := []struct {
		alg     jwa.KeyManagementAlgorithm
		kekSize int
	}{
		{jwa.A128KW, 16},
		{jwa.A192KW, 24},
		{jwa.A256KW, 32},
	}
	for _, tc := range cases {
		t.Run(tc.alg.String(), func(t *testing.T) {
			meta := resolve(t, tc.alg)
			key, err := jwk.GenerateOct(tc.kekSize)
			require.NoError(t, err)

			cek := randomCEK(t, 32)
			h := newHeader(tc.alg, jwa.A256GCM)
			encryptedKey, err := meta.Produce(h, tc.alg, key, jwa.A256GCM, &cek)
			require.NoError(t, err)
			assert.Len(t, encryptedKey, len(cek)+8)

			var recovered []byte
			require.NoError(t, meta.Consume(h, key, encryptedKey, &recovered))
			assert.Equal(t, cek, recovered)

			wrongKey, err := jwk.GenerateOct(tc.kekSize)
			require.NoError(t, err)
			err = meta.Consume(h, wrongKey, encryptedKey, &recovered)
			assert.ErrorIs(t, err, types.ErrAuthenticationFailure)
		})
	}
}

func TestAESGCMKWRoundTrip(t *testing.T) {
	meta := resolve(t, jwa.A256GCMKW)
	key, err := jwk.GenerateOct(32)
	require.NoError(t, err)
	cek := randomCEK(t, 32)

	h := newHeader(jwa.A256GCMKW, jwa.A256GCM)
	encryptedKey, err := meta.Produce(h, jwa.A256GCMKW, key, jwa.A256GCM, &cek)
	require.NoError(t, err)
	assert.Contains(t, h, HeaderIV, "producer must record the nonce")
	assert.Contains(t, h, HeaderTag, "producer must record the tag")

	var recovered []byte
	require.NoError(t, meta.Consume(h, key, encryptedKey, &recovered))
	assert.Equal(t, cek, recovered)
}

func TestAESGCMKWNonceReuse(t *testing.T) {
	meta := resolve(t, jwa.A128GCMKW)
	key, err := jwk.GenerateOct(16)
	require.NoError(t, err)
	cek := randomCEK(t, 16)

	h1 := newHeader(jwa.A128GCMKW, jwa.A128GCM)
	ek1, err := meta.Produce(h1, jwa.A128GCMKW, key, jwa.A128GCM, &cek)
	require.NoError(t, err)

	// Re-encrypting with the header-supplied nonce must be reproducible.
	h2 := newHeader(jwa.A128GCMKW, jwa.A128GCM)
	h2[HeaderIV] = h1[HeaderIV]
	ek2, err := meta.Produce(h2, jwa.A128GCMKW, key, jwa.A128GCM, &cek)
	require.NoError(t, err)
	assert.Equal(t, ek1, ek2)
	assert.Equal(t, h1[HeaderTag], h2[HeaderTag])
}

func TestAESGCMKWTagSubstitution(t *testing.T) {
	meta := resolve(t, jwa.A128GCMKW)
	key, err := jwk.GenerateOct(16)
	require.NoError(t, err)
	cek := randomCEK(t, 16)

	h := newHeader(jwa.A128GCMKW, jwa.A128GCM)
	_, err = meta.Produce(h, jwa.A128GCMKW, key, jwa.A128GCM, &cek)
	require.NoError(t, err)

	// A pre-seeded tag that does not match the computed one is an attack,
	// not something to overwrite.
	h2 := newHeader(jwa.A128GCMKW, jwa.A128GCM)
	h2[HeaderIV] = h[HeaderIV]
	h2[HeaderTag] = "AAAAAAAAAAAAAAAAAAAAAA"
	_, err = meta.Produce(h2, jwa.A128GCMKW, key, jwa.A128GCM, &cek)
	assert.ErrorIs(t, err, types.ErrAuthenticationFailure)
}

func TestAESGCMKWMissingHeaderFields(t *testing.T) {
	meta := resolve(t, jwa.A128GCMKW)
	key, err := jwk.GenerateOct(16)
	require.NoError(t, err)

	var cek []byte
	h := newHeader(jwa.A128GCMKW, jwa.A128GCM)
	err = meta.Consume(h, key, []byte("ciphertext"), &cek)
	assert.ErrorIs(t, err, types.ErrAuthenticationFailure)
}

func TestPBES2RoundTrip(t *testing.T) {
	cases := []struct {
		alg        jwa.KeyManagementAlgorithm
		iterations int
	}{
		{jwa.PBES2HS256, 600000},
		{jwa.PBES2HS384, 310000},
		{jwa.PBES2HS512, 210000},
	}
	for _, tc := range cases {
		t.Run(tc.alg.String(), func(t *testing.T) {
			meta := resolve(t, tc.alg)
			cek := randomCEK(t, 32)

			h := newHeader(tc.alg, jwa.A256GCM)
			encryptedKey, err := meta.Produce(h, tc.alg, "correct horse battery staple", jwa.A256GCM, &cek)
			require.NoError(t, err)
			assert.Contains(t, h, HeaderP2S, "producer must record the salt input")
			assert.Equal(t, tc.iterations, h[HeaderP2C], "default iteration count per PRF")

			var recovered []byte
			require.NoError(t, meta.Consume(h, "correct horse battery staple", encryptedKey, &recovered))
			assert.Equal(t, cek, recovered)

			err = meta.Consume(h, "wrong password", encryptedKey, &recovered)
			assert.ErrorIs(t, err, types.ErrAuthenticationFailure)
		})
	}
}

func TestPBES2HonorsHeaderParameters(t *testing.T) {
	meta := resolve(t, jwa.PBES2HS256)
	cek := randomCEK(t, 32)

	h := newHeader(jwa.PBES2HS256, jwa.A256GCM)
	h[HeaderP2C] = 1000
	encryptedKey, err := meta.Produce(h, jwa.PBES2HS256, []byte("pw"), jwa.A256GCM, &cek)
	require.NoError(t, err)
	assert.Equal(t, 1000, h[HeaderP2C], "a header-supplied count is kept")

	var recovered []byte
	require.NoError(t, meta.Consume(h, []byte("pw"), encryptedKey, &recovered))
	assert.Equal(t, cek, recovered)
}

func TestECDHESDirect(t *testing.T) {
	meta := resolve(t, jwa.ECDHES)
	recipient, err := jwk.GenerateEC(jwa.P256)
	require.NoError(t, err)
	recipientPub, err := recipient.PublicKey()
	require.NoError(t, err)

	h := newHeader(jwa.ECDHES, jwa.A256GCM)
	var cek []byte
	encryptedKey, err := meta.Produce(h, jwa.ECDHES, recipientPub, jwa.A256GCM, &cek)
	require.NoError(t, err)
	assert.Empty(t, encryptedKey, "direct agreement has no encrypted key")
	assert.Len(t, cek, 32, "CEK length comes from the content encryption algorithm")
	assert.Contains(t, h, HeaderEPK, "producer must record the ephemeral public key")

	var recovered []byte
	require.NoError(t, meta.Consume(h, recipient, nil, &recovered))
	assert.Equal(t, cek, recovered)
}

func TestECDHESKWRoundTrip(t *testing.T) {
	for _, alg := range []jwa.KeyManagementAlgorithm{jwa.ECDHESA128KW, jwa.ECDHESA256KW} {
		t.Run(alg.String(), func(t *testing.T) {
			meta := resolve(t, alg)
			recipient, err := jwk.GenerateEC(jwa.P384)
			require.NoError(t, err)
			recipientPub, err := recipient.PublicKey()
			require.NoError(t, err)

			cek := randomCEK(t, 32)
			h := newHeader(alg, jwa.A256GCM)
			encryptedKey, err := meta.Produce(h, alg, recipientPub, jwa.A256GCM, &cek)
			require.NoError(t, err)
			assert.NotEmpty(t, encryptedKey)

			var recovered []byte
			require.NoError(t, meta.Consume(h, recipient, encryptedKey, &recovered))
			assert.Equal(t, cek, recovered)
		})
	}
}

func TestECDHESX25519(t *testing.T) {
	meta := resolve(t, jwa.ECDHES)
	recipient, err := jwk.GenerateOKP(jwa.X25519)
	require.NoError(t, err)
	recipientPub, err := recipient.PublicKey()
	require.NoError(t, err)

	h := newHeader(jwa.ECDHES, jwa.A128GCM)
	var cek []byte
	_, err = meta.Produce(h, jwa.ECDHES, recipientPub, jwa.A128GCM, &cek)
	require.NoError(t, err)
	assert.Len(t, cek, 16)

	var recovered []byte
	require.NoError(t, meta.Consume(h, recipient, nil, &recovered))
	assert.Equal(t, cek, recovered)
}

func TestECDHESPartyInfoChangesDerivation(t *testing.T) {
	meta := resolve(t, jwa.ECDHES)
	recipient, err := jwk.GenerateEC(jwa.P256)
	require.NoError(t, err)
	recipientPub, err := recipient.PublicKey()
	require.NoError(t, err)

	h1 := newHeader(jwa.ECDHES, jwa.A128GCM)
	var cek1 []byte
	_, err = meta.Produce(h1, jwa.ECDHES, recipientPub, jwa.A128GCM, &cek1)
	require.NoError(t, err)

	// PartyU info feeds the KDF: the recipient must still recover the
	// CEK, and it must differ from a derivation without the info.
	h2 := newHeader(jwa.ECDHES, jwa.A128GCM)
	h2[HeaderAPU] = "QWxpY2U"
	var cek2 []byte
	_, err = meta.Produce(h2, jwa.ECDHES, recipientPub, jwa.A128GCM, &cek2)
	require.NoError(t, err)

	var recovered []byte
	require.NoError(t, meta.Consume(h2, recipient, nil, &recovered))
	assert.Equal(t, cek2, recovered)
	assert.NotEqual(t, cek1, cek2)
}

func TestECDHESCurveMismatchRegeneratesKey(t *testing.T) {
	meta := resolve(t, jwa.ECDHES)
	recipient, err := jwk.GenerateEC(jwa.P256)
	require.NoError(t, err)
	recipientPub, err := recipient.PublicKey()
	require.NoError(t, err)

	h := newHeader(jwa.ECDHES, jwa.A128GCM)
	var cek []byte
	_, err = meta.Produce(h, jwa.ECDHES, recipientPub, jwa.A128GCM, &cek)
	require.NoError(t, err)

	// Decrypting with a static key on a different curve must regenerate
	// on the ephemeral key's curve rather than fail or reuse the key.
	mismatched, err := jwk.GenerateEC(jwa.P384)
	require.NoError(t, err)
	var recovered []byte
	require.NoError(t, meta.Consume(h, mismatched, nil, &recovered))
	assert.Contains(t, h, HeaderRegeneratedEPK, "replacement public key must be retrievable")
	assert.NotEqual(t, cek, recovered, "a regenerated key cannot recover the original CEK")
}

func TestRSARoundTrip(t *testing.T) {
	key, err := jwk.GenerateRSA(2048)
	require.NoError(t, err)
	pub, err := key.PublicKey()
	require.NoError(t, err)

	for _, alg := range []jwa.KeyManagementAlgorithm{jwa.RSA1_5, jwa.RSAOAEP, jwa.RSAOAEP256} {
		t.Run(alg.String(), func(t *testing.T) {
			meta := resolve(t, alg)
			cek := randomCEK(t, 32)

			h := newHeader(alg, jwa.A256GCM)
			encryptedKey, err := meta.Produce(h, alg, pub, jwa.A256GCM, &cek)
			require.NoError(t, err)

			var recovered []byte
			require.NoError(t, meta.Consume(h, key, encryptedKey, &recovered))
			assert.Equal(t, cek, recovered)

			err = meta.Consume(h, pub, encryptedKey, &recovered)
			assert.ErrorIs(t, err, types.ErrOperationNotAllowed)
		})
	}
}

func TestHPKERoundTrip(t *testing.T) {
	t.Run("P-256", func(t *testing.T) {
		meta := resolve(t, jwa.HPKEP256SHA256A128GCM)
		recipient, err := jwk.GenerateEC(jwa.P256)
		require.NoError(t, err)
		recipientPub, err := recipient.PublicKey()
		require.NoError(t, err)

		cek := randomCEK(t, 16)
		h := newHeader(jwa.HPKEP256SHA256A128GCM, jwa.A128GCM)
		encryptedKey, err := meta.Produce(h, jwa.HPKEP256SHA256A128GCM, recipientPub, jwa.A128GCM, &cek)
		require.NoError(t, err)

		var recovered []byte
		require.NoError(t, meta.Consume(h, recipient, encryptedKey, &recovered))
		assert.Equal(t, cek, recovered)

		// Tampering with the sealed CEK must fail authentication.
		encryptedKey[len(encryptedKey)-1] ^= 0x01
		err = meta.Consume(h, recipient, encryptedKey, &recovered)
		assert.ErrorIs(t, err, types.ErrAuthenticationFailure)
	})

	t.Run("X25519-ChaCha", func(t *testing.T) {
		meta := resolve(t, jwa.HPKEX25519SHA256C20P)
		recipient, err := jwk.GenerateOKP(jwa.X25519)
		require.NoError(t, err)
		recipientPub, err := recipient.PublicKey()
		require.NoError(t, err)

		cek := randomCEK(t, 32)
		h := newHeader(jwa.HPKEX25519SHA256C20P, jwa.A256GCM)
		encryptedKey, err := meta.Produce(h, jwa.HPKEX25519SHA256C20P, recipientPub, jwa.A256GCM, &cek)
		require.NoError(t, err)

		var recovered []byte
		require.NoError(t, meta.Consume(h, recipient, encryptedKey, &recovered))
		assert.Equal(t, cek, recovered)

		// The info string binds the content encryption algorithm.
		h[HeaderEnc] = jwa.A128GCM.String()
		err = meta.Consume(h, recipient, encryptedKey, &recovered)
		assert.ErrorIs(t, err, types.ErrAuthenticationFailure)
	})
}

func TestMissingKEKIsTypedError(t *testing.T) {
	for _, alg := range []jwa.KeyManagementAlgorithm{jwa.Direct, jwa.A128KW, jwa.ECDHES, jwa.RSAOAEP} {
		meta := resolve(t, alg)
		h := newHeader(alg, jwa.A128GCM)
		cek := randomCEK(t, 16)
		_, err := meta.Produce(h, alg, nil, jwa.A128GCM, &cek)
		assert.ErrorIs(t, err, types.ErrKeyNotFound, "%s", alg)
	}
}

// Closures bound into an explicitly constructed registry must resolve
// content encryption and hash metadata against that registry, never the
// process default.
func TestRegisterBindsTargetRegistry(t *testing.T) {
	local := jwa.NewContentEncryptionAlgorithm("A192GCM-LOCAL")

	r := jwa.NewRegistry()
	r.RegisterHash(jwa.SHA256, jwa.HashMetadata{New: sha256.New, Size: sha256.Size, CryptoHash: crypto.SHA256})
	r.RegisterContentEncryption(local, jwa.ContentEncryptionMetadata{KeySize: 24, IVSize: 12, TagSize: 16})
	Register(r)

	// The default registry does not know the local algorithm, so a
	// successful derivation proves the closures consult r.
	_, known := jwa.DefaultRegistry().ResolveContentEncryption(local)
	require.False(t, known)

	recipient, err := jwk.GenerateEC(jwa.P256)
	require.NoError(t, err)

	meta, ok := r.ResolveKeyManagement(jwa.ECDHES)
	require.True(t, ok)

	h := newHeader(jwa.ECDHES, local)
	var cek []byte
	encryptedKey, err := meta.Produce(h, jwa.ECDHES, recipient, local, &cek)
	require.NoError(t, err)
	assert.Empty(t, encryptedKey)
	assert.Len(t, cek, 24)

	var recovered []byte
	require.NoError(t, meta.Consume(h, recipient, nil, &recovered))
	assert.Equal(t, cek, recovered)

	// The PBES2 PRF lookup goes through r as well.
	pbes2, ok := r.ResolveKeyManagement(jwa.PBES2HS256)
	require.True(t, ok)
	h2 := newHeader(jwa.PBES2HS256, local)
	sent := randomCEK(t, 32)
	wrapped, err := pbes2.Produce(h2, jwa.PBES2HS256, "password", local, &sent)
	require.NoError(t, err)

	var unwrapped []byte
	require.NoError(t, pbes2.Consume(h2, "password", wrapped, &unwrapped))
	assert.Equal(t, sent, unwrapped)
}
