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

package jwk

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-josekit/pkg/jwa"
	"github.com/jeremyhahn/go-josekit/pkg/types"
)

func TestFromStorageDispatch(t *testing.T) {
	s := NewStorage()
	_, err := FromStorage(s)
	assert.ErrorIs(t, err, types.ErrInvalidKeyFormat, "missing kty")

	s.SetString(FieldKeyType, "PQC-MYSTERY")
	_, err = FromStorage(s)
	assert.ErrorIs(t, err, types.ErrUnknownKeyType)
}

type stubKey struct{ baseKey }

func (k *stubKey) KeyType() jwa.KeyType    { return jwa.NewKeyType("STUB") }
func (k *stubKey) IsPrivate() bool         { return false }
func (k *stubKey) PublicKey() (Key, error) { return k, nil }
func (k *stubKey) Raw() (any, error)       { return nil, nil }

func TestRegisterKeyFamilyEscapeHatch(t *testing.T) {
	RegisterKeyFamily(jwa.NewKeyType("STUB"), func(s *Storage, opts ...KeyOption) (Key, error) {
		return &stubKey{baseKey: newBaseKey(s, newKeyConfig(opts))}, nil
	})

	s := NewStorage()
	s.SetString(FieldKeyType, "STUB")
	key, err := FromStorage(s)
	require.NoError(t, err)
	assert.Equal(t, "STUB", key.KeyType().String())
}

func TestOctSignVerify(t *testing.T) {
	key, err := GenerateOct(32)
	require.NoError(t, err)
	assert.NotEmpty(t, key.KeyID(), "generated keys carry a kid")

	data := []byte("signing input")
	for _, alg := range []jwa.SignatureAlgorithm{jwa.HS256, jwa.HS384, jwa.HS512} {
		sig, err := key.Sign(data, alg)
		require.NoError(t, err)
		require.NoError(t, key.Verify(sig, data, alg))

		sig[0] ^= 0x01
		assert.ErrorIs(t, key.Verify(sig, data, alg), types.ErrAuthenticationFailure)
	}

	_, err = key.Sign(data, jwa.RS256)
	assert.ErrorIs(t, err, types.ErrOperationNotAllowed)
	_, err = key.Sign(data, jwa.NewSignatureAlgorithm("HS1024"))
	assert.ErrorIs(t, err, types.ErrUnknownAlgorithm)
}

func TestOctWrapUnwrap(t *testing.T) {
	key, err := GenerateOct(16)
	require.NoError(t, err)

	cek := make([]byte, 32)
	_, err = rand.Read(cek)
	require.NoError(t, err)

	wrapped, err := key.WrapKey(cek, jwa.A128KW)
	require.NoError(t, err)
	assert.Len(t, wrapped, len(cek)+8)

	unwrapped, err := key.UnwrapKey(wrapped, jwa.A128KW)
	require.NoError(t, err)
	assert.Equal(t, cek, unwrapped)

	// KEK size must match the algorithm exactly.
	_, err = key.WrapKey(cek, jwa.A256KW)
	assert.ErrorIs(t, err, types.ErrIncorrectKeySize)

	other, err := GenerateOct(16)
	require.NoError(t, err)
	_, err = other.UnwrapKey(wrapped, jwa.A128KW)
	assert.ErrorIs(t, err, types.ErrAuthenticationFailure)
}

// RFC 3394 Section 4.1 through the JWK wrap capability: pins the
// kek/plaintext orientation against an external known answer, not just a
// round trip.
func TestOctWrapRFC3394Vector(t *testing.T) {
	kek, _ := hex.DecodeString("000102030405060708090A0B0C0D0E0F")
	cek, _ := hex.DecodeString("00112233445566778899AABBCCDDEEFF")
	expected, _ := hex.DecodeString("1FA68B0A8112B447AEF34BD8FB5A7B829D3E862371D2CFE5")

	key, err := FromRaw(kek)
	require.NoError(t, err)

	wrapped, err := key.(*SymmetricKey).WrapKey(cek, jwa.A128KW)
	require.NoError(t, err)
	assert.Equal(t, expected, wrapped)

	unwrapped, err := key.(*SymmetricKey).UnwrapKey(expected, jwa.A128KW)
	require.NoError(t, err)
	assert.Equal(t, cek, unwrapped)
}

func TestOctSealOpenGCM(t *testing.T) {
	key, err := GenerateOct(32)
	require.NoError(t, err)

	nonce := make([]byte, 12)
	_, err = rand.Read(nonce)
	require.NoError(t, err)
	plaintext := []byte("the quick brown fox")
	aad := []byte("associated data")

	ct, tag, err := key.Seal(plaintext, nonce, aad)
	require.NoError(t, err)
	assert.Len(t, tag, 16)
	assert.Len(t, ct, len(plaintext))

	out, err := key.Open(ct, tag, nonce, aad)
	require.NoError(t, err)
	assert.Equal(t, plaintext, out)

	_, err = key.Open(ct, tag, nonce, []byte("different aad"))
	assert.ErrorIs(t, err, types.ErrAuthenticationFailure)

	tag[0] ^= 0x01
	_, err = key.Open(ct, tag, nonce, aad)
	assert.ErrorIs(t, err, types.ErrAuthenticationFailure)
}

func TestOctSealOpenChaCha(t *testing.T) {
	key, err := GenerateOct(32)
	require.NoError(t, err)
	key.SetAlgorithm(jwa.XC20P.String())

	nonce := make([]byte, 24)
	_, err = rand.Read(nonce)
	require.NoError(t, err)

	ct, tag, err := key.Seal([]byte("payload"), nonce, nil)
	require.NoError(t, err)

	out, err := key.Open(ct, tag, nonce, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), out)

	// Wrong nonce size for the suite.
	_, _, err = key.Seal([]byte("payload"), nonce[:12], nil)
	assert.Error(t, err)
}

func TestOctHasNoPublicForm(t *testing.T) {
	key, err := GenerateOct(32)
	require.NoError(t, err)
	_, err = key.PublicKey()
	assert.ErrorIs(t, err, types.ErrOperationNotAllowed)
}

func TestRSASignVerify(t *testing.T) {
	key, err := GenerateRSA(2048)
	require.NoError(t, err)

	data := []byte("signing input")
	for _, alg := range []jwa.SignatureAlgorithm{jwa.RS256, jwa.PS256, jwa.RS512, jwa.PS512} {
		sig, err := key.Sign(data, alg)
		require.NoError(t, err)
		require.NoError(t, key.Verify(sig, data, alg))

		sig[0] ^= 0x01
		assert.ErrorIs(t, key.Verify(sig, data, alg), types.ErrAuthenticationFailure)
	}

	pub, err := key.PublicKey()
	require.NoError(t, err)
	sig, err := key.Sign(data, jwa.RS256)
	require.NoError(t, err)
	require.NoError(t, pub.(*RSAKey).Verify(sig, data, jwa.RS256))
	_, err = pub.(*RSAKey).Sign(data, jwa.RS256)
	assert.ErrorIs(t, err, types.ErrOperationNotAllowed)
}

func TestRSAWrapUnwrap(t *testing.T) {
	key, err := GenerateRSA(2048)
	require.NoError(t, err)
	pub, err := key.PublicKey()
	require.NoError(t, err)

	cek := make([]byte, 32)
	_, err = rand.Read(cek)
	require.NoError(t, err)

	for _, alg := range []jwa.KeyManagementAlgorithm{jwa.RSA1_5, jwa.RSAOAEP, jwa.RSAOAEP256, jwa.RSAOAEP512} {
		wrapped, err := pub.(*RSAKey).WrapKey(cek, alg)
		require.NoError(t, err)

		unwrapped, err := key.UnwrapKey(wrapped, alg)
		require.NoError(t, err)
		assert.Equal(t, cek, unwrapped)

		_, err = pub.(*RSAKey).UnwrapKey(wrapped, alg)
		assert.ErrorIs(t, err, types.ErrOperationNotAllowed)
	}

	// Decrypting RSA-OAEP ciphertext under the wrong digest must fail.
	wrapped, err := pub.(*RSAKey).WrapKey(cek, jwa.RSAOAEP)
	require.NoError(t, err)
	_, err = key.UnwrapKey(wrapped, jwa.RSAOAEP256)
	assert.ErrorIs(t, err, types.ErrAuthenticationFailure)
}

func TestRSAPublicSubset(t *testing.T) {
	key, err := GenerateRSA(2048)
	require.NoError(t, err)
	pub, err := key.PublicKey()
	require.NoError(t, err)

	s := pub.Storage()
	for _, private := range []string{FieldD, FieldP, FieldQ, FieldDP, FieldDQ, FieldQI} {
		assert.False(t, s.Has(private), "public view must not carry %s", private)
	}
	assert.True(t, s.Has(FieldN))
	assert.True(t, s.Has(FieldE))
	assert.False(t, pub.IsPrivate())
}

func TestECSignVerify(t *testing.T) {
	cases := []struct {
		crv     jwa.EllipticCurve
		alg     jwa.SignatureAlgorithm
		sigSize int
	}{
		{jwa.P256, jwa.ES256, 64},
		{jwa.P384, jwa.ES384, 96},
		{jwa.P521, jwa.ES512, 132},
		{jwa.Secp256k1, jwa.ES256K, 64},
	}

	data := []byte("signing input")
	for _, tc := range cases {
		t.Run(tc.crv.String(), func(t *testing.T) {
			key, err := GenerateEC(tc.crv)
			require.NoError(t, err)

			sig, err := key.Sign(data, tc.alg)
			require.NoError(t, err)
			assert.Len(t, sig, tc.sigSize, "signature must be fixed-width R||S")
			require.NoError(t, key.Verify(sig, data, tc.alg))

			sig[0] ^= 0x01
			assert.ErrorIs(t, key.Verify(sig, data, tc.alg), types.ErrAuthenticationFailure)
		})
	}

	// Algorithm/curve binding: ES256 on a P-384 key is a misuse, not a
	// bad signature.
	p384, err := GenerateEC(jwa.P384)
	require.NoError(t, err)
	_, err = p384.Sign(data, jwa.ES256)
	assert.ErrorIs(t, err, types.ErrOperationNotAllowed)
}

func TestECDeriveSharedSecret(t *testing.T) {
	alice, err := GenerateEC(jwa.P256)
	require.NoError(t, err)
	bob, err := GenerateEC(jwa.P256)
	require.NoError(t, err)

	bobPub, err := bob.PublicKey()
	require.NoError(t, err)
	alicePub, err := alice.PublicKey()
	require.NoError(t, err)

	z1, err := alice.DeriveSharedSecret(bobPub)
	require.NoError(t, err)
	z2, err := bob.DeriveSharedSecret(alicePub)
	require.NoError(t, err)
	assert.Equal(t, z1, z2)

	_, err = bobPub.(*ECKey).DeriveSharedSecret(alicePub)
	assert.ErrorIs(t, err, types.ErrOperationNotAllowed, "agreement needs the private key")
}

func TestOKPEd25519(t *testing.T) {
	key, err := GenerateOKP(jwa.Ed25519)
	require.NoError(t, err)

	data := []byte("signing input")
	sig, err := key.Sign(data, jwa.EdDSA)
	require.NoError(t, err)
	assert.Len(t, sig, 64)
	require.NoError(t, key.Verify(sig, data, jwa.EdDSA))

	sig[0] ^= 0x01
	assert.ErrorIs(t, key.Verify(sig, data, jwa.EdDSA), types.ErrAuthenticationFailure)

	// An X25519 key cannot sign.
	xkey, err := GenerateOKP(jwa.X25519)
	require.NoError(t, err)
	_, err = xkey.Sign(data, jwa.EdDSA)
	assert.ErrorIs(t, err, types.ErrOperationNotAllowed)
}

func TestOKPX25519Agreement(t *testing.T) {
	alice, err := GenerateOKP(jwa.X25519)
	require.NoError(t, err)
	bob, err := GenerateOKP(jwa.X25519)
	require.NoError(t, err)

	bobPub, err := bob.PublicKey()
	require.NoError(t, err)
	alicePub, err := alice.PublicKey()
	require.NoError(t, err)

	z1, err := alice.DeriveSharedSecret(bobPub)
	require.NoError(t, err)
	z2, err := bob.DeriveSharedSecret(alicePub)
	require.NoError(t, err)
	assert.Equal(t, z1, z2)
	assert.Len(t, z1, 32)

	// An Ed25519 key cannot agree.
	ed, err := GenerateOKP(jwa.Ed25519)
	require.NoError(t, err)
	_, err = ed.DeriveSharedSecret(bobPub)
	assert.ErrorIs(t, err, types.ErrOperationNotAllowed)
}

func TestAKPMLDSA(t *testing.T) {
	for _, alg := range []jwa.SignatureAlgorithm{jwa.MLDSA44, jwa.MLDSA65, jwa.MLDSA87} {
		t.Run(alg.String(), func(t *testing.T) {
			key, err := GenerateAKP(alg)
			require.NoError(t, err)
			assert.Equal(t, alg.String(), key.Algorithm())

			data := []byte("signing input")
			sig, err := key.Sign(data, alg)
			require.NoError(t, err)
			require.NoError(t, key.Verify(sig, data, alg))

			sig[0] ^= 0x01
			assert.ErrorIs(t, key.Verify(sig, data, alg), types.ErrAuthenticationFailure)
		})
	}
}

func TestAKPParameterSetPinning(t *testing.T) {
	key, err := GenerateAKP(jwa.MLDSA44)
	require.NoError(t, err)

	_, err = key.Sign([]byte("data"), jwa.MLDSA65)
	assert.ErrorIs(t, err, types.ErrOperationNotAllowed)
}

func TestAKPPublicSubset(t *testing.T) {
	key, err := GenerateAKP(jwa.MLDSA44)
	require.NoError(t, err)
	pub, err := key.PublicKey()
	require.NoError(t, err)

	assert.False(t, pub.Storage().Has(FieldPriv))
	assert.True(t, pub.Storage().Has(FieldPub))

	sig, err := key.Sign([]byte("data"), jwa.MLDSA44)
	require.NoError(t, err)
	require.NoError(t, pub.(*AKPKey).Verify(sig, []byte("data"), jwa.MLDSA44))
	_, err = pub.(*AKPKey).Sign([]byte("data"), jwa.MLDSA44)
	assert.ErrorIs(t, err, types.ErrOperationNotAllowed)
}

func TestAKPSeedConsistency(t *testing.T) {
	key, err := GenerateAKP(jwa.MLDSA44)
	require.NoError(t, err)
	other, err := GenerateAKP(jwa.MLDSA44)
	require.NoError(t, err)

	// Splice the pub of one key onto the seed of another: signing must
	// refuse the inconsistent pair.
	s := key.Storage()
	otherPub, err := other.storage.GetBytes(FieldPub)
	require.NoError(t, err)
	s.SetBytes(FieldPub, otherPub)
	spliced, err := FromStorage(s)
	require.NoError(t, err)

	_, err = spliced.(*AKPKey).Sign([]byte("data"), jwa.MLDSA44)
	assert.ErrorIs(t, err, types.ErrInvalidKeyFormat)
}

func TestParseKeyRoundTrip(t *testing.T) {
	key, err := GenerateEC(jwa.P256)
	require.NoError(t, err)

	data, err := key.MarshalJSON()
	require.NoError(t, err)

	parsed, err := ParseKey(data)
	require.NoError(t, err)
	assert.Equal(t, jwa.EC, parsed.KeyType())
	assert.True(t, key.Storage().Equal(parsed.Storage()))
}

func TestFromRawRoundTrip(t *testing.T) {
	ecKey, err := GenerateEC(jwa.P256)
	require.NoError(t, err)
	raw, err := ecKey.Raw()
	require.NoError(t, err)

	back, err := FromRaw(raw.(*ecdsa.PrivateKey))
	require.NoError(t, err)
	assert.True(t, back.IsPrivate())
	crv, _ := back.Storage().GetString(FieldCurve)
	assert.Equal(t, "P-256", crv)

	rsaPriv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	rsaKey, err := FromRaw(rsaPriv)
	require.NoError(t, err)
	rawAgain, err := rsaKey.Raw()
	require.NoError(t, err)
	assert.True(t, rsaPriv.Equal(rawAgain.(*rsa.PrivateKey)))

	octKey, err := FromRaw([]byte("0123456789abcdef"))
	require.NoError(t, err)
	assert.Equal(t, jwa.Oct, octKey.KeyType())

	_, err = FromRaw(struct{}{})
	assert.ErrorIs(t, err, types.ErrUnknownKeyType)
}
