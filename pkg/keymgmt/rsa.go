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
	"fmt"

	"github.com/jeremyhahn/go-josekit/pkg/jwa"
	"github.com/jeremyhahn/go-josekit/pkg/jwk"
	"github.com/jeremyhahn/go-josekit/pkg/types"
)

// registerRSA binds RSA key transport: PKCS#1 v1.5 and the OAEP digest
// variants (RFC 7518 Section 4.2-4.3). The wrap primitive lives on the
// RSA key capability; the OAEP digest is carried in the metadata.
func registerRSA(r *jwa.Registry) {
	hashes := map[jwa.KeyManagementAlgorithm]jwa.HashAlgorithm{
		jwa.RSA1_5:     "",
		jwa.RSAOAEP:    jwa.SHA1,
		jwa.RSAOAEP256: jwa.SHA256,
		jwa.RSAOAEP384: jwa.SHA384,
		jwa.RSAOAEP512: jwa.SHA512,
	}
	for alg, hash := range hashes {
		r.RegisterKeyManagement(alg, jwa.KeyManagementMetadata{
			KeyType: jwa.RSA,
			Hash:    hash,
			Produce: produceRSA,
			Consume: consumeRSA,
		})
	}
}

func produceRSA(h jwa.Header, alg jwa.KeyManagementAlgorithm, kek any, enc jwa.ContentEncryptionAlgorithm, cek *[]byte) ([]byte, error) {
	key, err := rsaKEK(kek)
	if err != nil {
		return nil, err
	}
	return key.WrapKey(*cek, alg)
}

func consumeRSA(h jwa.Header, kek any, encryptedKey []byte, cek *[]byte) error {
	key, err := rsaKEK(kek)
	if err != nil {
		return err
	}
	alg, err := headerAlg(h)
	if err != nil {
		return err
	}
	unwrapped, err := key.UnwrapKey(encryptedKey, alg)
	if err != nil {
		return err
	}
	*cek = unwrapped
	return nil
}

func rsaKEK(kek any) (*jwk.RSAKey, error) {
	switch k := kek.(type) {
	case *jwk.RSAKey:
		return k, nil
	case nil:
		return nil, fmt.Errorf("%w: key-encryption key is absent", types.ErrKeyNotFound)
	default:
		return nil, fmt.Errorf("%w: expected an RSA key-encryption key, got %T", types.ErrOperationNotAllowed, kek)
	}
}
