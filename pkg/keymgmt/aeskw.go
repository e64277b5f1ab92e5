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
	"github.com/jeremyhahn/go-josekit/pkg/jwa"
)

// registerAESKW binds the RFC 3394 AES Key Wrap algorithms. The wrap and
// unwrap primitives live on the symmetric key capability; the closures
// only route and enforce the KEK size recorded in the metadata.
func registerAESKW(r *jwa.Registry) {
	for alg, size := range map[jwa.KeyManagementAlgorithm]int{
		jwa.A128KW: 16,
		jwa.A192KW: 24,
		jwa.A256KW: 32,
	} {
		r.RegisterKeyManagement(alg, jwa.KeyManagementMetadata{
			KeyType: jwa.Oct,
			KeySize: size,
			Produce: produceAESKW,
			Consume: consumeAESKW,
		})
	}
}

func produceAESKW(h jwa.Header, alg jwa.KeyManagementAlgorithm, kek any, enc jwa.ContentEncryptionAlgorithm, cek *[]byte) ([]byte, error) {
	key, err := symmetricKEK(kek)
	if err != nil {
		return nil, err
	}
	return key.WrapKey(*cek, alg)
}

func consumeAESKW(h jwa.Header, kek any, encryptedKey []byte, cek *[]byte) error {
	key, err := symmetricKEK(kek)
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
