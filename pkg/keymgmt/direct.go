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
	"crypto/subtle"
	"fmt"

	"github.com/jeremyhahn/go-josekit/pkg/jwa"
	"github.com/jeremyhahn/go-josekit/pkg/types"
)

// registerDirect binds direct encryption: the KEK is the CEK, the
// encrypted key is empty.
func registerDirect(r *jwa.Registry) {
	r.RegisterKeyManagement(jwa.Direct, jwa.KeyManagementMetadata{
		KeyType: jwa.Oct,
		Produce: produceDirect,
		Consume: consumeDirect,
	})
}

func produceDirect(h jwa.Header, alg jwa.KeyManagementAlgorithm, kek any, enc jwa.ContentEncryptionAlgorithm, cek *[]byte) ([]byte, error) {
	key, err := symmetricKEK(kek)
	if err != nil {
		return nil, err
	}
	raw, err := key.Raw()
	if err != nil {
		return nil, err
	}
	secret := raw.([]byte)

	// A caller-chosen CEK that differs from the shared key is a misuse,
	// not something to silently overwrite.
	if len(*cek) > 0 && subtle.ConstantTimeCompare(*cek, secret) != 1 {
		return nil, fmt.Errorf("%w: direct encryption cannot use a CEK distinct from the shared key", types.ErrOperationNotAllowed)
	}
	*cek = secret
	return nil, nil
}

func consumeDirect(h jwa.Header, kek any, encryptedKey []byte, cek *[]byte) error {
	if len(encryptedKey) != 0 {
		return fmt.Errorf("%w: direct encryption carries no encrypted key", types.ErrInvalidKeyFormat)
	}
	key, err := symmetricKEK(kek)
	if err != nil {
		return err
	}
	raw, err := key.Raw()
	if err != nil {
		return err
	}
	*cek = raw.([]byte)
	return nil
}
