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

package der

import (
	"encoding/pem"
	"fmt"

	"github.com/jeremyhahn/go-josekit/pkg/jwk"
	"github.com/jeremyhahn/go-josekit/pkg/types"
)

// PEM block types.
const (
	PEMTypePublicKey           = "PUBLIC KEY"
	PEMTypePrivateKey          = "PRIVATE KEY"
	PEMTypeEncryptedPrivateKey = "ENCRYPTED PRIVATE KEY"
	PEMTypeECPrivateKey        = "EC PRIVATE KEY"
)

// ExportPublicPEM serializes a key's public part as a PEM-armored SPKI.
func ExportPublicPEM(key jwk.Key) ([]byte, error) {
	encoded, err := ExportSPKI(key)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: PEMTypePublicKey, Bytes: encoded}), nil
}

// ExportPrivatePEM serializes a private key as PEM-armored PKCS#8. A
// non-empty password produces an encrypted PKCS#8 block.
func ExportPrivatePEM(key jwk.Key, password []byte) ([]byte, error) {
	if len(password) > 0 {
		encoded, err := ExportEncryptedPKCS8(key, password)
		if err != nil {
			return nil, err
		}
		return pem.EncodeToMemory(&pem.Block{Type: PEMTypeEncryptedPrivateKey, Bytes: encoded}), nil
	}
	encoded, err := ExportPKCS8(key)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: PEMTypePrivateKey, Bytes: encoded}), nil
}

// ImportPEM parses the first PEM block in data, dispatching on the block
// type. Encrypted private key blocks require a password.
func ImportPEM(data, password []byte) (jwk.Key, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block found", types.ErrInvalidKeyFormat)
	}

	switch block.Type {
	case PEMTypePublicKey:
		return ImportSPKI(block.Bytes)
	case PEMTypePrivateKey:
		return ImportPKCS8(block.Bytes)
	case PEMTypeEncryptedPrivateKey:
		if len(password) == 0 {
			return nil, fmt.Errorf("%w: encrypted PEM block requires a password", types.ErrKeyNotFound)
		}
		return ImportEncryptedPKCS8(block.Bytes, password)
	case PEMTypeECPrivateKey:
		return ImportSEC1(block.Bytes)
	default:
		return nil, fmt.Errorf("%w: unsupported PEM block type %q", types.ErrInvalidKeyFormat, block.Type)
	}
}
