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
	"encoding/base64"
	"fmt"

	"github.com/jeremyhahn/go-josekit/pkg/jwa"
	"github.com/jeremyhahn/go-josekit/pkg/types"
)

// thumbprintFields returns the RFC 7638 required members for a key type,
// already in the lexicographic order the construction demands. OKP
// membership follows RFC 8037 Appendix A.3; AKP membership follows
// draft-ietf-cose-dilithium.
func thumbprintFields(kty jwa.KeyType) ([]string, error) {
	switch kty {
	case jwa.EC:
		return []string{FieldCurve, FieldKeyType, FieldX, FieldY}, nil
	case jwa.RSA:
		return []string{FieldE, FieldKeyType, FieldN}, nil
	case jwa.Oct:
		return []string{FieldK, FieldKeyType}, nil
	case jwa.OKP:
		return []string{FieldCurve, FieldKeyType, FieldX}, nil
	case jwa.AKP:
		return []string{FieldAlg, FieldKeyType, FieldPub}, nil
	default:
		return nil, fmt.Errorf("%w: no thumbprint members for kty %q", types.ErrUnknownKeyType, kty)
	}
}

// Thumbprint computes the RFC 7638 thumbprint of a key under the named
// hash: the digest of the canonical JSON object holding only the required
// members, sorted, with no insignificant whitespace. The result is stable
// across field insertion order and across public/private views of the
// same key.
func Thumbprint(key Key, alg jwa.HashAlgorithm, reg *jwa.Registry) ([]byte, error) {
	if reg == nil {
		reg = jwa.DefaultRegistry()
	}
	hashMeta, ok := reg.ResolveHash(alg)
	if !ok {
		return nil, fmt.Errorf("%w: hash %q", types.ErrUnknownAlgorithm, alg)
	}

	fields, err := thumbprintFields(key.KeyType())
	if err != nil {
		return nil, err
	}

	src := key.Storage()
	subset := NewStorage()
	for _, name := range fields {
		v, ok := src.Get(name)
		if !ok {
			return nil, fmt.Errorf("%w: thumbprint member %q is missing", types.ErrInvalidKeyFormat, name)
		}
		subset.Set(name, v)
	}

	canonical, err := subset.MarshalJSON()
	if err != nil {
		return nil, err
	}

	h := hashMeta.New()
	h.Write(canonical)
	return h.Sum(nil), nil
}

// ThumbprintString returns the base64url (no padding) form of Thumbprint,
// the conventional kid value.
func ThumbprintString(key Key, alg jwa.HashAlgorithm, reg *jwa.Registry) (string, error) {
	tp, err := Thumbprint(key, alg, reg)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(tp), nil
}
