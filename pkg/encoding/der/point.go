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
	"crypto/elliptic"
	"fmt"
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/jeremyhahn/go-josekit/pkg/jwa"
	"github.com/jeremyhahn/go-josekit/pkg/jwk"
	"github.com/jeremyhahn/go-josekit/pkg/types"
)

// PointFormat selects an EC public point wire encoding.
type PointFormat int

const (
	// PointRaw is x||y with fixed-width coordinates.
	PointRaw PointFormat = iota
	// PointX963 is the X9.63 uncompressed form, 0x04||x||y.
	PointX963
	// PointCompressed is the X9.63 compressed form, a 0x02/0x03 sign
	// byte followed by x.
	PointCompressed
)

// ExportPoint serializes an EC key's public point.
func ExportPoint(key *jwk.ECKey, format PointFormat) ([]byte, error) {
	s := key.Storage()
	x, err := s.GetBytes(jwk.FieldX)
	if err != nil {
		return nil, err
	}
	y, err := s.GetBytes(jwk.FieldY)
	if err != nil {
		return nil, err
	}
	if len(x) != len(y) {
		return nil, fmt.Errorf("%w: coordinate lengths differ", types.ErrInvalidKeyFormat)
	}

	switch format {
	case PointRaw:
		return append(append(make([]byte, 0, len(x)+len(y)), x...), y...), nil
	case PointX963:
		point := make([]byte, 0, 1+len(x)+len(y))
		point = append(point, 0x04)
		point = append(point, x...)
		point = append(point, y...)
		return point, nil
	case PointCompressed:
		sign := byte(0x02)
		if len(y) > 0 && y[len(y)-1]&1 == 1 {
			sign = 0x03
		}
		return append(append(make([]byte, 0, 1+len(x)), sign), x...), nil
	default:
		return nil, fmt.Errorf("%w: unknown point format %d", types.ErrInvalidKeyFormat, format)
	}
}

// ImportPoint parses an EC public point in raw, X9.63 uncompressed or
// X9.63 compressed form. The curve is inferred from the coordinate
// length through the registry's curve table, so curves sharing a
// coordinate size (P-256 and secp256k1) resolve to the NIST curve; use
// ImportPointOnCurve when the curve is known. A nil registry means the
// default registry.
func ImportPoint(data []byte, reg *jwa.Registry) (*jwk.ECKey, error) {
	if reg == nil {
		reg = jwa.DefaultRegistry()
	}

	var size int
	switch {
	case len(data) > 1 && data[0] == 0x04 && (len(data)-1)%2 == 0:
		size = (len(data) - 1) / 2
	case len(data) > 1 && (data[0] == 0x02 || data[0] == 0x03):
		size = len(data) - 1
	case len(data) > 0 && len(data)%2 == 0:
		size = len(data) / 2
	default:
		return nil, fmt.Errorf("%w: unrecognized point encoding", types.ErrInvalidKeyFormat)
	}

	crv, ok := reg.CurveForCoordinateSize(size)
	if !ok {
		return nil, fmt.Errorf("%w: no curve with %d-byte coordinates", types.ErrInvalidKeyFormat, size)
	}
	return ImportPointOnCurve(data, crv)
}

// ImportPointOnCurve parses an EC public point known to lie on the given
// curve.
func ImportPointOnCurve(data []byte, crv jwa.EllipticCurve) (*jwk.ECKey, error) {
	var x, y []byte

	switch {
	case len(data) > 1 && data[0] == 0x04 && (len(data)-1)%2 == 0:
		size := (len(data) - 1) / 2
		x, y = data[1:1+size], data[1+size:]
	case len(data) > 1 && (data[0] == 0x02 || data[0] == 0x03):
		var err error
		if x, y, err = decompressPoint(data, crv); err != nil {
			return nil, err
		}
	case len(data) > 0 && len(data)%2 == 0:
		x, y = data[:len(data)/2], data[len(data)/2:]
	default:
		return nil, fmt.Errorf("%w: unrecognized point encoding", types.ErrInvalidKeyFormat)
	}

	s := jwk.NewStorage()
	s.SetString(jwk.FieldKeyType, jwa.EC.String())
	s.SetString(jwk.FieldCurve, crv.String())
	s.SetBytes(jwk.FieldX, x)
	s.SetBytes(jwk.FieldY, y)
	key, err := jwk.FromStorage(s)
	if err != nil {
		return nil, err
	}
	return key.(*jwk.ECKey), nil
}

// decompressPoint recovers the full coordinates from a compressed
// encoding.
func decompressPoint(data []byte, crv jwa.EllipticCurve) (x, y []byte, err error) {
	size := len(data) - 1

	if crv == jwa.Secp256k1 {
		pub, err := secp256k1.ParsePubKey(data)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", types.ErrInvalidKeyFormat, err)
		}
		return fixedWidth(pub.X(), size), fixedWidth(pub.Y(), size), nil
	}

	var curve elliptic.Curve
	switch crv {
	case jwa.P256:
		curve = elliptic.P256()
	case jwa.P384:
		curve = elliptic.P384()
	case jwa.P521:
		curve = elliptic.P521()
	default:
		return nil, nil, fmt.Errorf("%w: cannot decompress a point on %s", types.ErrInvalidKeyFormat, crv)
	}

	bx, by := elliptic.UnmarshalCompressed(curve, data)
	if bx == nil {
		return nil, nil, fmt.Errorf("%w: point is not on %s", types.ErrInvalidKeyFormat, crv)
	}
	return fixedWidth(bx, size), fixedWidth(by, size), nil
}

func fixedWidth(v *big.Int, size int) []byte {
	return v.FillBytes(make([]byte, size))
}
