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

// Package concatkdf implements the Concat key derivation function from
// NIST SP 800-56A Section 5.8.1, as profiled by RFC 7518 Section 4.6 for
// the ECDH-ES family of JOSE key management algorithms.
package concatkdf

import (
	"encoding/binary"
	"fmt"
	"hash"
)

// Derive derives keyLen bytes from the shared secret z.
//
// The OtherInfo structure follows RFC 7518 Section 4.6.2: AlgorithmID,
// PartyUInfo, and PartyVInfo are each length-prefixed with a 32-bit
// big-endian count, and SuppPubInfo is the derived key length in bits.
// For bare ECDH-ES the algorithm ID is the content encryption algorithm;
// for the +A*KW composites it is the key management algorithm itself.
func Derive(newHash func() hash.Hash, z []byte, keyLen int, algID, apu, apv []byte) ([]byte, error) {
	if keyLen <= 0 {
		return nil, fmt.Errorf("derived key length must be positive, got %d", keyLen)
	}

	h := newHash()
	hashSize := h.Size()
	reps := (keyLen + hashSize - 1) / hashSize

	// SP 800-56A caps the counter at 2^32-1 rounds; any practical JOSE
	// key length is a handful of rounds.
	if reps > int(^uint32(0)) {
		return nil, fmt.Errorf("derived key length %d is too large", keyLen)
	}

	otherInfo := make([]byte, 0, 12+len(algID)+len(apu)+len(apv)+4)
	otherInfo = appendLenPrefixed(otherInfo, algID)
	otherInfo = appendLenPrefixed(otherInfo, apu)
	otherInfo = appendLenPrefixed(otherInfo, apv)
	otherInfo = binary.BigEndian.AppendUint32(otherInfo, uint32(keyLen)*8)

	out := make([]byte, 0, reps*hashSize)
	counter := make([]byte, 4)
	for i := 1; i <= reps; i++ {
		binary.BigEndian.PutUint32(counter, uint32(i))
		h.Reset()
		h.Write(counter)
		h.Write(z)
		h.Write(otherInfo)
		out = h.Sum(out)
	}

	return out[:keyLen], nil
}

func appendLenPrefixed(dst, data []byte) []byte {
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(data)))
	return append(dst, data...)
}
