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
	"sort"
	"sync"

	"github.com/jeremyhahn/go-josekit/pkg/logging"
)

// Header is the collaborator contract for the JOSE header. The core reads
// and writes the key-management fields (alg, enc, iv, tag, epk, apu, apv,
// p2s, p2c) through this interface and is otherwise opaque to header
// contents.
type Header interface {
	// Get returns the named header field and whether it is present.
	Get(name string) (any, bool)

	// Set stores the named header field, replacing any existing value.
	Set(name string, value any)
}

// EncryptedKeyProducer produces the JWE encrypted key for one recipient.
// The kek parameter is the recipient's key-encryption key (a jwk key
// value); producers that mint header state (ephemeral keys, nonces, PBES2
// salt and iteration count) record it through h before returning.
// Direct-agreement algorithms (dir, ECDH-ES, integrated HPKE) write the
// CEK they determine to *cek and return an empty encrypted key.
// Producers must not capture mutable external state.
type EncryptedKeyProducer func(h Header, alg KeyManagementAlgorithm, kek any, enc ContentEncryptionAlgorithm, cek *[]byte) ([]byte, error)

// DecryptionMutator rewrites the key-encryption key and/or the
// content-encryption key in place before the content cipher runs. The
// encryptedKey parameter is the recipient's encrypted key (empty for
// direct encryption and ECDH-ES); the recovered CEK is written to *cek.
type DecryptionMutator func(h Header, kek any, encryptedKey []byte, cek *[]byte) error

// SignatureMetadata describes a registered signature algorithm.
type SignatureMetadata struct {
	// KeyType is the JWK key type the algorithm operates on.
	KeyType KeyType

	// Curve restricts the algorithm to a single curve, if non-empty.
	Curve EllipticCurve

	// Hash is the digest applied before the primitive signature operation.
	// Empty for algorithms that sign the message directly (EdDSA, ML-DSA).
	Hash HashAlgorithm
}

// KeyManagementMetadata describes a registered key management algorithm.
type KeyManagementMetadata struct {
	// KeyType is the JWK key type of the key-encryption key.
	KeyType KeyType

	// Curve restricts the algorithm to a single curve, if non-empty.
	Curve EllipticCurve

	// Hash is the digest used by the algorithm's KDF or padding scheme,
	// if any (OAEP, PBES2, Concat KDF).
	Hash HashAlgorithm

	// KeySize is the size in bytes of the wrapping or derived key, when
	// the algorithm fixes one (AES-KW, AES-GCM-KW, PBES2, ECDH-ES+A*KW).
	KeySize int

	// Produce creates the encrypted key on the encrypting path.
	Produce EncryptedKeyProducer

	// Consume recovers the CEK on the decrypting path.
	Consume DecryptionMutator
}

// ContentEncryptionMetadata describes a registered content encryption
// algorithm.
type ContentEncryptionMetadata struct {
	// KeySize is the CEK size in bytes.
	KeySize int

	// IVSize is the initialization vector size in bytes.
	IVSize int

	// TagSize is the authentication tag size in bytes.
	TagSize int
}

// CompressionMetadata describes a registered compression algorithm. The
// core only tracks registration so higher layers can probe support before
// selecting a codec; codec behavior itself lives outside the core.
type CompressionMetadata struct {
	// Codec is the caller-supplied codec implementation, opaque to the
	// core.
	Codec any
}

// CurveMetadata describes a registered elliptic curve.
type CurveMetadata struct {
	// KeyType is the JWK key type the curve belongs to (EC or OKP).
	KeyType KeyType

	// CoordinateSize is the size in bytes of one coordinate (or of the
	// raw key for OKP curves). Raw point encodings are disambiguated by
	// this size alone.
	CoordinateSize int
}

// table is a synchronized identifier-to-metadata map. Reads take the
// shared lock so many resolutions proceed concurrently; Register takes the
// exclusive lock so a reader never observes a partially-written entry.
type table[K ~string, V any] struct {
	mu      sync.RWMutex
	entries map[K]V
}

func newTable[K ~string, V any]() *table[K, V] {
	return &table[K, V]{entries: make(map[K]V)}
}

func (t *table[K, V]) resolve(id K) (V, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.entries[id]
	return v, ok
}

func (t *table[K, V]) register(id K, meta V) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[id] = meta
}

func (t *table[K, V]) registered() []K {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ids := make([]K, 0, len(t.entries))
	for id := range t.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Registry holds the process's algorithm, hash, compression, and curve
// tables. It is safe for concurrent use. Registration overwrites any
// existing entry for the identifier (last writer wins) and is visible to
// all readers immediately.
type Registry struct {
	signature  *table[SignatureAlgorithm, SignatureMetadata]
	keyMgmt    *table[KeyManagementAlgorithm, KeyManagementMetadata]
	contentEnc *table[ContentEncryptionAlgorithm, ContentEncryptionMetadata]
	hashes     *table[HashAlgorithm, HashMetadata]
	compress   *table[CompressionAlgorithm, CompressionMetadata]
	curves     *table[EllipticCurve, CurveMetadata]

	logger *logging.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets the logger used for registry events.
func WithLogger(logger *logging.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = logger
	}
}

// NewRegistry creates an empty Registry. Most callers want
// DefaultRegistry, which is pre-populated with the RFC-registered
// algorithms; an empty registry is useful for tests and for applications
// that restrict the algorithm surface explicitly.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		signature:  newTable[SignatureAlgorithm, SignatureMetadata](),
		keyMgmt:    newTable[KeyManagementAlgorithm, KeyManagementMetadata](),
		contentEnc: newTable[ContentEncryptionAlgorithm, ContentEncryptionMetadata](),
		hashes:     newTable[HashAlgorithm, HashMetadata](),
		compress:   newTable[CompressionAlgorithm, CompressionMetadata](),
		curves:     newTable[EllipticCurve, CurveMetadata](),
		logger:     logging.DefaultLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var (
	defaultMu       sync.Mutex
	defaultRegistry *Registry
	defaultHooks    []func(*Registry)
)

// DefaultRegistry returns the process-wide registry, populated on first
// use with the RFC-registered algorithm sets. The registry remains mutable
// for the process lifetime via the Register methods.
func DefaultRegistry() *Registry {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultRegistry == nil {
		r := NewRegistry()
		registerDefaults(r)
		for _, fn := range defaultHooks {
			fn(r)
		}
		defaultRegistry = r
	}
	return defaultRegistry
}

// OnDefaultRegistry arranges for fn to run against the default registry
// when it is first built. Packages that contribute algorithm handlers
// (notably keymgmt, whose encrypted-key closures cannot live here without
// an import cycle) call this from init. If the default registry already
// exists, fn runs immediately.
func OnDefaultRegistry(fn func(*Registry)) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultRegistry != nil {
		fn(defaultRegistry)
		return
	}
	defaultHooks = append(defaultHooks, fn)
}

// ResolveSignature looks up a signature algorithm. Resolution is a pure
// table lookup; a missing entry is a normal outcome, not an error.
func (r *Registry) ResolveSignature(alg SignatureAlgorithm) (SignatureMetadata, bool) {
	return r.signature.resolve(alg)
}

// RegisterSignature registers or replaces a signature algorithm.
func (r *Registry) RegisterSignature(alg SignatureAlgorithm, meta SignatureMetadata) {
	r.signature.register(alg, meta)
	r.logger.Debug("registered signature algorithm", "alg", alg.String())
}

// SignatureAlgorithms returns the registered signature algorithm
// identifiers in lexical order.
func (r *Registry) SignatureAlgorithms() []SignatureAlgorithm {
	return r.signature.registered()
}

// ResolveKeyManagement looks up a key management algorithm.
func (r *Registry) ResolveKeyManagement(alg KeyManagementAlgorithm) (KeyManagementMetadata, bool) {
	return r.keyMgmt.resolve(alg)
}

// RegisterKeyManagement registers or replaces a key management algorithm.
func (r *Registry) RegisterKeyManagement(alg KeyManagementAlgorithm, meta KeyManagementMetadata) {
	r.keyMgmt.register(alg, meta)
	r.logger.Debug("registered key management algorithm", "alg", alg.String())
}

// KeyManagementAlgorithms returns the registered key management algorithm
// identifiers in lexical order.
func (r *Registry) KeyManagementAlgorithms() []KeyManagementAlgorithm {
	return r.keyMgmt.registered()
}

// ResolveContentEncryption looks up a content encryption algorithm.
func (r *Registry) ResolveContentEncryption(alg ContentEncryptionAlgorithm) (ContentEncryptionMetadata, bool) {
	return r.contentEnc.resolve(alg)
}

// RegisterContentEncryption registers or replaces a content encryption
// algorithm.
func (r *Registry) RegisterContentEncryption(alg ContentEncryptionAlgorithm, meta ContentEncryptionMetadata) {
	r.contentEnc.register(alg, meta)
	r.logger.Debug("registered content encryption algorithm", "alg", alg.String())
}

// ContentEncryptionAlgorithms returns the registered content encryption
// algorithm identifiers in lexical order.
func (r *Registry) ContentEncryptionAlgorithms() []ContentEncryptionAlgorithm {
	return r.contentEnc.registered()
}

// ResolveHash looks up a named hash function.
func (r *Registry) ResolveHash(alg HashAlgorithm) (HashMetadata, bool) {
	return r.hashes.resolve(alg)
}

// RegisterHash registers or replaces a named hash function.
func (r *Registry) RegisterHash(alg HashAlgorithm, meta HashMetadata) {
	r.hashes.register(alg, meta)
	r.logger.Debug("registered hash algorithm", "alg", alg.String())
}

// HashAlgorithms returns the registered hash algorithm identifiers in
// lexical order.
func (r *Registry) HashAlgorithms() []HashAlgorithm {
	return r.hashes.registered()
}

// ResolveCompression looks up a compression algorithm.
func (r *Registry) ResolveCompression(alg CompressionAlgorithm) (CompressionMetadata, bool) {
	return r.compress.resolve(alg)
}

// RegisterCompression registers or replaces a compression algorithm.
func (r *Registry) RegisterCompression(alg CompressionAlgorithm, meta CompressionMetadata) {
	r.compress.register(alg, meta)
	r.logger.Debug("registered compression algorithm", "alg", alg.String())
}

// CompressionAlgorithms returns the registered compression algorithm
// identifiers in lexical order.
func (r *Registry) CompressionAlgorithms() []CompressionAlgorithm {
	return r.compress.registered()
}

// ResolveCurve looks up an elliptic curve.
func (r *Registry) ResolveCurve(crv EllipticCurve) (CurveMetadata, bool) {
	return r.curves.resolve(crv)
}

// RegisterCurve registers or replaces an elliptic curve.
func (r *Registry) RegisterCurve(crv EllipticCurve, meta CurveMetadata) {
	r.curves.register(crv, meta)
	r.logger.Debug("registered curve", "crv", crv.String())
}

// Curves returns the registered curve identifiers in lexical order.
func (r *Registry) Curves() []EllipticCurve {
	return r.curves.registered()
}

// CurveForCoordinateSize returns the registered EC curve whose coordinate
// size matches, disambiguating raw point encodings whose length alone
// determines the curve. OKP curves are excluded: their raw encodings are
// fixed to the curve by the key type.
// When several curves share a size (P-256 and secp256k1 are both 32
// bytes), the lexically first identifier wins, which favors the NIST
// curve; callers that mean secp256k1 must say so explicitly.
func (r *Registry) CurveForCoordinateSize(size int) (EllipticCurve, bool) {
	r.curves.mu.RLock()
	defer r.curves.mu.RUnlock()
	var match EllipticCurve
	for crv, meta := range r.curves.entries {
		if meta.KeyType != EC || meta.CoordinateSize != size {
			continue
		}
		if match == "" || crv < match {
			match = crv
		}
	}
	return match, match != ""
}
