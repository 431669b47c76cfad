package core

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"sort"
)

// Fingerprint is the deterministic identity of one node execution.
//
// Includes: node identity, declared parameters, the content digest and the
// fingerprint of every resolved input.
// Excludes: timestamps, run ids, host data, execution history.
//
// Any change to an included component MUST produce a different Fingerprint.
type Fingerprint string

// String returns the hex representation of the Fingerprint.
func (f Fingerprint) String() string { return string(f) }

// Short returns the first 12 hex characters, for logs.
func (f Fingerprint) Short() string {
	if len(f) <= 12 {
		return string(f)
	}
	return string(f[:12])
}

// InputDigest identifies one resolved dependency output.
type InputDigest struct {
	Name   string
	Digest string
	// Upstream is the fingerprint that produced the output. It chains keys
	// through the graph: a change anywhere upstream reaches every
	// descendant even when an intermediate output is byte-identical.
	Upstream Fingerprint
}

// FingerprintInput contains all components of a node Fingerprint.
type FingerprintInput struct {
	// Node is the node's declared name.
	Node string

	// Params are the node's declared parameters (sorted by key when hashed).
	Params map[string]string

	// Inputs are the resolved dependency outputs (sorted by name when
	// hashed).
	Inputs []InputDigest
}

// Fingerprinter computes Fingerprints.
//
// The computation is:
//   - Deterministic: identical inputs always produce identical fingerprints
//   - Content-based: uses input digests, never "ran before" state
//   - Ordered: params and inputs are sorted before hashing
type Fingerprinter struct{}

// NewFingerprinter creates a Fingerprinter.
func NewFingerprinter() *Fingerprinter {
	return &Fingerprinter{}
}

// Compute returns the Fingerprint of in.
//
// Components are written in a fixed order:
//  1. Node name
//  2. Sorted params (key, value)
//  3. Sorted inputs (name, digest, upstream fingerprint)
//
// Every field and every count is length-prefixed to prevent ambiguity.
func (f *Fingerprinter) Compute(in FingerprintInput) Fingerprint {
	h := sha256.New()

	writeField([]byte(in.Node), h)

	keys := make([]string, 0, len(in.Params))
	for k := range in.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	writeCount(len(keys), h)
	for _, k := range keys {
		writeField([]byte(k), h)
		writeField([]byte(in.Params[k]), h)
	}

	inputs := make([]InputDigest, len(in.Inputs))
	copy(inputs, in.Inputs)
	sort.Slice(inputs, func(i, j int) bool { return inputs[i].Name < inputs[j].Name })
	writeCount(len(inputs), h)
	for _, d := range inputs {
		writeField([]byte(d.Name), h)
		writeField([]byte(d.Digest), h)
		writeField([]byte(d.Upstream), h)
	}

	return Fingerprint(hex.EncodeToString(h.Sum(nil)))
}

// Digest returns the hex sha256 of data.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// writeField writes an 8-byte big-endian length prefix followed by data.
func writeField(data []byte, h hash.Hash) {
	writeCount(len(data), h)
	h.Write(data)
}

func writeCount(n int, h hash.Hash) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(n))
	h.Write(b[:])
}
