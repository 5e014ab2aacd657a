// Package proofs implements the cryptographic primitives that make the
// change journal tamper-evident: Keccak-256 digests chained record to record,
// so any rewritten or dropped entry breaks every digest after it.
package proofs
