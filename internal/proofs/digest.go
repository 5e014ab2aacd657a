package proofs

import (
	"encoding/hex"

	"github.com/ethereum/go-ethereum/crypto"
)

// ChainDigest computes the hex-encoded Keccak-256 digest of a record payload
// bound to its predecessor's digest. The first record of a chain passes an
// empty prev.
func ChainDigest(prev string, payload []byte) string {
	sum := crypto.Keccak256([]byte(prev), payload)
	return hex.EncodeToString(sum)
}

// VerifyChainDigest reports whether digest matches payload chained onto prev.
func VerifyChainDigest(prev string, payload []byte, digest string) bool {
	return ChainDigest(prev, payload) == digest
}
