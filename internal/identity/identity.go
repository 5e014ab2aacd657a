// Package identity defines the actor and holder identity model shared by all
// vault components. Identities are 20-byte Ethereum-style addresses so that
// deployments can reuse existing key material, explorers, and signing tools.
package identity

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Identity is the canonical actor address. The zero value is the null
// identity and is never accepted as a caller, holder, or recipient.
type Identity = common.Address

// Null is the all-zero identity.
var Null = Identity{}

// IsNull reports whether id is the null identity.
func IsNull(id Identity) bool {
	return id == Null
}

// Parse decodes a hex-encoded identity, accepting 0x-prefixed and bare forms.
// The null identity parses successfully; call sites that forbid it check
// IsNull themselves so the rejection carries their own error code.
func Parse(raw string) (Identity, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Null, fmt.Errorf("identity is empty")
	}
	if !common.IsHexAddress(trimmed) {
		return Null, fmt.Errorf("invalid identity %q", raw)
	}
	return common.HexToAddress(trimmed), nil
}

// MustParse is Parse for fixed identities in tests and genesis fixtures.
func MustParse(raw string) Identity {
	id, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return id
}

// Short renders an abbreviated identity for log lines, keeping the leading
// and trailing nibbles.
func Short(id Identity) string {
	hex := id.Hex()
	if len(hex) <= 12 {
		return hex
	}
	return hex[:6] + ".." + hex[len(hex)-4:]
}
