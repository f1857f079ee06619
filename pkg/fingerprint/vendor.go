package fingerprint

import (
	"encoding/hex"

	"github.com/google/gopacket/macs"

	"github.com/ExclusiveAccount/marauder-link/pkg/models"
)

// LookupVendor resolves a hardware address to its manufacturer using the
// IEEE OUI table bundled with gopacket. The address may use any separator
// style; an unknown or malformed address yields an empty string rather
// than an error, since vendor names are cosmetic enrichment only.
func LookupVendor(address string) string {
	normalized := models.NormalizeAddress(address)
	if len(normalized) < 6 {
		return ""
	}

	raw, err := hex.DecodeString(normalized[:6])
	if err != nil || len(raw) != 3 {
		return ""
	}

	var prefix [3]byte
	copy(prefix[:], raw)
	return macs.ValidMACPrefixMap[prefix]
}
