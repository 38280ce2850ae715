package crypto

import (
	"crypto/rsa"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// fingerprintBytes is how much of the SHA-256 digest is shown.
const fingerprintBytes = 16

// FingerprintRSA returns the SHA-256 of pub's SPKI encoding, truncated and
// printed as upper-case hex in groups of four, e.g. "1A2B 3C4D ...".
func FingerprintRSA(pub *rsa.PublicKey) (string, error) {
	der, err := MarshalPublicKey(pub)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(der)
	digits := strings.ToUpper(hex.EncodeToString(sum[:fingerprintBytes]))

	groups := make([]string, 0, len(digits)/4)
	for i := 0; i < len(digits); i += 4 {
		groups = append(groups, digits[i:i+4])
	}
	return strings.Join(groups, " "), nil
}
