package crypto

import (
	"crypto/rsa"
	"encoding/base64"
	"strings"
	"unicode"
)

// B64 returns standard base64 encoding without newlines.
func B64(b []byte) string { return base64.StdEncoding.EncodeToString(b) }

// DecodeB64 decodes standard base64, ignoring PEM header/footer lines,
// surrounding quotes and any whitespace.
func DecodeB64(s string) ([]byte, error) {
	var sb strings.Builder
	for _, line := range strings.Split(s, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "-----") {
			continue
		}
		sb.WriteString(line)
	}
	clean := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '"' {
			return -1
		}
		return r
	}, sb.String())
	return base64.StdEncoding.DecodeString(clean)
}

// PublicKeyB64 encodes pub as base64 SPKI.
func PublicKeyB64(pub *rsa.PublicKey) (string, error) {
	der, err := MarshalPublicKey(pub)
	if err != nil {
		return "", err
	}
	return B64(der), nil
}

// ParsePublicKeyB64 decodes base64 (optionally PEM-armoured) SPKI.
func ParsePublicKeyB64(s string) (*rsa.PublicKey, error) {
	der, err := DecodeB64(s)
	if err != nil {
		return nil, err
	}
	return ParsePublicKey(der)
}
