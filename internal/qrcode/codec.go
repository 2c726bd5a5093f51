package qrcode

import (
	"encoding/json"
	"fmt"
	"regexp"
)

const (
	// Protocol is the scheme embedded in every GreenLedger QR code.
	Protocol = "greenledger"
	// Version is the payload format version.
	Version = "1.0"
)

// Payload is the structured form of a GreenLedger QR code.
type Payload struct {
	Protocol string `json:"protocol"`
	Version  string `json:"version"`
	TokenID  string `json:"tokenId"`
	Checksum string `json:"checksum"`
}

var uriPattern = regexp.MustCompile(`^greenledger://1\.0/([^#]+)#([0-9a-f]{8})$`)

// Checksum computes the rolling-hash checksum for a token id: each character
// folded into a 32-bit signed accumulator (h = h*31 + ch), absolute value,
// lowercase hex zero-padded to 8 characters. Deterministic and trivially
// forgeable; it exists for casual tamper detection, not security.
func Checksum(tokenID string) string {
	var h int32
	for _, ch := range tokenID {
		h = h*31 + int32(ch)
	}
	if h < 0 {
		h = -h
	}
	return fmt.Sprintf("%08x", uint32(h))
}

// GeneratePayload builds a payload for a token id, computing its checksum.
func GeneratePayload(tokenID string) Payload {
	return Payload{
		Protocol: Protocol,
		Version:  Version,
		TokenID:  tokenID,
		Checksum: Checksum(tokenID),
	}
}

// EncodePayload formats a payload in the compact URI form.
func EncodePayload(p Payload) string {
	return fmt.Sprintf("%s://%s/%s#%s", p.Protocol, p.Version, p.TokenID, p.Checksum)
}

// DecodeQR parses scanned QR content. It tries the JSON form first, then the
// URI form. Returns nil when the content is not a GreenLedger code; it never
// returns an error because unscannable content is an expected input, not a
// failure. The embedded checksum is not recomputed here; callers that care
// about tampering must check ValidatePayload before trusting the token id.
func DecodeQR(data string) *Payload {
	var p Payload
	if err := json.Unmarshal([]byte(data), &p); err == nil {
		if p.Protocol == Protocol && p.Version == Version && p.TokenID != "" {
			return &p
		}
		return nil
	}

	m := uriPattern.FindStringSubmatch(data)
	if m == nil {
		return nil
	}
	return &Payload{
		Protocol: Protocol,
		Version:  Version,
		TokenID:  m[1],
		Checksum: m[2],
	}
}

// ValidatePayload recomputes the checksum and compares it against the one
// embedded in the payload.
func ValidatePayload(p *Payload) bool {
	if p == nil || p.TokenID == "" {
		return false
	}
	return p.Checksum == Checksum(p.TokenID)
}
