package qrcode

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecksum_Deterministic(t *testing.T) {
	tests := []struct {
		name    string
		tokenID string
	}{
		{name: "numeric id", tokenID: "123"},
		{name: "long numeric id", tokenID: "987654321012345"},
		{name: "single char", tokenID: "7"},
		{name: "empty", tokenID: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first := Checksum(tt.tokenID)
			second := Checksum(tt.tokenID)
			assert.Equal(t, first, second, "checksum should be stable across calls")
			assert.Len(t, first, 8, "checksum should be 8 hex characters")
			assert.Regexp(t, `^[0-9a-f]{8}$`, first)
		})
	}
}

func TestChecksum_KnownValue(t *testing.T) {
	// "123": h = ('1'*31 + '2')*31 + '3' = 48690
	assert.Equal(t, "0000be32", Checksum("123"))
}

func TestGeneratePayload(t *testing.T) {
	p := GeneratePayload("123")
	assert.Equal(t, Protocol, p.Protocol)
	assert.Equal(t, Version, p.Version)
	assert.Equal(t, "123", p.TokenID)
	assert.Equal(t, Checksum("123"), p.Checksum)
}

func TestEncodePayload(t *testing.T) {
	p := GeneratePayload("123")
	encoded := EncodePayload(p)
	assert.Equal(t, "greenledger://1.0/123#"+p.Checksum, encoded)
}

func TestDecodeQR_RoundTrip(t *testing.T) {
	tests := []string{"123", "456", "99999999999", "1"}
	for _, tokenID := range tests {
		t.Run(tokenID, func(t *testing.T) {
			original := GeneratePayload(tokenID)
			decoded := DecodeQR(EncodePayload(original))
			require.NotNil(t, decoded)
			assert.Equal(t, original.TokenID, decoded.TokenID)
			assert.Equal(t, original.Checksum, decoded.Checksum)
			assert.True(t, ValidatePayload(decoded))
		})
	}
}

func TestDecodeQR_JSONForm(t *testing.T) {
	original := GeneratePayload("456")
	data, err := json.Marshal(original)
	require.NoError(t, err)

	decoded := DecodeQR(string(data))
	require.NotNil(t, decoded)
	assert.Equal(t, original, *decoded)
}

func TestDecodeQR_Malformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "garbage", data: "garbage"},
		{name: "empty", data: ""},
		{name: "wrong scheme", data: "otherledger://1.0/123#0000be32"},
		{name: "wrong version", data: "greenledger://2.0/123#0000be32"},
		{name: "missing checksum", data: "greenledger://1.0/123"},
		{name: "short checksum", data: "greenledger://1.0/123#be32"},
		{name: "uppercase checksum", data: "greenledger://1.0/123#0000BE32"},
		{name: "json wrong protocol", data: `{"protocol":"other","version":"1.0","tokenId":"1","checksum":"00000031"}`},
		{name: "json missing token", data: `{"protocol":"greenledger","version":"1.0","checksum":"00000031"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Nil(t, DecodeQR(tt.data))
		})
	}
}

func TestValidatePayload_Tampered(t *testing.T) {
	p := GeneratePayload("123")
	assert.True(t, ValidatePayload(&p))

	tampered := p
	tampered.TokenID = "124"
	assert.False(t, ValidatePayload(&tampered), "token id swap must fail checksum validation")

	assert.False(t, ValidatePayload(nil))
	assert.False(t, ValidatePayload(&Payload{}))
}
