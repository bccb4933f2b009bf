package ics

import (
	"encoding/base64"
	"fmt"
)

// Binary holds a BASE64 encoded BINARY value.
type Binary struct {
	value string
}

// BinaryFromString wraps an already encoded value.
func BinaryFromString(s string) *Binary {
	return &Binary{value: s}
}

// NewBinary encodes raw data.
func NewBinary(data []byte) *Binary {
	b := &Binary{}
	b.SetEncodedValue(data)
	return b
}

// DecodeValue returns the decoded bytes.
func (b *Binary) DecodeValue() ([]byte, error) {
	d, err := base64.StdEncoding.DecodeString(b.value)
	if err != nil {
		return nil, fmt.Errorf("decoding binary value: %w", err)
	}
	return d, nil
}

// SetEncodedValue replaces the value with the encoding of data.
func (b *Binary) SetEncodedValue(data []byte) {
	b.value = base64.StdEncoding.EncodeToString(data)
}

func (b *Binary) ValueDataType() ValueDataType { return ValueDataTypeBinary }

func (b *Binary) ToICALString() string { return b.value }

func (b *Binary) String() string { return b.value }
