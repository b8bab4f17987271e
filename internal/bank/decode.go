package bank

import (
	"bytes"
	"fmt"
	"os"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// readTextFile reads a memory-bank file and normalizes it to UTF-8.
// Editors occasionally save these human-edited files as UTF-16; the BOM
// decides which decoder runs. A UTF-8 BOM is stripped.
func readTextFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	switch {
	case len(data) >= 3 && bytes.Equal(data[:3], []byte{0xEF, 0xBB, 0xBF}):
		return string(data[3:]), nil

	case len(data) >= 2 && bytes.Equal(data[:2], []byte{0xFF, 0xFE}):
		return decodeUTF16(data, unicode.LittleEndian)

	case len(data) >= 2 && bytes.Equal(data[:2], []byte{0xFE, 0xFF}):
		return decodeUTF16(data, unicode.BigEndian)

	default:
		return string(data), nil
	}
}

func decodeUTF16(data []byte, endianness unicode.Endianness) (string, error) {
	decoder := unicode.UTF16(endianness, unicode.UseBOM).NewDecoder()
	decoded, _, err := transform.Bytes(decoder, data)
	if err != nil {
		return "", fmt.Errorf("decode utf-16: %w", err)
	}
	return string(decoded), nil
}
