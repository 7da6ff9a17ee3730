package helpers

import (
	"crypto/sha256"
	"encoding/binary"
)

const base62Charset = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// TinyHash is a short base62 fingerprint of input, good enough to tell two
// recipient lists apart at a glance. Not collision resistant.
func TinyHash(input string) string {
	hash := sha256.Sum256([]byte(input))

	return base62Encode(binary.BigEndian.Uint32(hash[:4]))
}

func base62Encode(num uint32) string {
	if num == 0 {
		return "0"
	}

	var result []byte
	for num > 0 {
		result = append([]byte{base62Charset[num%62]}, result...)
		num /= 62
	}
	return string(result)
}
