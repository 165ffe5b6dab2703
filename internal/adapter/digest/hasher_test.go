package digest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSHA256Hex(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want string
	}{
		{"empty", []byte{}, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
		{"nil", nil, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
		{"abc", []byte("abc"), "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SHA256Hex(tt.in))
			assert.Equal(t, tt.want, Hasher{}.Hash(tt.in))
		})
	}
}

func TestSHA256Hex_Deterministic(t *testing.T) {
	data := []byte("payload.exe")
	assert.Equal(t, SHA256Hex(data), SHA256Hex(append([]byte(nil), data...)))
	assert.Len(t, SHA256Hex(data), 64)
}
