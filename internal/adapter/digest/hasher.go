package digest

import (
	"crypto/sha256"
	"encoding/hex"
)

// SHA256Hex 计算小写十六进制的 SHA-256，空输入得到 e3b0c442...
func SHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Hasher 可注入的 SHA256Hex
type Hasher struct{}

// Hash 计算摘要
func (Hasher) Hash(data []byte) string {
	return SHA256Hex(data)
}
