package common

import (
	"strings"

	"github.com/google/uuid"
)

// NewCutUUIDString returns a uuid string without `-`.
func NewCutUUIDString() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// Preview 截取前n个字符用于日志，超出部分以...表示
func Preview(str string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(str)
	if len(runes) <= n {
		return str
	}
	return string(runes[:n]) + "..."
}
