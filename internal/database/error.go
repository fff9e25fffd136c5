package database

import "strings"

var duplicateKeyErrStrings = []string{
	"duplicate key",
	"UNIQUE constraint failed",
}

// IsDuplicateKeyErr 返回是否为唯一键冲突错误.
func IsDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	for _, s := range duplicateKeyErrStrings {
		if strings.Contains(err.Error(), s) {
			return true
		}
	}
	return false
}
