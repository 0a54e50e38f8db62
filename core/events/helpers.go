package events

import (
	"encoding/hex"
	"math/big"
	"strconv"
	"strings"
)

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func formatUint(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func formatBool(v bool) string {
	return strconv.FormatBool(v)
}

func withHexPrefix(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	return "0x" + hex.EncodeToString(raw)
}

func setIfPresent(attrs map[string]string, key, value string) {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		attrs[key] = trimmed
	}
}
