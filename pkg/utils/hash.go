package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// HashPhone returns a hex-encoded sha256 digest of a phone number. Send logs
// store this instead of the raw number.
func HashPhone(phone string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(phone)))
	return hex.EncodeToString(sum[:])
}

// IdempotencyKey derives a deterministic key for a logical send so duplicate
// enqueues of the same content collapse into one outbox row. The minute bucket
// lets the same content be re-sent deliberately later.
func IdempotencyKey(workspaceID, threadID, content string, unixMinute int64) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s|%d", workspaceID, threadID, content, unixMinute)))
	return hex.EncodeToString(sum[:])
}
