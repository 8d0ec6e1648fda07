package kv

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewID returns PREFIX-<unix millis>-<random suffix>. Uniqueness is
// probabilistic; callers that need a guarantee check against their own ids.
func NewID(prefix string) string {
	if prefix == "" {
		prefix = "ID"
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("%s-%d-%s", prefix, time.Now().UnixMilli(), suffix)
}
