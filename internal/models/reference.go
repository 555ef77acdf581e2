package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewReference returns a booking reference such as LL-m3x9k2ab-7F3QK.
func NewReference(now time.Time) string {
	stamp := strconv.FormatInt(now.UnixMilli(), 36)
	random := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("%s-%s-%s", ReferencePrefix, stamp, strings.ToUpper(random[:5]))
}
