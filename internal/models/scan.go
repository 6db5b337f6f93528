package models

import (
	"time"

	"github.com/google/uuid"
)

// ScanRecord is a single scan-result vertex (dkim, dmarc, spf, https, ssl),
// a DKIM selector result, or a DMARC aggregate summary. The mutation engine
// only cares about graph identity; the scan payload is opaque here.
type ScanRecord struct {
	Key       uuid.UUID
	Payload   []byte // raw scan output, stored as JSONB
	CreatedAt time.Time
}
