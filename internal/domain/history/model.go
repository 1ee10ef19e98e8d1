package history

import (
	"errors"
	"fmt"
	"time"
)

// ErrStorageUnavailable wraps any failure to read or write the ledger's
// backing store.
var ErrStorageUnavailable = errors.New("history storage unavailable")

// Entry is one recorded translation. Codes are copied at the time of the
// translation and never refer back to the mapping table.
type Entry struct {
	ID           string    `json:"id"`
	ABHAID       string    `json:"abha_id"`
	SourceSystem string    `json:"source_system"`
	SourceCode   string    `json:"source_code"`
	TargetSystem string    `json:"target_system"`
	TargetCode   string    `json:"target_code"`
	SNOMEDCode   string    `json:"snomed_ct_code"`
	LOINCCode    string    `json:"loinc_code"`
	Timestamp    time.Time `json:"timestamp"`
}

// FormatID renders the n-th ledger position (1-based) as an entry id.
func FormatID(n int) string {
	return fmt.Sprintf("TRANS_%04d", n)
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorageUnavailable, op, err)
}
