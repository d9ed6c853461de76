package export

import (
	"fmt"
	"strings"
)

// DefaultBulkSize is used when Options.BulkSize is zero.
const DefaultBulkSize = 1000

// Mode selects how rows become stored records.
type Mode int

const (
	// CreateAll builds a new record per row and bulk-inserts them in batches.
	CreateAll Mode = iota

	// UpdateExisting looks each row up by the model's unique key, updates the
	// match or creates a new record, and saves rows one at a time.
	UpdateExisting

	// ForceSave builds a new record per row and saves each one individually.
	ForceSave
)

func (m Mode) String() string {
	switch m {
	case CreateAll:
		return "create"
	case UpdateExisting:
		return "update"
	case ForceSave:
		return "force-save"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode maps "create", "update" or "force-save" to a Mode. The empty
// string is CreateAll.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "create", "create-all":
		return CreateAll, nil
	case "update", "update-existing":
		return UpdateExisting, nil
	case "force-save", "force_save", "save":
		return ForceSave, nil
	}
	return 0, fmt.Errorf("export: unknown mode %q (want create, update or force-save)", s)
}

// Options controls one export call. The zero value bulk-inserts every row in
// batches of DefaultBulkSize without validating first.
type Options struct {
	Mode Mode

	// BulkSize is the number of records per bulk insert in CreateAll mode.
	BulkSize int

	// TimeZone, when set, converts datetime fields from UTC to this IANA zone
	// and drops the zone (the result is a wall clock held in time.UTC).
	TimeZone string

	// DryRun runs every step except persistence.
	DryRun bool

	// ReturnRecords makes Export return the records it built.
	ReturnRecords bool

	// Validate runs Validate before touching the dataset or the store.
	Validate bool

	// Label names the run in logs and metrics. Defaults to the model's table.
	Label string
}

func (o Options) withDefaults() (Options, error) {
	if o.BulkSize == 0 {
		o.BulkSize = DefaultBulkSize
	}
	if o.BulkSize < 0 {
		return o, fmt.Errorf("export: bulk size must be positive, got %d", o.BulkSize)
	}
	switch o.Mode {
	case CreateAll, UpdateExisting, ForceSave:
	default:
		return o, fmt.Errorf("export: unknown mode %v", o.Mode)
	}
	return o, nil
}
