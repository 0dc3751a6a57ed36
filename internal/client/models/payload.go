package models

import (
	"fmt"
	"strings"

	"github.com/eunio/dailysync/internal/common"
)

// Known payload fields. Anything else is carried through untouched.
const (
	FieldPeriodFlow     = "periodFlow"
	FieldBBT            = "bbt"
	FieldCervicalMucus  = "cervicalMucus"
	FieldMood           = "mood"
	FieldSexualActivity = "sexualActivity"
	FieldSymptoms       = "symptoms"
	FieldNotes          = "notes"
)

// Range bounds a numeric payload field, inclusive on both ends.
type Range struct {
	Min, Max float64
}

// Ranges lists the bounded numeric fields checked by Validate.
var Ranges = map[string]Range{
	// basal body temperature, °F
	FieldBBT: {Min: 95.0, Max: 105.0},
}

// Validate checks identity, the logical date against today (an epoch day)
// and every bounded field. Out-of-range values are rejected, never clamped.
// All failures wrap common.ErrValidation.
func Validate(r *Record, today int64) error {
	if r == nil {
		return fmt.Errorf("%w: record is nil", common.ErrValidation)
	}
	if strings.TrimSpace(r.OwnerID) == "" {
		return fmt.Errorf("%w: ownerId is blank", common.ErrValidation)
	}
	if strings.TrimSpace(r.RecordID) == "" {
		return fmt.Errorf("%w: recordId is blank", common.ErrValidation)
	}
	if r.LogicalDate > today {
		return fmt.Errorf("%w: logical date %s is in the future", common.ErrValidation, RecordIDForDate(r.LogicalDate))
	}
	for name, rng := range Ranges {
		v, ok := r.Payload[name]
		if !ok || v == nil {
			continue
		}
		f, ok := toFloat(v)
		if !ok {
			return fmt.Errorf("%w: %s must be a number, got %T", common.ErrValidation, name, v)
		}
		if f < rng.Min || f > rng.Max {
			return fmt.Errorf("%w: %s=%v outside [%v, %v]", common.ErrValidation, name, f, rng.Min, rng.Max)
		}
	}
	return nil
}
