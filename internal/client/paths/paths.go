// Package paths is the only place document addresses are built.
//
// Canonical documents live at users/{ownerId}/dailyLogs/{recordId}. The
// deprecated scheme daily_logs/{ownerId}/logs/{recordId} is still readable so
// that old data can be migrated.
package paths

import (
	"fmt"
	"strings"

	"github.com/eunio/dailysync/internal/common"
)

const (
	OwnerNamespace   = "users"
	RecordCollection = "dailyLogs"

	LegacyOwnerNamespace   = "daily_logs"
	LegacyRecordCollection = "logs"
)

// Scheme is a four-segment address layout: namespace/owner/collection/record.
type Scheme struct {
	Namespace  string
	Collection string
}

var (
	Canonical = Scheme{Namespace: OwnerNamespace, Collection: RecordCollection}
	Legacy    = Scheme{Namespace: LegacyOwnerNamespace, Collection: LegacyRecordCollection}
)

// Resolve returns the canonical path of a record.
func Resolve(ownerID, recordID string) (string, error) {
	return Canonical.Resolve(ownerID, recordID)
}

// ResolveLegacy returns the deprecated path of a record.
func ResolveLegacy(ownerID, recordID string) (string, error) {
	return Legacy.Resolve(ownerID, recordID)
}

// OwnerPrefix returns the canonical prefix under which all of an owner's
// records live, trailing slash included.
func OwnerPrefix(ownerID string) (string, error) {
	return Canonical.OwnerPrefix(ownerID)
}

// LegacyOwnerPrefix is OwnerPrefix for the deprecated scheme.
func LegacyOwnerPrefix(ownerID string) (string, error) {
	return Legacy.OwnerPrefix(ownerID)
}

// Parse splits a canonical path into owner and record ids.
func Parse(path string) (ownerID, recordID string, err error) {
	return Canonical.Parse(path)
}

func (s Scheme) Resolve(ownerID, recordID string) (string, error) {
	if err := checkSegment("ownerId", ownerID); err != nil {
		return "", err
	}
	if err := checkSegment("recordId", recordID); err != nil {
		return "", err
	}
	return s.Namespace + "/" + ownerID + "/" + s.Collection + "/" + recordID, nil
}

func (s Scheme) OwnerPrefix(ownerID string) (string, error) {
	if err := checkSegment("ownerId", ownerID); err != nil {
		return "", err
	}
	return s.Namespace + "/" + ownerID + "/" + s.Collection + "/", nil
}

func (s Scheme) Parse(path string) (ownerID, recordID string, err error) {
	parts := strings.Split(path, "/")
	if len(parts) != 4 || parts[0] != s.Namespace || parts[2] != s.Collection || parts[1] == "" || parts[3] == "" {
		return "", "", fmt.Errorf("%w: %q is not a %s/{ownerId}/%s/{recordId} path", common.ErrValidation, path, s.Namespace, s.Collection)
	}
	return parts[1], parts[3], nil
}

func checkSegment(name, v string) error {
	if strings.TrimSpace(v) == "" {
		return fmt.Errorf("%w: %s is blank", common.ErrValidation, name)
	}
	if strings.Contains(v, "/") {
		return fmt.Errorf("%w: %s %q contains '/'", common.ErrValidation, name, v)
	}
	return nil
}

// ParseAny accepts a path in either the canonical or the legacy scheme.
func ParseAny(path string) (ownerID, recordID string, err error) {
	for _, s := range []Scheme{Canonical, Legacy} {
		if o, r, perr := s.Parse(path); perr == nil {
			return o, r, nil
		}
	}
	return "", "", fmt.Errorf("%w: unrecognised document path %q", common.ErrValidation, path)
}
