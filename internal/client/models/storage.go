package models

import (
	"encoding/json"
	"fmt"
	"math"
)

// Stored document keys. Renaming any of these breaks already persisted data.
const (
	KeyLogID         = "logId"
	KeyDateEpochDays = "dateEpochDays"
	KeyCreatedAt     = "createdAt"
	KeyUpdatedAt     = "updatedAt"
	KeyVersion       = "v"
)

var reservedKeys = map[string]bool{
	KeyLogID: true, KeyDateEpochDays: true, KeyCreatedAt: true, KeyUpdatedAt: true, KeyVersion: true,
}

// ToStorage builds the remote document for r. Payload entries with nil
// values are omitted; sync bookkeeping is not included.
func ToStorage(r *Record) map[string]any {
	doc := make(map[string]any, len(r.Payload)+len(reservedKeys))
	for k, v := range r.Payload {
		if v == nil || reservedKeys[k] {
			continue
		}
		doc[k] = normalize(v)
	}
	doc[KeyLogID] = r.RecordID
	doc[KeyDateEpochDays] = r.LogicalDate
	doc[KeyCreatedAt] = r.CreatedAt
	doc[KeyUpdatedAt] = r.UpdatedAt
	v := r.SchemaVersion
	if v == 0 {
		v = CurrentSchemaVersion
	}
	doc[KeyVersion] = int64(v)
	return doc
}

// FromStorage rebuilds a record from a remote document. The owner is not
// part of the document; it comes from the path.
func FromStorage(ownerID string, doc map[string]any) (*Record, error) {
	id, ok := doc[KeyLogID].(string)
	if !ok || id == "" {
		return nil, fmt.Errorf("stored document has no %s", KeyLogID)
	}
	r := &Record{OwnerID: ownerID, RecordID: id, SyncState: SyncStateSynced}

	var err error
	if r.LogicalDate, err = intField(doc, KeyDateEpochDays); err != nil {
		return nil, err
	}
	if r.CreatedAt, err = intField(doc, KeyCreatedAt); err != nil {
		return nil, err
	}
	if r.UpdatedAt, err = intField(doc, KeyUpdatedAt); err != nil {
		return nil, err
	}
	v, err := intField(doc, KeyVersion)
	if err != nil {
		return nil, err
	}
	r.SchemaVersion = int(v)

	for k, val := range doc {
		if reservedKeys[k] || val == nil {
			continue
		}
		if r.Payload == nil {
			r.Payload = make(map[string]any)
		}
		r.Payload[k] = normalize(val)
	}
	return r, nil
}

// EncodePayload serializes a payload for the local store, dropping nils.
func EncodePayload(p map[string]any) (string, error) {
	clean := make(map[string]any, len(p))
	for k, v := range p {
		if v != nil {
			clean[k] = v
		}
	}
	b, err := json.Marshal(clean)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodePayload is the inverse of EncodePayload. An empty object yields nil.
func DecodePayload(s string) (map[string]any, error) {
	if s == "" {
		return nil, nil
	}
	var p map[string]any
	if err := json.Unmarshal([]byte(s), &p); err != nil {
		return nil, err
	}
	if len(p) == 0 {
		return nil, nil
	}
	return NormalizePayload(p), nil
}

// NormalizePayload converts every number to float64 and every list to
// []any, recursively, and drops nil entries. Values decoded from JSON,
// structpb or Go literals therefore compare equal.
func NormalizePayload(p map[string]any) map[string]any {
	if p == nil {
		return nil
	}
	out := make(map[string]any, len(p))
	for k, v := range p {
		if v == nil {
			continue
		}
		out[k] = normalize(v)
	}
	return out
}

func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return NormalizePayload(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalize(e)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = e
		}
		return out
	case []float64:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = e
		}
		return out
	}
	if f, ok := toFloat(v); ok {
		return f
	}
	return v
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func intField(doc map[string]any, key string) (int64, error) {
	raw, ok := doc[key]
	if !ok || raw == nil {
		return 0, fmt.Errorf("stored document has no %s", key)
	}
	if i, ok := raw.(int64); ok {
		return i, nil
	}
	f, ok := toFloat(raw)
	if !ok || f != math.Trunc(f) {
		return 0, fmt.Errorf("stored document field %s is not an integer: %v", key, raw)
	}
	return int64(f), nil
}

func clonePayload(p map[string]any) map[string]any {
	out := make(map[string]any, len(p))
	for k, v := range p {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return clonePayload(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	}
	return v
}
