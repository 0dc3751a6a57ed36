package proto

import (
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"
)

// Field names of the Struct-shaped requests.
const (
	FieldPath     = "path"
	FieldDocument = "document"
	FieldOwnerID  = "ownerId"
	FieldStart    = "start"
	FieldEnd      = "end"
)

// PathDocument is one {path, document} pair of a Set or BatchSet request.
type PathDocument struct {
	Path     string
	Document map[string]any
}

func NewSetRequest(path string, doc map[string]any) (*structpb.Struct, error) {
	d, err := structpb.NewStruct(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document %s: %w", path, err)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldPath:     structpb.NewStringValue(path),
		FieldDocument: structpb.NewStructValue(d),
	}}, nil
}

// ParseSetRequest returns the path and document of a Set request.
func ParseSetRequest(s *structpb.Struct) (PathDocument, error) {
	path := s.GetFields()[FieldPath].GetStringValue()
	doc := s.GetFields()[FieldDocument].GetStructValue()
	if path == "" || doc == nil {
		return PathDocument{}, fmt.Errorf("request needs %q and %q", FieldPath, FieldDocument)
	}
	return PathDocument{Path: path, Document: doc.AsMap()}, nil
}

func NewBatchSetRequest(items []PathDocument) (*structpb.ListValue, error) {
	values := make([]*structpb.Value, 0, len(items))
	for _, it := range items {
		s, err := NewSetRequest(it.Path, it.Document)
		if err != nil {
			return nil, err
		}
		values = append(values, structpb.NewStructValue(s))
	}
	return &structpb.ListValue{Values: values}, nil
}

func ParseBatchSetRequest(l *structpb.ListValue) ([]PathDocument, error) {
	out := make([]PathDocument, 0, len(l.GetValues()))
	for i, v := range l.GetValues() {
		s := v.GetStructValue()
		if s == nil {
			return nil, fmt.Errorf("batch item %d is not an object", i)
		}
		pd, err := ParseSetRequest(s)
		if err != nil {
			return nil, fmt.Errorf("batch item %d: %w", i, err)
		}
		out = append(out, pd)
	}
	return out, nil
}

func NewRangeRequest(ownerID string, start, end int64) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldOwnerID: structpb.NewStringValue(ownerID),
		FieldStart:   structpb.NewNumberValue(float64(start)),
		FieldEnd:     structpb.NewNumberValue(float64(end)),
	}}
}

func ParseRangeRequest(s *structpb.Struct) (ownerID string, start, end int64, err error) {
	f := s.GetFields()
	ownerID = f[FieldOwnerID].GetStringValue()
	if ownerID == "" {
		return "", 0, 0, fmt.Errorf("request needs %q", FieldOwnerID)
	}
	return ownerID, int64(f[FieldStart].GetNumberValue()), int64(f[FieldEnd].GetNumberValue()), nil
}

// NewDocumentList wraps documents in a ListValue.
func NewDocumentList(docs []map[string]any) (*structpb.ListValue, error) {
	values := make([]*structpb.Value, 0, len(docs))
	for _, d := range docs {
		s, err := structpb.NewStruct(d)
		if err != nil {
			return nil, err
		}
		values = append(values, structpb.NewStructValue(s))
	}
	return &structpb.ListValue{Values: values}, nil
}

// DocumentsFromList skips list items that are not objects.
func DocumentsFromList(l *structpb.ListValue) []map[string]any {
	out := make([]map[string]any, 0, len(l.GetValues()))
	for _, v := range l.GetValues() {
		if s := v.GetStructValue(); s != nil {
			out = append(out, s.AsMap())
		}
	}
	return out
}

func NewStringList(items []string) *structpb.ListValue {
	values := make([]*structpb.Value, 0, len(items))
	for _, s := range items {
		values = append(values, structpb.NewStringValue(s))
	}
	return &structpb.ListValue{Values: values}
}

func StringsFromList(l *structpb.ListValue) []string {
	out := make([]string, 0, len(l.GetValues()))
	for _, v := range l.GetValues() {
		out = append(out, v.GetStringValue())
	}
	return out
}
