package proto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestSetRequest(t *testing.T) {
	doc := map[string]any{"logId": "2025-01-10", "updatedAt": int64(200), "symptoms": []any{"a"}}
	req, err := NewSetRequest("users/u1/dailyLogs/2025-01-10", doc)
	require.NoError(t, err)

	got, err := ParseSetRequest(req)
	require.NoError(t, err)
	assert.Equal(t, "users/u1/dailyLogs/2025-01-10", got.Path)
	assert.Equal(t, map[string]any{"logId": "2025-01-10", "updatedAt": 200.0, "symptoms": []any{"a"}}, got.Document)

	_, err = ParseSetRequest(&structpb.Struct{})
	require.Error(t, err)

	_, err = NewSetRequest("p", map[string]any{"bad": make(chan int)})
	require.Error(t, err)
}

func TestBatchSetRequest(t *testing.T) {
	req, err := NewBatchSetRequest([]PathDocument{
		{Path: "a", Document: map[string]any{"v": 1.0}},
		{Path: "b", Document: map[string]any{"v": 2.0}},
	})
	require.NoError(t, err)

	got, err := ParseBatchSetRequest(req)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[1].Path)
	assert.Equal(t, 2.0, got[1].Document["v"])

	bad := &structpb.ListValue{Values: []*structpb.Value{structpb.NewStringValue("x")}}
	_, err = ParseBatchSetRequest(bad)
	require.Error(t, err)
}

func TestRangeRequest(t *testing.T) {
	owner, start, end, err := ParseRangeRequest(NewRangeRequest("u1", 10, 20))
	require.NoError(t, err)
	assert.Equal(t, "u1", owner)
	assert.Equal(t, int64(10), start)
	assert.Equal(t, int64(20), end)

	_, _, _, err = ParseRangeRequest(&structpb.Struct{})
	require.Error(t, err)
}

func TestLists(t *testing.T) {
	l, err := NewDocumentList([]map[string]any{{"a": "x"}})
	require.NoError(t, err)
	l.Values = append(l.Values, structpb.NewNullValue())
	assert.Equal(t, []map[string]any{{"a": "x"}}, DocumentsFromList(l))

	assert.Equal(t, []string{"p1", "p2"}, StringsFromList(NewStringList([]string{"p1", "p2"})))
}
