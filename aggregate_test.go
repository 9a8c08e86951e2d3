package memory

import (
	"bytes"
	"encoding/json"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

func sampleRecords() []AllocationRecord {
	return []AllocationRecord{
		{TypeName: "bytes.Buffer", SourceFile: "github.com/example/app/encoder.go", SourceLine: 10, ByteSize: 4096, Retained: true},
		{TypeName: "bytes.Buffer", SourceFile: "github.com/example/app/encoder.go", SourceLine: 10, ByteSize: 2048},
		{TypeName: "string", SourceFile: "github.com/example/app/parser.go", SourceLine: 42, ByteSize: 64, Value: "header"},
	}
}

func TestAggregateTotals(t *testing.T) {
	aggregate := NewAggregate("By type", ByType)
	for _, record := range sampleRecords() {
		aggregate.Record(record)
	}

	require.Equal(t, Usage{Size: 6208, Count: 3}, aggregate.Total())

	buffers, ok := aggregate.Allocated("bytes.Buffer")
	require.True(t, ok)
	require.Equal(t, Usage{Size: 6144, Count: 2}, buffers)

	retained, ok := aggregate.Retained("bytes.Buffer")
	require.True(t, ok)
	require.Equal(t, Usage{Size: 4096, Count: 1}, retained)

	_, ok = aggregate.Retained("string")
	require.False(t, ok)
}

func TestAggregateSanitizesKeys(t *testing.T) {
	aggregate := NewAggregate("By value", ByValue)
	aggregate.Record(AllocationRecord{TypeName: "string", ByteSize: 8, Value: "bad\xff\xfekey"})
	aggregate.Record(AllocationRecord{TypeName: "string", ByteSize: 8})

	data, err := json.Marshal(aggregate)
	require.NoError(t, err)
	require.True(t, utf8.Valid(data))

	_, ok := aggregate.Allocated("(unknown)")
	require.True(t, ok, "empty keys fall back to a placeholder")
}

func TestAggregatePrint(t *testing.T) {
	aggregate := NewAggregate("By type", ByType)
	for _, record := range sampleRecords() {
		aggregate.Record(record)
	}

	var buf bytes.Buffer
	aggregate.Print(&buf)
	out := buf.String()
	require.Contains(t, out, "By type:")
	require.Contains(t, out, "bytes.Buffer")
	// Largest consumer prints last.
	require.Greater(t, bytes.Index(buf.Bytes(), []byte("bytes.Buffer")), bytes.Index(buf.Bytes(), []byte("string")))
}

func TestAggregateJSON(t *testing.T) {
	aggregate := NewAggregate("By location", ByLocation)
	for _, record := range sampleRecords() {
		aggregate.Record(record)
	}

	data, err := json.Marshal(aggregate)
	require.NoError(t, err)

	var decoded struct {
		Title   string `json:"title"`
		Total   Usage  `json:"total"`
		Entries []struct {
			Key       string `json:"key"`
			Allocated Usage  `json:"allocated"`
			Retained  Usage  `json:"retained"`
		} `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, "By location", decoded.Title)
	require.Len(t, decoded.Entries, 2)
	require.Equal(t, "github.com/example/app/encoder.go:10", decoded.Entries[1].Key)
}

func TestClassifiers(t *testing.T) {
	record := AllocationRecord{
		TypeName:   "string",
		SourceFile: "github.com/example/app/parser.go",
		SourceLine: 42,
		Value:      "header",
	}
	require.Equal(t, "string", ByType(record))
	require.Equal(t, "github.com/example/app/parser.go", ByFile(record))
	require.Equal(t, "github.com/example/app/parser.go:42", ByLocation(record))
	require.Equal(t, "header", ByValue(record))
	require.Equal(t, "github.com/example/app", ByModule(record))

	vendored := AllocationRecord{SourceFile: "app/vendor/github.com/lib/pq/conn.go"}
	require.Equal(t, "github.com/lib/pq", ByModule(vendored))

	local := AllocationRecord{SourceFile: "internal/codec/codec.go"}
	require.Equal(t, "internal", ByModule(local))
}

func TestReportFansOut(t *testing.T) {
	report := DefaultReport()
	for _, record := range sampleRecords() {
		report.Record(record)
	}
	for _, aggregate := range report.Aggregates() {
		require.Equal(t, uint64(3), aggregate.Total().Count, aggregate.Title())
	}

	var buf bytes.Buffer
	report.Print(&buf)
	require.Contains(t, buf.String(), "By module:")
}
