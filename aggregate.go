package memory

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/message"
)

// AllocationRecord is one sampled allocation, produced by an external
// sampler and consumed here as-is. Retained marks records whose object
// survived garbage collection at the end of the sampling window.
type AllocationRecord struct {
	TypeName   string `json:"type_name"`
	SourceFile string `json:"source_file"`
	SourceLine int    `json:"source_line"`
	ByteSize   uint64 `json:"byte_size"`
	Value      string `json:"value,omitempty"`
	Retained   bool   `json:"retained"`
}

// Classifier maps a record to an aggregation key.
type Classifier func(record AllocationRecord) string

func ByType(record AllocationRecord) string {
	return record.TypeName
}

func ByFile(record AllocationRecord) string {
	return record.SourceFile
}

func ByLocation(record AllocationRecord) string {
	return fmt.Sprintf("%s:%d", record.SourceFile, record.SourceLine)
}

func ByValue(record AllocationRecord) string {
	return record.Value
}

// ByModule attributes a record to its owning module, taken as the leading
// host/org/repo components of a module-shaped source path.
func ByModule(record AllocationRecord) string {
	file := record.SourceFile
	if i := strings.LastIndex(file, "/vendor/"); i >= 0 {
		file = file[i+len("/vendor/"):]
	}
	parts := strings.Split(file, "/")
	if len(parts) >= 3 && strings.Contains(parts[0], ".") {
		return strings.Join(parts[:3], "/")
	}
	if len(parts) > 1 {
		return parts[0]
	}
	return file
}

// Aggregate groups allocation records by a classification key into per-key
// Usage totals, tracking allocated and retained separately.
type Aggregate struct {
	title     string
	classify  Classifier
	allocated map[string]*Usage
	retained  map[string]*Usage
	total     Usage
}

func NewAggregate(title string, classify Classifier) *Aggregate {
	m := new(Aggregate)
	m.title = title
	m.classify = classify
	m.allocated = make(map[string]*Usage)
	m.retained = make(map[string]*Usage)
	return m
}

func (a *Aggregate) Title() string {
	return a.title
}

// Record folds one allocation into the totals. Classification keys with
// invalid encodings are sanitized so one bad sample never poisons the
// whole report.
func (a *Aggregate) Record(record AllocationRecord) {
	key := sanitizeKey(a.classify(record))
	a.usageFor(a.allocated, key).AddObject(record.ByteSize)
	if record.Retained {
		a.usageFor(a.retained, key).AddObject(record.ByteSize)
	}
	a.total.AddObject(record.ByteSize)
}

func (a *Aggregate) usageFor(totals map[string]*Usage, key string) *Usage {
	usage, ok := totals[key]
	if !ok {
		usage = new(Usage)
		totals[key] = usage
	}
	return usage
}

// Total is the usage over every record seen, regardless of key.
func (a *Aggregate) Total() Usage {
	return a.total
}

// Allocated returns the allocated usage for a key.
func (a *Aggregate) Allocated(key string) (Usage, bool) {
	usage, ok := a.allocated[key]
	if !ok {
		return Usage{}, false
	}
	return *usage, true
}

// Retained returns the retained usage for a key.
func (a *Aggregate) Retained(key string) (Usage, bool) {
	usage, ok := a.retained[key]
	if !ok {
		return Usage{}, false
	}
	return *usage, true
}

// sortedKeys orders keys by allocated size so the largest consumers print
// last, where they are easiest to spot in a terminal.
func (a *Aggregate) sortedKeys() []string {
	keys := make([]string, 0, len(a.allocated))
	for key := range a.allocated {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		left, right := a.allocated[keys[i]], a.allocated[keys[j]]
		if left.Size != right.Size {
			return left.Size < right.Size
		}
		return keys[i] < keys[j]
	})
	return keys
}

func (a *Aggregate) Print(w io.Writer) {
	p := message.NewPrinter(message.MatchLanguage("en"))
	p.Fprintf(w, "%s: %s\n", a.title, a.total)
	for _, key := range a.sortedKeys() {
		allocated := a.allocated[key]
		var retainedSize uint64
		if retained, ok := a.retained[key]; ok {
			retainedSize = retained.Size
		}
		p.Fprintf(w, "\tallocated=%12d retained=%12d (count=%8d) %s\n",
			allocated.Size,
			retainedSize,
			allocated.Count,
			key)
	}
}

type aggregateEntry struct {
	Key       string `json:"key"`
	Allocated Usage  `json:"allocated"`
	Retained  Usage  `json:"retained"`
}

func (a *Aggregate) MarshalJSON() ([]byte, error) {
	entries := make([]aggregateEntry, 0, len(a.allocated))
	for _, key := range a.sortedKeys() {
		entry := aggregateEntry{Key: key, Allocated: *a.allocated[key]}
		if retained, ok := a.retained[key]; ok {
			entry.Retained = *retained
		}
		entries = append(entries, entry)
	}
	return json.Marshal(struct {
		Title   string           `json:"title"`
		Total   Usage            `json:"total"`
		Entries []aggregateEntry `json:"entries"`
	}{a.title, a.total, entries})
}

// Report feeds every record to a set of aggregates and prints them in turn.
type Report struct {
	aggregates []*Aggregate
}

func NewReport(aggregates ...*Aggregate) *Report {
	m := new(Report)
	m.aggregates = aggregates
	return m
}

// DefaultReport aggregates by module, type, location and value, the usual
// breakdowns for hunting down an allocation hot spot.
func DefaultReport() *Report {
	return NewReport(
		NewAggregate("By module", ByModule),
		NewAggregate("By type", ByType),
		NewAggregate("By location", ByLocation),
		NewAggregate("By value", ByValue),
	)
}

func (r *Report) Record(record AllocationRecord) {
	for _, aggregate := range r.aggregates {
		aggregate.Record(record)
	}
}

func (r *Report) Aggregates() []*Aggregate {
	return r.aggregates
}

func (r *Report) Print(w io.Writer) {
	for _, aggregate := range r.aggregates {
		aggregate.Print(w)
	}
}

func sanitizeKey(key string) string {
	if key == "" {
		return "(unknown)"
	}
	if utf8.ValidString(key) {
		return key
	}
	return strings.ToValidUTF8(key, "�")
}
