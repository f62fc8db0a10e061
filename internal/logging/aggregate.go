package logging

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"
)

// Entry is one parsed line of keeper.log.
type Entry struct {
	Time     time.Time      `json:"time"`
	Level    string         `json:"level"`
	Message  string         `json:"msg"`
	Resource string         `json:"resource,omitempty"`
	Worker   string         `json:"worker,omitempty"`
	Kind     string         `json:"kind,omitempty"`
	Attrs    map[string]any `json:"attrs,omitempty"`
}

// Filter selects entries. Zero fields match everything; set fields are
// combined with AND.
type Filter struct {
	// Level keeps entries at or above this level.
	Level    string
	Since    time.Time
	Until    time.Time
	Resource string
	Worker   string
	// Contains matches a substring of the message or any attribute value.
	Contains string
}

var levelOrder = map[string]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// ReadEntries parses a JSON-lines log file, skipping lines that are not
// valid JSON. Entries are sorted by time; ties keep file order.
func ReadEntries(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer f.Close()

	entries, err := ParseEntries(f)
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", path, err)
	}
	return entries, nil
}

// ParseEntries is ReadEntries for an arbitrary reader.
func ParseEntries(r io.Reader) ([]Entry, error) {
	var entries []Entry
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		entry, err := parseEntry(line)
		if err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	slices.SortStableFunc(entries, func(a, b Entry) int {
		return a.Time.Compare(b.Time)
	})
	return entries, nil
}

func parseEntry(line string) (Entry, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return Entry{}, fmt.Errorf("invalid JSON: %w", err)
	}

	var e Entry
	if s, ok := raw["time"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			e.Time = t
		}
	}
	str := func(key string) string {
		s, _ := raw[key].(string)
		delete(raw, key)
		return s
	}
	delete(raw, "time")
	e.Level = str("level")
	e.Message = str("msg")
	e.Resource = str("resource")
	e.Worker = str("worker")
	e.Kind = str("kind")
	if len(raw) > 0 {
		e.Attrs = raw
	}
	return e, nil
}

// Match reports whether e passes every criterion in f.
func (f Filter) Match(e Entry) bool {
	if f.Level != "" {
		want, ok1 := levelOrder[strings.ToUpper(f.Level)]
		got, ok2 := levelOrder[strings.ToUpper(e.Level)]
		if ok1 && ok2 && got < want {
			return false
		}
	}
	if !f.Since.IsZero() && e.Time.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && e.Time.After(f.Until) {
		return false
	}
	if f.Resource != "" && e.Resource != f.Resource {
		return false
	}
	if f.Worker != "" && e.Worker != f.Worker {
		return false
	}
	if f.Contains != "" && !e.contains(f.Contains) {
		return false
	}
	return true
}

func (e Entry) contains(s string) bool {
	if strings.Contains(e.Message, s) {
		return true
	}
	for _, v := range e.Attrs {
		if strings.Contains(fmt.Sprint(v), s) {
			return true
		}
	}
	return false
}

// FilterEntries returns the entries matching f.
func FilterEntries(entries []Entry, f Filter) []Entry {
	if f == (Filter{}) {
		return entries
	}
	var out []Entry
	for _, e := range entries {
		if f.Match(e) {
			out = append(out, e)
		}
	}
	return out
}

// ExportFormats lists the formats accepted by Export.
func ExportFormats() []string {
	return []string{"json", "text", "csv"}
}

// Export writes entries to w as "json" (an indented array), "text" (one
// readable line each) or "csv" (with a header row).
func Export(w io.Writer, entries []Entry, format string) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	case "text":
		for _, e := range entries {
			if _, err := io.WriteString(w, e.Text()+"\n"); err != nil {
				return err
			}
		}
		return nil
	case "csv":
		return exportCSV(w, entries)
	default:
		return fmt.Errorf("unsupported export format: %s (supported: %s)", format, strings.Join(ExportFormats(), ", "))
	}
}

// Text formats e as
//
//	[2006-01-02 15:04:05.000] LEVEL message (resource=.., worker=.., kind=..) {"attr":..}
func (e Entry) Text() string {
	var sb strings.Builder
	sb.WriteString("[" + e.Time.Format("2006-01-02 15:04:05.000") + "] ")
	sb.WriteString(e.Level + " " + e.Message)

	var ctx []string
	for _, kv := range [][2]string{{"resource", e.Resource}, {"worker", e.Worker}, {"kind", e.Kind}} {
		if kv[1] != "" {
			ctx = append(ctx, kv[0]+"="+kv[1])
		}
	}
	if len(ctx) > 0 {
		sb.WriteString(" (" + strings.Join(ctx, ", ") + ")")
	}
	if len(e.Attrs) > 0 {
		if b, err := json.Marshal(e.Attrs); err == nil {
			sb.WriteString(" " + string(b))
		}
	}
	return sb.String()
}

func exportCSV(w io.Writer, entries []Entry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"time", "level", "message", "resource", "worker", "kind", "attrs"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, e := range entries {
		var attrs string
		if len(e.Attrs) > 0 {
			if b, err := json.Marshal(e.Attrs); err == nil {
				attrs = string(b)
			}
		}
		record := []string{e.Time.Format(time.RFC3339Nano), e.Level, e.Message, e.Resource, e.Worker, e.Kind, attrs}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
