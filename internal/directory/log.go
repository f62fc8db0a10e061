package directory

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Iron-Ham/keeper/internal/errors"
)

// separator joins the name and phone fields of a log record.
const separator = " - "

// Record is one line of the directory log.
type Record struct {
	Name  string
	Phone string
}

// String formats r the way it is stored: "<name> - <phone>".
func (r Record) String() string {
	return r.Name + separator + r.Phone
}

// ParseRecord splits a log line on the first separator. Lines without a
// separator or with an empty name are malformed.
func ParseRecord(line string) (Record, error) {
	name, phone, ok := strings.Cut(line, separator)
	if !ok || name == "" {
		return Record{}, fmt.Errorf("%w: %q", errors.ErrMalformedRecord, line)
	}
	return Record{Name: name, Phone: phone}, nil
}

// matchesName reports whether a log line belongs to name. Parsed lines are
// compared on the exact name field so deleting "Smith" keeps "Smithson".
func matchesName(line, name string) bool {
	if rec, err := ParseRecord(line); err == nil {
		return rec.Name == name
	}
	return strings.HasPrefix(line, name+separator)
}

// Log is the durable, line-oriented record of directory writes. Callers
// must serialise writes; Log only adds a cross-process flock around each
// file operation.
type Log struct {
	path     string
	lockPath string
}

// NewLog returns a Log stored at path. The file is created on first append.
func NewLog(path string) *Log {
	return &Log{
		path:     path,
		lockPath: path + ".lock",
	}
}

// Path returns the log file path.
func (l *Log) Path() string {
	return l.path
}

// Append writes one record at the end of the log.
func (l *Log) Append(rec Record) (err error) {
	fl := NewFileLock(l.lockPath)
	if err := fl.Lock(); err != nil {
		return l.storeError("lock", err)
	}
	defer func() { _ = fl.Unlock() }()

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return l.storeError("append", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = l.storeError("append", cerr)
		}
	}()

	// One write call per record keeps concurrent appenders from interleaving.
	if _, err := f.WriteString(rec.String() + "\n"); err != nil {
		return l.storeError("append", err)
	}
	return nil
}

// Rewrite replaces the log with every line for which drop returns false
// and reports how many lines were dropped. The new content is written to
// a temporary file, synced, and renamed over the log, so readers never
// observe a partial file. A missing log is left missing.
func (l *Log) Rewrite(drop func(line string) bool) (int, error) {
	fl := NewFileLock(l.lockPath)
	if err := fl.Lock(); err != nil {
		return 0, l.storeError("lock", err)
	}
	defer func() { _ = fl.Unlock() }()

	lines, err := l.readLines()
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, l.storeError("rewrite", err)
	}

	var b strings.Builder
	dropped := 0
	for _, line := range lines {
		if drop(line) {
			dropped++
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}

	tmp, err := os.CreateTemp(filepath.Dir(l.path), filepath.Base(l.path)+".*.tmp")
	if err != nil {
		return 0, l.storeError("rewrite", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) } // best-effort

	if _, err := tmp.WriteString(b.String()); err != nil {
		_ = tmp.Close()
		cleanup()
		return 0, l.storeError("rewrite", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return 0, l.storeError("rewrite", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return 0, l.storeError("rewrite", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		cleanup()
		return 0, l.storeError("rewrite", err)
	}
	if err := os.Rename(tmpName, l.path); err != nil {
		cleanup()
		return 0, l.storeError("rewrite", err)
	}
	return dropped, nil
}

// Replay reads every well-formed record in file order. Malformed lines are
// returned separately so the caller can report them. A missing log yields
// no records and no error.
func (l *Log) Replay() (records []Record, malformed []string, err error) {
	fl := NewFileLock(l.lockPath)
	if err := fl.RLock(); err != nil {
		return nil, nil, l.storeError("lock", err)
	}
	defer func() { _ = fl.Unlock() }()

	lines, err := l.readLines()
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil
		}
		return nil, nil, l.storeError("replay", err)
	}

	for _, line := range lines {
		rec, perr := ParseRecord(line)
		if perr != nil {
			malformed = append(malformed, line)
			continue
		}
		records = append(records, rec)
	}
	return records, malformed, nil
}

// readLines returns the non-empty lines of the log. The returned error is
// the raw os error so callers can test for os.IsNotExist.
func (l *Log) readLines() ([]string, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

func (l *Log) storeError(op string, cause error) error {
	return errors.NewStoreError(op, l.path, cause).WithResource(resourceName)
}
