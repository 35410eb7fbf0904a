// Package reserve merges externally reported sequence progress into the
// store and tracks per-sequence reservation holders.
//
// The reservation source is a periodically fetched line-oriented
// document produced by a third party. Each data line reports one
// sequence:
//
//	<id>  <holder...>  <length>  <value>
//
// The holder may span several whitespace-separated words; the length is
// the absolute term index the collaborator has reached; the value is
// that term in decimal, or "-" when the collaborator only claims the
// reservation without publishing a value. Blank lines and lines
// starting with '#' are skipped.
//
// The document is untrusted input: malformed lines are rejected and
// logged without touching any state, and reported progress is accepted
// only when it lies strictly beyond the locally known length.
package reserve

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Entry is one collaborator-reported claim on a sequence. Value is nil
// for holder-only claims, which update ownership but carry no progress.
type Entry struct {
	ID     int64
	Holder string
	Length int
	Value  *big.Int
}

// MalformedError describes one rejected document line.
type MalformedError struct {
	Line   int
	Text   string
	Reason string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("reservation line %d: %s: %q", e.Line, e.Reason, e.Text)
}

// Batch is a parsed reservation document. It is ephemeral: consumed by
// one merge and discarded.
type Batch struct {
	FetchedAt time.Time
	Entries   map[int64]Entry
	Rejected  []*MalformedError
}

// IDs returns the reported sequence ids in ascending order.
func (b *Batch) IDs() []int64 {
	ids := make([]int64, 0, len(b.Entries))
	for id := range b.Entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ParseDocument reads a reservation document. Malformed lines are
// collected on the batch and logged; they never fail the parse. A later
// line for an id already seen replaces the earlier one.
func ParseDocument(r io.Reader, fetchedAt time.Time) (*Batch, error) {
	b := &Batch{FetchedAt: fetchedAt, Entries: make(map[int64]Entry)}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		entry, err := parseLine(lineNo, line)
		if err != nil {
			slog.Warn("malformed reservation line rejected",
				"line", err.Line, "reason", err.Reason)
			b.Rejected = append(b.Rejected, err)
			continue
		}
		b.Entries[entry.ID] = entry
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read reservation document: %w", err)
	}
	return b, nil
}

func parseLine(lineNo int, line string) (Entry, *MalformedError) {
	reject := func(reason string) (Entry, *MalformedError) {
		return Entry{}, &MalformedError{Line: lineNo, Text: line, Reason: reason}
	}

	fields := strings.Fields(line)
	if len(fields) < 4 {
		return reject("want id, holder, length, value")
	}

	id, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil || id <= 0 {
		return reject("bad sequence id")
	}

	length, err := strconv.Atoi(fields[len(fields)-2])
	if err != nil || length <= 0 {
		return reject("bad length")
	}

	holder := strings.Join(fields[1:len(fields)-2], " ")
	if holder == "" {
		return reject("empty holder")
	}

	entry := Entry{ID: id, Holder: holder, Length: length}

	rawValue := fields[len(fields)-1]
	if rawValue != "-" {
		v, ok := new(big.Int).SetString(rawValue, 10)
		if !ok || v.Sign() <= 0 {
			return reject("bad value")
		}
		entry.Value = v
	}
	return entry, nil
}
