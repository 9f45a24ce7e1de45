// Package journal implements the append-only, durable record of a
// session: the header, every processed command, every match event, and
// every published snapshot, written as newline-delimited JSON so a
// replay can reconstruct an identical run (spec.md §6). The structure —
// sequence numbers, a recover-on-open scan, a Replay callback — is
// grounded on rishavpaul-system-design/order-matching-engine's
// internal/events/log.go, adapted from gob to JSON Lines per the
// text-format requirement.
package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog/log"
)

// RecordKind discriminates the four record shapes a journal holds.
type RecordKind string

const (
	KindHeader   RecordKind = "header"
	KindCommand  RecordKind = "command"
	KindEvent    RecordKind = "event"
	KindSnapshot RecordKind = "snapshot"
)

// Record is one line of the journal. Payload is left as raw JSON so the
// journal package never needs to import sim/matching/book types — it
// only serializes and deserializes whatever the caller hands it.
type Record struct {
	Seq     uint64          `json:"seq"`
	Kind    RecordKind      `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// Header is the first record of every journal: the inputs that make a
// run reproducible (spec.md P5).
type Header struct {
	RunID      string            `json:"run_id"`
	Seed       int64             `json:"seed"`
	StartPrice int64             `json:"start_price"`
	Config     map[string]any    `json:"config"`
	Bots       []string          `json:"bots"`
	Meta       map[string]string `json:"meta,omitempty"`
}

// Journal is an append-only writer/reader over a single JSONL file.
type Journal struct {
	file   *os.File
	writer *bufio.Writer
	mu     sync.Mutex
	seq    uint64
	path   string
}

// Open creates or appends to a journal file at path. If the file already
// has records, it recovers the last sequence number so new records
// continue the sequence rather than restart it.
func Open(path string) (*Journal, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}
	j := &Journal{file: file, writer: bufio.NewWriter(file), path: path}
	if err := j.recover(); err != nil {
		file.Close()
		return nil, fmt.Errorf("journal: recover %s: %w", path, err)
	}
	return j, nil
}

func (j *Journal) recover() error {
	f, err := os.Open(j.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	var last uint64
	for scanner.Scan() {
		var rec Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			return fmt.Errorf("decode record at recovery: %w", err)
		}
		last = rec.Seq
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	j.seq = last
	return nil
}

// WriteHeader appends the session header. It is the caller's
// responsibility to write it exactly once, before any command/event
// record.
func (j *Journal) WriteHeader(h Header) error {
	return j.append(KindHeader, h)
}

// WriteCommand appends a processed command, whatever its result.
func (j *Journal) WriteCommand(cmd any) error {
	return j.append(KindCommand, cmd)
}

// WriteEvent appends a match event.
func (j *Journal) WriteEvent(evt any) error {
	return j.append(KindEvent, evt)
}

// WriteSnapshot appends a tick's published snapshot.
func (j *Journal) WriteSnapshot(snap any) error {
	return j.append(KindSnapshot, snap)
}

func (j *Journal) append(kind RecordKind, payload any) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("journal: marshal %s payload: %w", kind, err)
	}
	j.seq++
	rec := Record{Seq: j.seq, Kind: kind, Payload: raw}
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("journal: marshal record: %w", err)
	}
	if _, err := j.writer.Write(line); err != nil {
		return fmt.Errorf("journal: write: %w", err)
	}
	if err := j.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("journal: write newline: %w", err)
	}
	if err := j.writer.Flush(); err != nil {
		return fmt.Errorf("journal: flush: %w", err)
	}
	return nil
}

// LastSeq returns the most recently assigned sequence number.
func (j *Journal) LastSeq() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.seq
}

// Close flushes and closes the underlying file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.writer.Flush(); err != nil {
		return err
	}
	return j.file.Close()
}

// Replay reads every record of a journal file in order and invokes
// handler, stopping at the first error it returns. It opens its own file
// handle, independent of any live Journal writer.
func Replay(path string, handler func(Record) error) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("journal: replay open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	var lastSeq uint64
	for scanner.Scan() {
		var rec Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			return fmt.Errorf("journal: decode record: %w", err)
		}
		if lastSeq > 0 && rec.Seq != lastSeq+1 {
			log.Warn().Uint64("expected", lastSeq+1).Uint64("got", rec.Seq).Msg("journal: sequence gap during replay")
		}
		lastSeq = rec.Seq
		if err := handler(rec); err != nil {
			return fmt.Errorf("journal: handler at seq %d: %w", rec.Seq, err)
		}
	}
	if err := scanner.Err(); err != nil {
		if err == io.EOF {
			return nil
		}
		return fmt.Errorf("journal: scan: %w", err)
	}
	return nil
}
