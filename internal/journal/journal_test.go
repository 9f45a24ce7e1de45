package journal_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"talos/internal/journal"
)

type sampleCommand struct {
	TraderID string `json:"trader_id"`
	Qty      int64  `json:"qty"`
}

func TestJournal_WriteAndReplay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.jsonl")
	j, err := journal.Open(path)
	require.NoError(t, err)

	require.NoError(t, j.WriteHeader(journal.Header{Seed: 42, StartPrice: 100}))
	require.NoError(t, j.WriteCommand(sampleCommand{TraderID: "alice", Qty: 5}))
	require.NoError(t, j.WriteSnapshot(map[string]any{"tick": 1}))
	require.NoError(t, j.Close())

	var kinds []journal.RecordKind
	var seqs []uint64
	err = journal.Replay(path, func(rec journal.Record) error {
		kinds = append(kinds, rec.Kind)
		seqs = append(seqs, rec.Seq)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []journal.RecordKind{journal.KindHeader, journal.KindCommand, journal.KindSnapshot}, kinds)
	assert.Equal(t, []uint64{1, 2, 3}, seqs)
}

func TestJournal_RecoversSequenceAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.jsonl")
	j, err := journal.Open(path)
	require.NoError(t, err)
	require.NoError(t, j.WriteHeader(journal.Header{Seed: 1}))
	require.NoError(t, j.WriteCommand(sampleCommand{TraderID: "alice", Qty: 1}))
	require.NoError(t, j.Close())

	reopened, err := journal.Open(path)
	require.NoError(t, err)
	require.NoError(t, reopened.WriteCommand(sampleCommand{TraderID: "bob", Qty: 2}))
	require.NoError(t, reopened.Close())

	assert.EqualValues(t, 3, reopened.LastSeq())
}

func TestJournal_PayloadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.jsonl")
	j, err := journal.Open(path)
	require.NoError(t, err)
	require.NoError(t, j.WriteCommand(sampleCommand{TraderID: "carol", Qty: 7}))
	require.NoError(t, j.Close())

	var got sampleCommand
	err = journal.Replay(path, func(rec journal.Record) error {
		return json.Unmarshal(rec.Payload, &got)
	})
	require.NoError(t, err)
	assert.Equal(t, sampleCommand{TraderID: "carol", Qty: 7}, got)
}
