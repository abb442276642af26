package binpack

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corvidchess/corvid/features"
	"github.com/corvidchess/corvid/game"
)

func sampleRecord() Record {
	return Record{
		Hash:    0xdeadbeefcafef00d,
		Feats:   features.Sparse{1, 5, 300},
		ScoreCp: -42,
		Result:  1,
		Moves: []VisitedMove{
			{Move: game.Move(17), Visits: 100, FromSlot: 3, ToSlot: 67},
			{Move: game.Move(4096), Visits: 1, FromSlot: -1, ToSlot: -1},
		},
	}
}

func TestWriteNextRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	want := sampleRecord()
	require.NoError(t, w.Write(want))
	require.NoError(t, w.Flush())

	r := NewReader(&buf)
	got, err := r.Next()
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestNextReturnsEOFAtCleanEnd(t *testing.T) {
	var buf bytes.Buffer
	r := NewReader(&buf)
	_, err := r.Next()
	require.ErrorIs(t, err, io.EOF)
}

func TestReadAllDrainsMultipleRecords(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	r1, r2 := sampleRecord(), sampleRecord()
	r2.Hash = 1
	require.NoError(t, w.Write(r1))
	require.NoError(t, w.Write(r2))
	require.NoError(t, w.Flush())

	recs, err := ReadAll(&buf)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.Equal(t, r1, recs[0])
	require.Equal(t, r2, recs[1])
}

func TestNextReportsTruncatedRecord(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.Write(sampleRecord()))
	require.NoError(t, w.Flush())

	truncated := buf.Bytes()[:buf.Len()-2]
	r := NewReader(bytes.NewReader(truncated))
	_, err := r.Next()
	require.Error(t, err)
}
