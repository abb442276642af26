// Package binpack implements the on-disk training data format spec.md §6
// names for boundary completeness: a stream of length-prefixed records,
// each a position's sparse feature set, the visit-count distribution MCTS
// produced over its legal moves, the position's own quiescence/value
// score, and the eventual game result. cmd/train writes these during
// self-play and reads them back for training; no component in the search
// core reads a binpack file at runtime. Framing follows valuenet/policynet's
// own field-by-field encoding/binary style rather than gob, so a shard can
// be inspected or truncated at a record boundary without decoding the
// whole file.
package binpack

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"github.com/corvidchess/corvid/features"
	"github.com/corvidchess/corvid/game"
)

// VisitedMove is one child edge's move and the visit count MCTS gave it,
// the raw material a training step turns into a target policy
// distribution by dividing each count by the total. FromSlot/ToSlot are the
// policy subnet indices cmd/train computed for this move at record time
// (via the Game's MoveSquares/Flip, with the same slot routing
// mcts.Searcher uses), so cmd/train never needs to replay a position to
// decode a raw game.Move back into subnet coordinates.
type VisitedMove struct {
	Move             game.Move
	Visits           uint32
	FromSlot, ToSlot int
}

// Record is one self-play position: its active feature set (value net
// input; policy net input is assumed identical, matching every game.Game
// provider corvid ships), the search's visit distribution over legal
// moves, its search score, and the final game result from this position's
// side to move's perspective.
type Record struct {
	Hash    uint64
	Feats   features.Sparse
	Moves   []VisitedMove
	ScoreCp int32
	Result  float32 // in [-1, 1]: 1 = this side to move eventually won
}

// Writer appends length-prefixed Records to an underlying stream.
type Writer struct {
	w *bufio.Writer
}

// NewWriter wraps w for sequential record writes.
func NewWriter(w io.Writer) *Writer { return &Writer{w: bufio.NewWriter(w)} }

// Write appends one record, preceded by its total encoded length so a
// reader can skip a corrupt record by length instead of losing the rest of
// the file.
func (wr *Writer) Write(r Record) error {
	var buf []byte
	buf = appendU64(buf, r.Hash)
	buf = appendI32(buf, r.ScoreCp)
	buf = appendF32(buf, r.Result)
	buf = appendU16(buf, uint16(len(r.Feats)))
	for _, f := range r.Feats {
		buf = appendI32(buf, f)
	}
	buf = appendU16(buf, uint16(len(r.Moves)))
	for _, m := range r.Moves {
		buf = appendU16(buf, uint16(m.Move))
		buf = appendU32(buf, m.Visits)
		buf = appendI32(buf, int32(m.FromSlot))
		buf = appendI32(buf, int32(m.ToSlot))
	}

	var lenBytes [4]byte
	binary.LittleEndian.PutUint32(lenBytes[:], uint32(len(buf)))
	if _, err := wr.w.Write(lenBytes[:]); err != nil {
		return errors.WithMessage(err, "binpack: write length prefix")
	}
	if _, err := wr.w.Write(buf); err != nil {
		return errors.WithMessage(err, "binpack: write record")
	}
	return nil
}

// Flush pushes buffered output to the underlying writer.
func (wr *Writer) Flush() error { return wr.w.Flush() }

// Reader reads Records back out of a stream written by Writer.
type Reader struct {
	r *bufio.Reader
}

// NewReader wraps r for sequential record reads.
func NewReader(r io.Reader) *Reader { return &Reader{r: bufio.NewReader(r)} }

// Next reads one record, returning io.EOF once the stream is exhausted
// cleanly between records.
func (rd *Reader) Next() (Record, error) {
	var lenBytes [4]byte
	if _, err := io.ReadFull(rd.r, lenBytes[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return Record{}, errors.New("binpack: truncated length prefix")
		}
		return Record{}, err
	}
	n := binary.LittleEndian.Uint32(lenBytes[:])
	buf := make([]byte, n)
	if _, err := io.ReadFull(rd.r, buf); err != nil {
		return Record{}, errors.WithMessage(err, "binpack: truncated record")
	}

	var rec Record
	off := 0
	rec.Hash, off = readU64(buf, off)
	var scoreU32 uint32
	scoreU32, off = readU32(buf, off)
	rec.ScoreCp = int32(scoreU32)
	var resultU32 uint32
	resultU32, off = readU32(buf, off)
	rec.Result = float32FromBits(resultU32)

	var numFeats uint16
	numFeats, off = readU16(buf, off)
	rec.Feats = make(features.Sparse, numFeats)
	for i := range rec.Feats {
		var v uint32
		v, off = readU32(buf, off)
		rec.Feats[i] = int32(v)
	}

	var numMoves uint16
	numMoves, off = readU16(buf, off)
	rec.Moves = make([]VisitedMove, numMoves)
	for i := range rec.Moves {
		var mv uint16
		mv, off = readU16(buf, off)
		var visits uint32
		visits, off = readU32(buf, off)
		var fromSlot, toSlot uint32
		fromSlot, off = readU32(buf, off)
		toSlot, off = readU32(buf, off)
		rec.Moves[i] = VisitedMove{
			Move:     game.Move(mv),
			Visits:   visits,
			FromSlot: int(int32(fromSlot)),
			ToSlot:   int(int32(toSlot)),
		}
	}
	return rec, nil
}

// ReadAll drains r into a slice, for the common case of loading a whole
// shard into memory for one training pass.
func ReadAll(r io.Reader) ([]Record, error) {
	rd := NewReader(r)
	var out []Record
	for {
		rec, err := rd.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
}
