package binpack

import (
	"encoding/binary"
	"math"
)

func appendU16(b []byte, v uint16) []byte {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	return append(b, tmp[:]...)
}

func appendU32(b []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(b, tmp[:]...)
}

func appendU64(b []byte, v uint64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	return append(b, tmp[:]...)
}

func appendI32(b []byte, v int32) []byte { return appendU32(b, uint32(v)) }

func appendF32(b []byte, v float32) []byte { return appendU32(b, math.Float32bits(v)) }

func float32FromBits(v uint32) float32 { return math.Float32frombits(v) }

func readU16(b []byte, off int) (uint16, int) {
	return binary.LittleEndian.Uint16(b[off : off+2]), off + 2
}

func readU32(b []byte, off int) (uint32, int) {
	return binary.LittleEndian.Uint32(b[off : off+4]), off + 4
}

func readU64(b []byte, off int) (uint64, int) {
	return binary.LittleEndian.Uint64(b[off : off+8]), off + 8
}
