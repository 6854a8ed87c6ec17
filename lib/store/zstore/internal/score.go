package internal

import (
	"encoding/binary"
	"math"

	"github.com/ValentinKolb/zKV/lib/store"
)

// ScoreSize is the width of an encoded score
const ScoreSize = 8

const signBit = 1 << 63

// EncodeScore converts a score into 8 bytes whose unsigned byte-wise order matches
// the numeric order of the scores, including the infinities.
// Negative numbers get all bits flipped, non-negative numbers only the sign bit.
// -0 encodes below +0.
func EncodeScore(score float64) ([ScoreSize]byte, error) {
	var code [ScoreSize]byte
	if math.IsNaN(score) {
		return code, store.NewError(store.RetCInvalidArgument, "score is not a number")
	}

	bits := math.Float64bits(score)
	if bits&signBit != 0 {
		bits = ^bits
	} else {
		bits ^= signBit
	}

	binary.BigEndian.PutUint64(code[:], bits)
	return code, nil
}

// DecodeScore is the inverse of EncodeScore
func DecodeScore(code []byte) (float64, error) {
	if len(code) != ScoreSize {
		return 0, store.Errorf(store.RetCInvalidArgument, "encoded score has %d bytes, expected %d", len(code), ScoreSize)
	}

	bits := binary.BigEndian.Uint64(code)
	if bits&signBit != 0 {
		bits ^= signBit
	} else {
		bits = ^bits
	}

	score := math.Float64frombits(bits)
	if math.IsNaN(score) {
		return 0, store.NewError(store.RetCInvalidArgument, "encoded score is not a number")
	}
	return score, nil
}

// EncodeValue stores the raw bits of a score (value of a member-index row)
func EncodeValue(score float64) []byte {
	value := make([]byte, ScoreSize)
	binary.BigEndian.PutUint64(value, math.Float64bits(score))
	return value
}

// DecodeValue is the inverse of EncodeValue
func DecodeValue(value []byte) (float64, error) {
	if len(value) != ScoreSize {
		return 0, store.Errorf(store.RetCInvalidArgument, "stored score has %d bytes, expected %d", len(value), ScoreSize)
	}
	score := math.Float64frombits(binary.BigEndian.Uint64(value))
	if math.IsNaN(score) {
		return 0, store.NewError(store.RetCInvalidArgument, "stored score is not a number")
	}
	return score, nil
}
