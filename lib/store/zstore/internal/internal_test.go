package internal

import (
	"bytes"
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/ValentinKolb/zKV/lib/store"
)

// TestScoreRoundTrip tests that decoding an encoded score yields the same score
func TestScoreRoundTrip(t *testing.T) {
	tests := []float64{
		0, math.Copysign(0, -1), 1, -1, 1.234, -1.234, 100.1, -100.1,
		math.MaxFloat64, -math.MaxFloat64, math.SmallestNonzeroFloat64, -math.SmallestNonzeroFloat64,
		math.Inf(1), math.Inf(-1),
	}

	for _, score := range tests {
		code, err := EncodeScore(score)
		if err != nil {
			t.Fatalf("EncodeScore(%v) failed: %v", score, err)
		}
		decoded, err := DecodeScore(code[:])
		if err != nil {
			t.Fatalf("DecodeScore(%v) failed: %v", score, err)
		}
		if math.Float64bits(decoded) != math.Float64bits(score) {
			t.Errorf("Round trip of %v returned %v", score, decoded)
		}
	}
}

// TestScoreOrder tests that byte order of the codes matches numeric order
func TestScoreOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	scores := []float64{math.Inf(-1), math.Inf(1), 0, -1e-300, 1e-300, -1e300, 1e300}
	for i := 0; i < 1000; i++ {
		scores = append(scores, (rng.Float64()-0.5)*math.Pow(10, float64(rng.Intn(40)-20)))
	}

	sort.Float64s(scores)

	for i := 1; i < len(scores); i++ {
		a, _ := EncodeScore(scores[i-1])
		b, _ := EncodeScore(scores[i])
		cmp := bytes.Compare(a[:], b[:])
		if scores[i-1] < scores[i] && cmp >= 0 {
			t.Errorf("Expected code of %v to sort before code of %v", scores[i-1], scores[i])
		}
		if scores[i-1] == scores[i] && cmp != 0 {
			t.Errorf("Expected equal codes for %v", scores[i])
		}
	}

	negZero, _ := EncodeScore(math.Copysign(0, -1))
	posZero, _ := EncodeScore(0)
	if bytes.Compare(negZero[:], posZero[:]) >= 0 {
		t.Errorf("Expected -0 to sort before +0")
	}
}

// TestScoreNaN tests that NaN is rejected in both directions
func TestScoreNaN(t *testing.T) {
	if _, err := EncodeScore(math.NaN()); !store.IsInvalidArgument(err) {
		t.Errorf("Expected InvalidArgument for NaN, got %v", err)
	}

	// the code NaN would have if it was encoded like any other positive number
	var code [ScoreSize]byte
	bits := math.Float64bits(math.NaN()) ^ signBit
	for i := 0; i < ScoreSize; i++ {
		code[i] = byte(bits >> (56 - 8*i))
	}
	if _, err := DecodeScore(code[:]); !store.IsInvalidArgument(err) {
		t.Errorf("Expected InvalidArgument when decoding NaN, got %v", err)
	}

	if _, err := DecodeScore([]byte{1, 2, 3}); !store.IsInvalidArgument(err) {
		t.Errorf("Expected InvalidArgument for a short code, got %v", err)
	}
	if _, err := DecodeValue([]byte{1}); !store.IsInvalidArgument(err) {
		t.Errorf("Expected InvalidArgument for a short value, got %v", err)
	}
}

// TestValueRoundTrip tests the member-index value encoding
func TestValueRoundTrip(t *testing.T) {
	for _, score := range []float64{0, -3.5, math.Inf(1)} {
		decoded, err := DecodeValue(EncodeValue(score))
		if err != nil || decoded != score {
			t.Errorf("Round trip of %v returned %v (%v)", score, decoded, err)
		}
	}
}

// TestKeyRoundTrip tests building and parsing of all row keys
func TestKeyRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		ns     string
		key    string
		member string
		score  float64
	}{
		{"plain", "zset_ns", "zset_test_key", "zset_test_key-1", -100.1},
		{"empty", "", "", "", 0},
		{"binary", "n\x00s", "k\xff\x00", "\x00\x00\xff", math.Inf(-1)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ns, key, err := ParseMetaKey(MetaKey(tc.ns, tc.key))
			if err != nil || ns != tc.ns || key != tc.key {
				t.Errorf("ParseMetaKey returned (%q, %q, %v)", ns, key, err)
			}

			code, _ := EncodeScore(tc.score)
			version, score, member, err := ParseScoreKey(ScoreKey(ScorePrefix(tc.ns, tc.key, 7), code, tc.member))
			if err != nil || version != 7 || score != tc.score || member != tc.member {
				t.Errorf("ParseScoreKey returned (%d, %v, %q, %v)", version, score, member, err)
			}

			version, member, err = ParseMemberKey(MemberKey(MemberPrefix(tc.ns, tc.key, 9), tc.member))
			if err != nil || version != 9 || member != tc.member {
				t.Errorf("ParseMemberKey returned (%d, %q, %v)", version, member, err)
			}
		})
	}
}

// TestParseCorruptKeys tests that malformed keys are reported as corruption
func TestParseCorruptKeys(t *testing.T) {
	scoreKey := ScorePrefix("ns", "key", 1)
	memberKey := MemberPrefix("ns", "key", 1)

	tests := []struct {
		name  string
		parse func() error
	}{
		{"wrong family", func() error { _, _, _, err := ParseScoreKey(memberKey); return err }},
		{"empty", func() error { _, _, err := ParseMemberKey(nil); return err }},
		{"short length", func() error { _, _, err := ParseMetaKey([]byte{FamilyMeta, 0, 0}); return err }},
		{"length overflow", func() error { _, _, err := ParseMetaKey([]byte{FamilyMeta, 0, 0, 0, 9, 'a'}); return err }},
		{"missing score", func() error { _, _, _, err := ParseScoreKey(scoreKey); return err }},
		{"missing version", func() error { _, _, err := ParseMemberKey(KeyPrefix(FamilyMember, "ns", "key")); return err }},
		{"trailing meta", func() error { _, _, err := ParseMetaKey(append(MetaKey("ns", "key"), 'x')); return err }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.parse(); !store.IsCorruption(err) {
				t.Errorf("Expected Corruption, got %v", err)
			}
		})
	}
}

// TestPrefixIsolation tests that the rows of one key never fall into the range of another key
func TestPrefixIsolation(t *testing.T) {
	keys := []string{"a", "ab", "a\x00", "b", ""}

	for _, k1 := range keys {
		lower := KeyPrefix(FamilyScore, "ns", k1)
		upper := PrefixEnd(lower)
		for _, k2 := range keys {
			if k1 == k2 {
				continue
			}
			code, _ := EncodeScore(1)
			row := ScoreKey(ScorePrefix("ns", k2, 1), code, "member")
			if bytes.Compare(row, lower) >= 0 && bytes.Compare(row, upper) < 0 {
				t.Errorf("Row of key %q falls into the range of key %q", k2, k1)
			}
		}
	}

	// versions are ordered and bounded
	v1 := VersionPrefix(FamilyMember, "ns", "k", 1)
	v2 := VersionPrefix(FamilyMember, "ns", "k", 2)
	row := MemberKey(v1, "\xff\xff\xff\xff\xff\xff\xff\xff\xff")
	if bytes.Compare(row, v2) >= 0 {
		t.Errorf("Expected all rows of version 1 to sort before version 2")
	}
}

// TestPrefixEnd tests the exclusive upper bound of a prefix
func TestPrefixEnd(t *testing.T) {
	tests := []struct {
		prefix   []byte
		expected []byte
	}{
		{[]byte("abc"), []byte("abd")},
		{[]byte{'a', 0xff}, []byte{'b'}},
		{[]byte{0xff, 0xff}, nil},
		{[]byte{}, nil},
	}

	for _, tc := range tests {
		if got := PrefixEnd(tc.prefix); !bytes.Equal(got, tc.expected) {
			t.Errorf("PrefixEnd(%x) = %x, expected %x", tc.prefix, got, tc.expected)
		}
	}

	if got := Successor([]byte("a")); !bytes.Equal(got, []byte("a\x00")) {
		t.Errorf("Successor(a) = %q", got)
	}
}

// TestScoreBounds tests the iteration bounds of score ranges, including signed zeros
func TestScoreBounds(t *testing.T) {
	prefix := ScorePrefix("ns", "k", 1)
	row := func(score float64) []byte {
		code, _ := EncodeScore(score)
		return ScoreKey(prefix, code, "m")
	}
	negZero := math.Copysign(0, -1)

	tests := []struct {
		name     string
		min, max float64
		minEx    bool
		maxEx    bool
		inside   []float64
		outside  []float64
	}{
		{"inclusive", -1, 1, false, false, []float64{-1, 0, negZero, 1}, []float64{-1.5, 1.5}},
		{"exclusive", -1, 1, true, true, []float64{-0.5, 0.5}, []float64{-1, 1}},
		{"zero inclusive", 0, 0, false, false, []float64{0, negZero}, []float64{-1e-300, 1e-300}},
		{"above zero", 0, math.Inf(1), true, false, []float64{1e-300, math.Inf(1)}, []float64{0, negZero}},
		{"below zero", math.Inf(-1), 0, false, true, []float64{math.Inf(-1), -1e-300}, []float64{0, negZero}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			lower, err := ScoreLowerBound(prefix, tc.min, tc.minEx)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			upper, err := ScoreUpperBound(prefix, tc.max, tc.maxEx)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			in := func(score float64) bool {
				r := row(score)
				return bytes.Compare(r, lower) >= 0 && bytes.Compare(r, upper) < 0
			}
			for _, s := range tc.inside {
				if !in(s) {
					t.Errorf("Expected %v to be inside", s)
				}
			}
			for _, s := range tc.outside {
				if in(s) {
					t.Errorf("Expected %v to be outside", s)
				}
			}
		})
	}

	if _, err := ScoreLowerBound(prefix, math.NaN(), false); !store.IsInvalidArgument(err) {
		t.Errorf("Expected InvalidArgument for NaN bound, got %v", err)
	}
}

// TestMetadata tests encoding and state of metadata rows
func TestMetadata(t *testing.T) {
	meta := Metadata{Version: 42, Count: 7, ExpireAt: 1000}

	decoded, err := DecodeMetadata(meta.Encode())
	if err != nil {
		t.Fatalf("DecodeMetadata failed: %v", err)
	}
	if decoded != meta {
		t.Errorf("Expected %s, got %s", meta, decoded)
	}

	if !meta.Live(999) || meta.Live(1000) || !meta.Expired(1000) {
		t.Errorf("Unexpected expiration state for %s", meta)
	}
	if (Metadata{Version: 1}).Live(0) {
		t.Errorf("Expected a tombstone not to be live")
	}
	if !(Metadata{Version: 1, Count: 1}).Live(math.MaxInt64) {
		t.Errorf("Expected a sorted set without expiration to stay live")
	}

	if _, err := DecodeMetadata([]byte("short")); !store.IsCorruption(err) {
		t.Errorf("Expected Corruption for short metadata, got %v", err)
	}
	encoded := meta.Encode()
	encoded[0] = 'h'
	if _, err := DecodeMetadata(encoded); !store.IsCorruption(err) {
		t.Errorf("Expected Corruption for a foreign type, got %v", err)
	}
}

// TestNextVersion tests that versions are strictly increasing
func TestNextVersion(t *testing.T) {
	last := NextVersion()
	for i := 0; i < 10000; i++ {
		next := NextVersion()
		if next <= last {
			t.Fatalf("Version %d is not greater than %d", next, last)
		}
		last = next
	}
}
