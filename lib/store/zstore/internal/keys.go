package internal

import (
	"encoding/binary"
	"math"

	"github.com/ValentinKolb/zKV/lib/store"
)

// Row families. Every physical key starts with one of these bytes.
const (
	FamilyMeta   byte = 'M' // metadata row of a sorted set
	FamilyScore  byte = 'S' // score-index row, ordered by (score, member)
	FamilyMember byte = 'D' // member-index row, ordered by member
)

const (
	lenSize     = 4 // length prefix of namespace and key
	versionSize = 8
)

// The layouts are:
//
//	meta:   family | u32 len(ns) | ns | u32 len(key) | key
//	score:  family | u32 len(ns) | ns | u32 len(key) | key | u64 version | score code | member
//	member: family | u32 len(ns) | ns | u32 len(key) | key | u64 version | member
//
// All integers are big endian. The member is always the last component, so it needs no
// length prefix, and the length prefixes keep one key's rows from sharing a prefix with
// another key's rows.

func appendString(buf []byte, s string) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

// KeyPrefix is the prefix of all rows of one family for one sorted set
func KeyPrefix(family byte, ns, key string) []byte {
	buf := make([]byte, 0, 1+2*lenSize+len(ns)+len(key)+versionSize+ScoreSize)
	buf = append(buf, family)
	buf = appendString(buf, ns)
	return appendString(buf, key)
}

// NamespacePrefix is the prefix of all rows of one family in the namespace
func NamespacePrefix(family byte, ns string) []byte {
	return appendString([]byte{family}, ns)
}

// MetaKey is the key of the metadata row
func MetaKey(ns, key string) []byte {
	return KeyPrefix(FamilyMeta, ns, key)
}

// VersionPrefix is the prefix of all rows of one family at one version.
// The range [VersionPrefix(f, ns, key, 0), VersionPrefix(f, ns, key, v)) covers all versions below v.
func VersionPrefix(family byte, ns, key string, version uint64) []byte {
	return binary.BigEndian.AppendUint64(KeyPrefix(family, ns, key), version)
}

// ScorePrefix is the prefix of all score-index rows at the version
func ScorePrefix(ns, key string, version uint64) []byte {
	return VersionPrefix(FamilyScore, ns, key, version)
}

// MemberPrefix is the prefix of all member-index rows at the version
func MemberPrefix(ns, key string, version uint64) []byte {
	return VersionPrefix(FamilyMember, ns, key, version)
}

// ScoreKey appends the score code and the member to a score prefix
func ScoreKey(prefix []byte, code [ScoreSize]byte, member string) []byte {
	buf := make([]byte, 0, len(prefix)+ScoreSize+len(member))
	buf = append(buf, prefix...)
	buf = append(buf, code[:]...)
	return append(buf, member...)
}

// MemberKey appends the member to a member prefix
func MemberKey(prefix []byte, member string) []byte {
	buf := make([]byte, 0, len(prefix)+len(member))
	buf = append(buf, prefix...)
	return append(buf, member...)
}

// PrefixEnd returns the smallest key that is greater than every key with the prefix.
// It returns nil (unbounded) if no such key exists.
func PrefixEnd(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

// Successor returns the smallest key that is greater than key
func Successor(key []byte) []byte {
	next := make([]byte, len(key)+1)
	copy(next, key)
	return next
}

// --------------------------------------------------------------------------
// Parsers
// --------------------------------------------------------------------------

// readString reads a length-prefixed string and returns the rest of the buffer
func readString(buf []byte) (string, []byte, error) {
	if len(buf) < lenSize {
		return "", nil, store.NewError(store.RetCCorruption, "key too short for length prefix")
	}
	n := binary.BigEndian.Uint32(buf)
	buf = buf[lenSize:]
	if uint64(len(buf)) < uint64(n) {
		return "", nil, store.Errorf(store.RetCCorruption, "key too short for component of length %d", n)
	}
	return string(buf[:n]), buf[n:], nil
}

// parseHeader checks the family and returns namespace, key and the rest of the row key
func parseHeader(row []byte, family byte) (ns, key string, rest []byte, err error) {
	if len(row) == 0 || row[0] != family {
		return "", "", nil, store.Errorf(store.RetCCorruption, "row key does not belong to family %q", family)
	}
	if ns, rest, err = readString(row[1:]); err != nil {
		return "", "", nil, err
	}
	if key, rest, err = readString(rest); err != nil {
		return "", "", nil, err
	}
	return ns, key, rest, nil
}

// ParseMetaKey returns namespace and key of a metadata row key
func ParseMetaKey(row []byte) (ns, key string, err error) {
	ns, key, rest, err := parseHeader(row, FamilyMeta)
	if err != nil {
		return "", "", err
	}
	if len(rest) != 0 {
		return "", "", store.NewError(store.RetCCorruption, "trailing bytes in metadata key")
	}
	return ns, key, nil
}

// ParseScoreKey returns version, score and member of a score-index row key
func ParseScoreKey(row []byte) (version uint64, score float64, member string, err error) {
	_, _, rest, err := parseHeader(row, FamilyScore)
	if err != nil {
		return 0, 0, "", err
	}
	if len(rest) < versionSize+ScoreSize {
		return 0, 0, "", store.NewError(store.RetCCorruption, "score key too short")
	}
	version = binary.BigEndian.Uint64(rest)
	if score, err = DecodeScore(rest[versionSize : versionSize+ScoreSize]); err != nil {
		return 0, 0, "", err
	}
	return version, score, string(rest[versionSize+ScoreSize:]), nil
}

// ParseMemberKey returns version and member of a member-index row key
func ParseMemberKey(row []byte) (version uint64, member string, err error) {
	_, _, rest, err := parseHeader(row, FamilyMember)
	if err != nil {
		return 0, "", err
	}
	if len(rest) < versionSize {
		return 0, "", store.NewError(store.RetCCorruption, "member key too short")
	}
	return binary.BigEndian.Uint64(rest), string(rest[versionSize:]), nil
}

// --------------------------------------------------------------------------
// Score bounds
// --------------------------------------------------------------------------

var negativeZero = math.Copysign(0, -1)

// ScoreLowerBound returns the smallest score-index key (below prefix) whose score satisfies min.
// A zero bound is widened to -0 or narrowed to +0, because both encode differently but compare equal.
func ScoreLowerBound(prefix []byte, min float64, exclusive bool) ([]byte, error) {
	if min == 0 {
		min = 0
		if !exclusive {
			min = negativeZero
		}
	}
	code, err := EncodeScore(min)
	if err != nil {
		return nil, err
	}
	bound := append(append(make([]byte, 0, len(prefix)+ScoreSize), prefix...), code[:]...)
	if exclusive {
		return PrefixEnd(bound), nil
	}
	return bound, nil
}

// ScoreUpperBound returns the exclusive upper iteration bound (below prefix) for scores satisfying max
func ScoreUpperBound(prefix []byte, max float64, exclusive bool) ([]byte, error) {
	if max == 0 {
		max = 0
		if exclusive {
			max = negativeZero
		}
	}
	code, err := EncodeScore(max)
	if err != nil {
		return nil, err
	}
	bound := append(append(make([]byte, 0, len(prefix)+ScoreSize), prefix...), code[:]...)
	if exclusive {
		return bound, nil
	}
	return PrefixEnd(bound), nil
}
