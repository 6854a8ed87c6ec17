package store

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// NoExpiration is the TTL of a sorted set without expiration time
const NoExpiration time.Duration = -1

// MemberScore is one entry of a sorted set
type MemberScore struct {
	Member string  `json:"member"`
	Score  float64 `json:"score"`
}

// --------------------------------------------------------------------------
// Add Flags
// --------------------------------------------------------------------------

// AddFlags control the behavior of Add. They can be combined with bitwise OR (|).
type AddFlags uint8

const (
	AddNX   AddFlags = 1 << iota // Only add new members, never update existing ones
	AddXX                        // Only update existing members, never add new ones
	AddGT                        // Only update if the new score is greater than the current one
	AddLT                        // Only update if the new score is less than the current one
	AddCH                        // Count changed members in addition to added ones
	AddINCR                      // Add the score to the current score (exactly one member)
)

// Has reports whether all flags of f2 are set in f
func (f AddFlags) Has(f2 AddFlags) bool {
	return f&f2 == f2
}

func (f AddFlags) String() string {
	names := []struct {
		flag AddFlags
		name string
	}{{AddNX, "NX"}, {AddXX, "XX"}, {AddGT, "GT"}, {AddLT, "LT"}, {AddCH, "CH"}, {AddINCR, "INCR"}}

	var parts []string
	for _, n := range names {
		if f.Has(n.flag) {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "NONE"
	}
	return strings.Join(parts, "|")
}

// Validate checks the flag combination for a call with n members
func (f AddFlags) Validate(n int) error {
	switch {
	case f.Has(AddNX | AddXX):
		return NewError(RetCInvalidArgument, "XX and NX options at the same time are not compatible")
	case f.Has(AddGT|AddLT), f.Has(AddNX|AddGT), f.Has(AddNX|AddLT):
		return NewError(RetCInvalidArgument, "GT, LT, and/or NX options at the same time are not compatible")
	case f.Has(AddINCR) && n != 1:
		return NewError(RetCInvalidArgument, "INCR option supports a single increment-element pair")
	}
	return nil
}

// AddResult is the result of Add
type AddResult struct {
	// Count is the number of added members, plus the number of updated members if AddCH is set
	Count int
	// Score is the new score of the member (AddINCR only)
	Score float64
	// Skipped reports that an AddINCR call was not applied because of NX, XX, GT or LT (AddINCR only)
	Skipped bool
}

// --------------------------------------------------------------------------
// Score Ranges
// --------------------------------------------------------------------------

// RangeSpec selects members by score
type RangeSpec struct {
	Min, Max     float64
	MinEx, MaxEx bool // exclusive bounds
	Offset       int  // number of matches to skip, negative yields an empty result
	Count        int  // maximum number of results, <= 0 means unlimited
	Reversed     bool // iterate from Max to Min
}

// FullScoreRange returns a spec covering all scores
func FullScoreRange() RangeSpec {
	return RangeSpec{Min: math.Inf(-1), Max: math.Inf(1)}
}

// Validate checks the bounds of the spec
func (s RangeSpec) Validate() error {
	if math.IsNaN(s.Min) || math.IsNaN(s.Max) {
		return NewError(RetCInvalidArgument, "min or max is not a float")
	}
	return nil
}

// Empty reports whether no score can satisfy the bounds
func (s RangeSpec) Empty() bool {
	return s.Min > s.Max || (s.Min == s.Max && (s.MinEx || s.MaxEx))
}

// AboveMin reports whether score satisfies the lower bound
func (s RangeSpec) AboveMin(score float64) bool {
	if s.MinEx {
		return score > s.Min
	}
	return score >= s.Min
}

// BelowMax reports whether score satisfies the upper bound
func (s RangeSpec) BelowMax(score float64) bool {
	if s.MaxEx {
		return score < s.Max
	}
	return score <= s.Max
}

// Contains reports whether score lies within the bounds
func (s RangeSpec) Contains(score float64) bool {
	return s.AboveMin(score) && s.BelowMax(score)
}

// ParseScoreRange parses bounds in command syntax: "1.5", "(1.5" (exclusive), "-inf", "+inf"
func ParseScoreRange(min, max string) (RangeSpec, error) {
	var (
		spec RangeSpec
		err  error
	)
	if spec.Min, spec.MinEx, err = parseScoreBound(min); err != nil {
		return spec, err
	}
	if spec.Max, spec.MaxEx, err = parseScoreBound(max); err != nil {
		return spec, err
	}
	return spec, nil
}

func parseScoreBound(s string) (float64, bool, error) {
	exclusive := strings.HasPrefix(s, "(")
	if exclusive {
		s = s[1:]
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) {
		return 0, false, Errorf(RetCInvalidArgument, "min or max is not a float: %q", s)
	}
	return v, exclusive, nil
}

// --------------------------------------------------------------------------
// Lexicographic Ranges
// --------------------------------------------------------------------------

// LexSpec selects members by their byte-wise order.
// An inclusive empty Min is the "-" bound (every member is >= ""), MaxInfinite is the "+" bound.
type LexSpec struct {
	Min, Max     string
	MinEx, MaxEx bool // exclusive bounds
	MaxInfinite  bool // no upper bound, Max and MaxEx are ignored
	Offset       int  // number of matches to skip, negative yields an empty result
	Count        int  // maximum number of results, <= 0 means unlimited
	Reversed     bool // iterate from Max to Min
}

// FullLexRange returns a spec covering all members
func FullLexRange() LexSpec {
	return LexSpec{MaxInfinite: true}
}

// Empty reports whether no member can satisfy the bounds
func (s LexSpec) Empty() bool {
	if s.MaxInfinite {
		return false
	}
	return s.Min > s.Max || (s.Min == s.Max && (s.MinEx || s.MaxEx))
}

// AboveMin reports whether member satisfies the lower bound
func (s LexSpec) AboveMin(member string) bool {
	if s.MinEx {
		return member > s.Min
	}
	return member >= s.Min
}

// BelowMax reports whether member satisfies the upper bound
func (s LexSpec) BelowMax(member string) bool {
	switch {
	case s.MaxInfinite:
		return true
	case s.MaxEx:
		return member < s.Max
	default:
		return member <= s.Max
	}
}

// Contains reports whether member lies within the bounds
func (s LexSpec) Contains(member string) bool {
	return s.AboveMin(member) && s.BelowMax(member)
}

// ParseLexSpec parses bounds in command syntax: "[a" (inclusive), "(a" (exclusive), "-" and "+".
func ParseLexSpec(min, max string) (LexSpec, error) {
	var spec LexSpec

	switch {
	case min == "-":
		// every member is >= ""
	case min == "+":
		// nothing is above +inf, make the range empty
		return LexSpec{Max: "", MaxEx: true}, nil
	case strings.HasPrefix(min, "["):
		spec.Min = min[1:]
	case strings.HasPrefix(min, "("):
		spec.Min, spec.MinEx = min[1:], true
	default:
		return spec, Errorf(RetCInvalidArgument, "min should start with '[' or '(' or be '-' or '+': %q", min)
	}

	switch {
	case max == "+":
		spec.MaxInfinite = true
	case max == "-":
		spec.Max, spec.MaxEx = "", true
	case strings.HasPrefix(max, "["):
		spec.Max = max[1:]
	case strings.HasPrefix(max, "("):
		spec.Max, spec.MaxEx = max[1:], true
	default:
		return spec, Errorf(RetCInvalidArgument, "max should start with '[' or '(' or be '-' or '+': %q", max)
	}

	return spec, nil
}
