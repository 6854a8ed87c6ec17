package store

import (
	"fmt"
	"math"
	"testing"

	"github.com/cockroachdb/errors"
)

func TestAddFlagsValidate(t *testing.T) {
	tests := []struct {
		flags   AddFlags
		members int
		valid   bool
	}{
		{0, 3, true},
		{AddNX | AddCH, 2, true},
		{AddXX | AddGT, 2, true},
		{AddXX | AddLT | AddCH, 1, true},
		{AddNX | AddXX, 1, false},
		{AddGT | AddLT, 1, false},
		{AddNX | AddGT, 1, false},
		{AddNX | AddLT, 1, false},
		{AddINCR, 1, true},
		{AddINCR | AddXX, 1, true},
		{AddINCR, 2, false},
		{AddINCR, 0, false},
	}

	for _, tc := range tests {
		t.Run(fmt.Sprintf("%s/%d", tc.flags, tc.members), func(t *testing.T) {
			err := tc.flags.Validate(tc.members)
			if tc.valid && err != nil {
				t.Errorf("Expected flags to be valid, got %v", err)
			}
			if !tc.valid && !IsInvalidArgument(err) {
				t.Errorf("Expected InvalidArgument, got %v", err)
			}
		})
	}
}

func TestAddFlagsString(t *testing.T) {
	if s := (AddNX | AddCH).String(); s != "NX|CH" {
		t.Errorf("Expected NX|CH, got %s", s)
	}
	if s := AddFlags(0).String(); s != "NONE" {
		t.Errorf("Expected NONE, got %s", s)
	}
}

func TestRangeSpec(t *testing.T) {
	spec := RangeSpec{Min: -1, Max: 1, MinEx: true}
	tests := []struct {
		score    float64
		expected bool
	}{
		{-1, false},
		{-0.5, true},
		{1, true},
		{1.0001, false},
	}
	for _, tc := range tests {
		if got := spec.Contains(tc.score); got != tc.expected {
			t.Errorf("Contains(%v): expected %t, got %t", tc.score, tc.expected, got)
		}
	}

	if !(RangeSpec{Min: 2, Max: 1}).Empty() {
		t.Errorf("Expected min > max to be empty")
	}
	if !(RangeSpec{Min: 1, Max: 1, MaxEx: true}).Empty() {
		t.Errorf("Expected (1, 1) exclusive to be empty")
	}
	if (RangeSpec{Min: 1, Max: 1}).Empty() {
		t.Errorf("Expected [1, 1] to be non-empty")
	}

	full := FullScoreRange()
	if !full.Contains(math.Inf(-1)) || !full.Contains(math.Inf(1)) {
		t.Errorf("Expected the full range to contain both infinities")
	}

	if err := (RangeSpec{Min: math.NaN()}).Validate(); !IsInvalidArgument(err) {
		t.Errorf("Expected NaN bound to be invalid, got %v", err)
	}
}

func TestParseScoreRange(t *testing.T) {
	spec, err := ParseScoreRange("(1.5", "+inf")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if spec.Min != 1.5 || !spec.MinEx || !math.IsInf(spec.Max, 1) || spec.MaxEx {
		t.Errorf("Unexpected spec %+v", spec)
	}

	spec, err = ParseScoreRange("-inf", "(0")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !math.IsInf(spec.Min, -1) || spec.Max != 0 || !spec.MaxEx {
		t.Errorf("Unexpected spec %+v", spec)
	}

	for _, bad := range []string{"abc", "(", "nan", ""} {
		if _, err := ParseScoreRange(bad, "1"); !IsInvalidArgument(err) {
			t.Errorf("Expected %q to be rejected, got %v", bad, err)
		}
	}
}

func TestParseLexSpec(t *testing.T) {
	tests := []struct {
		min, max string
		in       []string
		out      []string
	}{
		{"-", "+", []string{"", "a", "zzz"}, nil},
		{"[b", "(d", []string{"b", "bz", "c"}, []string{"a", "d", "da"}},
		{"(b", "[d", []string{"ba", "d"}, []string{"b", "da"}},
		{"-", "[b", []string{"", "a", "b"}, []string{"ba"}},
		{"+", "+", nil, []string{"", "a"}},
		{"-", "-", nil, []string{"", "a"}},
	}

	for _, tc := range tests {
		t.Run(tc.min+","+tc.max, func(t *testing.T) {
			spec, err := ParseLexSpec(tc.min, tc.max)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			for _, m := range tc.in {
				if !spec.Contains(m) {
					t.Errorf("Expected %q to be in range", m)
				}
			}
			for _, m := range tc.out {
				if spec.Contains(m) {
					t.Errorf("Expected %q to be out of range", m)
				}
			}
		})
	}

	for _, bad := range [][2]string{{"a", "+"}, {"-", "b"}, {"", "+"}} {
		if _, err := ParseLexSpec(bad[0], bad[1]); !IsInvalidArgument(err) {
			t.Errorf("Expected %q to be rejected, got %v", bad, err)
		}
	}
}

func TestErrorCodes(t *testing.T) {
	err := errors.Wrap(NewError(RetCNotFound, "member not found"), "score")
	if !IsNotFound(err) {
		t.Errorf("Expected wrapped error to be NotFound")
	}
	if IsCorruption(err) {
		t.Errorf("Expected wrapped error not to be Corruption")
	}
	if CodeOf(errors.New("io")) != RetCInternalError {
		t.Errorf("Expected foreign errors to be internal errors")
	}
	if CodeOf(nil) != RetCSuccess {
		t.Errorf("Expected nil to be a success")
	}
	if IsNotFound(nil) {
		t.Errorf("Expected nil not to be NotFound")
	}
	if s := NewError(RetCCorruption, "x").Error(); s != "StoreError (code Corruption): x" {
		t.Errorf("Unexpected error string %q", s)
	}
}
