package zset

import (
	"math"
	"testing"

	"github.com/ValentinKolb/zKV/lib/store"
	"github.com/spf13/cobra"
)

func TestParseMemberScores(t *testing.T) {
	members, err := parseMemberScores([]string{"1.5", "a", "-inf", "b", "+inf", "c"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []store.MemberScore{{Member: "a", Score: 1.5}, {Member: "b", Score: math.Inf(-1)}, {Member: "c", Score: math.Inf(1)}}
	if len(members) != len(want) {
		t.Fatalf("got %d members, want %d", len(members), len(want))
	}
	for i := range want {
		if members[i] != want[i] {
			t.Errorf("member %d = %+v, want %+v", i, members[i], want[i])
		}
	}

	for _, args := range [][]string{{"1", "a", "2"}, {"x", "a"}, {"nan", "a"}} {
		if _, err := parseMemberScores(args); !store.IsInvalidArgument(err) {
			t.Errorf("parseMemberScores(%q) error = %v, want InvalidArgument", args, err)
		}
	}
}

func TestAddFlagsOf(t *testing.T) {
	cmd := &cobra.Command{}
	for _, name := range []string{"nx", "xx", "gt", "lt", "ch", "incr"} {
		cmd.Flags().Bool(name, false, "")
	}
	if err := cmd.Flags().Parse([]string{"--gt", "--ch"}); err != nil {
		t.Fatalf("failed to parse flags: %v", err)
	}

	flags, err := addFlagsOf(cmd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if flags != store.AddGT|store.AddCH {
		t.Errorf("flags = %s, want GT|CH", flags)
	}
}

func TestFormatScore(t *testing.T) {
	tests := map[float64]string{
		1.5:          "1.5",
		-100.1:       "-100.1",
		0:            "0",
		math.Inf(1):  "+Inf",
		math.Inf(-1): "-Inf",
		1e21:         "1e+21",
	}
	for in, want := range tests {
		if got := formatScore(in); got != want {
			t.Errorf("formatScore(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestGetKeys(t *testing.T) {
	prev := perfKeySpread
	perfKeySpread = 3
	defer func() { perfKeySpread = prev }()

	getKey, iter := getKeys("add")
	if getKey(0) != getKey(3) || getKey(1) == getKey(2) {
		t.Errorf("keys do not wrap around: %q %q %q %q", getKey(0), getKey(1), getKey(2), getKey(3))
	}
	n := 0
	iter(func(string) { n++ })
	if n != 3 {
		t.Errorf("iterated %d keys, want 3", n)
	}
}
