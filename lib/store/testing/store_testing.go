package testing

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/zKV/lib/store"
)

// StoreFactory is a function that creates a new, empty instance of an IStore implementation
type StoreFactory func() store.IStore

// RunStoreTests runs a comprehensive test suite for an IStore implementation.
func RunStoreTests(t *testing.T, name string, factory StoreFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Add", func(t *testing.T) {
			testAdd(t, factory())
		})

		t.Run("AddFlags", func(t *testing.T) {
			testAddFlags(t, factory())
		})

		t.Run("IncrBy", func(t *testing.T) {
			testIncrBy(t, factory())
		})

		t.Run("Remove", func(t *testing.T) {
			testRemove(t, factory())
		})

		t.Run("Range", func(t *testing.T) {
			testRange(t, factory())
		})

		t.Run("RangeByScore", func(t *testing.T) {
			testRangeByScore(t, factory())
		})

		t.Run("RangeByScoreWithLimit", func(t *testing.T) {
			testRangeByScoreWithLimit(t, factory())
		})

		t.Run("RangeByLex", func(t *testing.T) {
			testRangeByLex(t, factory())
		})

		t.Run("Rank", func(t *testing.T) {
			testRank(t, factory())
		})

		t.Run("Pop", func(t *testing.T) {
			testPop(t, factory())
		})

		t.Run("RemoveRange", func(t *testing.T) {
			testRemoveRange(t, factory())
		})

		t.Run("Counts", func(t *testing.T) {
			testCounts(t, factory())
		})

		t.Run("DeleteAndRecreate", func(t *testing.T) {
			testDeleteAndRecreate(t, factory())
		})

		t.Run("Expiration", func(t *testing.T) {
			testExpiration(t, factory())
		})

		t.Run("InvalidArguments", func(t *testing.T) {
			testInvalidArguments(t, factory())
		})

		t.Run("Example", func(t *testing.T) {
			testExample(t, factory())
		})

		t.Run("ConcurrentAdds", func(t *testing.T) {
			testConcurrentAdds(t, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Fixtures and helper functions
// --------------------------------------------------------------------------

const testKey = "test_zset_key"

var (
	testMembers = []string{
		"zset_test_key-1", "zset_test_key-2", "zset_test_key-3", "zset_test_key-4",
		"zset_test_key-5", "zset_test_key-6", "zset_test_key-7",
	}
	testScores = []float64{-100.1, -100.1, -1.234, 0, 1.234, 1.234, 100.1}
)

// fixture returns the test members with their scores (already in ascending order)
func fixture() []store.MemberScore {
	entries := make([]store.MemberScore, len(testMembers))
	for i := range testMembers {
		entries[i] = store.MemberScore{Member: testMembers[i], Score: testScores[i]}
	}
	return entries
}

// addFixture adds the test members to key and fails if not all of them are new
func addFixture(t *testing.T, s store.IStore, key string) {
	t.Helper()
	res, err := s.Add(key, 0, fixture())
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if res.Count != len(testMembers) {
		t.Fatalf("Expected %d added members, got %d", len(testMembers), res.Count)
	}
}

// expectEntries compares entries with the fixture entries at the given indices
func expectEntries(t *testing.T, entries []store.MemberScore, indices ...int) {
	t.Helper()
	if len(entries) != len(indices) {
		t.Fatalf("Expected %d entries, got %d: %v", len(indices), len(entries), entries)
	}
	for i, idx := range indices {
		if entries[i].Member != testMembers[idx] || entries[i].Score != testScores[idx] {
			t.Errorf("Entry %d: expected {%s %v}, got {%s %v}",
				i, testMembers[idx], testScores[idx], entries[i].Member, entries[i].Score)
		}
	}
}

// expectMembers compares members with the fixture members at the given indices
func expectMembers(t *testing.T, members []string, indices ...int) {
	t.Helper()
	if len(members) != len(indices) {
		t.Fatalf("Expected %d members, got %d: %v", len(indices), len(members), members)
	}
	for i, idx := range indices {
		if members[i] != testMembers[idx] {
			t.Errorf("Member %d: expected %s, got %s", i, testMembers[idx], members[i])
		}
	}
}

// span returns the indices from..to (inclusive), descending if from > to
func span(from, to int) []int {
	var indices []int
	if from <= to {
		for i := from; i <= to; i++ {
			indices = append(indices, i)
		}
	} else {
		for i := from; i >= to; i-- {
			indices = append(indices, i)
		}
	}
	return indices
}

func expectCard(t *testing.T, s store.IStore, key string, expected int) {
	t.Helper()
	card, err := s.Card(key)
	if err != nil {
		t.Fatalf("Card failed: %v", err)
	}
	if card != expected {
		t.Errorf("Expected cardinality %d, got %d", expected, card)
	}
}

// must unwraps the result of a store call. It panics on an error, which fails the test
// with the stack of the failing call.
func must[T any](v T, err error) T {
	if err != nil {
		panic(fmt.Sprintf("unexpected store error: %v", err))
	}
	return v
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testAdd(t *testing.T, s store.IStore) {
	defer s.Close()
	addFixture(t, s, testKey)

	for i, member := range testMembers {
		score, err := s.Score(testKey, member)
		if err != nil {
			t.Fatalf("Score failed: %v", err)
		}
		if score != testScores[i] {
			t.Errorf("Expected score %v for %s, got %v", testScores[i], member, score)
		}
	}

	// adding the same entries again changes nothing
	res := must(s.Add(testKey, 0, fixture()))
	if res.Count != 0 {
		t.Errorf("Expected 0 added members on re-add, got %d", res.Count)
	}
	expectCard(t, s, testKey, len(testMembers))
	expectEntries(t, must(s.Range(testKey, 0, -1, false)), span(0, 6)...)

	// updating a score moves the member
	res = must(s.Add(testKey, 0, []store.MemberScore{{Member: testMembers[0], Score: 1000}}))
	if res.Count != 0 {
		t.Errorf("Expected 0 added members on update, got %d", res.Count)
	}
	last := must(s.Range(testKey, -1, -1, false))
	if len(last) != 1 || last[0].Member != testMembers[0] || last[0].Score != 1000 {
		t.Errorf("Expected %s to be last with score 1000, got %v", testMembers[0], last)
	}

	// duplicates in one call: counted once, the last occurrence wins
	res = must(s.Add("dup", 0, []store.MemberScore{{Member: "a", Score: 1}, {Member: "a", Score: 2}, {Member: "b", Score: 3}}))
	if res.Count != 2 {
		t.Errorf("Expected 2 added members, got %d", res.Count)
	}
	if score := must(s.Score("dup", "a")); score != 2 {
		t.Errorf("Expected the last score 2, got %v", score)
	}
	expectCard(t, s, "dup", 2)

	// empty member list
	res = must(s.Add("empty", 0, nil))
	if res.Count != 0 {
		t.Errorf("Expected 0 for an empty add, got %d", res.Count)
	}
	expectCard(t, s, "empty", 0)
}

func testAddFlags(t *testing.T, s store.IStore) {
	defer s.Close()
	must(s.Add(testKey, 0, []store.MemberScore{{Member: "a", Score: 10}, {Member: "b", Score: 20}}))

	tests := []struct {
		name     string
		flags    store.AddFlags
		entries  []store.MemberScore
		expected int
		scores   map[string]float64
	}{
		{"NX adds only new", store.AddNX, []store.MemberScore{{Member: "a", Score: 1}, {Member: "c", Score: 30}}, 1, map[string]float64{"a": 10, "c": 30}},
		{"XX updates only existing", store.AddXX, []store.MemberScore{{Member: "a", Score: 11}, {Member: "d", Score: 40}}, 0, map[string]float64{"a": 11}},
		{"CH counts changes", store.AddCH, []store.MemberScore{{Member: "a", Score: 12}, {Member: "b", Score: 20}, {Member: "e", Score: 50}}, 2, map[string]float64{"a": 12, "b": 20}},
		{"GT only increases", store.AddGT | store.AddCH, []store.MemberScore{{Member: "a", Score: 5}, {Member: "b", Score: 25}}, 1, map[string]float64{"a": 12, "b": 25}},
		{"LT only decreases", store.AddLT | store.AddCH, []store.MemberScore{{Member: "a", Score: 5}, {Member: "b", Score: 30}}, 1, map[string]float64{"a": 5, "b": 25}},
		{"GT adds new members", store.AddGT, []store.MemberScore{{Member: "f", Score: -1}}, 1, map[string]float64{"f": -1}},
		{"XX CH", store.AddXX | store.AddCH, []store.MemberScore{{Member: "f", Score: 0}, {Member: "g", Score: 0}}, 1, map[string]float64{"f": 0}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res := must(s.Add(testKey, tc.flags, tc.entries))
			if res.Count != tc.expected {
				t.Errorf("Expected count %d, got %d", tc.expected, res.Count)
			}
			for member, expected := range tc.scores {
				if score := must(s.Score(testKey, member)); score != expected {
					t.Errorf("Expected score %v for %s, got %v", expected, member, score)
				}
			}
		})
	}

	if _, err := s.Score(testKey, "d"); !store.IsNotFound(err) {
		t.Errorf("Expected XX not to add d, got %v", err)
	}

	// INCR
	res := must(s.Add(testKey, store.AddINCR, []store.MemberScore{{Member: "a", Score: 2.5}}))
	if res.Skipped || res.Score != 7.5 {
		t.Errorf("Expected INCR to return 7.5, got %+v", res)
	}
	res = must(s.Add(testKey, store.AddINCR|store.AddNX, []store.MemberScore{{Member: "a", Score: 1}}))
	if !res.Skipped {
		t.Errorf("Expected INCR with NX on an existing member to be skipped, got %+v", res)
	}
	res = must(s.Add(testKey, store.AddINCR|store.AddXX, []store.MemberScore{{Member: "missing", Score: 1}}))
	if !res.Skipped {
		t.Errorf("Expected INCR with XX on a missing member to be skipped, got %+v", res)
	}
	res = must(s.Add(testKey, store.AddINCR|store.AddGT, []store.MemberScore{{Member: "a", Score: -1}}))
	if !res.Skipped {
		t.Errorf("Expected INCR with GT and a negative increment to be skipped, got %+v", res)
	}
	if score := must(s.Score(testKey, "a")); score != 7.5 {
		t.Errorf("Expected skipped increments to leave 7.5, got %v", score)
	}
}

func testIncrBy(t *testing.T, s store.IStore) {
	defer s.Close()
	addFixture(t, s, testKey)

	for i, member := range testMembers {
		score := must(s.IncrBy(testKey, member, 12.3))
		if score != testScores[i]+12.3 {
			t.Errorf("Expected %v, got %v", testScores[i]+12.3, score)
		}
	}

	// a missing member starts at 0
	if score := must(s.IncrBy("fresh", "m", -4)); score != -4 {
		t.Errorf("Expected -4, got %v", score)
	}
	expectCard(t, s, "fresh", 1)

	// the score index follows the new score
	must(s.IncrBy("fresh", "n", 1))
	must(s.IncrBy("fresh", "m", 10))
	entries := must(s.Range("fresh", 0, -1, false))
	if len(entries) != 2 || entries[0].Member != "n" || entries[1].Member != "m" {
		t.Errorf("Expected [n m], got %v", entries)
	}

	if _, err := s.IncrBy("inf", "m", math.Inf(1)); err != nil {
		t.Fatalf("IncrBy +inf failed: %v", err)
	}
	if _, err := s.IncrBy("inf", "m", math.Inf(-1)); !store.IsInvalidArgument(err) {
		t.Errorf("Expected InvalidArgument for +inf + -inf, got %v", err)
	}
	if score := must(s.Score("inf", "m")); !math.IsInf(score, 1) {
		t.Errorf("Expected the failed increment to leave +inf, got %v", score)
	}
}

func testRemove(t *testing.T, s store.IStore) {
	defer s.Close()
	addFixture(t, s, testKey)

	removed := must(s.Remove(testKey, []string{testMembers[0], testMembers[0], "missing"}))
	if removed != 1 {
		t.Errorf("Expected 1 removed member, got %d", removed)
	}
	expectCard(t, s, testKey, len(testMembers)-1)

	removed = must(s.Remove(testKey, testMembers))
	if removed != len(testMembers)-1 {
		t.Errorf("Expected %d removed members, got %d", len(testMembers)-1, removed)
	}
	for _, member := range testMembers {
		if _, err := s.Score(testKey, member); !store.IsNotFound(err) {
			t.Errorf("Expected NotFound for %s, got %v", member, err)
		}
	}
	expectCard(t, s, testKey, 0)

	if removed := must(s.Remove("missing", []string{"a"})); removed != 0 {
		t.Errorf("Expected 0 removed from a missing key, got %d", removed)
	}

	// the key can be used again after it became empty
	addFixture(t, s, testKey)
	expectCard(t, s, testKey, len(testMembers))
}

func testRange(t *testing.T, s store.IStore) {
	defer s.Close()
	addFixture(t, s, testKey)

	tests := []struct {
		name        string
		start, stop int
		reverse     bool
		expected    []int
	}{
		{"all", 0, -1, false, span(0, 6)},
		{"without last", 0, -2, false, span(0, 5)},
		{"reversed without last", 0, -2, true, span(6, 1)},
		{"middle", 2, 4, false, span(2, 4)},
		{"negative", -3, -2, false, span(4, 5)},
		{"clamped", -100, 100, false, span(0, 6)},
		{"single", 3, 3, false, []int{3}},
		{"start after stop", 4, 2, false, nil},
		{"start after end", 7, 10, false, nil},
		{"reversed single", 0, 0, true, []int{6}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			expectEntries(t, must(s.Range(testKey, tc.start, tc.stop, tc.reverse)), tc.expected...)
		})
	}

	if entries := must(s.Range("missing", 0, -1, false)); len(entries) != 0 {
		t.Errorf("Expected no entries for a missing key, got %v", entries)
	}
}

func testRangeByScore(t *testing.T, s store.IStore) {
	defer s.Close()
	addFixture(t, s, testKey)

	tests := []struct {
		name     string
		spec     store.RangeSpec
		expected []int
	}{
		{"inclusive", store.RangeSpec{Min: -100.1, Max: 1.234}, span(0, 5)},
		{"exclusive min", store.RangeSpec{Min: -100.1, Max: 1.234, MinEx: true}, span(2, 5)},
		{"exclusive max", store.RangeSpec{Min: -100.1, Max: 1.234, MaxEx: true}, span(0, 3)},
		{"exclusive both", store.RangeSpec{Min: -100.1, Max: 1.234, MinEx: true, MaxEx: true}, span(2, 3)},
		{"full", store.FullScoreRange(), span(0, 6)},
		{"reversed", store.RangeSpec{Min: 0, Max: math.Inf(1), Reversed: true}, span(6, 3)},
		{"zero only", store.RangeSpec{Min: 0, Max: 0}, []int{3}},
		{"negative zero", store.RangeSpec{Min: math.Copysign(0, -1), Max: 0}, []int{3}},
		{"above zero", store.RangeSpec{Min: 0, Max: math.Inf(1), MinEx: true}, span(4, 6)},
		{"min above max", store.RangeSpec{Min: 1, Max: -1}, nil},
		{"equal exclusive", store.RangeSpec{Min: 0, Max: 0, MinEx: true}, nil},
		{"negative offset", store.RangeSpec{Min: -100.1, Max: 100.1, Offset: -1}, nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			expectEntries(t, must(s.RangeByScore(testKey, tc.spec)), tc.expected...)
		})
	}
}

func testRangeByScoreWithLimit(t *testing.T, s store.IStore) {
	defer s.Close()
	addFixture(t, s, testKey)

	spec := store.FullScoreRange()
	spec.Offset, spec.Count = 1, 2
	expectEntries(t, must(s.RangeByScore(testKey, spec)), 1, 2)

	spec.Reversed = true
	expectEntries(t, must(s.RangeByScore(testKey, spec)), 5, 4)

	spec.Offset, spec.Count, spec.Reversed = 5, 0, false
	expectEntries(t, must(s.RangeByScore(testKey, spec)), 5, 6)

	spec.Offset = 100
	expectEntries(t, must(s.RangeByScore(testKey, spec)))
}

func testRangeByLex(t *testing.T, s store.IStore) {
	defer s.Close()
	addFixture(t, s, testKey)

	first, last := testMembers[0], testMembers[len(testMembers)-1]
	tests := []struct {
		name     string
		spec     store.LexSpec
		expected []int
	}{
		{"inclusive", store.LexSpec{Min: first, Max: last}, span(0, 6)},
		{"exclusive min", store.LexSpec{Min: first, Max: last, MinEx: true}, span(1, 6)},
		{"exclusive max", store.LexSpec{Min: first, Max: last, MaxEx: true}, span(0, 5)},
		{"exclusive both", store.LexSpec{Min: first, Max: last, MinEx: true, MaxEx: true}, span(1, 5)},
		{"infinite reversed", store.LexSpec{MaxInfinite: true, Reversed: true}, span(6, 0)},
		{"offset and count", store.LexSpec{MaxInfinite: true, Offset: 2, Count: 3}, span(2, 4)},
		{"prefix", store.LexSpec{Min: "zset_test_key-", Max: "zset_test_key-3"}, span(0, 2)},
		{"empty", store.LexSpec{Min: "b", Max: "a"}, nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			expectMembers(t, must(s.RangeByLex(testKey, tc.spec)), tc.expected...)
		})
	}

	spec, err := store.ParseLexSpec("-", "+")
	if err != nil {
		t.Fatalf("ParseLexSpec failed: %v", err)
	}
	expectMembers(t, must(s.RangeByLex(testKey, spec)), span(0, 6)...)
}

func testRank(t *testing.T, s store.IStore) {
	defer s.Close()
	addFixture(t, s, testKey)
	n := len(testMembers)

	for i, member := range testMembers {
		rank := must(s.Rank(testKey, member, false))
		if rank != i {
			t.Errorf("Expected rank %d for %s, got %d", i, member, rank)
		}
		revRank := must(s.Rank(testKey, member, true))
		if rank+revRank != n-1 {
			t.Errorf("Expected rank + reverse rank = %d for %s, got %d + %d", n-1, member, rank, revRank)
		}

		// range and rank agree
		entries := must(s.Range(testKey, rank, rank, false))
		if len(entries) != 1 || entries[0].Member != member {
			t.Errorf("Expected Range(%d, %d) to return %s, got %v", rank, rank, member, entries)
		}
	}

	for _, member := range []string{"a", "b"} {
		if rank := must(s.Rank(testKey, member, true)); rank != -1 {
			t.Errorf("Expected rank -1 for %s, got %d", member, rank)
		}
	}
	if rank := must(s.Rank("missing", "a", false)); rank != -1 {
		t.Errorf("Expected rank -1 for a missing key, got %d", rank)
	}
}

func testPop(t *testing.T, s store.IStore) {
	defer s.Close()
	n := len(testMembers)

	addFixture(t, s, testKey)
	expectEntries(t, must(s.Pop(testKey, n-1, true)), span(0, n-2)...)
	expectEntries(t, must(s.Pop(testKey, 1, true)), n-1)
	expectCard(t, s, testKey, 0)

	addFixture(t, s, testKey)
	expectEntries(t, must(s.Pop(testKey, n-1, false)), span(n-1, 1)...)
	expectEntries(t, must(s.Pop(testKey, 1, true)), 0)

	// draining with single pops yields every member once in ascending order
	addFixture(t, s, testKey)
	var popped []store.MemberScore
	for {
		entries := must(s.Pop(testKey, 1, true))
		if len(entries) == 0 {
			break
		}
		popped = append(popped, entries...)
	}
	expectEntries(t, popped, span(0, n-1)...)

	if entries := must(s.Pop(testKey, 0, true)); len(entries) != 0 {
		t.Errorf("Expected no entries for count 0, got %v", entries)
	}
	if entries := must(s.Pop("missing", 3, false)); len(entries) != 0 {
		t.Errorf("Expected no entries for a missing key, got %v", entries)
	}
}

func testRemoveRange(t *testing.T, s store.IStore) {
	defer s.Close()
	n := len(testMembers)

	t.Run("ByScore", func(t *testing.T) {
		addFixture(t, s, "score")
		removed := must(s.RemoveRangeByScore("score", store.RangeSpec{Min: testScores[0], Max: testScores[n-2]}))
		if removed != n-1 {
			t.Errorf("Expected %d removed, got %d", n-1, removed)
		}
		removed = must(s.RemoveRangeByScore("score", store.RangeSpec{Min: testScores[n-1], Max: testScores[n-1]}))
		if removed != 1 {
			t.Errorf("Expected 1 removed, got %d", removed)
		}
		expectCard(t, s, "score", 0)
	})

	t.Run("ByScoreIgnoresLimit", func(t *testing.T) {
		addFixture(t, s, "limit")
		spec := store.FullScoreRange()
		spec.Offset, spec.Count = 2, 1
		if removed := must(s.RemoveRangeByScore("limit", spec)); removed != n {
			t.Errorf("Expected %d removed, got %d", n, removed)
		}
	})

	t.Run("ByRank", func(t *testing.T) {
		addFixture(t, s, "rank")
		if removed := must(s.RemoveRangeByRank("rank", 0, n-2)); removed != n-1 {
			t.Errorf("Expected %d removed, got %d", n-1, removed)
		}
		if removed := must(s.RemoveRangeByRank("rank", 0, 2)); removed != 1 {
			t.Errorf("Expected 1 removed, got %d", removed)
		}
		expectCard(t, s, "rank", 0)
	})

	t.Run("ByRankNegative", func(t *testing.T) {
		addFixture(t, s, "negative")
		if removed := must(s.RemoveRangeByRank("negative", -2, -1)); removed != 2 {
			t.Errorf("Expected 2 removed, got %d", removed)
		}
		expectEntries(t, must(s.Range("negative", 0, -1, false)), span(0, n-3)...)
	})

	t.Run("ByLex", func(t *testing.T) {
		addFixture(t, s, "lex")
		spec := store.LexSpec{Min: testMembers[1], Max: testMembers[3]}
		if removed := must(s.RemoveRangeByLex("lex", spec)); removed != 3 {
			t.Errorf("Expected 3 removed, got %d", removed)
		}
		expectMembers(t, must(s.RangeByLex("lex", store.FullLexRange())), 0, 4, 5, 6)
	})
}

func testCounts(t *testing.T, s store.IStore) {
	defer s.Close()
	addFixture(t, s, testKey)
	n := len(testMembers)

	expectCard(t, s, testKey, n)
	expectCard(t, s, "missing", 0)

	if count := must(s.Count(testKey, store.FullScoreRange())); count != n {
		t.Errorf("Expected Count %d, got %d", n, count)
	}
	if count := must(s.Count(testKey, store.RangeSpec{Min: -100.1, Max: 1.234, MaxEx: true})); count != 4 {
		t.Errorf("Expected Count 4, got %d", count)
	}
	if count := must(s.Count(testKey, store.RangeSpec{Min: 1, Max: -1})); count != 0 {
		t.Errorf("Expected Count 0, got %d", count)
	}

	// infinite scores are excluded by exclusive infinite bounds
	infKey := testKey + "_inf"
	must(s.Add(infKey, 0, []store.MemberScore{
		{Member: "lo", Score: math.Inf(-1)}, {Member: "mid", Score: 1}, {Member: "hi", Score: math.Inf(1)},
	}))
	openRange := store.RangeSpec{Min: math.Inf(-1), Max: math.Inf(1), MinEx: true, MaxEx: true}
	if count := must(s.Count(infKey, openRange)); count != 1 {
		t.Errorf("Expected Count 1 for (-inf (+inf, got %d", count)
	}
	if count := must(s.Count(infKey, store.RangeSpec{Min: math.Inf(-1), Max: math.Inf(1), MinEx: true})); count != 2 {
		t.Errorf("Expected Count 2 for (-inf +inf, got %d", count)
	}
	if count := must(s.Count(infKey, store.FullScoreRange())); count != 3 {
		t.Errorf("Expected Count 3 for -inf +inf, got %d", count)
	}
	if entries := must(s.RangeByScore(infKey, openRange)); len(entries) != 1 || entries[0].Member != "mid" {
		t.Errorf("Expected only mid for (-inf (+inf, got %v", entries)
	}

	if count := must(s.LexCount(testKey, store.FullLexRange())); count != n {
		t.Errorf("Expected LexCount %d, got %d", n, count)
	}
	if count := must(s.LexCount(testKey, store.LexSpec{Min: testMembers[2], MinEx: true, MaxInfinite: true})); count != n-3 {
		t.Errorf("Expected LexCount %d, got %d", n-3, count)
	}

	scores := must(s.MScore(testKey, []string{testMembers[3], "missing", testMembers[6]}))
	if len(scores) != 3 || scores[0] == nil || *scores[0] != testScores[3] || scores[1] != nil ||
		scores[2] == nil || *scores[2] != testScores[6] {
		t.Errorf("Unexpected MScore result %v", scores)
	}
	scores = must(s.MScore("missing", []string{"a", "b"}))
	if len(scores) != 2 || scores[0] != nil || scores[1] != nil {
		t.Errorf("Expected only nil scores for a missing key, got %v", scores)
	}
}

func testDeleteAndRecreate(t *testing.T, s store.IStore) {
	defer s.Close()
	addFixture(t, s, testKey)

	if existed := must(s.Delete(testKey)); !existed {
		t.Errorf("Expected Delete to report an existing key")
	}
	if existed := must(s.Delete(testKey)); existed {
		t.Errorf("Expected a second Delete to report a missing key")
	}
	expectCard(t, s, testKey, 0)
	if _, err := s.Score(testKey, testMembers[0]); !store.IsNotFound(err) {
		t.Errorf("Expected NotFound after Delete, got %v", err)
	}
	if entries := must(s.Range(testKey, 0, -1, false)); len(entries) != 0 {
		t.Errorf("Expected no entries after Delete, got %v", entries)
	}

	// old members must not reappear
	res := must(s.Add(testKey, 0, []store.MemberScore{{Member: "new", Score: 1}}))
	if res.Count != 1 {
		t.Errorf("Expected 1 added member, got %d", res.Count)
	}
	expectCard(t, s, testKey, 1)
	entries := must(s.Range(testKey, 0, -1, false))
	if len(entries) != 1 || entries[0].Member != "new" {
		t.Errorf("Expected only the new member, got %v", entries)
	}
	if rank := must(s.Rank(testKey, testMembers[0], false)); rank != -1 {
		t.Errorf("Expected old member to be gone, got rank %d", rank)
	}

	// garbage collection keeps the new state
	must(s.GarbageCollect())
	expectCard(t, s, testKey, 1)
	if score := must(s.Score(testKey, "new")); score != 1 {
		t.Errorf("Expected score 1 after garbage collection, got %v", score)
	}
}

func testExpiration(t *testing.T, s store.IStore) {
	defer s.Close()
	addFixture(t, s, testKey)

	if _, err := s.TTL("missing"); !store.IsNotFound(err) {
		t.Errorf("Expected NotFound for the TTL of a missing key, got %v", err)
	}
	if ttl := must(s.TTL(testKey)); ttl != store.NoExpiration {
		t.Errorf("Expected no expiration, got %v", ttl)
	}

	if ok := must(s.Expire(testKey, time.Now().Add(time.Hour))); !ok {
		t.Errorf("Expected Expire to succeed")
	}
	if ttl := must(s.TTL(testKey)); ttl <= 59*time.Minute || ttl > time.Hour {
		t.Errorf("Expected a TTL of about an hour, got %v", ttl)
	}
	if ok := must(s.Persist(testKey)); !ok {
		t.Errorf("Expected Persist to remove the expiration")
	}
	if ok := must(s.Persist(testKey)); ok {
		t.Errorf("Expected a second Persist to report no expiration")
	}
	if ttl := must(s.TTL(testKey)); ttl != store.NoExpiration {
		t.Errorf("Expected no expiration after Persist, got %v", ttl)
	}

	// an expiration in the past deletes the key
	if ok := must(s.Expire(testKey, time.Now().Add(-time.Second))); !ok {
		t.Errorf("Expected Expire to report an existing key")
	}
	expectCard(t, s, testKey, 0)
	if ok := must(s.Expire(testKey, time.Now().Add(time.Hour))); ok {
		t.Errorf("Expected Expire on a deleted key to fail")
	}

	// a short expiration
	addFixture(t, s, "short")
	must(s.Expire("short", time.Now().Add(50*time.Millisecond)))
	time.Sleep(100 * time.Millisecond)
	expectCard(t, s, "short", 0)
	if _, err := s.Score("short", testMembers[0]); !store.IsNotFound(err) {
		t.Errorf("Expected NotFound for an expired key, got %v", err)
	}
	addFixture(t, s, "short")
	expectCard(t, s, "short", len(testMembers))
	if ttl := must(s.TTL("short")); ttl != store.NoExpiration {
		t.Errorf("Expected a recreated key to have no expiration, got %v", ttl)
	}
}

func testInvalidArguments(t *testing.T, s store.IStore) {
	defer s.Close()

	tests := []struct {
		name string
		call func() error
	}{
		{"NX and XX", func() error {
			_, err := s.Add(testKey, store.AddNX|store.AddXX, []store.MemberScore{{Member: "a", Score: 1}})
			return err
		}},
		{"GT and LT", func() error {
			_, err := s.Add(testKey, store.AddGT|store.AddLT, []store.MemberScore{{Member: "a", Score: 1}})
			return err
		}},
		{"NX and GT", func() error {
			_, err := s.Add(testKey, store.AddNX|store.AddGT, []store.MemberScore{{Member: "a", Score: 1}})
			return err
		}},
		{"INCR with two members", func() error {
			_, err := s.Add(testKey, store.AddINCR, []store.MemberScore{{Member: "a", Score: 1}, {Member: "b", Score: 1}})
			return err
		}},
		{"NaN score", func() error {
			_, err := s.Add(testKey, 0, []store.MemberScore{{Member: "a", Score: 1}, {Member: "b", Score: math.NaN()}})
			return err
		}},
		{"NaN increment", func() error {
			_, err := s.IncrBy(testKey, "a", math.NaN())
			return err
		}},
		{"NaN range bound", func() error {
			_, err := s.RangeByScore(testKey, store.RangeSpec{Min: math.NaN(), Max: 1})
			return err
		}},
		{"NaN count bound", func() error {
			_, err := s.Count(testKey, store.RangeSpec{Min: 0, Max: math.NaN()})
			return err
		}},
		{"NaN removal bound", func() error {
			_, err := s.RemoveRangeByScore(testKey, store.RangeSpec{Min: math.NaN(), Max: 1})
			return err
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.call(); !store.IsInvalidArgument(err) {
				t.Errorf("Expected InvalidArgument, got %v", err)
			}
		})
	}

	// nothing was written by the rejected calls
	expectCard(t, s, testKey, 0)
}

// testExample checks the documented example: members 1..7 with scores
// -100.1, -100.1, -1.234, 0, 1.234, 1.234, 100.1 in namespace zset_ns
func testExample(t *testing.T, s store.IStore) {
	defer s.Close()
	addFixture(t, s, testKey)

	expectEntries(t, must(s.Range(testKey, 0, -2, false)), span(0, 5)...)
	expectEntries(t, must(s.RangeByScore(testKey, store.RangeSpec{Min: -100.1, Max: 1.234, MaxEx: true})), span(0, 3)...)

	if removed := must(s.RemoveRangeByRank(testKey, 0, 5)); removed != 6 {
		t.Errorf("Expected 6 removed members, got %d", removed)
	}
	expectEntries(t, must(s.Range(testKey, 0, -1, false)), 6)

	if rank := must(s.Rank(testKey, "nonexistent", true)); rank != -1 {
		t.Errorf("Expected rank -1, got %d", rank)
	}
}

func testConcurrentAdds(t *testing.T, s store.IStore) {
	defer s.Close()
	const (
		workers   = 8
		perWorker = 50
	)

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				member := fmt.Sprintf("member-%d-%d", w, i)
				if _, err := s.Add(testKey, 0, []store.MemberScore{{Member: member, Score: float64(i)}}); err != nil {
					errs <- err
					return
				}
				// concurrent increments of one shared member
				if _, err := s.IncrBy(testKey, "shared", 1); err != nil {
					errs <- err
					return
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("Concurrent mutation failed: %v", err)
	}

	expectCard(t, s, testKey, workers*perWorker+1)
	if score := must(s.Score(testKey, "shared")); score != workers*perWorker {
		t.Errorf("Expected shared score %d, got %v", workers*perWorker, score)
	}

	// the score index is consistent with the member index
	entries := must(s.Range(testKey, 0, -1, false))
	if len(entries) != workers*perWorker+1 {
		t.Fatalf("Expected %d entries, got %d", workers*perWorker+1, len(entries))
	}
	if !sort.SliceIsSorted(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score < entries[j].Score
		}
		return entries[i].Member < entries[j].Member
	}) {
		t.Errorf("Expected entries ordered by (score, member)")
	}
}
