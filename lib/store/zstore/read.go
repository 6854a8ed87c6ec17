package zstore

import (
	"math"
	"time"

	"github.com/ValentinKolb/zKV/lib/db"
	"github.com/ValentinKolb/zKV/lib/store"
	"github.com/ValentinKolb/zKV/lib/store/zstore/internal"
	"github.com/cockroachdb/errors"
)

var minusInf, plusInf = math.Inf(-1), math.Inf(1)

// --------------------------------------------------------------------------
// Scan helpers (shared by reads and range removals)
// --------------------------------------------------------------------------

// scan walks the rows in [lower, upper) in ascending (or descending if reverse) order
// and calls fn for each row until fn returns false
func scan(r db.Reader, lower, upper []byte, reverse bool, fn func(key, value []byte) (bool, error)) error {
	it := r.NewIter(db.IterOptions{LowerBound: lower, UpperBound: upper})

	var (
		err   error
		valid bool
	)
	if reverse {
		valid = it.Last()
	} else {
		valid = it.First()
	}
	for ; valid; valid = advance(it, reverse) {
		var more bool
		if more, err = fn(it.Key(), it.Value()); err != nil || !more {
			break
		}
	}

	if err == nil {
		err = it.Error()
	}
	if closeErr := it.Close(); err == nil && closeErr != nil {
		err = closeErr
	}
	return err
}

func advance(it db.Iterator, reverse bool) bool {
	if reverse {
		return it.Prev()
	}
	return it.Next()
}

// countRows returns the number of rows in [lower, upper)
func countRows(r db.Reader, lower, upper []byte) (int, error) {
	n := 0
	err := scan(r, lower, upper, false, func(_, _ []byte) (bool, error) {
		n++
		return true, nil
	})
	return n, err
}

// window applies offset and count to a stream of matches
type window struct {
	offset, count int
	seen, taken   int
}

// admit reports whether the next match is part of the result and whether more matches are wanted
func (w *window) admit() (take, more bool) {
	w.seen++
	if w.seen <= w.offset {
		return false, true
	}
	w.taken++
	return true, w.count <= 0 || w.taken < w.count
}

// scoreBounds returns the iteration bounds of spec below the score prefix
func scoreBounds(prefix []byte, spec store.RangeSpec) (lower, upper []byte, err error) {
	if lower, err = internal.ScoreLowerBound(prefix, spec.Min, spec.MinEx); err != nil {
		return nil, nil, err
	}
	if upper, err = internal.ScoreUpperBound(prefix, spec.Max, spec.MaxEx); err != nil {
		return nil, nil, err
	}
	return lower, upper, nil
}

// lexBounds returns the iteration bounds of spec below the member prefix
func lexBounds(prefix []byte, spec store.LexSpec) (lower, upper []byte) {
	lower = internal.MemberKey(prefix, spec.Min)
	if spec.MinEx {
		lower = internal.Successor(lower)
	}
	switch {
	case spec.MaxInfinite:
		upper = internal.PrefixEnd(prefix)
	case spec.MaxEx:
		upper = internal.MemberKey(prefix, spec.Max)
	default:
		upper = internal.Successor(internal.MemberKey(prefix, spec.Max))
	}
	return lower, upper
}

// scanByScore returns the entries of the version within the score bounds of spec, honoring Offset, Count and Reversed
func scanByScore(r db.Reader, prefix []byte, spec store.RangeSpec) ([]store.MemberScore, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if spec.Empty() || spec.Offset < 0 {
		return nil, nil
	}
	lower, upper, err := scoreBounds(prefix, spec)
	if err != nil {
		return nil, err
	}

	var entries []store.MemberScore
	w := window{offset: spec.Offset, count: spec.Count}
	err = scan(r, lower, upper, spec.Reversed, func(key, _ []byte) (bool, error) {
		_, score, member, err := internal.ParseScoreKey(key)
		if err != nil {
			return false, err
		}
		if !spec.Contains(score) {
			return true, nil
		}
		take, more := w.admit()
		if take {
			entries = append(entries, store.MemberScore{Member: member, Score: score})
		}
		return more, nil
	})
	return entries, err
}

// scanByLex returns the entries of the version within the lexicographic bounds of spec, honoring Offset, Count and Reversed
func scanByLex(r db.Reader, prefix []byte, spec store.LexSpec) ([]store.MemberScore, error) {
	if spec.Empty() || spec.Offset < 0 {
		return nil, nil
	}
	lower, upper := lexBounds(prefix, spec)

	var entries []store.MemberScore
	w := window{offset: spec.Offset, count: spec.Count}
	err := scan(r, lower, upper, spec.Reversed, func(key, value []byte) (bool, error) {
		_, member, err := internal.ParseMemberKey(key)
		if err != nil {
			return false, err
		}
		score, err := internal.DecodeValue(value)
		if err != nil {
			return false, store.Errorf(store.RetCCorruption, "member %q: %v", member, err)
		}
		take, more := w.admit()
		if take {
			entries = append(entries, store.MemberScore{Member: member, Score: score})
		}
		return more, nil
	})
	return entries, err
}

// normalizeRanks resolves negative ranks against card and clamps them.
// ok is false if the range is empty.
func normalizeRanks(start, stop, card int) (int, int, bool) {
	if start < 0 {
		start += card
	}
	if stop < 0 {
		stop += card
	}
	if start < 0 {
		start = 0
	}
	if stop >= card {
		stop = card - 1
	}
	if start > stop || start >= card {
		return 0, 0, false
	}
	return start, stop, true
}

// scanByRank returns the entries of the version with a rank in [start, stop]
func scanByRank(r db.Reader, prefix []byte, meta internal.Metadata, start, stop int, reverse bool) ([]store.MemberScore, error) {
	start, stop, ok := normalizeRanks(start, stop, int(meta.Count))
	if !ok {
		return nil, nil
	}

	entries := make([]store.MemberScore, 0, stop-start+1)
	w := window{offset: start, count: stop - start + 1}
	err := scan(r, prefix, internal.PrefixEnd(prefix), reverse, func(key, _ []byte) (bool, error) {
		take, more := w.admit()
		if take {
			_, score, member, err := internal.ParseScoreKey(key)
			if err != nil {
				return false, err
			}
			entries = append(entries, store.MemberScore{Member: member, Score: score})
		}
		return more, nil
	})
	if err != nil {
		return nil, err
	}
	if len(entries) != stop-start+1 {
		return nil, store.Errorf(store.RetCCorruption,
			"score index has fewer rows than the %d members of the metadata", meta.Count)
	}
	return entries, nil
}

// --------------------------------------------------------------------------
// Reads (docu see store/interface.go)
// --------------------------------------------------------------------------

// view runs fn on one snapshot if the sorted set exists. ok is false if it does not.
func (s *storeImpl) view(key string, fn func(r db.Reader, meta internal.Metadata) error) (ok bool, err error) {
	snap := s.db.NewSnapshot()
	defer snap.Close()

	meta, ok, err := s.liveMeta(snap, key)
	if err != nil || !ok {
		return false, err
	}
	return true, fn(snap, meta)
}

// readScore returns the score of member from the member index
func (s *storeImpl) readScore(r db.Reader, key string, meta internal.Metadata, member string) (float64, bool, error) {
	value, err := r.Get(internal.MemberKey(internal.MemberPrefix(s.ns, key, meta.Version), member))
	if errors.Is(err, db.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, errors.Wrapf(err, "reading member %q of %q", member, key)
	}
	score, err := internal.DecodeValue(value)
	if err != nil {
		return 0, false, store.Errorf(store.RetCCorruption, "member %q of %q: %v", member, key, err)
	}
	return score, true, nil
}

func (s *storeImpl) Score(key, member string) (score float64, err error) {
	defer s.metrics.track(opScore, time.Now(), &err)

	found := false
	_, err = s.view(key, func(r db.Reader, meta internal.Metadata) (err error) {
		score, found, err = s.readScore(r, key, meta, member)
		return err
	})
	if err == nil && !found {
		err = store.Errorf(store.RetCNotFound, "member %q of %q does not exist", member, key)
	}
	return score, err
}

func (s *storeImpl) MScore(key string, members []string) (scores []*float64, err error) {
	defer s.metrics.track(opMScore, time.Now(), &err)

	scores = make([]*float64, len(members))
	_, err = s.view(key, func(r db.Reader, meta internal.Metadata) error {
		for i, member := range members {
			score, found, err := s.readScore(r, key, meta, member)
			if err != nil {
				return err
			}
			if found {
				scores[i] = &score
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return scores, nil
}

func (s *storeImpl) Rank(key, member string, reverse bool) (rank int, err error) {
	defer s.metrics.track(opRank, time.Now(), &err)

	rank = -1
	_, err = s.view(key, func(r db.Reader, meta internal.Metadata) error {
		score, found, err := s.readScore(r, key, meta, member)
		if err != nil || !found {
			return err
		}

		code, err := internal.EncodeScore(score)
		if err != nil {
			return err
		}
		prefix := internal.ScorePrefix(s.ns, key, meta.Version)
		target := internal.ScoreKey(prefix, code, member)
		if _, err := r.Get(target); errors.Is(err, db.ErrNotFound) {
			return store.Errorf(store.RetCCorruption, "member %q of %q has no score-index row", member, key)
		} else if err != nil {
			return errors.Wrapf(err, "reading score of %q", member)
		}

		if reverse {
			rank, err = countRows(r, internal.Successor(target), internal.PrefixEnd(prefix))
		} else {
			rank, err = countRows(r, prefix, target)
		}
		return err
	})
	if err != nil {
		return -1, err
	}
	return rank, nil
}

func (s *storeImpl) Range(key string, start, stop int, reverse bool) (entries []store.MemberScore, err error) {
	defer s.metrics.track(opRange, time.Now(), &err)

	_, err = s.view(key, func(r db.Reader, meta internal.Metadata) (err error) {
		entries, err = scanByRank(r, internal.ScorePrefix(s.ns, key, meta.Version), meta, start, stop, reverse)
		return err
	})
	return entries, err
}

func (s *storeImpl) RangeByScore(key string, spec store.RangeSpec) (entries []store.MemberScore, err error) {
	defer s.metrics.track(opRangeByScore, time.Now(), &err)

	if err = spec.Validate(); err != nil {
		return nil, err
	}
	_, err = s.view(key, func(r db.Reader, meta internal.Metadata) (err error) {
		entries, err = scanByScore(r, internal.ScorePrefix(s.ns, key, meta.Version), spec)
		return err
	})
	return entries, err
}

func (s *storeImpl) RangeByLex(key string, spec store.LexSpec) (members []string, err error) {
	defer s.metrics.track(opRangeByLex, time.Now(), &err)

	_, err = s.view(key, func(r db.Reader, meta internal.Metadata) error {
		entries, err := scanByLex(r, internal.MemberPrefix(s.ns, key, meta.Version), spec)
		for _, e := range entries {
			members = append(members, e.Member)
		}
		return err
	})
	return members, err
}

func (s *storeImpl) Card(key string) (count int, err error) {
	defer s.metrics.track(opCard, time.Now(), &err)

	meta, ok, err := s.liveMeta(s.db, key)
	if err != nil || !ok {
		return 0, err
	}
	return int(meta.Count), nil
}

func (s *storeImpl) Count(key string, spec store.RangeSpec) (count int, err error) {
	defer s.metrics.track(opCount, time.Now(), &err)

	if err = spec.Validate(); err != nil {
		return 0, err
	}
	if spec.Empty() {
		return 0, nil
	}
	_, err = s.view(key, func(r db.Reader, meta internal.Metadata) error {
		if spec.Min == minusInf && spec.Max == plusInf && !spec.MinEx && !spec.MaxEx {
			count = int(meta.Count)
			return nil
		}
		lower, upper, err := scoreBounds(internal.ScorePrefix(s.ns, key, meta.Version), spec)
		if err != nil {
			return err
		}
		count, err = countRows(r, lower, upper)
		return err
	})
	return count, err
}

func (s *storeImpl) LexCount(key string, spec store.LexSpec) (count int, err error) {
	defer s.metrics.track(opLexCount, time.Now(), &err)

	if spec.Empty() {
		return 0, nil
	}
	_, err = s.view(key, func(r db.Reader, meta internal.Metadata) error {
		if spec.Min == "" && !spec.MinEx && spec.MaxInfinite {
			count = int(meta.Count)
			return nil
		}
		lower, upper := lexBounds(internal.MemberPrefix(s.ns, key, meta.Version), spec)
		count, err = countRows(r, lower, upper)
		return err
	})
	return count, err
}
