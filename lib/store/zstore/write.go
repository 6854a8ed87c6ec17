package zstore

import (
	"math"
	"time"

	"github.com/ValentinKolb/zKV/lib/store"
)

// --------------------------------------------------------------------------
// Mutations (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Add(key string, flags store.AddFlags, members []store.MemberScore) (result store.AddResult, err error) {
	defer s.metrics.track(opAdd, time.Now(), &err)
	return s.add(key, flags, members)
}

func (s *storeImpl) IncrBy(key, member string, delta float64) (score float64, err error) {
	defer s.metrics.track(opIncrBy, time.Now(), &err)

	result, err := s.add(key, store.AddINCR, []store.MemberScore{{Member: member, Score: delta}})
	if err != nil {
		return 0, err
	}
	return result.Score, nil
}

// add applies the members in order. A member given more than once is counted once,
// its last occurrence determines the score.
func (s *storeImpl) add(key string, flags store.AddFlags, members []store.MemberScore) (result store.AddResult, err error) {
	if err = flags.Validate(len(members)); err != nil {
		return result, err
	}
	for _, ms := range members {
		if math.IsNaN(ms.Score) {
			return result, store.Errorf(store.RetCInvalidArgument, "score of member %q is not a number", ms.Member)
		}
	}
	if len(members) == 0 {
		return result, nil
	}

	incr := flags.Has(store.AddINCR)
	err = s.mutate(key, true, func(m *mutation) error {
		added := make(map[string]struct{})
		for _, ms := range members {
			current, exists, err := m.lookup(ms.Member)
			if err != nil {
				return err
			}

			if !exists {
				if flags.Has(store.AddXX) {
					result.Skipped = true
					continue
				}
				if err := m.insert(ms.Member, ms.Score); err != nil {
					return err
				}
				added[ms.Member] = struct{}{}
				result.Count++
				result.Score, result.Skipped = ms.Score, false
				continue
			}

			if flags.Has(store.AddNX) {
				result.Skipped = true
				continue
			}
			score := ms.Score
			if incr {
				score = current + ms.Score
				if math.IsNaN(score) {
					return store.NewError(store.RetCInvalidArgument, "resulting score is not a number (NaN)")
				}
			}
			if (flags.Has(store.AddGT) && !(score > current)) || (flags.Has(store.AddLT) && !(score < current)) {
				result.Skipped = true
				continue
			}

			result.Score, result.Skipped = score, false
			if score == current {
				continue
			}
			if err := m.update(ms.Member, current, score); err != nil {
				return err
			}
			if _, ok := added[ms.Member]; !ok && flags.Has(store.AddCH) {
				added[ms.Member] = struct{}{}
				result.Count++
			}
		}
		return nil
	})
	if err != nil {
		return store.AddResult{}, err
	}
	if !incr {
		result.Score, result.Skipped = 0, false
	}
	return result, nil
}

func (s *storeImpl) Remove(key string, members []string) (removed int, err error) {
	defer s.metrics.track(opRemove, time.Now(), &err)

	if len(members) == 0 {
		return 0, nil
	}
	err = s.mutate(key, false, func(m *mutation) error {
		for _, member := range members {
			score, exists, err := m.lookup(member)
			if err != nil {
				return err
			}
			if !exists {
				continue
			}
			if err := m.remove(member, score); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

func (s *storeImpl) Pop(key string, count int, popMin bool) (entries []store.MemberScore, err error) {
	defer s.metrics.track(opPop, time.Now(), &err)

	if count <= 0 {
		return nil, nil
	}
	err = s.mutate(key, false, func(m *mutation) error {
		n := count
		if uint64(n) > m.meta.Count {
			n = int(m.meta.Count)
		}
		var err error
		if entries, err = scanByRank(m.s.db, m.scorePrefix, m.meta, 0, n-1, !popMin); err != nil {
			return err
		}
		return m.removeAll(entries)
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *storeImpl) RemoveRangeByScore(key string, spec store.RangeSpec) (removed int, err error) {
	defer s.metrics.track(opRemoveRangeByScore, time.Now(), &err)

	if err = spec.Validate(); err != nil {
		return 0, err
	}
	spec.Offset, spec.Count, spec.Reversed = 0, 0, false
	return s.removeWith(key, func(m *mutation) ([]store.MemberScore, error) {
		return scanByScore(m.s.db, m.scorePrefix, spec)
	})
}

func (s *storeImpl) RemoveRangeByRank(key string, start, stop int) (removed int, err error) {
	defer s.metrics.track(opRemoveRangeByRank, time.Now(), &err)

	return s.removeWith(key, func(m *mutation) ([]store.MemberScore, error) {
		return scanByRank(m.s.db, m.scorePrefix, m.meta, start, stop, false)
	})
}

func (s *storeImpl) RemoveRangeByLex(key string, spec store.LexSpec) (removed int, err error) {
	defer s.metrics.track(opRemoveRangeByLex, time.Now(), &err)

	spec.Offset, spec.Count, spec.Reversed = 0, 0, false
	return s.removeWith(key, func(m *mutation) ([]store.MemberScore, error) {
		return scanByLex(m.s.db, m.memberPrefix, spec)
	})
}

// removeWith removes the entries selected by collect in one mutation
func (s *storeImpl) removeWith(key string, collect func(m *mutation) ([]store.MemberScore, error)) (int, error) {
	removed := 0
	err := s.mutate(key, false, func(m *mutation) error {
		entries, err := collect(m)
		if err != nil {
			return err
		}
		removed = len(entries)
		return m.removeAll(entries)
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

func (m *mutation) removeAll(entries []store.MemberScore) error {
	for _, e := range entries {
		if err := m.remove(e.Member, e.Score); err != nil {
			return err
		}
	}
	return nil
}
