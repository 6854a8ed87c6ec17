package zstore

import (
	"time"

	"github.com/ValentinKolb/zKV/lib/db"
	"github.com/ValentinKolb/zKV/lib/store"
	"github.com/ValentinKolb/zKV/lib/store/zstore/internal"
	"github.com/cockroachdb/errors"
)

// --------------------------------------------------------------------------
// Metadata access
// --------------------------------------------------------------------------

// loadMeta reads the metadata row of key as it is stored, including tombstones and
// expired rows. ok is false if there is no row.
func (s *storeImpl) loadMeta(r db.Reader, key string) (meta internal.Metadata, ok bool, err error) {
	value, err := r.Get(internal.MetaKey(s.ns, key))
	if errors.Is(err, db.ErrNotFound) {
		return meta, false, nil
	}
	if err != nil {
		return meta, false, errors.Wrapf(err, "reading metadata of %q", key)
	}
	if meta, err = internal.DecodeMetadata(value); err != nil {
		return meta, false, err
	}
	return meta, true, nil
}

// liveMeta reads the metadata row of key. ok is false if the sorted set does not exist,
// was deleted or has expired. Expired rows are handed to the garbage collector.
func (s *storeImpl) liveMeta(r db.Reader, key string) (meta internal.Metadata, ok bool, err error) {
	meta, ok, err = s.loadMeta(r, key)
	if err != nil || !ok {
		return meta, false, err
	}
	if meta.Expired(s.nowMs()) {
		s.gc.schedule(gcEvent{kind: gcReclaim, key: key})
		return meta, false, nil
	}
	return meta, !meta.Tombstone(), nil
}

// --------------------------------------------------------------------------
// Mutations
// --------------------------------------------------------------------------

// entry is a member written by the current mutation
type entry struct {
	score   float64
	present bool
}

// mutation is one latched write to a sorted set. All writes go to one batch which is
// committed together with the updated metadata row.
type mutation struct {
	s            *storeImpl
	key          string
	meta         internal.Metadata
	batch        db.Batch
	scorePrefix  []byte
	memberPrefix []byte
	written      map[string]entry
}

// mutate runs fn under the latch of key and commits its writes.
// If the sorted set does not exist (or was deleted or expired), fn is only called when
// create is set. It then starts from an empty sorted set with a new version, rows of
// the old version are scheduled for reclamation.
func (s *storeImpl) mutate(key string, create bool, fn func(m *mutation) error) error {
	release := s.latches.AcquireLock(key)
	defer release()

	meta, exists, err := s.loadMeta(s.db, key)
	if err != nil {
		return err
	}

	stale := false
	if !exists || !meta.Live(s.nowMs()) {
		if exists {
			// a tombstoned or expired row: its rows are garbage either way
			s.gc.schedule(gcEvent{kind: gcReclaim, key: key})
		}
		if !create {
			return nil
		}
		if exists {
			stale = true
			meta = internal.Metadata{Version: meta.Version + 1}
		} else {
			meta = internal.Metadata{Version: internal.NextVersion()}
		}
	}

	batch := s.db.NewBatch()
	defer batch.Close()

	m := &mutation{
		s:            s,
		key:          key,
		meta:         meta,
		batch:        batch,
		scorePrefix:  internal.ScorePrefix(s.ns, key, meta.Version),
		memberPrefix: internal.MemberPrefix(s.ns, key, meta.Version),
		written:      make(map[string]entry),
	}
	if err := fn(m); err != nil {
		return err
	}
	if batch.Count() == 0 {
		return nil
	}

	if err := m.writeMeta(); err != nil {
		return err
	}
	if err := batch.Commit(); err != nil {
		return errors.Wrapf(err, "committing mutation of %q", key)
	}
	if stale {
		log.Debugf("recreated sorted set %q with version %d", key, meta.Version)
	}
	return nil
}

// writeMeta adds the metadata row to the batch. If the sorted set became empty, the
// metadata row and all index rows of the key (of every version) are removed instead.
func (m *mutation) writeMeta() error {
	metaKey := internal.MetaKey(m.s.ns, m.key)
	if m.meta.Count > 0 {
		return m.batch.Set(metaKey, m.meta.Encode())
	}
	if err := m.batch.Delete(metaKey); err != nil {
		return err
	}
	return dropIndexRows(m.batch, m.s.ns, m.key)
}

// dropIndexRows adds range deletions for all index rows of key to the batch
func dropIndexRows(b db.Batch, ns, key string) error {
	for _, family := range []byte{internal.FamilyScore, internal.FamilyMember} {
		prefix := internal.KeyPrefix(family, ns, key)
		if err := b.DeleteRange(prefix, internal.PrefixEnd(prefix)); err != nil {
			return err
		}
	}
	return nil
}

// lookup returns the current score of member, taking earlier writes of the mutation into account
func (m *mutation) lookup(member string) (score float64, ok bool, err error) {
	if e, written := m.written[member]; written {
		return e.score, e.present, nil
	}
	value, err := m.s.db.Get(internal.MemberKey(m.memberPrefix, member))
	if errors.Is(err, db.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, errors.Wrapf(err, "reading member %q of %q", member, m.key)
	}
	if score, err = internal.DecodeValue(value); err != nil {
		return 0, false, store.Errorf(store.RetCCorruption, "member %q of %q: %v", member, m.key, err)
	}
	return score, true, nil
}

// insert adds a member that does not exist yet
func (m *mutation) insert(member string, score float64) error {
	if err := m.setRows(member, score); err != nil {
		return err
	}
	m.meta.Count++
	return nil
}

// update changes the score of an existing member
func (m *mutation) update(member string, old, score float64) error {
	if err := m.deleteScoreRow(member, old); err != nil {
		return err
	}
	return m.setRows(member, score)
}

// remove deletes an existing member
func (m *mutation) remove(member string, score float64) error {
	if err := m.deleteScoreRow(member, score); err != nil {
		return err
	}
	if err := m.batch.Delete(internal.MemberKey(m.memberPrefix, member)); err != nil {
		return err
	}
	m.written[member] = entry{}
	m.meta.Count--
	return nil
}

func (m *mutation) setRows(member string, score float64) error {
	code, err := internal.EncodeScore(score)
	if err != nil {
		return err
	}
	if err := m.batch.Set(internal.ScoreKey(m.scorePrefix, code, member), nil); err != nil {
		return err
	}
	if err := m.batch.Set(internal.MemberKey(m.memberPrefix, member), internal.EncodeValue(score)); err != nil {
		return err
	}
	m.written[member] = entry{score: score, present: true}
	return nil
}

func (m *mutation) deleteScoreRow(member string, score float64) error {
	code, err := internal.EncodeScore(score)
	if err != nil {
		return err
	}
	return m.batch.Delete(internal.ScoreKey(m.scorePrefix, code, member))
}

// --------------------------------------------------------------------------
// Key level operations (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Delete(key string) (existed bool, err error) {
	defer s.metrics.track(opDelete, time.Now(), &err)

	release := s.latches.AcquireLock(key)
	defer release()

	return s.deleteLocked(key)
}

// deleteLocked replaces a live metadata row with a tombstone. The caller holds the latch.
func (s *storeImpl) deleteLocked(key string) (bool, error) {
	meta, ok, err := s.liveMeta(s.db, key)
	if err != nil || !ok {
		return false, err
	}

	tombstone := internal.Metadata{Version: meta.Version + 1}
	batch := s.db.NewBatch()
	defer batch.Close()
	if err := batch.Set(internal.MetaKey(s.ns, key), tombstone.Encode()); err != nil {
		return false, err
	}
	if err := batch.Commit(); err != nil {
		return false, errors.Wrapf(err, "deleting %q", key)
	}

	s.gc.schedule(gcEvent{kind: gcReclaim, key: key})
	return true, nil
}

func (s *storeImpl) Expire(key string, at time.Time) (ok bool, err error) {
	defer s.metrics.track(opExpire, time.Now(), &err)

	release := s.latches.AcquireLock(key)
	defer release()

	expireAt := at.UnixMilli()
	if expireAt <= s.nowMs() {
		return s.deleteLocked(key)
	}

	meta, ok, err := s.liveMeta(s.db, key)
	if err != nil || !ok {
		return false, err
	}
	meta.ExpireAt = expireAt
	if err := s.putMeta(key, meta); err != nil {
		return false, err
	}

	s.gc.schedule(gcEvent{kind: gcExpire, key: key, at: expireAt})
	return true, nil
}

func (s *storeImpl) Persist(key string) (ok bool, err error) {
	defer s.metrics.track(opPersist, time.Now(), &err)

	release := s.latches.AcquireLock(key)
	defer release()

	meta, ok, err := s.liveMeta(s.db, key)
	if err != nil || !ok || meta.ExpireAt == 0 {
		return false, err
	}
	meta.ExpireAt = 0
	if err := s.putMeta(key, meta); err != nil {
		return false, err
	}

	s.gc.schedule(gcEvent{kind: gcPersist, key: key})
	return true, nil
}

// putMeta writes only the metadata row of key. The caller holds the latch.
func (s *storeImpl) putMeta(key string, meta internal.Metadata) error {
	batch := s.db.NewBatch()
	defer batch.Close()
	if err := batch.Set(internal.MetaKey(s.ns, key), meta.Encode()); err != nil {
		return err
	}
	if err := batch.Commit(); err != nil {
		return errors.Wrapf(err, "writing metadata of %q", key)
	}
	return nil
}

func (s *storeImpl) TTL(key string) (ttl time.Duration, err error) {
	defer s.metrics.track(opTTL, time.Now(), &err)

	meta, ok, err := s.liveMeta(s.db, key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, store.Errorf(store.RetCNotFound, "sorted set %q does not exist", key)
	}
	if meta.ExpireAt == 0 {
		return store.NoExpiration, nil
	}
	return time.Duration(meta.ExpireAt-s.nowMs()) * time.Millisecond, nil
}
