package zstore

import (
	"fmt"
	"io"
	"time"

	"github.com/ValentinKolb/zKV/lib/store"
	"github.com/VictoriaMetrics/metrics"
)

// MetricsWriter is implemented by stores that export metrics in the Prometheus text format
type MetricsWriter interface {
	WritePrometheus(w io.Writer)
}

// operation names used as metric labels
const (
	opAdd                = "add"
	opIncrBy             = "incrby"
	opRemove             = "remove"
	opPop                = "pop"
	opRemoveRangeByScore = "remrangebyscore"
	opRemoveRangeByRank  = "remrangebyrank"
	opRemoveRangeByLex   = "remrangebylex"
	opDelete             = "delete"
	opExpire             = "expire"
	opPersist            = "persist"
	opScore              = "score"
	opMScore             = "mscore"
	opRank               = "rank"
	opRange              = "range"
	opRangeByScore       = "rangebyscore"
	opRangeByLex         = "rangebylex"
	opCard               = "card"
	opCount              = "count"
	opLexCount           = "lexcount"
	opTTL                = "ttl"
	opGC                 = "gc"
)

type storeMetrics struct {
	set       *metrics.Set
	ns        string
	reclaimed *metrics.Counter
}

func newStoreMetrics(ns string) *storeMetrics {
	set := metrics.NewSet()
	return &storeMetrics{
		set:       set,
		ns:        ns,
		reclaimed: set.NewCounter(fmt.Sprintf(`zstore_gc_reclaimed_total{namespace=%q}`, ns)),
	}
}

// track records one call of op. It is deferred at the top of every store method with a
// pointer to the named error result.
func (m *storeMetrics) track(op string, start time.Time, errp *error) {
	m.set.GetOrCreateCounter(fmt.Sprintf(`zstore_ops_total{op=%q,namespace=%q}`, op, m.ns)).Inc()
	m.set.GetOrCreateHistogram(fmt.Sprintf(`zstore_op_duration_seconds{op=%q,namespace=%q}`, op, m.ns)).UpdateDuration(start)
	if errp != nil && *errp != nil {
		code := store.CodeOf(*errp)
		m.set.GetOrCreateCounter(fmt.Sprintf(`zstore_errors_total{op=%q,code=%q,namespace=%q}`, op, code, m.ns)).Inc()
	}
}

// WritePrometheus writes all metrics of the store
func (s *storeImpl) WritePrometheus(w io.Writer) {
	s.metrics.set.WritePrometheus(w)
}
