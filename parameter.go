package cadence

import "github.com/cadence-rt/cadence/internal/infra/tagcache"

// Geometry of the per-consumer current-record cache: the tags a parameter
// emitted during one invocation of the consumer, before they are folded into
// the consumer's long-record spread on completion.
const (
	currRecordEntries  = 10
	currRecordMaxCount = 100.0
)

// Ceiling of a frame's own execution-time histogram.
const histogramMaxCount = 100000.0

// parameter is a named stream of integer tags emitted by a source frame: a
// measured frame's execution-time bin, or an exec frame's decision tag. Any
// ancestor frame may consume it; each consumer keeps a current-record cache
// (this invocation's tags) and a long-record spread (tags correlated with
// the consumer's own execution-time bin).
//
// Identity is the source: one parameter object per source frame, compared by
// pointer, ordered by id for deterministic replay.
type parameter struct {
	id     int64
	source *frame
}

func (e *Engine) newParameter(source *frame) *parameter {
	p := &parameter{id: e.paramCount, source: source}
	e.paramCount++
	return p
}

func (p *parameter) hasConsumer(consumer *frameState) bool {
	_, ok := consumer.spreads[p]
	return ok
}

// addConsumer allocates the consumer-local spread and current-record cache.
// The consumer's objective must already be initialised so the spread matches
// its binning scheme.
func (p *parameter) addConsumer(consumer *frameState) {
	consumer.spreads[p] = tagcache.NewSpread(consumer.numBins)
	consumer.currRecords[p] = tagcache.NewCache(currRecordEntries, currRecordMaxCount)
	consumer.params = append(consumer.params, p)
}

// informConsumers writes one occurrence of sample into the current record of
// every enclosing frame that consumes this parameter.
func (p *parameter) informConsumers(enclosing []*frame, sample int) {
	for _, f := range enclosing {
		if f.state == nil {
			continue
		}
		if rec, ok := f.state.currRecords[p]; ok {
			rec.Note(sample, 1)
		}
	}
}
