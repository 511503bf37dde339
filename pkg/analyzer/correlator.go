package analyzer

// DefaultMaxPending bounds the number of evaluations awaiting an uncommit.
const DefaultMaxPending = 64

// pendingEval is an evaluation waiting for its uncommit.
type pendingEval struct {
	index int // position in the entry stream
	ts    float64
}

// Correlator pairs uncommit-decision evaluations with the uncommits that
// follow them, oldest evaluation first. One Correlator serves one document.
type Correlator struct {
	max     int
	queue   []pendingEval
	nextKey int
	evicted int
}

// NewCorrelator creates a correlator holding at most maxPending evaluations.
func NewCorrelator(maxPending int) *Correlator {
	if maxPending <= 0 {
		maxPending = DefaultMaxPending
	}
	return &Correlator{max: maxPending}
}

// Push enqueues the evaluation at index. When the queue is full the oldest
// pending evaluation is evicted and stays uncorrelated.
func (c *Correlator) Push(index int, ts float64) {
	if len(c.queue) >= c.max {
		c.queue = c.queue[1:]
		c.evicted++
	}
	c.queue = append(c.queue, pendingEval{index: index, ts: ts})
}

// Pop dequeues the oldest pending evaluation for an uncommit at ts and
// returns its index with a fresh correlation key. It returns ok=false when
// nothing is pending or the oldest evaluation is later than the uncommit.
func (c *Correlator) Pop(ts float64) (index, key int, ok bool) {
	if len(c.queue) == 0 {
		return -1, 0, false
	}
	head := c.queue[0]
	if head.ts > ts {
		return -1, 0, false
	}
	c.queue = c.queue[1:]
	c.nextKey++
	return head.index, c.nextKey, true
}

// Newest returns the index of the most recent pending evaluation.
func (c *Correlator) Newest() (int, bool) {
	if len(c.queue) == 0 {
		return -1, false
	}
	return c.queue[len(c.queue)-1].index, true
}

// Pending returns the number of evaluations awaiting an uncommit.
func (c *Correlator) Pending() int {
	return len(c.queue)
}

// Pairs returns the number of correlation keys issued.
func (c *Correlator) Pairs() int {
	return c.nextKey
}

// Evicted returns the number of evaluations dropped on overflow.
func (c *Correlator) Evicted() int {
	return c.evicted
}
