package builder

import (
	"errors"
	"testing"

	"github.com/enriquebris/goconcurrentqueue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(queue *goconcurrentqueue.FIFO) []string {
	blocks := []string{}
	for queue.GetLen() > 0 {
		item, _ := queue.Dequeue()
		blocks = append(blocks, item.(string))
	}
	return blocks
}

func TestPopulateBlockQueue(t *testing.T) {
	queue := goconcurrentqueue.NewFIFO()
	missed := []string{"a1", "b2", "c3"}

	PopulateBlockQueue(queue, missed)

	assert.Equal(t, missed, drain(queue))
}

func TestUpdateStates(t *testing.T) {
	watcherQueue := goconcurrentqueue.NewFIFO()
	responderQueue := goconcurrentqueue.NewFIFO()

	err := UpdateStates(watcherQueue, responderQueue,
		[]string{"a1", "b2", "c3"}, []string{"b2", "c3"})
	require.NoError(t, err)

	assert.Equal(t, []string{"a1", "b2", "c3"}, drain(watcherQueue))
	assert.Equal(t, []string{"b2", "c3"}, drain(responderQueue))
}

func TestUpdateStatesResponderAhead(t *testing.T) {
	watcherQueue := goconcurrentqueue.NewFIFO()
	responderQueue := goconcurrentqueue.NewFIFO()

	err := UpdateStates(watcherQueue, responderQueue,
		[]string{"c3"}, []string{"a1", "b2", "c3"})
	assert.Error(t, err)
	assert.Zero(t, watcherQueue.GetLen())
	assert.Zero(t, responderQueue.GetLen())
}

// fakeChainView is a canned chain: an ancestry per recorded block and the
// blocks missed since each ancestor, newest last (the last one is the tip).
type fakeChainView struct {
	ancestors map[string]string
	dropped   map[string][]string
	missed    map[string][]string
	err       error
}

func (f *fakeChainView) FindLastCommonAncestor(lastKnownBlockHash string) (string, []string, error) {
	if f.err != nil {
		return "", nil, f.err
	}
	return f.ancestors[lastKnownBlockHash], f.dropped[lastKnownBlockHash], nil
}

func (f *fakeChainView) GetMissedBlocks(lastKnownBlockHash string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.missed[lastKnownBlockHash], nil
}

func TestReconcileSharedChainView(t *testing.T) {
	assert := assert.New(t)
	watcherQueue := goconcurrentqueue.NewFIFO()
	responderQueue := goconcurrentqueue.NewFIFO()

	// Both components stopped at a1; the chain has since grown to c3
	chain := &fakeChainView{
		ancestors: map[string]string{"a1": "a1"},
		missed:    map[string][]string{"a1": {"b2", "c3"}},
	}

	droppedTxs, err := Reconcile(chain, watcherQueue, responderQueue, "a1", "a1")
	require.NoError(t, err)
	assert.Empty(droppedTxs)

	// Every missed block reaches both queues, the current tip included
	assert.Equal([]string{"b2", "c3"}, drain(watcherQueue))
	assert.Equal([]string{"b2", "c3"}, drain(responderQueue))
}

func TestReconcileResponderBehind(t *testing.T) {
	assert := assert.New(t)
	watcherQueue := goconcurrentqueue.NewFIFO()
	responderQueue := goconcurrentqueue.NewFIFO()

	// The watcher is at the tip; only the responder has catching up to do
	chain := &fakeChainView{
		ancestors: map[string]string{"c3": "c3", "a1": "a1"},
		missed:    map[string][]string{"c3": {}, "a1": {"b2", "c3"}},
	}

	droppedTxs, err := Reconcile(chain, watcherQueue, responderQueue, "c3", "a1")
	require.NoError(t, err)
	assert.Empty(droppedTxs)
	assert.Zero(watcherQueue.GetLen())
	assert.Equal([]string{"b2", "c3"}, drain(responderQueue))
}

func TestReconcileBothBehind(t *testing.T) {
	assert := assert.New(t)
	watcherQueue := goconcurrentqueue.NewFIFO()
	responderQueue := goconcurrentqueue.NewFIFO()

	chain := &fakeChainView{
		ancestors: map[string]string{"b2": "b2", "a1": "a1"},
		missed: map[string][]string{
			"b2": {"c3", "d4"},
			"a1": {"b2", "c3", "d4"},
		},
	}

	droppedTxs, err := Reconcile(chain, watcherQueue, responderQueue, "a1", "b2")
	require.NoError(t, err)
	assert.Empty(droppedTxs)
	assert.Equal([]string{"b2", "c3", "d4"}, drain(watcherQueue))
	assert.Equal([]string{"c3", "d4"}, drain(responderQueue))
}

func TestReconcileReorgedViews(t *testing.T) {
	assert := assert.New(t)
	watcherQueue := goconcurrentqueue.NewFIFO()
	responderQueue := goconcurrentqueue.NewFIFO()

	// Each recorded block was reorged out; the dropped txs of both walks are
	// reported together
	chain := &fakeChainView{
		ancestors: map[string]string{"x1": "a1", "x2": "a1"},
		dropped: map[string][]string{
			"x1": {"tx1", "tx2"},
			"x2": {"tx3"},
		},
		missed: map[string][]string{"a1": {"b2", "c3"}},
	}

	droppedTxs, err := Reconcile(chain, watcherQueue, responderQueue, "x1", "x2")
	require.NoError(t, err)
	assert.Equal([]string{"tx1", "tx2", "tx3"}, droppedTxs)
	assert.Equal([]string{"b2", "c3"}, drain(watcherQueue))
	assert.Equal([]string{"b2", "c3"}, drain(responderQueue))
}

func TestReconcileUpToDate(t *testing.T) {
	assert := assert.New(t)
	watcherQueue := goconcurrentqueue.NewFIFO()
	responderQueue := goconcurrentqueue.NewFIFO()

	chain := &fakeChainView{
		ancestors: map[string]string{"c3": "c3"},
		missed:    map[string][]string{"c3": {}},
	}

	droppedTxs, err := Reconcile(chain, watcherQueue, responderQueue, "c3", "c3")
	require.NoError(t, err)
	assert.Empty(droppedTxs)
	assert.Zero(watcherQueue.GetLen())
	assert.Zero(responderQueue.GetLen())
}

func TestReconcileChainFailure(t *testing.T) {
	watcherQueue := goconcurrentqueue.NewFIFO()
	responderQueue := goconcurrentqueue.NewFIFO()
	chain := &fakeChainView{err: errors.New("connection refused")}

	_, err := Reconcile(chain, watcherQueue, responderQueue, "a1", "a1")
	assert.Error(t, err)
	assert.Zero(t, watcherQueue.GetLen())
	assert.Zero(t, responderQueue.GetLen())
}
