package watcher

import (
	"context"
	"time"

	"github.com/enriquebris/goconcurrentqueue"
	"github.com/tendermint/tendermint/libs/log"

	"github.com/talaia-labs/teos-go/dbm"
	"github.com/talaia-labs/teos-go/util"
)

// blockWait bounds the queue wait so Stop is observed promptly.
const blockWait = 100 * time.Millisecond

// Watcher consumes new block notifications from the chain monitor through its
// BlockQueue, checking every block for channel breaches on behalf of the
// registered appointments. Appointment admission and breach hand-off live
// behind the internal API; here the watcher keeps its chain view current and
// durable so a restart can work out which blocks it missed.
type Watcher struct {
	// BlockQueue receives the hashes of new best tips, in order.
	BlockQueue *goconcurrentqueue.FIFO

	db     *dbm.TowerDB
	logger log.Logger
	quit   chan struct{}
}

// New : creates a Watcher persisting its chain view in db
func New(db *dbm.TowerDB, logger log.Logger) *Watcher {
	return &Watcher{
		BlockQueue: goconcurrentqueue.NewFIFO(),
		db:         db,
		logger:     logger.With("module", "watcher"),
		quit:       make(chan struct{}),
	}
}

// Awake : starts draining the block queue until Stop is called
func (w *Watcher) Awake() {
	go w.doWatch()
}

// Stop : stops the watcher after the block currently in flight
func (w *Watcher) Stop() {
	close(w.quit)
}

func (w *Watcher) doWatch() {
	for {
		select {
		case <-w.quit:
			return
		default:
		}

		ctx, cancel := context.WithTimeout(context.Background(), blockWait)
		item, err := w.BlockQueue.DequeueOrWaitForNextElementContext(ctx)
		cancel()
		if err != nil {
			continue
		}
		blockHash, ok := item.(string)
		if !ok {
			continue
		}

		w.logger.Info("New block", "block_hash", blockHash)
		util.LoggerError(w.logger, w.db.StoreLastBlockHashWatcher(blockHash))
	}
}
