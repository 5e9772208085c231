package responder

import (
	"context"
	"time"

	"github.com/enriquebris/goconcurrentqueue"
	"github.com/tendermint/tendermint/libs/log"

	"github.com/talaia-labs/teos-go/dbm"
	"github.com/talaia-labs/teos-go/util"
)

const blockWait = 100 * time.Millisecond

// Responder consumes new block notifications through its BlockQueue, tracking
// the confirmation state of broadcast penalty transactions. As with the
// watcher, the transaction trackers themselves live outside this scaffolding;
// the responder keeps its own durable chain view for bootstrap reconciliation.
type Responder struct {
	// BlockQueue receives the hashes of new best tips, in order.
	BlockQueue *goconcurrentqueue.FIFO

	db     *dbm.TowerDB
	logger log.Logger
	quit   chan struct{}
}

// New : creates a Responder persisting its chain view in db
func New(db *dbm.TowerDB, logger log.Logger) *Responder {
	return &Responder{
		BlockQueue: goconcurrentqueue.NewFIFO(),
		db:         db,
		logger:     logger.With("module", "responder"),
		quit:       make(chan struct{}),
	}
}

// Awake : starts draining the block queue until Stop is called
func (r *Responder) Awake() {
	go r.doRespond()
}

// Stop : stops the responder after the block currently in flight
func (r *Responder) Stop() {
	close(r.quit)
}

func (r *Responder) doRespond() {
	for {
		select {
		case <-r.quit:
			return
		default:
		}

		ctx, cancel := context.WithTimeout(context.Background(), blockWait)
		item, err := r.BlockQueue.DequeueOrWaitForNextElementContext(ctx)
		cancel()
		if err != nil {
			continue
		}
		blockHash, ok := item.(string)
		if !ok {
			continue
		}

		r.logger.Info("New block", "block_hash", blockHash)
		util.LoggerError(r.logger, r.db.StoreLastBlockHashResponder(blockHash))
	}
}
