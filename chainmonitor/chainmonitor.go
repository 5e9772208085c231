package chainmonitor

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/enriquebris/goconcurrentqueue"
	"github.com/lightninglabs/gozmq"
	"github.com/tendermint/tendermint/libs/log"

	"github.com/talaia-labs/teos-go/types"
	"github.com/talaia-labs/teos-go/util"
)

const (
	// hashblockTopic is the only ZMQ topic carrying tip notifications.
	hashblockTopic = "hashblock"

	// notifyTimeout bounds the internal queue wait so the notifier observes
	// termination promptly even when no blocks arrive.
	notifyTimeout = 100 * time.Millisecond

	// feedReadDeadline bounds the ZMQ receive so the feed goroutine can
	// observe termination without waiting for the next block.
	feedReadDeadline = 5 * time.Second
)

// ErrInvalidStatus is returned when a lifecycle method is called from the
// wrong status, e.g. Activate before MonitorChain.
var ErrInvalidStatus = errors.New("invalid chain monitor status")

// BlockSource provides the current best tip. An empty string means the query
// failed and the caller should retry later.
type BlockSource interface {
	GetBestBlockHash() string
}

// Notifiable is anything block hashes can be handed off to. The receiving
// queues of the watcher and the responder satisfy it, and so does the
// monitor's own internal queue.
type Notifiable interface {
	Enqueue(value interface{}) error
}

// TipFeed is a subscription to bitcoind's tip notifications. Receive returns
// the parts of the next multipart message, reusing the passed buffers, and
// must honor a read deadline so the consuming loop is not blocked past
// termination.
type TipFeed interface {
	Receive([][]byte) ([][]byte, error)
	Close() error
}

// ChainMonitor is in charge of monitoring the blockchain (via bitcoind) to
// detect new tips on top of the best chain. A new best tip is notified to the
// receiving queues exactly once, triggered by whichever detection method spots
// it first: the ZMQ feed or polling.
//
// The monitor goes through four lifecycle states. It is created IDLE; nothing
// runs. MonitorChain moves it to LISTENING: both detection goroutines run and
// new tips accumulate, in the order they were spotted, in an internal queue.
// Activate moves it to ACTIVE: the notifier goroutine drains the internal
// queue into every receiving queue. Terminate moves it to TERMINATED from any
// state: every goroutine exits at its next wait point and whatever is left in
// the internal queue is never delivered.
type ChainMonitor struct {
	logger          log.Logger
	receivingQueues []Notifiable
	blockProcessor  BlockSource
	feed            TipFeed

	// bestTip and lastTips are only touched under mu. lastTips holds the
	// previously superseded tips, not the current one, bounded to
	// maxBlockWindowSize so old notifications can be told apart from reorgs
	// beyond the window.
	mu       sync.Mutex
	bestTip  string
	lastTips []string

	statusMu sync.RWMutex
	status   Status

	// queue buffers novel tips between the detection goroutines and the
	// notifier. notifyMu serializes fan-out to the receiving queues.
	queue    *goconcurrentqueue.FIFO
	notifyMu sync.Mutex

	// PollingDelta is the time between best tip polls.
	PollingDelta time.Duration

	// MaxBlockWindowSize is the max size of lastTips.
	MaxBlockWindowSize int

	checkTip      chan struct{}
	quit          chan struct{}
	terminateOnce sync.Once
}

// New : creates an idle ChainMonitor notifying receivingQueues, watching the
// chain through blockProcessor and a ZMQ subscription built from feedParams
func New(receivingQueues []Notifiable, blockProcessor BlockSource, feedParams types.FeedParams,
	logger log.Logger) (*ChainMonitor, error) {

	if len(receivingQueues) == 0 {
		return nil, errors.New("at least one receiving queue is required")
	}

	feedAddr := fmt.Sprintf("%s://%s:%s", feedParams.Protocol, feedParams.Connect, feedParams.Port)
	feed, err := gozmq.Subscribe(feedAddr, []string{hashblockTopic}, feedReadDeadline)
	if err != nil {
		return nil, fmt.Errorf("cannot subscribe to bitcoind feed at %s: %v", feedAddr, err)
	}

	return newWithFeed(receivingQueues, blockProcessor, feed, logger), nil
}

func newWithFeed(receivingQueues []Notifiable, blockProcessor BlockSource, feed TipFeed,
	logger log.Logger) *ChainMonitor {

	return &ChainMonitor{
		logger:             logger.With("module", "chainmonitor"),
		receivingQueues:    receivingQueues,
		blockProcessor:     blockProcessor,
		feed:               feed,
		lastTips:           []string{},
		queue:              goconcurrentqueue.NewFIFO(),
		PollingDelta:       60 * time.Second,
		MaxBlockWindowSize: 10,
		checkTip:           make(chan struct{}, 1),
		quit:               make(chan struct{}),
	}
}

// Status : the current lifecycle status of the monitor
func (cm *ChainMonitor) Status() Status {
	cm.statusMu.RLock()
	defer cm.statusMu.RUnlock()
	return cm.status
}

// BestTip : the hash the monitor currently believes to be the best tip
func (cm *ChainMonitor) BestTip() string {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.bestTip
}

// Enqueue : adds a new block hash to the internal queue and updates the tip
// state. Returns false, with no side effects, if the hash equals the current
// best tip, is one of the recent old tips, or the monitor has been terminated.
// Both detection goroutines funnel through here, so whichever spots a tip
// first wins and the other call is a no-op.
func (cm *ChainMonitor) Enqueue(blockHash string) bool {
	if cm.Status() == StatusTerminated {
		return false
	}

	cm.mu.Lock()
	defer cm.mu.Unlock()

	if blockHash == cm.bestTip || util.ArrayContains(cm.lastTips, blockHash) {
		return false
	}

	util.LoggerError(cm.logger, cm.queue.Enqueue(blockHash))
	cm.lastTips = append(cm.lastTips, cm.bestTip)
	cm.bestTip = blockHash
	if len(cm.lastTips) > cm.MaxBlockWindowSize {
		cm.lastTips = cm.lastTips[1:]
	}
	return true
}

// seenRecently reports whether blockHash is one of the recent old tips. The
// detection loops use it as a cheap pre-filter; Enqueue remains the
// authoritative check.
func (cm *ChainMonitor) seenRecently(blockHash string) bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return util.ArrayContains(cm.lastTips, blockHash)
}

// notifySubscribers : hands a new block hash to every receiving queue
func (cm *ChainMonitor) notifySubscribers(blockHash string) {
	for _, queue := range cm.receivingQueues {
		util.LoggerError(cm.logger, queue.Enqueue(blockHash))
	}
}

// CheckTip : wakes the polling goroutine so the next poll happens immediately
// instead of at the end of the current interval
func (cm *ChainMonitor) CheckTip() {
	select {
	case cm.checkTip <- struct{}{}:
	default:
	}
}

// monitorChainPolling polls bitcoind for the best tip once per PollingDelta
// (or earlier if woken through CheckTip) until the monitor is terminated. A
// failed query yields an empty hash and is retried next interval.
func (cm *ChainMonitor) monitorChainPolling() {
	for cm.Status() != StatusTerminated {
		select {
		case <-time.After(cm.PollingDelta):
		case <-cm.checkTip:
		case <-cm.quit:
		}

		// Terminate could have been called while waiting
		if cm.Status() == StatusTerminated {
			return
		}

		currentTip := cm.blockProcessor.GetBestBlockHash()
		if currentTip != "" && !cm.seenRecently(currentTip) {
			cm.logger.Info("New block received via polling", "block_hash", currentTip)
			cm.Enqueue(currentTip)
		}
	}
}

// monitorChainFeed consumes the ZMQ subscription until the monitor is
// terminated. Receives are bounded by the feed's read deadline, so
// termination is observed without needing another block; closing the feed on
// Terminate releases the receive as well.
func (cm *ChainMonitor) monitorChainFeed() {
	// Reusable frame buffers: a topic and a 32 byte block hash, plus the
	// sequence number bitcoind appends.
	bufs := [][]byte{make([]byte, len(hashblockTopic)), make([]byte, 32), make([]byte, 4)}

	for cm.Status() != StatusTerminated {
		msg, err := cm.feed.Receive(bufs)
		if err != nil {
			if cm.Status() == StatusTerminated {
				return
			}
			// Read deadline ticks surface as timeouts and just mean
			// no block arrived yet.
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			util.LoggerError(cm.logger, err)
			continue
		}

		if cm.Status() == StatusTerminated {
			return
		}
		if len(msg) < 2 || string(msg[0]) != hashblockTopic {
			continue
		}

		blockHash := hex.EncodeToString(msg[1])
		if !cm.seenRecently(blockHash) {
			cm.logger.Info("New block received via zmq", "block_hash", blockHash)
			cm.Enqueue(blockHash)
		}
	}
}

// notifyListeners drains the internal queue and notifies the receiving queues
// for every block hash in it, until the monitor is terminated. Hashes still
// queued at termination are dropped.
func (cm *ChainMonitor) notifyListeners() {
	for cm.Status() != StatusTerminated {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		item, err := cm.queue.DequeueOrWaitForNextElementContext(ctx)
		cancel()
		if err != nil {
			// Timeout with an empty queue, check status and wait again
			continue
		}
		if cm.Status() == StatusTerminated {
			return
		}

		blockHash, ok := item.(string)
		if !ok {
			continue
		}
		cm.notifyMu.Lock()
		cm.notifySubscribers(blockHash)
		cm.notifyMu.Unlock()
	}
}

// MonitorChain : moves the monitor from IDLE to LISTENING. The best tip is
// seeded from bitcoind before the two detection goroutines start, so the tip
// present at startup is never mistaken for a new block.
func (cm *ChainMonitor) MonitorChain() error {
	cm.statusMu.Lock()
	if cm.status != StatusIdle {
		current := cm.status
		cm.statusMu.Unlock()
		return fmt.Errorf("%w: MonitorChain can only be called in IDLE status, current status is %s",
			ErrInvalidStatus, current)
	}
	cm.status = StatusListening
	cm.statusMu.Unlock()

	cm.mu.Lock()
	cm.bestTip = cm.blockProcessor.GetBestBlockHash()
	cm.mu.Unlock()

	go cm.monitorChainPolling()
	go cm.monitorChainFeed()
	return nil
}

// Activate : moves the monitor from LISTENING to ACTIVE and starts notifying
// the receiving queues about queued and future blocks
func (cm *ChainMonitor) Activate() error {
	cm.statusMu.Lock()
	if cm.status != StatusListening {
		current := cm.status
		cm.statusMu.Unlock()
		return fmt.Errorf("%w: Activate can only be called in LISTENING status, current status is %s",
			ErrInvalidStatus, current)
	}
	cm.status = StatusActive
	cm.statusMu.Unlock()

	go cm.notifyListeners()
	return nil
}

// Terminate : moves the monitor to TERMINATED from any status. All goroutines
// stop at their next wait point and no receiving queue is notified again, not
// even about blocks already in the internal queue. Safe to call repeatedly.
func (cm *ChainMonitor) Terminate() {
	cm.terminateOnce.Do(func() {
		cm.statusMu.Lock()
		cm.status = StatusTerminated
		cm.statusMu.Unlock()

		close(cm.quit)
		if cm.feed != nil {
			util.LoggerError(cm.logger, cm.feed.Close())
		}
	})
}
