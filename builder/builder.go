package builder

import (
	"errors"

	"github.com/talaia-labs/teos-go/chainmonitor"
	"github.com/talaia-labs/teos-go/util"
)

// ChainView is the part of the block processor the bootstrap reconciliation
// relies on.
type ChainView interface {
	FindLastCommonAncestor(lastKnownBlockHash string) (string, []string, error)
	GetMissedBlocks(lastKnownBlockHash string) ([]string, error)
}

// PopulateBlockQueue : feeds a receiving queue with missed blocks, oldest
// first, so the consumer transitions exactly as if the blocks had arrived
// one at a time while the tower was running
func PopulateBlockQueue(queue chainmonitor.Notifiable, missedBlocks []string) {
	for _, blockHash := range missedBlocks {
		util.LogError(queue.Enqueue(blockHash))
	}
}

// UpdateStates : feeds watcher and responder queues when both missed blocks
// while the tower was offline. The responder's view of the chain can never be
// ahead of the watcher's, since the watcher is the one handing work over.
func UpdateStates(watcherQueue, responderQueue chainmonitor.Notifiable,
	missedBlocksWatcher, missedBlocksResponder []string) error {

	if len(missedBlocksResponder) > len(missedBlocksWatcher) {
		return errors.New("the watcher cannot be behind the responder")
	}

	PopulateBlockQueue(responderQueue, missedBlocksResponder)
	PopulateBlockQueue(watcherQueue, missedBlocksWatcher)
	return nil
}

// Reconcile : brings the watcher and responder queues up to the current tip
// after a restart, replaying every block each component missed while the tower
// was down, the current tip included. Returns the transactions of any block of
// the recorded chain views that bitcoind has since abandoned, so the caller can
// have them reprocessed.
func Reconcile(chain ChainView, watcherQueue, responderQueue chainmonitor.Notifiable,
	lastBlockWatcher, lastBlockResponder string) ([]string, error) {

	missedBlocksWatcher, droppedTxs, err := missedSince(chain, lastBlockWatcher)
	if err != nil {
		return nil, err
	}

	// If both components recorded the same block there is no need to
	// perform the search twice.
	var missedBlocksResponder []string
	if lastBlockWatcher == lastBlockResponder {
		missedBlocksResponder = missedBlocksWatcher
	} else {
		var droppedTxsResponder []string
		missedBlocksResponder, droppedTxsResponder, err = missedSince(chain, lastBlockResponder)
		if err != nil {
			return nil, err
		}
		droppedTxs = append(droppedTxs, droppedTxsResponder...)
	}

	switch {
	case len(missedBlocksWatcher) == 0 && len(missedBlocksResponder) == 0:

	case len(missedBlocksWatcher) == 0:
		PopulateBlockQueue(responderQueue, missedBlocksResponder)

	case len(missedBlocksResponder) == 0:
		PopulateBlockQueue(watcherQueue, missedBlocksWatcher)

	default:
		if err := UpdateStates(watcherQueue, responderQueue,
			missedBlocksWatcher, missedBlocksResponder); err != nil {
			return nil, err
		}
	}

	return droppedTxs, nil
}

// missedSince computes the blocks missed since lastKnownBlockHash along with
// the transactions of any block of that ancestry bitcoind has abandoned. A
// component with no recorded block has missed nothing; it catches up live.
func missedSince(chain ChainView, lastKnownBlockHash string) ([]string, []string, error) {
	if lastKnownBlockHash == "" {
		return nil, nil, nil
	}

	lastCommonAncestor, droppedTxs, err := chain.FindLastCommonAncestor(lastKnownBlockHash)
	if err != nil {
		return nil, nil, err
	}
	missedBlocks, err := chain.GetMissedBlocks(lastCommonAncestor)
	if err != nil {
		return nil, nil, err
	}
	return missedBlocks, droppedTxs, nil
}
