package blockprocessor

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/tendermint/tendermint/libs/log"

	"github.com/talaia-labs/teos-go/types"
	"github.com/talaia-labs/teos-go/util"
)

// ErrAncestorNotFound is returned when no block of the locally recorded ancestry
// is part of the best chain known to bitcoind (e.g. pruned history). It is a
// distinct condition from a transient RPC failure and may need manual intervention.
var ErrAncestorNotFound = errors.New("no common ancestor found")

// chainRPC is the subset of the bitcoind RPC interface the processor relies on.
type chainRPC interface {
	GetBestBlockHash() (*chainhash.Hash, error)
	GetBlockVerbose(blockHash *chainhash.Hash) (*btcjson.GetBlockVerboseResult, error)
	GetBlockCount() (int64, error)
}

// BlockProcessor : a thin interface with bitcoind. It is in charge of
// querying chain data on behalf of the rest of the tower.
type BlockProcessor struct {
	client chainRPC
	logger log.Logger
}

// New : connects to bitcoind via JSON-RPC and returns a ready BlockProcessor
func New(config types.Config, logger log.Logger) (*BlockProcessor, error) {
	connCfg := &rpcclient.ConnConfig{
		Host:         config.BtcRPCConnect + ":" + config.BtcRPCPort,
		User:         config.BtcRPCUser,
		Pass:         config.BtcRPCPassword,
		HTTPPostMode: true,
		DisableTLS:   true,
	}
	client, err := rpcclient.New(connCfg, nil)
	if err != nil {
		return nil, err
	}
	return &BlockProcessor{client: client, logger: logger.With("module", "blockprocessor")}, nil
}

// Connected : sanity check that bitcoind is reachable
func (bp *BlockProcessor) Connected() bool {
	_, err := bp.client.GetBlockCount()
	return err == nil
}

// GetBestBlockHash : gets the hash of the current best tip. Returns an empty
// string if the query fails, callers treat that as a no-op.
func (bp *BlockProcessor) GetBestBlockHash() string {
	hash, err := bp.client.GetBestBlockHash()
	if util.LoggerError(bp.logger, err) != nil {
		return ""
	}
	return hash.String()
}

// GetBlock : gets a verbose block given its hash
func (bp *BlockProcessor) GetBlock(blockHash string) (*btcjson.GetBlockVerboseResult, error) {
	hash, err := chainhash.NewHashFromStr(blockHash)
	if err != nil {
		return nil, err
	}
	return bp.client.GetBlockVerbose(hash)
}

// GetBlockCount : gets the length of the best chain
func (bp *BlockProcessor) GetBlockCount() (int64, error) {
	return bp.client.GetBlockCount()
}

// FindLastCommonAncestor : finds the last block of the locally recorded
// ancestry that is still part of bitcoind's best chain, walking backwards from
// lastKnownBlockHash. Transactions of every abandoned block walked over are
// collected so the caller can reprocess them.
func (bp *BlockProcessor) FindLastCommonAncestor(lastKnownBlockHash string) (string, []string, error) {
	targetBlockHash := lastKnownBlockHash
	droppedTxs := []string{}
	for {
		targetBlock, err := bp.GetBlock(targetBlockHash)
		if err != nil {
			var rpcErr *btcjson.RPCError
			if errors.As(err, &rpcErr) && rpcErr.Code == btcjson.ErrRPCBlockNotFound {
				return "", nil, fmt.Errorf("%w: %s unknown to bitcoind", ErrAncestorNotFound, targetBlockHash)
			}
			return "", nil, err
		}
		if targetBlock.Confirmations != -1 {
			return targetBlockHash, droppedTxs, nil
		}
		droppedTxs = append(droppedTxs, targetBlock.Tx...)
		if targetBlock.PreviousHash == "" {
			return "", nil, ErrAncestorNotFound
		}
		targetBlockHash = targetBlock.PreviousHash
	}
}

// GetMissedBlocks : gets the blocks between lastKnownBlockHash and the current
// best tip, in ascending height order
func (bp *BlockProcessor) GetMissedBlocks(lastKnownBlockHash string) ([]string, error) {
	currentBlockHash := bp.GetBestBlockHash()
	missedBlocks := []string{}
	for currentBlockHash != "" && currentBlockHash != lastKnownBlockHash {
		missedBlocks = append(missedBlocks, currentBlockHash)
		currentBlock, err := bp.GetBlock(currentBlockHash)
		if err != nil {
			return nil, err
		}
		currentBlockHash = currentBlock.PreviousHash
	}

	// reverse to oldest first
	for i, j := 0, len(missedBlocks)-1; i < j; i, j = i+1, j-1 {
		missedBlocks[i], missedBlocks[j] = missedBlocks[j], missedBlocks[i]
	}
	return missedBlocks, nil
}
