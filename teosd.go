package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/tendermint/tendermint/libs/log"
	tmos "github.com/tendermint/tendermint/libs/os"

	"github.com/talaia-labs/teos-go/blockprocessor"
	"github.com/talaia-labs/teos-go/builder"
	"github.com/talaia-labs/teos-go/chainmonitor"
	"github.com/talaia-labs/teos-go/config"
	"github.com/talaia-labs/teos-go/dbm"
	"github.com/talaia-labs/teos-go/responder"
	"github.com/talaia-labs/teos-go/util"
	"github.com/talaia-labs/teos-go/watcher"
)

func main() {
	homedirname, err := os.UserHomeDir()
	if err != nil {
		panic(err)
	}
	home := fmt.Sprintf("%s/.teos", homedirname)
	if _, err := os.Stat(home); os.IsNotExist(err) {
		os.MkdirAll(home, os.ModePerm)
	}

	cfg := config.InitConfig(home)
	logger := cfg.Logger

	bp, err := blockprocessor.New(cfg, logger)
	if err != nil {
		panic(err)
	}
	if !bp.Connected() {
		panic(errors.New("cannot connect to bitcoind, check rpc settings in teos.conf and bitcoin.conf"))
	}

	db, err := dbm.New(cfg.DBPath)
	if err != nil {
		panic(err)
	}

	w := watcher.New(db, logger)
	r := responder.New(db, logger)

	monitor, err := chainmonitor.New(
		[]chainmonitor.Notifiable{w.BlockQueue, r.BlockQueue}, bp, cfg.FeedParams, logger,
	)
	if err != nil {
		panic(err)
	}
	monitor.PollingDelta = time.Duration(cfg.PollingDelta) * time.Second
	monitor.MaxBlockWindowSize = cfg.BlockWindowSize

	if err := bootstrapComponents(monitor, bp, db, w, r, logger); err != nil {
		panic(err)
	}

	tmos.TrapSignal(logger, func() {
		logger.Info("Shutting down tower...")
		monitor.Terminate()
		w.Stop()
		r.Stop()
		util.LoggerError(logger, db.Close())
	})

	logger.Info("Tower active", "network", cfg.BitcoinNetwork)
	select {}
}

// bootstrapComponents readies the tower: the chain monitor starts listening
// first so nothing is missed while the watcher and responder are brought back
// up to the current tip, then the monitor is activated and live notifications
// flow.
func bootstrapComponents(monitor *chainmonitor.ChainMonitor, bp *blockprocessor.BlockProcessor,
	db *dbm.TowerDB, w *watcher.Watcher, r *responder.Responder, logger log.Logger) error {

	if err := monitor.MonitorChain(); err != nil {
		return err
	}

	w.Awake()
	r.Awake()

	lastBlockWatcher, err := db.LoadLastBlockHashWatcher()
	if err != nil {
		return err
	}
	lastBlockResponder, err := db.LoadLastBlockHashResponder()
	if err != nil {
		return err
	}

	if lastBlockWatcher == "" && lastBlockResponder == "" {
		logger.Info("Fresh bootstrap")
		return monitor.Activate()
	}

	logger.Info("Bootstrapping from backed up data")

	// Missed blocks go straight into the consumer queues. The monitor is
	// already listening with the current tip seeded, so replaying through it
	// would reject the newest missed block as the known best tip.
	droppedTxs, err := builder.Reconcile(bp, w.BlockQueue, r.BlockQueue,
		lastBlockWatcher, lastBlockResponder)
	if err != nil {
		return err
	}
	if len(droppedTxs) > 0 {
		logger.Info("Transactions were left in abandoned blocks and need reprocessing",
			"txs", len(droppedTxs))
	}

	return monitor.Activate()
}
