package types

import (
	"github.com/tendermint/tendermint/libs/log"
)

// Config : runtime configuration for the tower, assembled by config.InitConfig
type Config struct {
	HomePath        string
	BitcoinNetwork  string
	BtcRPCConnect   string
	BtcRPCPort      string
	BtcRPCUser      string
	BtcRPCPassword  string
	FeedParams      FeedParams
	PollingDelta    int
	BlockWindowSize int
	DBPath          string
	LogLevel        string
	Logger          log.Logger
}

// FeedParams : connection parameters for bitcoind's ZMQ tip feed
type FeedParams struct {
	Protocol string
	Connect  string
	Port     string
}
