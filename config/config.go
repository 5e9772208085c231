package config

import (
	"os"
	"strings"

	"github.com/jacohend/flag"
	"github.com/spf13/viper"
	"github.com/tendermint/tendermint/libs/log"

	"github.com/talaia-labs/teos-go/types"
)

// InitConfig : receives flags, config file and ENV variables and initializes the tower config struct
func InitConfig(home string) types.Config {
	var bitcoinNetwork, btcRPCConnect, btcRPCPort, btcRPCUser, btcRPCPassword string
	var feedProtocol, feedConnect, feedPort string
	var dbPath, logLevel string
	var pollingDelta, blockWindowSize int

	flag.String(flag.DefaultConfigFlagname, "", "path to config file")
	flag.StringVar(&bitcoinNetwork, "btc_network", "mainnet", "bitcoin network")
	flag.StringVar(&btcRPCConnect, "btc_rpc_connect", "127.0.0.1", "bitcoind rpc host")
	flag.StringVar(&btcRPCPort, "btc_rpc_port", "8332", "bitcoind rpc port")
	flag.StringVar(&btcRPCUser, "btc_rpc_user", "", "bitcoind rpc user")
	flag.StringVar(&btcRPCPassword, "btc_rpc_password", "", "bitcoind rpc password")
	flag.StringVar(&feedProtocol, "btc_feed_protocol", "tcp", "bitcoind zmq feed protocol")
	flag.StringVar(&feedConnect, "btc_feed_connect", "127.0.0.1", "bitcoind zmq feed host")
	flag.StringVar(&feedPort, "btc_feed_port", "28332", "bitcoind zmq feed port")
	flag.IntVar(&pollingDelta, "polling_delta", 60, "seconds between best tip polls")
	flag.IntVar(&blockWindowSize, "block_window_size", 10, "max number of old tips kept to filter out stale notifications")
	flag.StringVar(&dbPath, "db_path", home+"/data", "path to the tower database")
	flag.StringVar(&logLevel, "log_level", "info", "log level")
	flag.Parse()

	initEnv("TEOS")

	allowLevel, err := log.AllowLevel(strings.ToLower(logLevel))
	if err != nil {
		allowLevel = log.AllowInfo()
	}
	logger := log.NewFilter(log.NewTMLogger(log.NewSyncWriter(os.Stdout)), allowLevel)

	return types.Config{
		HomePath:       home,
		BitcoinNetwork: bitcoinNetwork,
		BtcRPCConnect:  btcRPCConnect,
		BtcRPCPort:     btcRPCPort,
		BtcRPCUser:     btcRPCUser,
		BtcRPCPassword: btcRPCPassword,
		FeedParams: types.FeedParams{
			Protocol: feedProtocol,
			Connect:  feedConnect,
			Port:     feedPort,
		},
		PollingDelta:    pollingDelta,
		BlockWindowSize: blockWindowSize,
		DBPath:          dbPath,
		LogLevel:        logLevel,
		Logger:          logger.With("module", "main"),
	}
}

// initEnv sets to use ENV variables if set.
func initEnv(prefix string) {
	copyEnvVars(prefix)

	// env variables with TEOS prefix (eg. TEOS_BTC_RPC_PORT)
	viper.SetEnvPrefix(prefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
}

// This copies all variables like TEOSROOT to TEOS_ROOT,
// so we can support both formats for the user
func copyEnvVars(prefix string) {
	prefix = strings.ToUpper(prefix)
	ps := prefix + "_"
	for _, e := range os.Environ() {
		kv := strings.SplitN(e, "=", 2)
		if len(kv) == 2 {
			k, v := kv[0], kv[1]
			if strings.HasPrefix(k, prefix) && !strings.HasPrefix(k, ps) {
				k2 := strings.Replace(k, prefix, ps, 1)
				os.Setenv(k2, v)
			}
		}
	}
}
