package responder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendermint/tendermint/libs/log"

	"github.com/talaia-labs/teos-go/dbm"
)

func TestResponderPersistsChainView(t *testing.T) {
	db, err := dbm.New(t.TempDir())
	require.NoError(t, err)
	defer db.Close()

	r := New(db, log.NewNopLogger())
	r.Awake()
	defer r.Stop()

	require.NoError(t, r.BlockQueue.Enqueue("a1"))

	assert.Eventually(t, func() bool {
		blockHash, err := db.LoadLastBlockHashResponder()
		return err == nil && blockHash == "a1"
	}, time.Second, 10*time.Millisecond)
}
