package dbm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLastBlockHashRoundTrip(t *testing.T) {
	assert := assert.New(t)
	db, err := New(t.TempDir())
	require.NoError(t, err)
	defer db.Close()

	// Nothing recorded yet
	blockHash, err := db.LoadLastBlockHashWatcher()
	require.NoError(t, err)
	assert.Equal("", blockHash)

	require.NoError(t, db.StoreLastBlockHashWatcher("a1"))
	require.NoError(t, db.StoreLastBlockHashResponder("b2"))

	blockHash, err = db.LoadLastBlockHashWatcher()
	require.NoError(t, err)
	assert.Equal("a1", blockHash)

	blockHash, err = db.LoadLastBlockHashResponder()
	require.NoError(t, err)
	assert.Equal("b2", blockHash)

	// Watcher and responder views are independent
	require.NoError(t, db.StoreLastBlockHashWatcher("c3"))
	blockHash, err = db.LoadLastBlockHashResponder()
	require.NoError(t, err)
	assert.Equal("b2", blockHash)
}
