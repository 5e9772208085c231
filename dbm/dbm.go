package dbm

import (
	dbm "github.com/tendermint/tm-db"
)

const (
	lastBlockWatcherKey   = "last_block_watcher"
	lastBlockResponderKey = "last_block_responder"
)

// TowerDB persists the chain view of the tower components between runs. It
// only records the last block hash each component has fully processed; the
// bootstrap reconciliation reads those back to work out what was missed.
type TowerDB struct {
	db dbm.DB
}

// New : opens (or creates) the tower database at path
func New(path string) (*TowerDB, error) {
	db, err := dbm.NewGoLevelDB("watchtower", path)
	if err != nil {
		return nil, err
	}
	return &TowerDB{db: db}, nil
}

func (t *TowerDB) storeLastBlockHash(key string, blockHash string) error {
	return t.db.Set([]byte(key), []byte(blockHash))
}

func (t *TowerDB) loadLastBlockHash(key string) (string, error) {
	raw, err := t.db.Get([]byte(key))
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// StoreLastBlockHashWatcher : records the last block processed by the watcher
func (t *TowerDB) StoreLastBlockHashWatcher(blockHash string) error {
	return t.storeLastBlockHash(lastBlockWatcherKey, blockHash)
}

// LoadLastBlockHashWatcher : last block processed by the watcher, empty if none
func (t *TowerDB) LoadLastBlockHashWatcher() (string, error) {
	return t.loadLastBlockHash(lastBlockWatcherKey)
}

// StoreLastBlockHashResponder : records the last block processed by the responder
func (t *TowerDB) StoreLastBlockHashResponder(blockHash string) error {
	return t.storeLastBlockHash(lastBlockResponderKey, blockHash)
}

// LoadLastBlockHashResponder : last block processed by the responder, empty if none
func (t *TowerDB) LoadLastBlockHashResponder() (string, error) {
	return t.loadLastBlockHash(lastBlockResponderKey)
}

// Close : closes the underlying store
func (t *TowerDB) Close() error {
	return t.db.Close()
}
