package storage

// OpenPersistent opens the goleveldb-backed ChainStore used in production,
// at dataDir.
func OpenPersistent(dataDir string) (*ChainStore, error) {
	db, err := OpenLevelDB(dataDir)
	if err != nil {
		return nil, err
	}
	return NewChainStore(db), nil
}

// OpenMock opens the bbolt-backed ChainStore used by tests and local
// fixtures, per spec.md §9's requirement that test fixtures never share a
// real production database (versioned-write contention across tests can
// deadlock at the storage layer; a throwaway bbolt file per test avoids it
// entirely).
func OpenMock(path string) (*ChainStore, error) {
	db, err := OpenBoltDB(path)
	if err != nil {
		return nil, err
	}
	return NewChainStore(db), nil
}
