package zstore

import (
	"fmt"
	"testing"

	"github.com/ValentinKolb/zKV/lib/db"
	"github.com/ValentinKolb/zKV/lib/db/engines/lsm"
	"github.com/ValentinKolb/zKV/lib/db/engines/maple"
	"github.com/ValentinKolb/zKV/lib/store"
	storetesting "github.com/ValentinKolb/zKV/lib/store/testing"
)

// ownedStore closes the database together with the store
type ownedStore struct {
	store.IStore
	database db.KVDB
}

func (o *ownedStore) Close() error {
	if err := o.IStore.Close(); err != nil {
		return err
	}
	return o.database.Close()
}

func factoryFor(newDB func() (db.KVDB, error)) storetesting.StoreFactory {
	return func() store.IStore {
		database, err := newDB()
		if err != nil {
			panic(fmt.Sprintf("failed to open database: %v", err))
		}
		s, err := NewStore(database, DefaultOptions("zset_ns"))
		if err != nil {
			panic(fmt.Sprintf("failed to create store: %v", err))
		}
		return &ownedStore{IStore: s, database: database}
	}
}

func TestLSM(t *testing.T) {
	storetesting.RunStoreTests(t, "LSM", factoryFor(func() (db.KVDB, error) {
		return lsm.NewLSMDB(lsm.InMemoryOptions())
	}))
}

func TestMaple(t *testing.T) {
	storetesting.RunStoreTests(t, "MapleDB", factoryFor(func() (db.KVDB, error) {
		return maple.NewMapleDB(nil), nil
	}))
}
