package audit

import (
	"context"
	"fmt"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"
	"gorm.io/gorm"

	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/core/events"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	store, err := NewStore(db, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStoreEmitPersistsRenderedEvents(t *testing.T) {
	store := setupStore(t)
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	tick := 0
	store.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	store.Emit(events.RewardGranted{CampaignID: "onboarding", Sequence: 1, Principal: "alice", Amount: big.NewInt(100), Distributed: big.NewInt(100)})
	store.Emit(events.RewardGranted{CampaignID: "esg", Sequence: 1, Principal: "bob", Amount: big.NewInt(5), Distributed: big.NewInt(5)})
	store.Emit(events.Invocation{Sequence: 1, Caller: "relayer", CampaignID: "onboarding", Success: false, Reason: "expired"})
	store.Emit(nil)

	all, err := store.List(context.Background(), Query{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, events.TypeRewardGranted, all[0].Type)
	require.Equal(t, "alice", all[0].Principal)
	require.Equal(t, "100", all[0].Amount)
	require.Equal(t, "onboarding", all[0].Attributes["campaignId"])

	grants, err := store.List(context.Background(), Query{Type: events.TypeRewardGranted, CampaignID: "onboarding"})
	require.NoError(t, err)
	require.Len(t, grants, 1)
	require.Equal(t, all[0].ID, grants[0].ID)

	recent, err := store.List(context.Background(), Query{Since: base.Add(2 * time.Second), Limit: 1})
	require.NoError(t, err)
	require.Len(t, recent, 1)
	require.Equal(t, "esg", recent[0].CampaignID)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open("mysql", "dsn")
	require.Error(t, err)
}

func TestWriteParquet(t *testing.T) {
	store := setupStore(t)
	clock := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	store.Emit(events.RewardGranted{CampaignID: "onboarding", Sequence: 1, Principal: "alice", Amount: big.NewInt(100)})
	store.Emit(events.RewardGranted{CampaignID: "onboarding", Sequence: 2, Principal: "carol", Amount: big.NewInt(100)})
	records, err := store.List(context.Background(), Query{})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "events.parquet")
	require.NoError(t, WriteParquet(path, records))

	fr, err := local.NewLocalFileReader(path)
	require.NoError(t, err)
	defer fr.Close()
	pr, err := reader.NewParquetReader(fr, new(parquetRow), 1)
	require.NoError(t, err)
	defer pr.ReadStop()
	require.EqualValues(t, 2, pr.GetNumRows())

	rows := make([]parquetRow, 2)
	require.NoError(t, pr.Read(&rows))
	require.Equal(t, "carol", rows[1].Principal)
	require.Equal(t, "onboarding", rows[0].CampaignID)
}
