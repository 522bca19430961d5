package persistence

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/harvest-market/internal/commodity"
	"github.com/talgya/harvest-market/internal/engine"
	"github.com/talgya/harvest-market/internal/market"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func report(tick uint64, price float64) market.Report {
	return market.Report{
		Tick: tick,
		Commodities: []market.CommodityReport{
			{Commodity: commodity.Corn, Bids: 2, Asks: 1, BidQuantity: 7, AskQuantity: 10, Fills: 1, Traded: 5, Money: 5 * price, AvgPrice: price, Unmatched: 1, Rounds: 1},
			{Commodity: commodity.Carrot, Bids: 1},
		},
		Fills: []market.Fill{
			{Commodity: commodity.Corn, Price: price, Quantity: 5, Buyer: 0, Seller: 3},
		},
	}
}

func TestSaveReportAndRecentStats(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.SaveReport(report(1, 8)))
	require.NoError(t, db.SaveReport(report(2, 9)))

	stats, err := db.RecentStats(commodity.Corn, 10)
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, uint64(2), stats[0].Tick)
	assert.Equal(t, "corn", stats[0].Commodity)
	assert.Equal(t, 9.0, stats[0].AvgPrice)
	assert.Equal(t, 45.0, stats[0].Money)
	assert.Equal(t, 1, stats[1].Unmatched)

	fills, err := db.RecentFills(1)
	require.NoError(t, err)
	require.Len(t, fills, 1)
	assert.Equal(t, 3, fills[0].Seller)
	assert.Equal(t, uint64(2), fills[0].Tick)

	last, err := db.GetMeta("last_tick")
	require.NoError(t, err)
	assert.Equal(t, "2", last)
}

func TestSaveReportReplacesTick(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.SaveReport(report(1, 8)))
	require.NoError(t, db.SaveReport(report(1, 10)))

	stats, err := db.RecentStats(commodity.Corn, 10)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, 10.0, stats[0].AvgPrice)
}

func TestSaveDay(t *testing.T) {
	db := openTestDB(t)
	in := engine.DayStats{Tick: 24, Day: 1, Population: 30, TotalCash: 2900.5, Taxes: 12, Treasury: 12, Bankrupt: 2, Fills: 40, Traded: 120, Money: 960}
	require.NoError(t, db.SaveDay(in))

	days, err := db.RecentDays(5)
	require.NoError(t, err)
	require.Len(t, days, 1)
	assert.Equal(t, in, days[0])
}

func TestMeta(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.SaveMeta("run_id", "abc"))
	require.NoError(t, db.SaveMeta("run_id", "def"))

	v, err := db.GetMeta("run_id")
	require.NoError(t, err)
	assert.Equal(t, "def", v)

	_, err = db.GetMeta("missing")
	assert.Error(t, err)
}
