package journal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/quantex/qx-algo/internal/session"
	"github.com/quantex/qx-algo/pkg/model"
)

func tempJournal(t *testing.T) (*CSVJournal, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trade_log.csv")
	return NewCSV(path, zap.NewNop()), path
}

func record(t *testing.T, day, hour int, sess model.Session, result string) model.TradeRecord {
	t.Helper()
	return model.TradeRecord{
		Timestamp:  time.Date(2025, time.March, day, hour, 15, 0, 0, session.Eastern()),
		Session:    sess,
		Bias:       model.BiasBullish,
		Entry:      5100.25,
		Stop:       5095.5,
		TakeProfit: 5110,
		Size:       3,
		OrderID:    "9001",
		Result:     result,
	}
}

func TestAppendWritesHeaderOnce(t *testing.T) {
	j, path := tempJournal(t)

	require.NoError(t, j.Append(record(t, 10, 11, model.SessionRDR, "")))
	require.NoError(t, j.Append(record(t, 10, 12, model.SessionRDR, "STOP")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "timestamp_est,session,bias,entry,stop,take_profit,size,order_id,result", lines[0])
	assert.Contains(t, lines[1], "2025-03-10 11:15:00,rdr,bullish,5100.25,5095.5,5110,3,9001,")
}

func TestReadAllRoundTrip(t *testing.T) {
	j, _ := tempJournal(t)
	want := record(t, 10, 11, model.SessionODR, "PAPER")
	require.NoError(t, j.Append(want))

	got, err := j.ReadAll()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, want.Session, got[0].Session)
	assert.Equal(t, want.Entry, got[0].Entry)
	assert.Equal(t, want.OrderID, got[0].OrderID)
	assert.Equal(t, want.Result, got[0].Result)
	assert.True(t, want.Timestamp.Equal(got[0].Timestamp))
}

func TestReadAllMissingFileIsEmpty(t *testing.T) {
	j, _ := tempJournal(t)
	got, err := j.ReadAll()
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestTodayFiltersByETDate(t *testing.T) {
	j, _ := tempJournal(t)
	require.NoError(t, j.Append(record(t, 9, 11, model.SessionRDR, "")))
	require.NoError(t, j.Append(record(t, 10, 11, model.SessionRDR, "")))
	require.NoError(t, j.Append(record(t, 10, 22, model.SessionADR, "")))

	now := time.Date(2025, time.March, 10, 23, 0, 0, 0, session.Eastern())
	got, err := j.Today(now)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, model.SessionRDR, got[0].Session)
	assert.Equal(t, model.SessionADR, got[1].Session)
}

func TestLastN(t *testing.T) {
	var recs []model.TradeRecord
	for i := 0; i < 15; i++ {
		recs = append(recs, model.TradeRecord{Size: i})
	}
	got := LastN(recs, 10)
	require.Len(t, got, 10)
	assert.Equal(t, 5, got[0].Size)
	assert.Equal(t, 14, got[9].Size)

	short := LastN(recs[:3], 10)
	assert.Len(t, short, 3)
}
