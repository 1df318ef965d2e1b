package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"candlesignal/internal/model"
)

func newTestArchive(t *testing.T) *Archive {
	t.Helper()
	a, err := New(ArchiveConfig{DBPath: filepath.Join(t.TempDir(), "candles.db")})
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func candle(symbol string, openTime int64, close float64) model.Candle {
	return model.Candle{
		Symbol:   symbol,
		OpenTime: openTime,
		Open:     close,
		High:     close,
		Low:      close,
		Close:    close,
		Volume:   1,
		IsFinal:  true,
	}
}

func TestArchive_RunAndReadBack(t *testing.T) {
	a := newTestArchive(t)

	ch := make(chan model.Candle)
	done := make(chan struct{})
	go func() {
		a.Run(context.Background(), ch)
		close(done)
	}()

	for i := 0; i < 5; i++ {
		ch <- candle("BTCUSDT", int64(i)*60_000, 100+float64(i))
	}
	close(ch) // triggers the final flush
	<-done

	got, err := a.RecentCandles(context.Background(), "BTCUSDT", 10)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("got %d candles, want 5", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].OpenTime <= got[i-1].OpenTime {
			t.Fatalf("candles not chronological: %d after %d", got[i].OpenTime, got[i-1].OpenTime)
		}
	}
	if got[4].Close != 104 {
		t.Errorf("newest close=%v, want 104", got[4].Close)
	}
}

func TestArchive_UpsertOnSameOpenTime(t *testing.T) {
	a := newTestArchive(t)

	if err := a.insertBatch([]model.Candle{candle("BTCUSDT", 60_000, 100)}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := a.insertBatch([]model.Candle{candle("BTCUSDT", 60_000, 101)}); err != nil {
		t.Fatalf("reinsert: %v", err)
	}

	got, err := a.RecentCandles(context.Background(), "BTCUSDT", 10)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(got) != 1 || got[0].Close != 101 {
		t.Errorf("got %+v, want single candle with close 101", got)
	}
}

func TestArchive_RecentCandlesPerSymbol(t *testing.T) {
	a := newTestArchive(t)
	batch := []model.Candle{
		candle("BTCUSDT", 0, 100),
		candle("ETHUSDT", 0, 2000),
		candle("BTCUSDT", 60_000, 101),
	}
	if err := a.insertBatch(batch); err != nil {
		t.Fatalf("insert: %v", err)
	}

	btc, err := a.RecentCandles(context.Background(), "BTCUSDT", 10)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(btc) != 2 {
		t.Errorf("BTCUSDT rows=%d, want 2", len(btc))
	}

	last, err := a.LastOpenTime(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("last open time: %v", err)
	}
	if last != 60_000 {
		t.Errorf("last open time=%d, want 60000", last)
	}

	if last, _ := a.LastOpenTime(context.Background(), "SOLUSDT"); last != 0 {
		t.Errorf("unknown symbol last open time=%d, want 0", last)
	}
}
