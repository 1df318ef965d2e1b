package binance

import (
	"fmt"
	"strconv"

	"candlesignal/internal/model"
)

// wsKlineEvent is one message from the <symbol>@kline_<interval> stream.
// Field tags follow the exchange's single-letter wire format.
type wsKlineEvent struct {
	EventType string  `json:"e"` // "kline"
	EventTime int64   `json:"E"` // event time, epoch ms
	Symbol    string  `json:"s"`
	Kline     wsKline `json:"k"`
}

type wsKline struct {
	OpenTime  int64  `json:"t"` // kline start, epoch ms
	CloseTime int64  `json:"T"` // kline end, epoch ms
	Symbol    string `json:"s"`
	Interval  string `json:"i"`
	Open      string `json:"o"`
	Close     string `json:"c"`
	High      string `json:"h"`
	Low       string `json:"l"`
	Volume    string `json:"v"`
	Final     bool   `json:"x"` // true once the kline is closed
}

// Candle converts the wire kline into the internal candle. Prices arrive as
// decimal strings and are parsed here, once, at the edge.
func (e *wsKlineEvent) Candle() (model.Candle, error) {
	k := e.Kline
	open, err := strconv.ParseFloat(k.Open, 64)
	if err != nil {
		return model.Candle{}, fmt.Errorf("kline open %q: %w", k.Open, err)
	}
	high, err := strconv.ParseFloat(k.High, 64)
	if err != nil {
		return model.Candle{}, fmt.Errorf("kline high %q: %w", k.High, err)
	}
	low, err := strconv.ParseFloat(k.Low, 64)
	if err != nil {
		return model.Candle{}, fmt.Errorf("kline low %q: %w", k.Low, err)
	}
	closeP, err := strconv.ParseFloat(k.Close, 64)
	if err != nil {
		return model.Candle{}, fmt.Errorf("kline close %q: %w", k.Close, err)
	}
	vol, err := strconv.ParseFloat(k.Volume, 64)
	if err != nil {
		return model.Candle{}, fmt.Errorf("kline volume %q: %w", k.Volume, err)
	}

	return model.Candle{
		Symbol:   e.Symbol,
		OpenTime: k.OpenTime,
		Open:     open,
		High:     high,
		Low:      low,
		Close:    closeP,
		Volume:   vol,
		IsFinal:  k.Final,
	}, nil
}

// parseKlineRow converts one REST /api/v3/klines row. Rows are heterogeneous
// JSON arrays: [openTime, "open", "high", "low", "close", "volume", ...].
func parseKlineRow(symbol string, row []interface{}) (model.Candle, error) {
	if len(row) < 6 {
		return model.Candle{}, fmt.Errorf("kline row has %d fields, need 6", len(row))
	}

	openTime, ok := row[0].(float64)
	if !ok {
		return model.Candle{}, fmt.Errorf("kline row open time: unexpected %T", row[0])
	}

	prices := make([]float64, 5)
	for i := 1; i <= 5; i++ {
		s, ok := row[i].(string)
		if !ok {
			return model.Candle{}, fmt.Errorf("kline row field %d: unexpected %T", i, row[i])
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return model.Candle{}, fmt.Errorf("kline row field %d %q: %w", i, s, err)
		}
		prices[i-1] = v
	}

	return model.Candle{
		Symbol:   symbol,
		OpenTime: int64(openTime),
		Open:     prices[0],
		High:     prices[1],
		Low:      prices[2],
		Close:    prices[3],
		Volume:   prices[4],
		IsFinal:  true,
	}, nil
}
