package zerodha

import (
	"time"

	kiteconnect "github.com/zerodha/gokiteconnect/v4"

	"pivot-itm-bot/internal/interfaces"
)

// Broker is the read side the bot consumes from Kite: quotes, candles and
// the instrument master.
type Broker interface {
	interfaces.MarketData
	interfaces.Catalog
}

// kiteAPI is the subset of *kiteconnect.Client in use, so tests can fake it.
type kiteAPI interface {
	GetLTP(instruments ...string) (kiteconnect.QuoteLTP, error)
	GetHistoricalData(instrumentToken int, interval string, fromDate time.Time, toDate time.Time, continuous bool, oi bool) ([]kiteconnect.HistoricalData, error)
	GetInstrumentsByExchange(exchange string) (kiteconnect.Instruments, error)
	PlaceOrder(variety string, orderParams kiteconnect.OrderParams) (kiteconnect.OrderResponse, error)
}

var _ kiteAPI = (*kiteconnect.Client)(nil)
