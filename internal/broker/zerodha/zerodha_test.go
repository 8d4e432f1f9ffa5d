package zerodha

import (
	"context"
	"errors"
	"testing"
	"time"

	kiteconnect "github.com/zerodha/gokiteconnect/v4"
	"github.com/zerodha/gokiteconnect/v4/models"

	"pivot-itm-bot/internal/types"
)

var ist = time.FixedZone("IST", 19800)

type fakeKite struct {
	ltp         kiteconnect.QuoteLTP
	ltpErr      error
	history     map[string][]kiteconnect.HistoricalData
	instruments kiteconnect.Instruments

	lastLTPKeys []string
	lastOrder   kiteconnect.OrderParams
	lastVariety string
}

func (f *fakeKite) GetLTP(instruments ...string) (kiteconnect.QuoteLTP, error) {
	f.lastLTPKeys = instruments
	return f.ltp, f.ltpErr
}

func (f *fakeKite) GetHistoricalData(_ int, interval string, _ time.Time, _ time.Time, _ bool, _ bool) ([]kiteconnect.HistoricalData, error) {
	return f.history[interval], nil
}

func (f *fakeKite) GetInstrumentsByExchange(string) (kiteconnect.Instruments, error) {
	return f.instruments, nil
}

func (f *fakeKite) PlaceOrder(variety string, p kiteconnect.OrderParams) (kiteconnect.OrderResponse, error) {
	f.lastVariety = variety
	f.lastOrder = p
	return kiteconnect.OrderResponse{OrderID: "250304000001"}, nil
}

func newTest(f *fakeKite) *Zerodha {
	return newWithClient(Params{SpotSymbol: "NSE:NIFTY 50", SpotToken: 256265, OptionExchange: "NFO", Location: ist}, f)
}

func bar(hh, mm int, o, h, l, c float64) kiteconnect.HistoricalData {
	return kiteconnect.HistoricalData{
		Date: models.Time{Time: time.Date(2026, 3, 4, hh, mm, 0, 0, ist)},
		Open: o, High: h, Low: l, Close: c,
	}
}

func TestSpotAndOptionPrice(t *testing.T) {
	f := &fakeKite{ltp: kiteconnect.QuoteLTP{
		"NSE:NIFTY 50":          {InstrumentToken: 256265, LastPrice: 18512.5},
		"NFO:NIFTY2630518500CE": {InstrumentToken: 1, LastPrice: 120.25},
	}}
	z := newTest(f)

	spot, err := z.SpotPrice(context.Background())
	if err != nil || spot != 18512.5 {
		t.Errorf("SpotPrice = %v, %v", spot, err)
	}
	opt, err := z.OptionPrice(context.Background(), types.InstrumentRef{Symbol: "NIFTY2630518500CE"})
	if err != nil || opt != 120.25 {
		t.Errorf("OptionPrice = %v, %v", opt, err)
	}
	if len(f.lastLTPKeys) != 1 || f.lastLTPKeys[0] != "NFO:NIFTY2630518500CE" {
		t.Errorf("ltp keys = %v", f.lastLTPKeys)
	}
}

func TestPriceMissingQuote(t *testing.T) {
	z := newTest(&fakeKite{ltp: kiteconnect.QuoteLTP{}})
	if _, err := z.SpotPrice(context.Background()); err == nil {
		t.Error("expected error for missing quote")
	}
	z = newTest(&fakeKite{ltpErr: errors.New("Too many requests")})
	if _, err := z.SpotPrice(context.Background()); err == nil {
		t.Error("expected transport error")
	}
}

func TestOpeningRangeCandle(t *testing.T) {
	start := time.Date(2026, 3, 4, 9, 15, 0, 0, ist)
	end := time.Date(2026, 3, 4, 9, 20, 0, 0, ist)

	f := &fakeKite{history: map[string][]kiteconnect.HistoricalData{
		"5minute": {bar(9, 15, 18500, 18530, 18490, 18520), bar(9, 20, 18520, 18540, 18510, 18535)},
	}}
	c, err := newTest(f).OpeningRangeCandle(context.Background(), start, end)
	if err != nil {
		t.Fatalf("OpeningRangeCandle: %v", err)
	}
	if c == nil || c.Close != 18520 || c.High != 18530 {
		t.Errorf("candle = %+v, want the 09:15 bar only", c)
	}

	empty := &fakeKite{history: map[string][]kiteconnect.HistoricalData{}}
	c, err = newTest(empty).OpeningRangeCandle(context.Background(), start, end)
	if err != nil || c != nil {
		t.Errorf("no data: candle = %+v, err = %v; want nil, nil", c, err)
	}
}

func TestOpeningRangeAggregatesWiderWindow(t *testing.T) {
	start := time.Date(2026, 3, 4, 9, 15, 0, 0, ist)
	end := time.Date(2026, 3, 4, 9, 25, 0, 0, ist)
	f := &fakeKite{history: map[string][]kiteconnect.HistoricalData{
		"5minute": {bar(9, 15, 100, 110, 95, 105), bar(9, 20, 105, 120, 90, 115)},
	}}
	c, err := newTest(f).OpeningRangeCandle(context.Background(), start, end)
	if err != nil || c == nil {
		t.Fatalf("OpeningRangeCandle = %+v, %v", c, err)
	}
	if c.Open != 100 || c.High != 120 || c.Low != 90 || c.Close != 115 {
		t.Errorf("aggregate = %+v", c)
	}
}

func TestListInstruments(t *testing.T) {
	exp := models.Time{Time: time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)}
	f := &fakeKite{instruments: kiteconnect.Instruments{
		{Tradingsymbol: "NIFTY2630518500CE", Name: "NIFTY", Segment: "NFO-OPT", Exchange: "NFO", Expiry: exp, StrikePrice: 18500, InstrumentType: "CE", LotSize: 65},
		{Tradingsymbol: "NIFTY26MARFUT", Name: "NIFTY", Segment: "NFO-FUT", Exchange: "NFO", Expiry: exp, InstrumentType: "FUT", LotSize: 65},
	}}
	rows, err := newTest(f).ListInstruments(context.Background(), "NFO-OPT")
	if err != nil {
		t.Fatalf("ListInstruments: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	r := rows[0]
	if r.Underlying != "NIFTY" || r.Type != "CE" || r.LotSize != 65 || !r.BuyAllowed {
		t.Errorf("row = %+v", r)
	}
	if !r.Expiry.Equal(time.Date(2026, 3, 5, 0, 0, 0, 0, ist)) {
		t.Errorf("expiry = %v, want exchange-local date", r.Expiry)
	}
}

func TestSubmitOrders(t *testing.T) {
	f := &fakeKite{}
	z := newTest(f)
	resp, err := z.SubmitBuy(context.Background(), types.OrderReq{Symbol: "NIFTY2630518500CE", Qty: 65, Price: 120})
	if err != nil {
		t.Fatalf("SubmitBuy: %v", err)
	}
	if resp.OrderID != "250304000001" {
		t.Errorf("order id = %s", resp.OrderID)
	}
	o := f.lastOrder
	if f.lastVariety != kiteconnect.VarietyRegular || o.TransactionType != kiteconnect.TransactionTypeBuy ||
		o.OrderType != kiteconnect.OrderTypeMarket || o.Product != kiteconnect.ProductMIS || o.Exchange != "NFO" || o.Quantity != 65 {
		t.Errorf("order params = %+v", o)
	}

	if _, err := z.SubmitSell(context.Background(), types.OrderReq{Symbol: "NIFTY2630518500CE", Qty: 65}, types.ExitStopLoss); err != nil {
		t.Fatalf("SubmitSell: %v", err)
	}
	if f.lastOrder.TransactionType != kiteconnect.TransactionTypeSell || f.lastOrder.Tag != "STOP_LOSS" {
		t.Errorf("sell params = %+v", f.lastOrder)
	}
}

func TestNewZerodhaRequiresCredentials(t *testing.T) {
	if _, err := NewZerodha(Params{}); err == nil {
		t.Error("expected error without credentials")
	}
}
