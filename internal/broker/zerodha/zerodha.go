package zerodha

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	kiteconnect "github.com/zerodha/gokiteconnect/v4"

	"pivot-itm-bot/internal/interfaces"
	"pivot-itm-bot/internal/logger"
	"pivot-itm-bot/internal/metrics"
	"pivot-itm-bot/internal/types"
)

const (
	intervalDay     = "day"
	intervalFiveMin = "5minute"
)

type Params struct {
	APIKey         string
	AccessToken    string
	SpotSymbol     string // e.g. "NSE:NIFTY 50"
	SpotToken      int
	OptionExchange string // e.g. "NFO"
	Location       *time.Location
}

type Zerodha struct {
	p  Params
	kc kiteAPI
}

var (
	_ Broker              = (*Zerodha)(nil)
	_ interfaces.Executor = (*Zerodha)(nil)
)

func NewZerodha(p Params) (*Zerodha, error) {
	if p.APIKey == "" || p.AccessToken == "" {
		return nil, errors.New("missing API key/access token")
	}
	kc := kiteconnect.New(p.APIKey)
	kc.SetAccessToken(p.AccessToken)
	return newWithClient(p, kc), nil
}

func newWithClient(p Params, kc kiteAPI) *Zerodha {
	if p.Location == nil {
		p.Location = time.FixedZone("IST", 19800)
	}
	return &Zerodha{p: p, kc: kc}
}

func (z *Zerodha) SpotPrice(ctx context.Context) (float64, error) {
	return z.ltp(z.p.SpotSymbol)
}

func (z *Zerodha) OptionPrice(ctx context.Context, ref types.InstrumentRef) (float64, error) {
	exch := ref.Exchange
	if exch == "" {
		exch = z.p.OptionExchange
	}
	return z.ltp(exch + ":" + ref.Symbol)
}

func (z *Zerodha) ltp(key string) (float64, error) {
	q, err := z.kc.GetLTP(key)
	if err != nil {
		return 0, fmt.Errorf("ltp %s: %w", key, err)
	}
	v, ok := q[key]
	if !ok {
		return 0, fmt.Errorf("ltp %s: no quote in response", key)
	}
	return v.LastPrice, nil
}

func (z *Zerodha) DailyCandles(ctx context.Context, from, to time.Time) ([]types.Candle, error) {
	data, err := z.kc.GetHistoricalData(z.p.SpotToken, intervalDay, from, to, false, false)
	if err != nil {
		return nil, fmt.Errorf("daily candles: %w", err)
	}
	return z.toCandles(data), nil
}

// OpeningRangeCandle aggregates the 5-minute bars starting inside [start, end).
func (z *Zerodha) OpeningRangeCandle(ctx context.Context, start, end time.Time) (*types.Candle, error) {
	data, err := z.kc.GetHistoricalData(z.p.SpotToken, intervalFiveMin, start, end, false, false)
	if err != nil {
		return nil, fmt.Errorf("opening range candle: %w", err)
	}

	var agg *types.Candle
	for _, c := range z.toCandles(data) {
		if c.Ts.Before(start) || !c.Ts.Before(end) {
			continue
		}
		if agg == nil {
			cp := c
			agg = &cp
			continue
		}
		agg.High = max(agg.High, c.High)
		agg.Low = min(agg.Low, c.Low)
		agg.Close = c.Close
		agg.Vol += c.Vol
	}
	if agg == nil {
		logger.Debug(ctx, "Opening range candle not available yet", "start", start, "end", end)
	}
	return agg, nil
}

func (z *Zerodha) toCandles(data []kiteconnect.HistoricalData) []types.Candle {
	out := make([]types.Candle, 0, len(data))
	for _, d := range data {
		out = append(out, types.Candle{
			Ts:    d.Date.Time.In(z.p.Location),
			Open:  d.Open,
			High:  d.High,
			Low:   d.Low,
			Close: d.Close,
			Vol:   float64(d.Volume),
		})
	}
	return out
}

// ListInstruments returns the option-exchange master filtered to segment.
// Kite has no per-instrument buy restriction flag, so every row is buy-allowed.
func (z *Zerodha) ListInstruments(ctx context.Context, segment string) ([]types.Instrument, error) {
	rows, err := z.kc.GetInstrumentsByExchange(z.p.OptionExchange)
	if err != nil {
		return nil, fmt.Errorf("instruments %s: %w", z.p.OptionExchange, err)
	}
	out := make([]types.Instrument, 0, len(rows))
	for _, r := range rows {
		if segment != "" && !strings.EqualFold(r.Segment, segment) {
			continue
		}
		var exp time.Time
		if !r.Expiry.Time.IsZero() {
			y, m, d := r.Expiry.Time.Date()
			exp = time.Date(y, m, d, 0, 0, 0, 0, z.p.Location)
		}
		out = append(out, types.Instrument{
			Symbol:     r.Tradingsymbol,
			Underlying: r.Name,
			Segment:    r.Segment,
			Exchange:   r.Exchange,
			Expiry:     exp,
			Strike:     r.StrikePrice,
			Type:       r.InstrumentType,
			LotSize:    int(r.LotSize),
			BuyAllowed: true,
		})
	}
	return out, nil
}

func (z *Zerodha) SubmitBuy(ctx context.Context, req types.OrderReq) (types.OrderResp, error) {
	return z.place(ctx, req, kiteconnect.TransactionTypeBuy)
}

func (z *Zerodha) SubmitSell(ctx context.Context, req types.OrderReq, reason types.ExitReason) (types.OrderResp, error) {
	if req.Tag == "" {
		req.Tag = string(reason)
	}
	return z.place(ctx, req, kiteconnect.TransactionTypeSell)
}

func (z *Zerodha) place(ctx context.Context, req types.OrderReq, side string) (types.OrderResp, error) {
	exch := req.Exchange
	if exch == "" {
		exch = z.p.OptionExchange
	}
	resp, err := z.kc.PlaceOrder(kiteconnect.VarietyRegular, kiteconnect.OrderParams{
		Exchange:        exch,
		Tradingsymbol:   req.Symbol,
		Validity:        kiteconnect.ValidityDay,
		Product:         kiteconnect.ProductMIS,
		OrderType:       kiteconnect.OrderTypeMarket,
		TransactionType: side,
		Quantity:        req.Qty,
		Tag:             tag(req.Tag),
	})
	if err != nil {
		return types.OrderResp{}, fmt.Errorf("place %s %s: %w", side, req.Symbol, err)
	}
	metrics.IncOrder("LIVE", side)
	logger.Trade(ctx, req.Symbol, side, req.Qty, req.Price, resp.OrderID, "mode", "LIVE")
	return types.OrderResp{OrderID: resp.OrderID, Status: "PLACED", Message: "ok"}, nil
}

// Kite caps order tags at 20 characters.
func tag(s string) string {
	if len(s) > 20 {
		return s[:20]
	}
	return s
}
