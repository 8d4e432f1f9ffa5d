package instruments

import (
	"context"
	"errors"
	"testing"
	"time"

	"pivot-itm-bot/internal/types"
)

var ist = time.FixedZone("IST", 19800)

type fakeCatalog struct {
	rows  []types.Instrument
	err   error
	calls int
}

func (f *fakeCatalog) ListInstruments(context.Context, string) ([]types.Instrument, error) {
	f.calls++
	return f.rows, f.err
}

func date(m time.Month, d int) time.Time { return time.Date(2026, m, d, 0, 0, 0, 0, ist) }

func opt(sym string, exp time.Time, strike float64, typ string, lot int, buy bool) types.Instrument {
	return types.Instrument{
		Symbol: sym, Underlying: "NIFTY", Segment: "NFO-OPT", Exchange: "NFO",
		Expiry: exp, Strike: strike, Type: typ, LotSize: lot, BuyAllowed: buy,
	}
}

func loaded(t *testing.T, rows ...types.Instrument) *Resolver {
	t.Helper()
	r := NewResolver(&fakeCatalog{rows: rows}, "NFO-OPT", 65, 7)
	if err := r.LoadCatalog(context.Background()); err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	return r
}

func TestITMStrike(t *testing.T) {
	tests := []struct {
		spot float64
		dir  types.Direction
		want int
	}{
		{18512, types.DirectionCall, 18500},
		{18512, types.DirectionPut, 18600},
		{18500, types.DirectionCall, 18500},
		{18500, types.DirectionPut, 18500},
		{18599.95, types.DirectionCall, 18500},
		{18500.5, types.DirectionPut, 18500},
	}
	for _, tt := range tests {
		if got := ITMStrike(tt.spot, tt.dir, 100); got != tt.want {
			t.Errorf("ITMStrike(%v, %s) = %d, want %d", tt.spot, tt.dir, got, tt.want)
		}
	}
}

func TestNearestExpiry(t *testing.T) {
	today := time.Date(2026, 3, 4, 10, 0, 0, 0, ist)
	r := loaded(t,
		opt("A", date(3, 3), 18500, "CE", 65, true),  // expired
		opt("B", date(3, 12), 18500, "CE", 65, true), // beyond 7 days
		opt("C", date(3, 10), 18500, "CE", 65, true),
		opt("D", date(3, 5), 18500, "PE", 65, true),
		types.Instrument{Symbol: "FUT", Underlying: "NIFTY", Type: "FUT", Expiry: date(3, 4)},
	)
	got, err := r.NearestExpiry("NIFTY", today)
	if err != nil {
		t.Fatalf("NearestExpiry: %v", err)
	}
	if !got.Equal(date(3, 5)) {
		t.Errorf("expiry = %v, want 2026-03-05", got)
	}
}

func TestNearestExpiryToday(t *testing.T) {
	today := time.Date(2026, 3, 5, 10, 0, 0, 0, ist)
	r := loaded(t, opt("D", time.Date(2026, 3, 5, 15, 30, 0, 0, ist), 18500, "CE", 65, true))
	got, err := r.NearestExpiry("NIFTY", today)
	if err != nil || !got.Equal(date(3, 5)) {
		t.Errorf("NearestExpiry = %v, %v; want same-day expiry", got, err)
	}
}

func TestNearestExpiryNone(t *testing.T) {
	r := loaded(t, opt("B", date(3, 20), 18500, "CE", 65, true))
	_, err := r.NearestExpiry("NIFTY", date(3, 4))
	if !errors.Is(err, ErrNoExpiry) {
		t.Errorf("err = %v, want ErrNoExpiry", err)
	}
}

func TestResolveNearestStrike(t *testing.T) {
	exp := date(3, 5)
	r := loaded(t,
		opt("NIFTY26MAR18400CE", exp, 18400, "CE", 65, true),
		opt("NIFTY26MAR18550CE", exp, 18550, "CE", 65, true),
		opt("NIFTY26MAR18500CE", exp, 18500, "CE", 65, false), // not buy-allowed
		opt("NIFTY26MAR18500PE", exp, 18500, "PE", 65, true),
	)
	ref, err := r.Resolve("NIFTY", exp, 18500, "CE")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if ref.Symbol != "NIFTY26MAR18550CE" {
		t.Errorf("symbol = %s, want the nearest buy-allowed strike", ref.Symbol)
	}
	if ref.LotSize != 65 || ref.Exchange != "NFO" {
		t.Errorf("ref = %+v", ref)
	}
}

func TestResolveTieKeepsCatalogOrder(t *testing.T) {
	exp := date(3, 5)
	r := loaded(t,
		opt("LOW", exp, 18450, "CE", 65, true),
		opt("HIGH", exp, 18550, "CE", 65, true),
	)
	ref, err := r.Resolve("NIFTY", exp, 18500, "CE")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if ref.Symbol != "LOW" {
		t.Errorf("symbol = %s, want first row on a tie", ref.Symbol)
	}
}

func TestResolveLotSizeMismatch(t *testing.T) {
	exp := date(3, 5)
	r := loaded(t, opt("X", exp, 18500, "CE", 75, true))
	_, err := r.Resolve("NIFTY", exp, 18500, "CE")
	if !errors.Is(err, ErrLotSizeMismatch) {
		t.Fatalf("err = %v, want ErrLotSizeMismatch", err)
	}
	if r.CacheSize() != 0 {
		t.Error("a rejected resolution must not be cached")
	}
}

func TestResolveNotFound(t *testing.T) {
	exp := date(3, 5)
	r := loaded(t, opt("X", date(3, 10), 18500, "CE", 65, true))
	if _, err := r.Resolve("NIFTY", exp, 18500, "CE"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestResolveCachesUntilReset(t *testing.T) {
	exp := date(3, 5)
	cat := &fakeCatalog{rows: []types.Instrument{opt("FIRST", exp, 18500, "CE", 65, true)}}
	r := NewResolver(cat, "NFO-OPT", 65, 7)
	if err := r.LoadCatalog(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Resolve("NIFTY", exp, 18500, "CE"); err != nil {
		t.Fatal(err)
	}

	cat.rows = []types.Instrument{opt("SECOND", exp, 18500, "CE", 65, true)}
	if err := r.LoadCatalog(context.Background()); err != nil {
		t.Fatal(err)
	}
	ref, _ := r.Resolve("NIFTY", exp, 18500, "CE")
	if ref.Symbol != "FIRST" {
		t.Errorf("cached symbol = %s, want FIRST", ref.Symbol)
	}

	r.Reset()
	ref, _ = r.Resolve("NIFTY", exp, 18500, "CE")
	if ref.Symbol != "SECOND" {
		t.Errorf("after reset symbol = %s, want SECOND", ref.Symbol)
	}
}

func TestResolveWithoutCatalog(t *testing.T) {
	r := NewResolver(&fakeCatalog{}, "NFO-OPT", 65, 7)
	if _, err := r.Resolve("NIFTY", date(3, 5), 18500, "CE"); !errors.Is(err, ErrNoCatalog) {
		t.Errorf("err = %v, want ErrNoCatalog", err)
	}
}

func TestLoadCatalogError(t *testing.T) {
	r := NewResolver(&fakeCatalog{err: errors.New("boom")}, "NFO-OPT", 65, 7)
	if err := r.LoadCatalog(context.Background()); err == nil {
		t.Error("expected error")
	}
}
