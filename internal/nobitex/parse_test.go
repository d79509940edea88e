package nobitex

import (
	"testing"
)

func TestParseKline_RoundTrip(t *testing.T) {
	raw := []byte(`{"s":"ok","t":[60,120,180],"o":["1","2","3"],"h":[1.5,2.5,3.5],"l":["0.5","1.5","2.5"],"c":["1.2","2.2","3.2"],"v":["10","20","30"]}`)
	batch, err := ParseKline(raw)
	if err != nil {
		t.Fatal(err)
	}
	if batch.Len() != 3 {
		t.Fatalf("len = %d, want 3", batch.Len())
	}
	if batch.O[0] != 1 || batch.H[1] != 2.5 || batch.C[2] != 3.2 || batch.V[2] != 30 {
		t.Fatalf("columns decoded wrong: %+v", batch)
	}
	if batch.FirstTS() != 60 || batch.LastTS() != 180 {
		t.Fatalf("first/last = %d/%d, want 60/180", batch.FirstTS(), batch.LastTS())
	}

	// Re-projection to t,o,h,l,c,v equals the original modulo sort.
	candles := batch.Candles()
	for i, c := range candles {
		if c.Unix() != batch.T[i] || c.Open != batch.O[i] || c.Volume != batch.V[i] {
			t.Fatalf("row %d does not round-trip: %+v", i, c)
		}
	}
}

func TestParseKline_LengthMismatch(t *testing.T) {
	raw := []byte(`{"s":"ok","t":[60,120],"o":[1],"h":[1],"l":[1],"c":[1],"v":[1]}`)
	if _, err := ParseKline(raw); err == nil {
		t.Fatal("expected column length error")
	}
}

func TestParseKline_ErrorStatus(t *testing.T) {
	raw := []byte(`{"s":"error","errmsg":"bad symbol"}`)
	if _, err := ParseKline(raw); err == nil {
		t.Fatal("expected status error")
	}
}

func TestParseMarketPrice(t *testing.T) {
	raw := []byte(`{"status":"ok","stats":{"btc-rls":{"latest":"2150000000","dayChange":"1.2"}}}`)
	p, err := ParseMarketPrice(raw, "btc", "rls")
	if err != nil {
		t.Fatal(err)
	}
	if p != 2150000000 {
		t.Fatalf("price = %v", p)
	}
	if _, err := ParseMarketPrice(raw, "eth", "rls"); err == nil {
		t.Fatal("expected missing pair error")
	}
}

func TestParseOrderBook_SortedAndMidprice(t *testing.T) {
	raw := []byte(`{"status":"ok","asks":[["102","1"],["101","2"]],"bids":[["99","1"],["100","3"]]}`)
	snap, err := ParseOrderBook(raw, "BTCIRT")
	if err != nil {
		t.Fatal(err)
	}
	if snap.Asks[0].Price != 101 || snap.Asks[1].Price != 102 {
		t.Fatalf("asks not ascending: %+v", snap.Asks)
	}
	if snap.Bids[0].Price != 100 || snap.Bids[1].Price != 99 {
		t.Fatalf("bids not descending: %+v", snap.Bids)
	}
	if snap.BestAsk() < snap.BestBid() {
		t.Fatalf("best ask %v < best bid %v", snap.BestAsk(), snap.BestBid())
	}
	if snap.Midprice != (101+100)/2.0 {
		t.Fatalf("midprice = %v", snap.Midprice)
	}
}

func TestParseWallets_DropVoid(t *testing.T) {
	raw := []byte(`{"status":"ok","wallets":[
		{"currency":"btc","balance":"0.5","blockedBalance":"0","activeBalance":"0.5"},
		{"currency":"ltc","balance":"0","blockedBalance":"0","activeBalance":"0"}
	]}`)
	w, err := ParseWallets(raw, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(w) != 1 {
		t.Fatalf("expected 1 wallet, got %d", len(w))
	}
	if w.Balance("btc") != 0.5 {
		t.Fatalf("btc active balance = %v", w.Balance("btc"))
	}

	all, _ := ParseWallets(raw, false)
	if len(all) != 2 {
		t.Fatalf("without dropVoid expected 2 wallets, got %d", len(all))
	}
}

func TestParsePositions_CreatedAtRename(t *testing.T) {
	raw := []byte(`{"status":"ok","positions":[{"id":7,"created_at":"2024-01-01T00:00:00Z","side":"sell","entryPrice":"100"}]}`)
	ps, err := ParsePositions(raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(ps) != 1 || ps[0].CreatedAt != "2024-01-01T00:00:00Z" {
		t.Fatalf("created_at not normalized: %+v", ps)
	}

	// Same payload shape under the "orders" key.
	raw = []byte(`{"status":"ok","orders":[{"id":8,"side":"buy"}]}`)
	ps, err = ParsePositions(raw)
	if err != nil || len(ps) != 1 || ps[0].ID != 8 {
		t.Fatalf("orders-key fallback broken: %+v err=%v", ps, err)
	}
}

func TestParseProfile(t *testing.T) {
	raw := []byte(`{"status":"ok","profile":{"id":12345,"username":"x"}}`)
	id, err := ParseProfile(raw)
	if err != nil || id != 12345 {
		t.Fatalf("id=%d err=%v", id, err)
	}
	if _, err := ParseProfile([]byte(`{"status":"failed"}`)); err == nil {
		t.Fatal("expected failed-status error")
	}
}

func TestCleanParams(t *testing.T) {
	got := CleanParams(map[string]any{
		"symbol":     "BTCIRT",
		"resolution": "60",
		"to":         int64(1700000000),
		"countback":  500,
		"from":       nil,
		"page":       "null",
	})
	if len(got) != 4 {
		t.Fatalf("expected 4 kept params, got %v", got)
	}
	if got["to"] != "1700000000" || got["countback"] != "500" {
		t.Fatalf("numeric params wrong: %v", got)
	}
	if _, ok := got["from"]; ok {
		t.Fatal("nil param must be dropped")
	}
	if _, ok := got["page"]; ok {
		t.Fatal(`"null" param must be dropped`)
	}
}
