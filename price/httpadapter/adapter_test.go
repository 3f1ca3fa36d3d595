package httpadapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/nhbchain/riskengine/price"
)

func TestGetPriceParsesSuccessfulQuote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"price":"1234.56","confidence":0.9}`))
	}))
	defer server.Close()

	adapter := New("test-source", server.URL+"/{symbol}", "", 0, 0)
	resp, err := adapter.GetPrice(context.Background(), price.Token{Symbol: "ETH"})
	if err != nil {
		t.Fatalf("get price: %v", err)
	}
	if !resp.Success {
		t.Fatalf("expected success response, got failure: %v", resp.Err)
	}
	if !resp.Price.Equal(decimal.RequireFromString("1234.56")) {
		t.Fatalf("unexpected price: %v", resp.Price)
	}
}

func TestGetPriceReportsFailureOnBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	adapter := New("test-source", server.URL, "", 0, 0)
	resp, err := adapter.GetPrice(context.Background(), price.Token{Symbol: "ETH"})
	if err != nil {
		t.Fatalf("expected GetPrice to never return an error, got %v", err)
	}
	if resp.Success {
		t.Fatalf("expected failure response for a 500 status")
	}
}

func TestGetPriceRejectsNonPositivePrice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"price":"0","confidence":0.9}`))
	}))
	defer server.Close()

	adapter := New("test-source", server.URL, "", 0, 0)
	resp, err := adapter.GetPrice(context.Background(), price.Token{Symbol: "ETH"})
	if err != nil {
		t.Fatalf("get price: %v", err)
	}
	if resp.Success {
		t.Fatalf("expected failure response for a non-positive price")
	}
}
