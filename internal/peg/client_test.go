package peg

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/zeralabs/qnoracle/internal/oracle"
)

func TestFetchUSD_PriceInfoPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":{"token_info":{"price_info":{"price":1.23}}}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	usd, ok, err := c.FetchUSD(context.Background(), "MINT_A")
	if err != nil {
		t.Fatal(err)
	}
	if !ok || usd != 1.23 {
		t.Errorf("usd=%v ok=%v, want 1.23/true", usd, ok)
	}
}

func TestFetchUSD_PricePerToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":{"token_info":{"price_info":{"price_per_token":4.56}}}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	usd, ok, err := c.FetchUSD(context.Background(), "MINT_B")
	if err != nil {
		t.Fatal(err)
	}
	if !ok || usd != 4.56 {
		t.Errorf("usd=%v ok=%v, want 4.56/true", usd, ok)
	}
}

func TestFetchUSD_NoPriceField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":{"token_info":{}}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	_, ok, err := c.FetchUSD(context.Background(), "MINT_C")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("expected ok=false when no price field present")
	}
}

func TestFetchUSD_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	_, ok, err := c.FetchUSD(context.Background(), "MINT_D")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("expected ok=false on 5xx")
	}
}

func TestFetchUSD_NoBaseURL(t *testing.T) {
	c := NewClient("", time.Second)
	_, _, err := c.FetchUSD(context.Background(), "MINT_E")
	if !errors.Is(err, oracle.ErrBadConfig) {
		t.Errorf("err = %v, want ErrBadConfig", err)
	}
}
