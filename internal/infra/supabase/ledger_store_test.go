package supabase_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/boddenberg/pf-balances-bfa/internal/domain"
	"github.com/boddenberg/pf-balances-bfa/internal/infra/resilience"
	"github.com/boddenberg/pf-balances-bfa/internal/infra/supabase"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func newClient(url string, pageSize int) *supabase.Client {
	cb := resilience.NewCircuitBreaker("supabase-test", resilience.BreakerSettings{MinRequests: 100}, zap.NewNop())
	cfg := resilience.Config{MaxRetries: 2, InitialBackoff: time.Millisecond}
	return supabase.NewClient(&http.Client{Timeout: 2 * time.Second}, url, "anon", "service", pageSize, cb, cfg, zap.NewNop())
}

func TestListAssets_MapsRows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/v1/assets" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("user_id"); got != "eq.user-1" {
			t.Errorf("expected user filter, got %q", got)
		}
		if r.Header.Get("apikey") != "anon" || r.Header.Get("Authorization") != "Bearer service" {
			t.Error("missing supabase auth headers")
		}
		fmt.Fprint(w, `[
			{"id":"a1","name":"Checking","type":"bank","category":"cash","value":1200.5,
			 "opening_balance":"1000.10","opening_balance_date":"2024-01-01","entity":{"name":"Household"}},
			{"id":7,"name":"Broken","opening_balance":5,"opening_balance_date":"not-a-date","entity":null}
		]`)
	}))
	defer srv.Close()

	accounts, err := newClient(srv.URL, 0).ListAssets(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(accounts) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(accounts))
	}

	a := accounts[0]
	if a.Type != domain.AccountTypeAsset || a.EntityName != "Household" {
		t.Errorf("unexpected mapping: %+v", a)
	}
	if !a.OpeningBalance.Equal(decimal.RequireFromString("1000.10")) {
		t.Errorf("unexpected opening balance %s", a.OpeningBalance)
	}
	if !a.OpeningBalanceDate.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected opening date %s", a.OpeningBalanceDate)
	}

	broken := accounts[1]
	if broken.ID != "7" {
		t.Errorf("expected numeric id as string, got %q", broken.ID)
	}
	if broken.HasOpeningDate() {
		t.Error("malformed date must map to a missing opening date")
	}
}

func TestListLiabilities_ParsesKinds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"id":"c1","name":"Visa","type":"credit","amount":575,"opening_balance":500,"opening_balance_date":"2024-01-01T00:00:00Z"},
			{"id":"m1","name":"Home","type":"Mortgage","opening_balance":300000,"opening_balance_date":"2024-01-01"},
			{"id":"x1","name":"IOU","type":"family","opening_balance":50,"opening_balance_date":"2024-01-01"}
		]`)
	}))
	defer srv.Close()

	accounts, err := newClient(srv.URL, 0).ListLiabilities(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	want := []domain.LiabilityKind{domain.LiabilityCredit, domain.LiabilityMortgage, domain.LiabilityOther}
	for i, k := range want {
		if accounts[i].LiabilityKind != k {
			t.Errorf("account %d: expected %s, got %s", i, k, accounts[i].LiabilityKind)
		}
		if accounts[i].Type != domain.AccountTypeLiability {
			t.Errorf("account %d: expected liability type", i)
		}
	}
}

func TestListTransactions_PagesAndMapsRefs(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		switch r.URL.Query().Get("offset") {
		case "0":
			fmt.Fprint(w, `[
				{"id":"t1","date":"2024-02-01","amount":150,"currency":"aud","asset_account_id":"a1","liability_account_id":null},
				{"id":"t2","date":"2024-02-02","amount":-20,"currency":null,"asset_account_id":null,"liability_account_id":"c1"}
			]`)
		case "2":
			fmt.Fprint(w, `[{"id":"t3","date":"garbage","amount":1,"asset_account_id":null,"liability_account_id":null}]`)
		default:
			t.Errorf("unexpected offset %q", r.URL.Query().Get("offset"))
			fmt.Fprint(w, `[]`)
		}
	}))
	defer srv.Close()

	txs, err := newClient(srv.URL, 2).ListTransactions(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(txs) != 3 {
		t.Fatalf("expected 3 transactions, got %d", len(txs))
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Errorf("expected 2 page requests, got %d", calls)
	}

	if txs[0].Currency != "AUD" || txs[0].AssetAccountID != "a1" || txs[0].LiabilityAccountID != "" {
		t.Errorf("unexpected first transaction: %+v", txs[0])
	}
	if txs[1].Currency != "" || txs[1].LiabilityAccountID != "c1" {
		t.Errorf("unexpected second transaction: %+v", txs[1])
	}
	if !txs[2].Date.IsZero() {
		t.Error("unparseable date must stay zero")
	}
	if _, _, ok := txs[2].AccountRef(); ok {
		t.Error("unassigned transaction must have no account ref")
	}
}

func TestListAssets_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `[]`)
	}))
	defer srv.Close()

	accounts, err := newClient(srv.URL, 0).ListAssets(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("expected success after retry, got %v", err)
	}
	if len(accounts) != 0 {
		t.Errorf("expected no accounts, got %d", len(accounts))
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}

func TestListAssets_ClientErrorIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"message":"invalid JWT"}`)
	}))
	defer srv.Close()

	_, err := newClient(srv.URL, 0).ListAssets(context.Background(), "user-1")
	var ext *domain.ErrExternalService
	if !errors.As(err, &ext) {
		t.Fatalf("expected ErrExternalService, got %v", err)
	}
	if !strings.Contains(err.Error(), "401") {
		t.Errorf("expected status in error, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("expected a single call, got %d", calls)
	}
}
