package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/boddenberg/pf-balances-bfa/internal/domain"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Ledger (implements port.LedgerStore)
// ============================================================

const (
	assetColumns       = "id,name,type,category,value,opening_balance,opening_balance_date,entity:entities(name)"
	liabilityColumns   = "id,name,type,category,amount,opening_balance,opening_balance_date,entity:entities(name)"
	transactionColumns = "id,date,amount,currency,asset_account_id,liability_account_id"
)

// flexID accepts string, numeric and null identifiers.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("invalid id %s: %w", b, err)
	}
	*f = flexID(n.String())
	return nil
}

type entityRef struct {
	Name string `json:"name"`
}

type assetRow struct {
	ID                 flexID              `json:"id"`
	Name               string              `json:"name"`
	Type               string              `json:"type"`
	Category           string              `json:"category"`
	Value              decimal.NullDecimal `json:"value"`
	OpeningBalance     decimal.NullDecimal `json:"opening_balance"`
	OpeningBalanceDate *string             `json:"opening_balance_date"`
	Entity             *entityRef          `json:"entity"`
}

type liabilityRow struct {
	ID                 flexID              `json:"id"`
	Name               string              `json:"name"`
	Type               string              `json:"type"`
	Category           string              `json:"category"`
	Amount             decimal.NullDecimal `json:"amount"`
	OpeningBalance     decimal.NullDecimal `json:"opening_balance"`
	OpeningBalanceDate *string             `json:"opening_balance_date"`
	Entity             *entityRef          `json:"entity"`
}

type transactionRow struct {
	ID                 flexID              `json:"id"`
	Date               string              `json:"date"`
	Amount             decimal.NullDecimal `json:"amount"`
	Currency           *string             `json:"currency"`
	AssetAccountID     flexID              `json:"asset_account_id"`
	LiabilityAccountID flexID              `json:"liability_account_id"`
}

func userFilter(userID string) string {
	return "user_id=eq." + url.QueryEscape(userID)
}

// ListAssets returns the user's asset accounts.
func (c *Client) ListAssets(ctx context.Context, userID string) ([]domain.Account, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListAssets")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	path := fmt.Sprintf("assets?select=%s&%s&order=id.asc", assetColumns, userFilter(userID))
	accounts := []domain.Account{}
	err := c.fetchAll(ctx, "supabase/assets", path, func(body []byte) (int, error) {
		var rows []assetRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return 0, fmt.Errorf("decode assets: %w", err)
		}
		for _, r := range rows {
			accounts = append(accounts, c.mapAsset(r))
		}
		return len(rows), nil
	})
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

// ListLiabilities returns the user's liability accounts.
func (c *Client) ListLiabilities(ctx context.Context, userID string) ([]domain.Account, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListLiabilities")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	path := fmt.Sprintf("liabilities?select=%s&%s&order=id.asc", liabilityColumns, userFilter(userID))
	accounts := []domain.Account{}
	err := c.fetchAll(ctx, "supabase/liabilities", path, func(body []byte) (int, error) {
		var rows []liabilityRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return 0, fmt.Errorf("decode liabilities: %w", err)
		}
		for _, r := range rows {
			accounts = append(accounts, c.mapLiability(r))
		}
		return len(rows), nil
	})
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

// ListTransactions returns every ledger transaction of the user, oldest first.
func (c *Client) ListTransactions(ctx context.Context, userID string) ([]domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListTransactions")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	path := fmt.Sprintf("transactions?select=%s&%s&order=date.asc,id.asc", transactionColumns, userFilter(userID))
	transactions := []domain.Transaction{}
	err := c.fetchAll(ctx, "supabase/transactions", path, func(body []byte) (int, error) {
		var rows []transactionRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return 0, fmt.Errorf("decode transactions: %w", err)
		}
		for _, r := range rows {
			transactions = append(transactions, c.mapTransaction(r))
		}
		return len(rows), nil
	})
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("transactions.count", len(transactions)))
	return transactions, nil
}

// --- row mapping ---

func (c *Client) mapAsset(r assetRow) domain.Account {
	return domain.Account{
		ID:                 string(r.ID),
		Name:               r.Name,
		EntityName:         entityName(r.Entity),
		Category:           r.Category,
		Type:               domain.AccountTypeAsset,
		OpeningBalance:     orZero(r.OpeningBalance),
		OpeningBalanceDate: c.openingDate(string(r.ID), r.OpeningBalanceDate),
		CurrentValue:       orZero(r.Value),
	}
}

func (c *Client) mapLiability(r liabilityRow) domain.Account {
	kind, ok := domain.ParseLiabilityKind(r.Type)
	if !ok {
		c.logger.Warn("supabase: unknown liability type, treating as other",
			zap.String("account_id", string(r.ID)),
			zap.String("type", r.Type),
		)
	}
	return domain.Account{
		ID:                 string(r.ID),
		Name:               r.Name,
		EntityName:         entityName(r.Entity),
		Category:           r.Category,
		Type:               domain.AccountTypeLiability,
		LiabilityKind:      kind,
		OpeningBalance:     orZero(r.OpeningBalance),
		OpeningBalanceDate: c.openingDate(string(r.ID), r.OpeningBalanceDate),
		CurrentValue:       orZero(r.Amount),
	}
}

func (c *Client) mapTransaction(r transactionRow) domain.Transaction {
	t := domain.Transaction{
		ID:                 string(r.ID),
		Amount:             orZero(r.Amount),
		AssetAccountID:     string(r.AssetAccountID),
		LiabilityAccountID: string(r.LiabilityAccountID),
	}
	if r.Currency != nil {
		t.Currency = domain.NormalizeCurrency(*r.Currency)
	}
	if day, err := domain.ParseDay(r.Date); err == nil {
		t.Date = day
	} else {
		c.logger.Warn("supabase: transaction with unparseable date",
			zap.String("transaction_id", string(r.ID)),
			zap.String("date", r.Date),
		)
	}
	return t
}

// openingDate parses the stored opening balance date. A zero time marks the
// account as unusable for the balance run.
func (c *Client) openingDate(accountID string, raw *string) time.Time {
	if raw == nil {
		return time.Time{}
	}
	day, err := domain.ParseDay(*raw)
	if err != nil {
		c.logger.Warn("supabase: malformed opening balance date",
			zap.String("account_id", accountID),
			zap.String("opening_balance_date", *raw),
		)
		return time.Time{}
	}
	return day
}

func entityName(e *entityRef) string {
	if e == nil {
		return ""
	}
	return e.Name
}

func orZero(n decimal.NullDecimal) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	return n.Decimal
}
