package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/boddenberg/pf-balances-bfa/internal/domain"
	"github.com/boddenberg/pf-balances-bfa/internal/infra/observability"
	"github.com/boddenberg/pf-balances-bfa/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ============================================================
// Balances: /v1/users/{userId}/...
// ============================================================

type accountBalanceResponse struct {
	AccountID string          `json:"account_id"`
	Balance   decimal.Decimal `json:"balance"`
	Currency  string          `json:"currency"`
}

func userBalancesHandler(svc *service.BalanceService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/users/{userId}/balances")
		defer span.End()

		userID := chi.URLParam(r, "userId")
		traceUser(span, r, userID)

		base, err := svc.ResolveBase(r.URL.Query().Get("base"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		report, err := svc.UserBalances(ctx, userID, base)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

// traceUser tags the span with the path user and, when auth is on, the
// token subject that was let through.
func traceUser(span trace.Span, r *http.Request, userID string) {
	span.SetAttributes(attribute.String("user.id", userID))
	if subject := UserIDFromContext(r.Context()); subject != "" {
		span.SetAttributes(attribute.String("auth.subject", subject))
	}
}

// accountFigureHandler serves the single-figure account endpoints.
// pick selects balance, opening or closing from the account's run result.
func accountFigureHandler(svc *service.BalanceService, route string, pick func(domain.AccountBalance) decimal.Decimal, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET "+route)
		defer span.End()

		userID := chi.URLParam(r, "userId")
		accountID := chi.URLParam(r, "accountId")
		traceUser(span, r, userID)
		span.SetAttributes(attribute.String("account.id", accountID))

		base, err := svc.ResolveBase(r.URL.Query().Get("base"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		b, err := svc.UserAccountBalance(ctx, userID, accountID, base)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, accountBalanceResponse{
			AccountID: accountID,
			Balance:   pick(b),
			Currency:  base,
		})
	}
}

func netWorthHandler(svc *service.BalanceService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/users/{userId}/net-worth")
		defer span.End()

		userID := chi.URLParam(r, "userId")
		traceUser(span, r, userID)

		base, err := svc.ResolveBase(r.URL.Query().Get("base"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		nw, err := svc.UserNetWorth(ctx, userID, base)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, nw)
	}
}

// ============================================================
// Stateless calculation: POST /v1/balances/calculate
// ============================================================

type accountInput struct {
	ID                 string          `json:"id"`
	Name               string          `json:"name"`
	EntityName         string          `json:"entity_name"`
	Category           string          `json:"category"`
	AccountType        string          `json:"account_type"`
	LiabilityKind      string          `json:"liability_kind"`
	OpeningBalance     decimal.Decimal `json:"opening_balance"`
	OpeningBalanceDate string          `json:"opening_balance_date"`
}

type transactionInput struct {
	ID                 string          `json:"id"`
	Date               string          `json:"date"`
	Amount             decimal.Decimal `json:"amount"`
	Currency           string          `json:"currency"`
	AssetAccountID     string          `json:"asset_account_id"`
	LiabilityAccountID string          `json:"liability_account_id"`
}

type calculateRequest struct {
	BaseCurrency string             `json:"base_currency"`
	Accounts     []accountInput     `json:"accounts"`
	Transactions []transactionInput `json:"transactions"`
}

func calculateHandler(svc *service.BalanceService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/balances/calculate")
		defer span.End()

		var req calculateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		base, err := svc.ResolveBase(req.BaseCurrency)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		accounts := make([]domain.Account, 0, len(req.Accounts))
		for i, in := range req.Accounts {
			acct, err := in.toDomain()
			if err != nil {
				handleServiceError(w, &domain.ErrValidation{Field: fmt.Sprintf("accounts[%d]", i), Message: err.Error()}, logger)
				return
			}
			accounts = append(accounts, acct)
		}

		transactions := make([]domain.Transaction, 0, len(req.Transactions))
		for _, in := range req.Transactions {
			transactions = append(transactions, in.toDomain())
		}

		writeJSON(w, http.StatusOK, svc.Calculate(ctx, accounts, transactions, base))
	}
}

// toDomain maps a request account. A malformed opening date is kept as
// missing so the engine reports the account as skipped.
func (in accountInput) toDomain() (domain.Account, error) {
	day, _ := domain.ParseDay(in.OpeningBalanceDate)

	switch domain.AccountType(in.AccountType) {
	case domain.AccountTypeAsset:
		acct := domain.NewAsset(in.ID, in.Name, in.EntityName, in.OpeningBalance, day)
		acct.Category = in.Category
		return acct, nil
	case domain.AccountTypeLiability:
		kind, _ := domain.ParseLiabilityKind(in.LiabilityKind)
		acct := domain.NewLiability(in.ID, in.Name, in.EntityName, kind, in.OpeningBalance, day)
		acct.Category = in.Category
		return acct, nil
	default:
		return domain.Account{}, fmt.Errorf("account_type must be asset or liability, got %q", in.AccountType)
	}
}

// toDomain maps a request transaction. An unparseable date leaves it zero,
// which excludes the transaction from every account.
func (in transactionInput) toDomain() domain.Transaction {
	day, _ := domain.ParseDay(in.Date)
	return domain.Transaction{
		ID:                 in.ID,
		Date:               day,
		Amount:             in.Amount,
		Currency:           domain.NormalizeCurrency(in.Currency),
		AssetAccountID:     in.AssetAccountID,
		LiabilityAccountID: in.LiabilityAccountID,
	}
}

// ============================================================
// Rates
// ============================================================

func ratesHandler(svc *service.BalanceService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/rates")
		defer span.End()

		base, err := svc.ResolveBase(r.URL.Query().Get("base"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, svc.Rates(ctx, base))
	}
}

func rateMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetRateSnapshot())
	}
}
