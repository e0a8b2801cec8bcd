package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"github.com/simonvc/ledgerbook/internal/balance"
	"github.com/simonvc/ledgerbook/internal/budget"
	"github.com/simonvc/ledgerbook/internal/ledger"
	"github.com/simonvc/ledgerbook/internal/reconcile"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server error (%d): %s", e.StatusCode, e.Message)
}

// Accounts

func (c *Client) CreateAccount(ctx context.Context, acct *ledger.Account) (*ledger.Account, error) {
	body := map[string]any{
		"id":        acct.ID,
		"name":      acct.Name,
		"parent_id": acct.ParentID,
		"type":      acct.Type,
		"is_group":  acct.IsGroup,
		"currency":  acct.Currency,
		"is_active": acct.IsActive,
	}
	var result ledger.Account
	if err := c.post(ctx, "/api/v1/accounts", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

type AccountQuery struct {
	Type       string
	Class      string
	ParentID   string
	ActiveOnly bool
}

func (c *Client) ListAccounts(ctx context.Context, q AccountQuery) ([]ledger.Account, error) {
	params := url.Values{}
	if q.Type != "" {
		params.Set("type", q.Type)
	}
	if q.Class != "" {
		params.Set("class", q.Class)
	}
	if q.ParentID != "" {
		params.Set("parent_id", q.ParentID)
	}
	if q.ActiveOnly {
		params.Set("active", "true")
	}
	var result []ledger.Account
	if err := c.get(ctx, "/api/v1/accounts?"+params.Encode(), &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) GetAccount(ctx context.Context, id string) (*ledger.Account, error) {
	var result ledger.Account
	if err := c.get(ctx, "/api/v1/accounts/"+url.PathEscape(id), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// AccountPatch mirrors the server's partial update body.
type AccountPatch struct {
	Name     *string `json:"name,omitempty"`
	ParentID *string `json:"parent_id,omitempty"`
	Currency *string `json:"currency,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
}

func (c *Client) UpdateAccount(ctx context.Context, id string, patch AccountPatch) (*ledger.Account, error) {
	var result ledger.Account
	if err := c.patch(ctx, "/api/v1/accounts/"+url.PathEscape(id), patch, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) SeedChart(ctx context.Context) (int, error) {
	var result struct {
		Added int `json:"added"`
	}
	if err := c.post(ctx, "/api/v1/accounts/seed", struct{}{}, &result); err != nil {
		return 0, err
	}
	return result.Added, nil
}

type BalanceResponse struct {
	balance.Result
	Currency  string `json:"currency"`
	Formatted string `json:"formatted"`
}

// GetAccountBalance asks for the balance at an instant; a zero at means now.
func (c *Client) GetAccountBalance(ctx context.Context, id string, at time.Time) (*BalanceResponse, error) {
	path := "/api/v1/accounts/" + url.PathEscape(id) + "/balance"
	if !at.IsZero() {
		path += "?at=" + url.QueryEscape(at.Format(time.RFC3339Nano))
	}
	var result BalanceResponse
	if err := c.get(ctx, path, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

type OpeningResponse struct {
	Transaction *ledger.Transaction `json:"transaction"`
	Calibration *ledger.Calibration `json:"calibration"`
}

func (c *Client) CreateOpening(ctx context.Context, id string, bal decimal.Decimal, at time.Time) (*OpeningResponse, error) {
	body := map[string]any{"balance": bal, "date": at}
	var result OpeningResponse
	if err := c.post(ctx, "/api/v1/accounts/"+url.PathEscape(id)+"/opening", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Transactions

func (c *Client) CreateTransaction(ctx context.Context, txn *ledger.Transaction) (*ledger.Transaction, error) {
	body := map[string]any{
		"from_account_id": txn.FromAccountID,
		"to_account_id":   txn.ToAccountID,
		"amount":          txn.Amount,
		"from_amount":     txn.FromAmount,
		"to_amount":       txn.ToAmount,
		"date":            txn.Date,
		"nature":          txn.Nature,
		"description":     txn.Description,
	}
	var result ledger.Transaction
	if err := c.post(ctx, "/api/v1/transactions", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) ListTransactions(ctx context.Context, accountID string, limit int) ([]ledger.Transaction, error) {
	params := url.Values{}
	if accountID != "" {
		params.Set("account_id", accountID)
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	var result []ledger.Transaction
	if err := c.get(ctx, "/api/v1/transactions?"+params.Encode(), &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) GetTransaction(ctx context.Context, id string) (*ledger.Transaction, error) {
	var result ledger.Transaction
	if err := c.get(ctx, "/api/v1/transactions/"+url.PathEscape(id), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) DeleteTransaction(ctx context.Context, id string) error {
	return c.del(ctx, "/api/v1/transactions/"+url.PathEscape(id))
}

// Calibrations and reconciliation

type CalibrationResponse struct {
	Calibration    *ledger.Calibration `json:"calibration"`
	Reconciliation *reconcile.Result   `json:"reconciliation,omitempty"`
}

func (c *Client) CreateCalibration(ctx context.Context, cal *ledger.Calibration, reconcileAfter bool) (*CalibrationResponse, error) {
	body := map[string]any{"balance": cal.Balance, "date": cal.Date, "source": cal.Source}
	path := "/api/v1/accounts/" + url.PathEscape(cal.AccountID) + "/calibrations?reconcile=" + strconv.FormatBool(reconcileAfter)
	var result CalibrationResponse
	if err := c.post(ctx, path, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) ListCalibrations(ctx context.Context, accountID string) ([]ledger.Calibration, error) {
	var result []ledger.Calibration
	if err := c.get(ctx, "/api/v1/accounts/"+url.PathEscape(accountID)+"/calibrations", &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) DeleteCalibration(ctx context.Context, id string) error {
	return c.del(ctx, "/api/v1/calibrations/"+url.PathEscape(id))
}

func (c *Client) CheckAccount(ctx context.Context, accountID string, rng ledger.TimeRange) (*reconcile.Result, error) {
	body := map[string]any{"account_id": accountID}
	addRange(body, rng)
	var result reconcile.Result
	if err := c.post(ctx, "/api/v1/reconciliation/check", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) CheckBatch(ctx context.Context, accountIDs []string, rng ledger.TimeRange) (*reconcile.BatchResult, error) {
	body := map[string]any{"account_ids": accountIDs}
	addRange(body, rng)
	var result reconcile.BatchResult
	if err := c.post(ctx, "/api/v1/reconciliation/batch", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func addRange(body map[string]any, rng ledger.TimeRange) {
	if !rng.Start.IsZero() {
		body["start"] = rng.Start
	}
	if !rng.End.IsZero() {
		body["end"] = rng.End
	}
}

func (c *Client) ListIssues(ctx context.Context, accountID, status string) ([]ledger.ReconciliationIssue, error) {
	params := url.Values{}
	if accountID != "" {
		params.Set("account_id", accountID)
	}
	if status != "" {
		params.Set("status", status)
	}
	var result []ledger.ReconciliationIssue
	if err := c.get(ctx, "/api/v1/reconciliation/issues?"+params.Encode(), &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) SetIssueStatus(ctx context.Context, id string, status ledger.IssueStatus) (*ledger.ReconciliationIssue, error) {
	var result ledger.ReconciliationIssue
	if err := c.patch(ctx, "/api/v1/reconciliation/issues/"+url.PathEscape(id), map[string]any{"status": status}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Rates

func (c *Client) SetRate(ctx context.Context, from, to string, rate decimal.Decimal) (*ledger.ExchangeRate, error) {
	body := ledger.ExchangeRate{From: from, To: to, Rate: rate}
	var result ledger.ExchangeRate
	if err := c.put(ctx, "/api/v1/rates", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) ListRates(ctx context.Context) ([]ledger.ExchangeRate, error) {
	var result []ledger.ExchangeRate
	if err := c.get(ctx, "/api/v1/rates", &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Budgets

type BudgetResponse struct {
	Plan    *ledger.BudgetPlan          `json:"plan"`
	Periods []ledger.BudgetPeriodRecord `json:"periods"`
}

func (c *Client) CreateBudget(ctx context.Context, plan *ledger.BudgetPlan) (*BudgetResponse, error) {
	body := map[string]any{
		"name":                  plan.Name,
		"plan_type":             plan.PlanType,
		"category_account_id":   plan.CategoryAccountID,
		"included_category_ids": plan.IncludedCategoryIDs,
		"period":                plan.Period,
		"hard_limit":            plan.HardLimit,
		"soft_limit":            plan.SoftLimit,
		"limit_currency":        plan.LimitCurrency,
		"account_filter_mode":   plan.FilterMode,
		"account_filter_ids":    plan.FilterAccountIDs,
		"start_date":            plan.StartDate,
	}
	var result BudgetResponse
	if err := c.post(ctx, "/api/v1/budgets", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) ListBudgets(ctx context.Context, status string) ([]ledger.BudgetPlan, error) {
	params := url.Values{}
	if status != "" {
		params.Set("status", status)
	}
	var result []ledger.BudgetPlan
	if err := c.get(ctx, "/api/v1/budgets?"+params.Encode(), &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) GetBudget(ctx context.Context, id string) (*ledger.BudgetPlan, error) {
	var result ledger.BudgetPlan
	if err := c.get(ctx, "/api/v1/budgets/"+url.PathEscape(id), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListBudgetPeriods returns the current round, or every round when all is set.
func (c *Client) ListBudgetPeriods(ctx context.Context, id string, all bool) ([]ledger.BudgetPeriodRecord, error) {
	path := "/api/v1/budgets/" + url.PathEscape(id) + "/periods"
	if all {
		path += "?all=true"
	}
	var result []ledger.BudgetPeriodRecord
	if err := c.get(ctx, path, &result); err != nil {
		return nil, err
	}
	return result, nil
}

type SpendResponse struct {
	PlanID   string          `json:"plan_id"`
	Start    civil.Date      `json:"start"`
	End      civil.Date      `json:"end"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

func (c *Client) BudgetSpend(ctx context.Context, id string, start, end civil.Date) (*SpendResponse, error) {
	params := url.Values{}
	if start.IsValid() {
		params.Set("start", start.String())
	}
	if end.IsValid() {
		params.Set("end", end.String())
	}
	var result SpendResponse
	if err := c.get(ctx, "/api/v1/budgets/"+url.PathEscape(id)+"/spend?"+params.Encode(), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) RestartBudget(ctx context.Context, id string, opts budget.RestartOptions) (*BudgetResponse, error) {
	body := map[string]any{}
	if opts.StartDate != nil {
		body["start_date"] = *opts.StartDate
	}
	if opts.HardLimit != nil {
		body["hard_limit"] = *opts.HardLimit
	}
	if opts.SoftLimit != nil {
		body["soft_limit"] = *opts.SoftLimit
	}
	var result BudgetResponse
	if err := c.post(ctx, "/api/v1/budgets/"+url.PathEscape(id)+"/restart", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) PauseBudget(ctx context.Context, id string) (*ledger.BudgetPlan, error) {
	var result ledger.BudgetPlan
	if err := c.post(ctx, "/api/v1/budgets/"+url.PathEscape(id)+"/pause", struct{}{}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) ChangePeriodType(ctx context.Context, id string, pt ledger.PeriodType, start civil.Date) (*BudgetResponse, error) {
	body := map[string]any{"period": pt, "start_date": start}
	var result BudgetResponse
	if err := c.post(ctx, "/api/v1/budgets/"+url.PathEscape(id)+"/period-type", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RefreshBudgets triggers a refresh pass; a zero today lets the server pick.
func (c *Client) RefreshBudgets(ctx context.Context, today civil.Date) (*budget.RefreshResult, error) {
	path := "/api/v1/budgets/refresh"
	if today.IsValid() {
		path += "?today=" + today.String()
	}
	var result budget.RefreshResult
	if err := c.post(ctx, path, struct{}{}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Ping checks if the server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.get(ctx, "/healthz", nil)
}

func (c *Client) get(ctx context.Context, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.doRequest(req, result)
}

func (c *Client) del(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.doRequest(req, nil)
}

func (c *Client) patch(ctx context.Context, path string, body any, result any) error {
	return c.send(ctx, http.MethodPatch, path, body, result)
}

func (c *Client) post(ctx context.Context, path string, body any, result any) error {
	return c.send(ctx, http.MethodPost, path, body, result)
}

func (c *Client) put(ctx context.Context, path string, body any, result any) error {
	return c.send(ctx, http.MethodPut, path, body, result)
}

func (c *Client) send(ctx context.Context, method, path string, body any, result any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.doRequest(req, result)
}

type apiError struct {
	Error string `json:"error"`
}

func (c *Client) doRequest(req *http.Request, result any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.Unmarshal(bodyBytes, &apiErr) == nil && apiErr.Error != "" {
			return &APIError{StatusCode: resp.StatusCode, Message: apiErr.Error}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: string(bodyBytes)}
	}

	if result != nil && len(bodyBytes) > 0 {
		if err := json.Unmarshal(bodyBytes, result); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
