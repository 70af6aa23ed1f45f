package app

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	domainagg "github.com/kestrelpay/banking-backend/internal/domain/aggregates"
	"github.com/kestrelpay/banking-backend/internal/domain/banking"
	"github.com/kestrelpay/banking-backend/internal/platform/dbctx"
	"github.com/kestrelpay/banking-backend/internal/platform/logger"
	"github.com/kestrelpay/banking-backend/internal/types"
)

type handlers struct {
	log    *logger.Logger
	ledger domainagg.LedgerAggregate
	repos  Repos
}

func newHandlers(a *App) *handlers {
	return &handlers{
		log:    a.Log.With("component", "handlers"),
		ledger: a.Ledger,
		repos:  a.Repos,
	}
}

type moneyBody struct {
	Amount   int64  `json:"amount" binding:"required"`
	Currency string `json:"currency" binding:"required,len=3"`
}

func (m moneyBody) toMoney() banking.Money {
	return banking.NewMoney(m.Amount, banking.Currency(m.Currency))
}

type moneyView struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

func viewOf(m banking.Money) moneyView {
	return moneyView{Amount: m.Amount, Currency: string(m.Currency)}
}

type openAccountRequest struct {
	CustomerID     string    `json:"customer_id" binding:"required,uuid"`
	AccountNumber  string    `json:"account_number" binding:"required"`
	AccountType    string    `json:"account_type" binding:"required"`
	InitialDeposit moneyBody `json:"initial_deposit" binding:"required"`
}

func (h *handlers) openAccount(c *gin.Context) {
	var req openAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	customerID, err := uuid.Parse(req.CustomerID)
	if err != nil {
		badRequest(c, err)
		return
	}
	out, err := h.ledger.OpenAccount(c.Request.Context(), domainagg.OpenAccountInput{
		CustomerID:     customerID,
		AccountNumber:  req.AccountNumber,
		AccountType:    banking.AccountType(req.AccountType),
		InitialDeposit: req.InitialDeposit.toMoney(),
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"account_id":     out.AccountID,
		"account_number": out.AccountNumber,
		"balance":        viewOf(out.Balance),
	})
}

type movementRequest struct {
	Amount      moneyBody `json:"amount" binding:"required"`
	Description string    `json:"description"`
}

func (h *handlers) deposit(c *gin.Context) {
	var req movementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	out, err := h.ledger.Deposit(c.Request.Context(), domainagg.DepositInput{
		AccountNumber: c.Param("number"),
		Amount:        req.Amount.toMoney(),
		Description:   req.Description,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"transaction_id": out.TransactionID,
		"balance":        viewOf(out.Balance),
	})
}

func (h *handlers) withdraw(c *gin.Context) {
	var req movementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	out, err := h.ledger.Withdraw(c.Request.Context(), domainagg.WithdrawInput{
		AccountNumber: c.Param("number"),
		Amount:        req.Amount.toMoney(),
		Description:   req.Description,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"transaction_id": out.TransactionID,
		"balance":        viewOf(out.Balance),
	})
}

type transferRequest struct {
	SourceNumber      string    `json:"source_number" binding:"required"`
	DestinationNumber string    `json:"destination_number" binding:"required"`
	Amount            moneyBody `json:"amount" binding:"required"`
	Reference         string    `json:"reference"`
	Description       string    `json:"description"`
}

func (h *handlers) transfer(c *gin.Context) {
	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	out, err := h.ledger.Transfer(c.Request.Context(), domainagg.TransferInput{
		SourceNumber:      req.SourceNumber,
		DestinationNumber: req.DestinationNumber,
		Amount:            req.Amount.toMoney(),
		Reference:         req.Reference,
		Description:       req.Description,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"source_balance":      viewOf(out.SourceBalance),
		"destination_balance": viewOf(out.DestinationBalance),
	})
}

func (h *handlers) closeAccount(c *gin.Context) {
	out, err := h.ledger.CloseAccount(c.Request.Context(), domainagg.CloseAccountInput{
		AccountNumber: c.Param("number"),
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"account_id": out.AccountID,
		"closed":     out.Closed,
	})
}

type softDeleteRequest struct {
	Actor string `json:"actor" binding:"required"`
}

// softDeleteAccount hides the account record for compliance. Unlike close,
// the balance may be non-zero; the row survives with the actor recorded.
func (h *handlers) softDeleteAccount(c *gin.Context) {
	var req softDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	out, err := h.ledger.SoftDeleteAccount(c.Request.Context(), domainagg.SoftDeleteAccountInput{
		AccountNumber: c.Param("number"),
		Actor:         req.Actor,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"account_id": out.AccountID,
		"deleted":    out.Deleted,
	})
}

func (h *handlers) getAccount(c *gin.Context) {
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	row, err := h.repos.Accounts.GetByNumber(dbc, c.Param("number"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if row == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
		return
	}
	c.JSON(http.StatusOK, accountView(row))
}

func (h *handlers) listTransactions(c *gin.Context) {
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	row, err := h.repos.Accounts.GetByNumber(dbc, c.Param("number"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if row == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
		return
	}
	txs, err := h.repos.Transactions.ListByAccount(dbc, row.ID, intQuery(c, "limit", 100))
	if err != nil {
		h.fail(c, err)
		return
	}
	out := make([]gin.H, 0, len(txs))
	for _, tx := range txs {
		out = append(out, gin.H{
			"id":          tx.ID,
			"type":        tx.Type,
			"amount":      moneyView{Amount: tx.Amount, Currency: tx.Currency},
			"description": tx.Description,
			"reference":   tx.Reference,
			"created_at":  tx.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, gin.H{"transactions": out})
}

// outboxBacklog exposes unprocessed rows, including ones past the retry
// ceiling, so an operator can see what is stuck and why.
func (h *handlers) outboxBacklog(c *gin.Context) {
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	rows, err := h.repos.Outbox.ListBacklog(dbc, intQuery(c, "limit", 100))
	if err != nil {
		h.fail(c, err)
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		entry := gin.H{
			"id":          row.ID,
			"event_type":  row.EventType,
			"occurred_at": row.OccurredAt.UTC().Format(time.RFC3339),
			"retry_count": row.RetryCount,
		}
		if row.LastError != nil {
			entry["last_error"] = *row.LastError
		}
		out = append(out, entry)
	}
	c.JSON(http.StatusOK, gin.H{"backlog": out})
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func accountView(row *types.Account) gin.H {
	return gin.H{
		"id":             row.ID,
		"customer_id":    row.CustomerID,
		"account_number": row.AccountNumber,
		"account_type":   row.AccountType,
		"balance":        moneyView{Amount: row.BalanceAmount, Currency: row.Currency},
		"active":         row.Active,
		"version":        row.Version,
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func (h *handlers) fail(c *gin.Context, err error) {
	status := statusForCode(domainagg.CodeOf(err))
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{
		"error": err.Error(),
		"code":  string(domainagg.CodeOf(err)),
	})
}

func statusForCode(code domainagg.ErrorCode) int {
	switch code {
	case domainagg.CodeValidation:
		return http.StatusBadRequest
	case domainagg.CodeNotFound:
		return http.StatusNotFound
	case domainagg.CodeConflict:
		return http.StatusConflict
	case domainagg.CodeInvariantViolation, domainagg.CodePreconditionFailed:
		return http.StatusUnprocessableEntity
	case domainagg.CodeRetryable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func intQuery(c *gin.Context, key string, fallback int) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
