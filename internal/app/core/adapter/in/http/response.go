package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/JoeShih716/go-transfer-ledger/internal/app/core/domain"
)

const (
	StatusSuccess = "SUCCESS"
	StatusError   = "ERROR"
)

// Response 所有端點共用的回應格式
type Response struct {
	Status        string        `json:"status"`
	Message       string        `json:"message,omitempty"`
	Reason        string        `json:"reason,omitempty"`
	TransactionID int64         `json:"transactionId,omitempty"`
	RefID         string        `json:"refId,omitempty"`
	Account       *Account      `json:"account,omitempty"`
	Accounts      []Account     `json:"accounts,omitempty"`
	Transactions  []Transaction `json:"transactions,omitempty"`
}

type Account struct {
	AccountID   int64  `json:"accountId"`
	AccountName string `json:"accountName"`
	Balance     string `json:"balance"`
}

type Transaction struct {
	TransactionID   int64  `json:"transactionId"`
	RefID           string `json:"refId"`
	FromAccountName string `json:"fromAccountName"`
	ToAccountName   string `json:"toAccountName"`
	Amount          string `json:"amount"`
	Timestamp       string `json:"timestamp"`
}

func toAccount(acc *domain.Account) Account {
	return Account{
		AccountID:   acc.ID,
		AccountName: acc.Name,
		Balance:     domain.FormatAmount(acc.Balance),
	}
}

func toTransaction(v domain.TransactionView) Transaction {
	return Transaction{
		TransactionID:   v.ID,
		RefID:           v.RefID.String(),
		FromAccountName: v.FromAccountName,
		ToAccountName:   v.ToAccountName,
		Amount:          domain.FormatAmount(v.Amount),
		Timestamp:       v.Timestamp.UTC().Format(time.RFC3339Nano),
	}
}

// OK 回傳 200 與 SUCCESS
func OK(c *fiber.Ctx, body Response) error {
	body.Status = StatusSuccess
	return c.Status(http.StatusOK).JSON(body)
}

// Created 回傳 201 與 SUCCESS
func Created(c *fiber.Ctx, body Response) error {
	body.Status = StatusSuccess
	return c.Status(http.StatusCreated).JSON(body)
}

// Fail 依錯誤原因決定狀態碼，contention 另外帶 Retry-After
func Fail(c *fiber.Ctx, err error, message string, retryAfter time.Duration) error {
	reason := domain.ReasonOf(err)
	code := StatusCodeOf(reason)
	if reason.Retryable() {
		secs := int(retryAfter.Round(time.Second) / time.Second)
		if secs < 1 {
			secs = 1
		}
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(secs))
	}
	return c.Status(code).JSON(Response{
		Status:  StatusError,
		Message: message,
		Reason:  string(reason),
	})
}

// StatusCodeOf 拒絕原因對應的 HTTP 狀態碼
func StatusCodeOf(reason domain.Reason) int {
	switch reason {
	case domain.ReasonAccountNotFound:
		return http.StatusNotFound
	case domain.ReasonInsufficientFunds, domain.ReasonAccountExists:
		return http.StatusConflict
	case domain.ReasonSameAccount, domain.ReasonInvalidAmount, domain.ReasonInvalidName, domain.ReasonInvalidReference:
		return http.StatusBadRequest
	case domain.ReasonContention:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
