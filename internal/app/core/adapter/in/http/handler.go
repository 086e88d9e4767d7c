package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JoeShih716/go-transfer-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-transfer-ledger/internal/app/core/usecase"
)

// DefaultRetryAfter contention 時 Retry-After 的秒數下限
const DefaultRetryAfter = time.Second

// Handler 把帳戶與轉帳用例掛到 fiber 路由
type Handler struct {
	core       *usecase.CoreUseCase
	logger     *zap.Logger
	retryAfter time.Duration
}

// HandlerOption 定義 Handler 的配置選項函數
type HandlerOption func(*Handler)

func WithLogger(logger *zap.Logger) HandlerOption {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

func WithRetryAfter(d time.Duration) HandlerOption {
	return func(h *Handler) {
		if d > 0 {
			h.retryAfter = d
		}
	}
}

func NewHandler(core *usecase.CoreUseCase, opts ...HandlerOption) *Handler {
	h := &Handler{
		core:       core,
		logger:     zap.NewNop(),
		retryAfter: DefaultRetryAfter,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// NewApp 建立 fiber.App 並註冊所有路由
func NewApp(h *Handler) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "transfer-ledger",
		DisableStartupMessage: true,
		ErrorHandler:          h.errorHandler,
	})
	h.Register(app)
	return app
}

// Register 註冊路由
func (h *Handler) Register(r fiber.Router) {
	r.Get("/health", h.health)

	r.Get("/accounts", h.listAccounts)
	r.Get("/accounts/:name", h.getAccount)
	r.Post("/accounts", h.createAccount)
	r.Put("/accounts", h.renameAccount)
	r.Delete("/accounts/:name", h.deleteAccount)

	r.Post("/transactions", h.transfer)
	r.Get("/transactions", h.queryTransactions)
	r.Put("/transactions", h.unsupported("Put"))
	r.Delete("/transactions", h.unsupported("Delete"))
}

// jsonAmount 金額欄位同時接受 JSON 字串與數字，null 視為未填
type jsonAmount string

func (a *jsonAmount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*a = ""
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = jsonAmount(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("amount must be a string or number: %w", err)
	}
	*a = jsonAmount(n.String())
	return nil
}

type createAccountRequest struct {
	AccountName string     `json:"accountName"`
	Balance     jsonAmount `json:"balance"`
}

type renameAccountRequest struct {
	AccountName    string `json:"accountName"`
	NewAccountName string `json:"newAccountName"`
}

type transferRequest struct {
	RefID           string     `json:"refId"`
	FromAccountName string     `json:"fromAccountName"`
	ToAccountName   string     `json:"toAccountName"`
	Amount          jsonAmount `json:"amount"`
}

func (h *Handler) health(c *fiber.Ctx) error {
	return OK(c, Response{Message: "ok"})
}

func (h *Handler) getAccount(c *fiber.Ctx) error {
	name := c.Params("name")
	acc, err := h.core.Accounts.Get(c.UserContext(), name)
	if err != nil {
		return h.fail(c, err, accountMessage(err, accountMessages{
			notFound: fmt.Sprintf("Unable to find an account matching the name %s", name),
			invalid:  "An invalid Account Name was received.",
			failed:   fmt.Sprintf("Unable to find an account matching the name %s", name),
		}))
	}
	out := toAccount(acc)
	return OK(c, Response{
		Message: fmt.Sprintf("Successfully retrieved account %s", acc.Name),
		Account: &out,
	})
}

func (h *Handler) listAccounts(c *fiber.Ctx) error {
	accounts, err := h.core.Accounts.List(c.UserContext())
	if err != nil {
		return h.fail(c, err, "Unable to list accounts")
	}
	out := make([]Account, 0, len(accounts))
	for _, acc := range accounts {
		out = append(out, toAccount(acc))
	}
	if len(out) == 0 {
		return OK(c, Response{Message: "No accounts found", Accounts: out})
	}
	return OK(c, Response{Accounts: out})
}

func (h *Handler) createAccount(c *fiber.Ctx) error {
	var req createAccountRequest
	if err := c.BodyParser(&req); err != nil {
		return h.fail(c, domain.ErrInvalidAccountName, msgInvalidPayload)
	}
	acc, err := h.core.Accounts.Create(c.UserContext(), req.AccountName, string(req.Balance))
	if err != nil {
		return h.fail(c, err, accountMessage(err, accountMessages{
			exists:  fmt.Sprintf("An account called %s already exists", req.AccountName),
			invalid: "The Account Name and balance received were not valid",
			failed:  fmt.Sprintf("Unable to create account %s", req.AccountName),
		}))
	}
	out := toAccount(acc)
	return Created(c, Response{
		Message: fmt.Sprintf("Successfully created account %s", acc.Name),
		Account: &out,
	})
}

func (h *Handler) renameAccount(c *fiber.Ctx) error {
	var req renameAccountRequest
	if err := c.BodyParser(&req); err != nil {
		return h.fail(c, domain.ErrInvalidAccountName, msgInvalidPayload)
	}
	acc, err := h.core.Accounts.Rename(c.UserContext(), req.AccountName, req.NewAccountName)
	if err != nil {
		return h.fail(c, err, accountMessage(err, accountMessages{
			notFound: fmt.Sprintf("An account called %s could not be found to update", req.AccountName),
			exists:   fmt.Sprintf("An account called %s already exists", req.NewAccountName),
			invalid:  "The Account Name and new Account Name received were not valid",
			failed:   fmt.Sprintf("Unable to update account %s", req.AccountName),
		}))
	}
	out := toAccount(acc)
	return OK(c, Response{
		Message: fmt.Sprintf("Successfully updated account %s", acc.Name),
		Account: &out,
	})
}

func (h *Handler) deleteAccount(c *fiber.Ctx) error {
	name := c.Params("name")
	if err := h.core.Accounts.Delete(c.UserContext(), name); err != nil {
		return h.fail(c, err, accountMessage(err, accountMessages{
			notFound: fmt.Sprintf("No account called %s exists", name),
			invalid:  "An invalid Account Name was received.",
			failed:   fmt.Sprintf("Unable to delete account %s", name),
		}))
	}
	return OK(c, Response{Message: fmt.Sprintf("Successfully deleted an account %s", name)})
}

func (h *Handler) transfer(c *fiber.Ctx) error {
	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return h.fail(c, domain.ErrInvalidAmount, msgInvalidPayload)
	}
	var refID uuid.UUID
	if req.RefID != "" {
		u, err := uuid.Parse(req.RefID)
		if err != nil {
			return h.fail(c, domain.ErrInvalidReference, "invalid refId: "+err.Error())
		}
		refID = u
	}

	tran, err := h.core.Transfers.Transfer(c.UserContext(), domain.TransferRequest{
		RefID:           refID,
		FromAccountName: req.FromAccountName,
		ToAccountName:   req.ToAccountName,
		Amount:          string(req.Amount),
	})
	msg := domain.TransferMessage(err, req.FromAccountName, req.ToAccountName)
	if err != nil {
		return h.fail(c, err, msg)
	}
	return OK(c, Response{
		Message:       msg,
		TransactionID: tran.ID,
		RefID:         tran.RefID.String(),
	})
}

func (h *Handler) queryTransactions(c *fiber.Ctx) error {
	from := c.Query("fromAccountName")
	to := c.Query("toAccountName")
	views, err := h.core.Ledger.Query(c.UserContext(), from, to)
	if err != nil {
		return h.fail(c, err, domain.TransferMessage(err, from, to))
	}
	out := make([]Transaction, 0, len(views))
	for _, v := range views {
		out = append(out, toTransaction(v))
	}
	return OK(c, Response{Message: domain.QueryMessage(len(out)), Transactions: out})
}

// unsupported 帳本只能新增，不能修改或刪除
func (h *Handler) unsupported(op string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.Status(http.StatusMethodNotAllowed).JSON(Response{
			Status:  StatusError,
			Message: op + " operation is not currently supported",
		})
	}
}

func (h *Handler) fail(c *fiber.Ctx, err error, message string) error {
	if !domain.ReasonOf(err).Business() && !domain.ReasonOf(err).Retryable() {
		h.logger.Error("request failed",
			zap.String("method", c.Method()), zap.String("path", c.Path()), zap.Error(err))
	}
	return Fail(c, err, message, h.retryAfter)
}

// errorHandler 處理路由不存在等 fiber 層級錯誤
func (h *Handler) errorHandler(c *fiber.Ctx, err error) error {
	code := http.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= http.StatusInternalServerError {
		h.logger.Error("unhandled error", zap.String("path", c.Path()), zap.Error(err))
	}
	return c.Status(code).JSON(Response{Status: StatusError, Message: err.Error()})
}

const msgInvalidPayload = "The payload was invalid"

// accountMessages 帳戶 CRUD 各種結果的訊息
type accountMessages struct {
	notFound string
	exists   string
	invalid  string
	failed   string
}

func accountMessage(err error, m accountMessages) string {
	switch domain.ReasonOf(err) {
	case domain.ReasonAccountNotFound:
		return m.notFound
	case domain.ReasonAccountExists:
		return m.exists
	case domain.ReasonInvalidName, domain.ReasonInvalidAmount:
		return m.invalid
	default:
		return m.failed
	}
}
