package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JoeShih716/go-transfer-ledger/internal/app/core/adapter/out/memory"
	"github.com/JoeShih716/go-transfer-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-transfer-ledger/internal/app/core/usecase"
)

// atomicFailStore 所有 Atomic 呼叫都回傳 err
type atomicFailStore struct {
	usecase.Store
	err error
}

func (s *atomicFailStore) Atomic(context.Context, []int64, func(usecase.Tx) error) error {
	return s.err
}

func newStore(t *testing.T) usecase.Store {
	t.Helper()
	store, err := memory.NewMutexStore(nil)
	require.NoError(t, err)
	return store
}

func newApp(t *testing.T, store usecase.Store) *fiber.App {
	t.Helper()
	core := usecase.NewCoreUseCase(store, nil, usecase.WithRetry(1, 0))
	return NewApp(NewHandler(core))
}

func do(t *testing.T, app *fiber.App, method, target, body string) (*http.Response, Response) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer func() { assert.NoError(t, resp.Body.Close()) }()

	var out Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func seed(t *testing.T, app *fiber.App, name, balance string) {
	t.Helper()
	resp, out := do(t, app, http.MethodPost, "/accounts", `{"accountName":"`+name+`","balance":"`+balance+`"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, out.Message)
}

func TestHandler_Health(t *testing.T) {
	app := newApp(t, newStore(t))
	resp, out := do(t, app, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, StatusSuccess, out.Status)
}

func TestHandler_AccountLifecycle(t *testing.T) {
	app := newApp(t, newStore(t))

	resp, out := do(t, app, http.MethodPost, "/accounts", `{"accountName":"TestAccount1","balance":"100.009"}`)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, StatusSuccess, out.Status)
	assert.Equal(t, "Successfully created account TestAccount1", out.Message)
	require.NotNil(t, out.Account)
	assert.Equal(t, "100.00", out.Account.Balance)

	resp, out = do(t, app, http.MethodPost, "/accounts", `{"accountName":"TestAccount1","balance":"1"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, StatusError, out.Status)
	assert.Equal(t, "An account called TestAccount1 already exists", out.Message)

	resp, out = do(t, app, http.MethodPost, "/accounts", `{"accountName":"TestAccount2","balance":"-1"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "The Account Name and balance received were not valid", out.Message)

	resp, out = do(t, app, http.MethodGet, "/accounts/TestAccount1", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Successfully retrieved account TestAccount1", out.Message)

	resp, out = do(t, app, http.MethodPut, "/accounts", `{"accountName":"TestAccount1","newAccountName":"TestAccount2"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Successfully updated account TestAccount2", out.Message)

	resp, out = do(t, app, http.MethodPut, "/accounts", `{"accountName":"TestAccount1","newAccountName":"TestAccount3"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "An account called TestAccount1 could not be found to update", out.Message)

	resp, out = do(t, app, http.MethodGet, "/accounts", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, out.Accounts, 1)
	assert.Equal(t, "TestAccount2", out.Accounts[0].AccountName)

	resp, out = do(t, app, http.MethodDelete, "/accounts/TestAccount2", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Successfully deleted an account TestAccount2", out.Message)

	resp, out = do(t, app, http.MethodDelete, "/accounts/TestAccount2", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "No account called TestAccount2 exists", out.Message)

	resp, out = do(t, app, http.MethodGet, "/accounts/TestAccount2", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Unable to find an account matching the name TestAccount2", out.Message)
}

func TestHandler_InvalidPayload(t *testing.T) {
	app := newApp(t, newStore(t))
	for _, target := range []string{"/accounts", "/transactions"} {
		resp, out := do(t, app, http.MethodPost, target, `{not json`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, target)
		assert.Equal(t, "The payload was invalid", out.Message, target)
	}
}

func TestHandler_Transfer(t *testing.T) {
	app := newApp(t, newStore(t))
	seed(t, app, "A", "100.00")
	seed(t, app, "B", "10.00")

	resp, out := do(t, app, http.MethodPost, "/transactions", `{"fromAccountName":"A","toAccountName":"B","amount":"10.999"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, StatusSuccess, out.Status)
	assert.Equal(t, "Successfully performed transfer from A to B", out.Message)
	assert.Equal(t, int64(1), out.TransactionID)
	assert.NotEmpty(t, out.RefID)

	_, out = do(t, app, http.MethodGet, "/accounts/A", "")
	assert.Equal(t, "89.01", out.Account.Balance)
	_, out = do(t, app, http.MethodGet, "/accounts/B", "")
	assert.Equal(t, "20.99", out.Account.Balance)

	tests := []struct {
		name    string
		body    string
		code    int
		reason  domain.Reason
		message string
	}{
		{"same account", `{"fromAccountName":"A","toAccountName":"A","amount":"1"}`,
			http.StatusBadRequest, domain.ReasonSameAccount, "The to and from accounts cannot be the same"},
		{"invalid amount", `{"fromAccountName":"A","toAccountName":"B","amount":"0.001"}`,
			http.StatusBadRequest, domain.ReasonInvalidAmount, "The Account Names and amount received were not valid"},
		{"from missing", `{"fromAccountName":"X","toAccountName":"B","amount":"1"}`,
			http.StatusNotFound, domain.ReasonAccountNotFound, "From account with name X does not exist"},
		{"to missing", `{"fromAccountName":"A","toAccountName":"X","amount":"1"}`,
			http.StatusNotFound, domain.ReasonAccountNotFound, "To account with name X does not exist"},
		{"insufficient funds", `{"fromAccountName":"B","toAccountName":"A","amount":"21"}`,
			http.StatusConflict, domain.ReasonInsufficientFunds, "From account with name B does not have enough money to perform this transfer"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, out := do(t, app, http.MethodPost, "/transactions", tt.body)
			assert.Equal(t, tt.code, resp.StatusCode)
			assert.Equal(t, StatusError, out.Status)
			assert.Equal(t, string(tt.reason), out.Reason)
			assert.Equal(t, tt.message, out.Message)
		})
	}

	_, out = do(t, app, http.MethodGet, "/transactions", "")
	assert.Len(t, out.Transactions, 1)
}

func TestHandler_TransferIdempotentRefID(t *testing.T) {
	app := newApp(t, newStore(t))
	seed(t, app, "A", "100.00")
	seed(t, app, "B", "0")

	body := `{"refId":"6f1c2b7e-1d2a-4a53-9a7e-3f0d4c6b8e21","fromAccountName":"A","toAccountName":"B","amount":"30"}`
	_, first := do(t, app, http.MethodPost, "/transactions", body)
	_, second := do(t, app, http.MethodPost, "/transactions", body)
	assert.Equal(t, first.TransactionID, second.TransactionID)

	_, out := do(t, app, http.MethodGet, "/accounts/A", "")
	assert.Equal(t, "70.00", out.Account.Balance)

	resp, out := do(t, app, http.MethodPost, "/transactions", `{"refId":"nope","fromAccountName":"A","toAccountName":"B","amount":"1"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, string(domain.ReasonInvalidReference), out.Reason)
	assert.Contains(t, out.Message, "invalid refId")
}

func TestHandler_NumericAmounts(t *testing.T) {
	app := newApp(t, newStore(t))

	resp, out := do(t, app, http.MethodPost, "/accounts", `{"accountName":"A","balance":100}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, out.Message)
	assert.Equal(t, "100.00", out.Account.Balance)
	seed(t, app, "B", "0")

	resp, out = do(t, app, http.MethodPost, "/transactions", `{"fromAccountName":"A","toAccountName":"B","amount":10.5}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, out.Message)

	_, out = do(t, app, http.MethodGet, "/accounts/A", "")
	assert.Equal(t, "89.50", out.Account.Balance)

	resp, out = do(t, app, http.MethodPost, "/transactions", `{"fromAccountName":"A","toAccountName":"B","amount":true}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, string(domain.ReasonInvalidAmount), out.Reason)
}

func TestHandler_TransferContention(t *testing.T) {
	inner := newStore(t)
	app := newApp(t, &atomicFailStore{Store: inner, err: domain.ErrContention})
	seed(t, app, "A", "100.00")
	seed(t, app, "B", "0")

	resp, out := do(t, app, http.MethodPost, "/transactions", `{"fromAccountName":"A","toAccountName":"B","amount":"1"}`)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "1", resp.Header.Get(fiber.HeaderRetryAfter))
	assert.Equal(t, string(domain.ReasonContention), out.Reason)
	assert.Equal(t, "Accounts A and B are busy, please retry the transfer", out.Message)
}

func TestHandler_TransferStorageFailure(t *testing.T) {
	inner := newStore(t)
	app := newApp(t, &atomicFailStore{Store: inner, err: errors.New("disk full")})
	seed(t, app, "A", "100.00")
	seed(t, app, "B", "0")

	resp, out := do(t, app, http.MethodPost, "/transactions", `{"fromAccountName":"A","toAccountName":"B","amount":"1"}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, string(domain.ReasonStorageFailure), out.Reason)
	assert.Equal(t, "Unable to perform transfer from A to B", out.Message)
}

func TestHandler_QueryTransactions(t *testing.T) {
	app := newApp(t, newStore(t))
	for _, name := range []string{"A", "B", "C"} {
		seed(t, app, name, "1000")
	}
	pairs := [][2]string{{"A", "B"}, {"A", "B"}, {"B", "A"}, {"B", "C"}, {"B", "C"}, {"C", "B"}}
	for _, p := range pairs {
		resp, out := do(t, app, http.MethodPost, "/transactions",
			`{"fromAccountName":"`+p[0]+`","toAccountName":"`+p[1]+`","amount":"1"}`)
		require.Equal(t, http.StatusOK, resp.StatusCode, out.Message)
	}

	tests := []struct {
		query string
		want  int
	}{
		{"?fromAccountName=B", 3},
		{"?toAccountName=B", 3},
		{"?fromAccountName=A&toAccountName=B", 2},
		{"?fromAccountName=B&toAccountName=C", 2},
		{"", 6},
		{"?fromAccountName=Z", 0},
	}
	for _, tt := range tests {
		resp, out := do(t, app, http.MethodGet, "/transactions"+tt.query, "")
		assert.Equal(t, http.StatusOK, resp.StatusCode, tt.query)
		assert.Len(t, out.Transactions, tt.want, tt.query)
		assert.Equal(t, domain.QueryMessage(tt.want), out.Message, tt.query)
	}

	resp, out := do(t, app, http.MethodGet, "/transactions?fromAccountName=A&toAccountName=A", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "The to and from accounts cannot be the same", out.Message)

	resp, out = do(t, app, http.MethodPut, "/transactions", "")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Equal(t, "Put operation is not currently supported", out.Message)
}

func TestHandler_UnknownRoute(t *testing.T) {
	app := newApp(t, newStore(t))
	resp, out := do(t, app, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, StatusError, out.Status)
}

func TestStatusCodeOf(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, StatusCodeOf(domain.ReasonSameAccount))
	assert.Equal(t, http.StatusNotFound, StatusCodeOf(domain.ReasonAccountNotFound))
	assert.Equal(t, http.StatusConflict, StatusCodeOf(domain.ReasonInsufficientFunds))
	assert.Equal(t, http.StatusServiceUnavailable, StatusCodeOf(domain.ReasonContention))
	assert.Equal(t, http.StatusInternalServerError, StatusCodeOf(domain.ReasonStorageFailure))
}
