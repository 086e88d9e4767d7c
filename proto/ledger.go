// Package proto 定義 ledger.v1.LedgerService 的訊息與服務描述
//
// 訊息以 JSON codec 傳輸 (application/grpc+json)，不需要 protoc 產生程式碼。
// 金額一律為兩位小數的字串，例如 "10.00"。
package proto

type TransferRequest struct {
	// RefId 冪等鍵 (UUID)，空字串時由伺服器產生
	RefId           string `json:"ref_id,omitempty"`
	FromAccountName string `json:"from_account_name"`
	ToAccountName   string `json:"to_account_name"`
	Amount          string `json:"amount"`
}

type TransferResponse struct {
	Success       bool   `json:"success"`
	TransactionId int64  `json:"transaction_id,omitempty"`
	RefId         string `json:"ref_id,omitempty"`
	Amount        string `json:"amount,omitempty"`
	// FromBalance 轉帳後轉出帳戶的餘額 (best effort)
	FromBalance string `json:"from_balance,omitempty"`
	// Reason 失敗原因: sameAccount, invalidAmount, accountNotFound, insufficientFunds
	Reason  string `json:"reason,omitempty"`
	Which   string `json:"which,omitempty"`
	Message string `json:"message,omitempty"`
}

type QueryTransactionsRequest struct {
	FromAccountName string `json:"from_account_name,omitempty"`
	ToAccountName   string `json:"to_account_name,omitempty"`
}

type Transaction struct {
	TransactionId   int64  `json:"transaction_id"`
	RefId           string `json:"ref_id"`
	FromAccountName string `json:"from_account_name"`
	ToAccountName   string `json:"to_account_name"`
	Amount          string `json:"amount"`
	// Timestamp RFC3339Nano, UTC
	Timestamp string `json:"timestamp"`
}

type QueryTransactionsResponse struct {
	Transactions []*Transaction `json:"transactions"`
	Message      string         `json:"message,omitempty"`
}

type Account struct {
	AccountId int64  `json:"account_id"`
	Name      string `json:"name"`
	Balance   string `json:"balance"`
	CreatedAt string `json:"created_at,omitempty"`
}

type GetAccountRequest struct {
	Name string `json:"name"`
}

type GetAccountResponse struct {
	Account *Account `json:"account"`
}

type ListAccountsRequest struct{}

type ListAccountsResponse struct {
	Accounts []*Account `json:"accounts"`
}

type CreateAccountRequest struct {
	Name    string `json:"name"`
	Balance string `json:"balance"`
}

type CreateAccountResponse struct {
	Account *Account `json:"account"`
}

type RenameAccountRequest struct {
	Name    string `json:"name"`
	NewName string `json:"new_name"`
}

type RenameAccountResponse struct {
	Account *Account `json:"account"`
}

type DeleteAccountRequest struct {
	Name string `json:"name"`
}

type DeleteAccountResponse struct{}
