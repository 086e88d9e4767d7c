package domain

import "fmt"

// TransferMessage 轉帳結果對使用者顯示的訊息，HTTP 與 gRPC 共用
func TransferMessage(err error, from, to string) string {
	switch ReasonOf(err) {
	case ReasonNone:
		return fmt.Sprintf("Successfully performed transfer from %s to %s", from, to)
	case ReasonSameAccount:
		return "The to and from accounts cannot be the same"
	case ReasonInvalidAmount:
		return "The Account Names and amount received were not valid"
	case ReasonAccountNotFound:
		switch WhichOf(err) {
		case "from":
			return fmt.Sprintf("From account with name %s does not exist", from)
		case "to":
			return fmt.Sprintf("To account with name %s does not exist", to)
		}
		return err.Error()
	case ReasonInsufficientFunds:
		return fmt.Sprintf("From account with name %s does not have enough money to perform this transfer", from)
	case ReasonContention:
		return fmt.Sprintf("Accounts %s and %s are busy, please retry the transfer", from, to)
	default:
		return fmt.Sprintf("Unable to perform transfer from %s to %s", from, to)
	}
}

// QueryMessage 帳本查詢結果的訊息
func QueryMessage(count int) string {
	if count == 0 {
		return "No transactions were found matching the criteria"
	}
	return fmt.Sprintf("%d Transactions found", count)
}
