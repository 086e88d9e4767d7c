package mysql

import (
	"context"
	"errors"
	"testing"

	driver "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"

	"github.com/JoeShih716/go-transfer-ledger/internal/app/core/domain"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		onDup  error
		reason domain.Reason
		is     error
	}{
		{"lock wait timeout", &driver.MySQLError{Number: 1205, Message: "Lock wait timeout exceeded"}, nil, domain.ReasonContention, domain.ErrContention},
		{"deadlock", &driver.MySQLError{Number: 1213, Message: "Deadlock found"}, nil, domain.ReasonContention, domain.ErrContention},
		{"duplicate name", &driver.MySQLError{Number: 1062, Message: "Duplicate entry"}, domain.ErrAccountAlreadyExists, domain.ReasonAccountExists, domain.ErrAccountAlreadyExists},
		{"duplicate without mapping", &driver.MySQLError{Number: 1062}, nil, domain.ReasonStorageFailure, domain.ErrStorageFailure},
		{"context canceled", context.Canceled, nil, domain.ReasonContention, context.Canceled},
		{"domain error passes through", domain.ErrInsufficientFunds, nil, domain.ReasonInsufficientFunds, domain.ErrInsufficientFunds},
		{"unknown", errors.New("bad connection"), nil, domain.ReasonStorageFailure, domain.ErrStorageFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify("op", tt.err, tt.onDup)
			assert.Equal(t, tt.reason, domain.ReasonOf(err))
			assert.ErrorIs(t, err, tt.is)
		})
	}
	assert.NoError(t, classify("op", nil, nil))
}
