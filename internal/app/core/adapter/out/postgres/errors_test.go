package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/JoeShih716/go-transfer-ledger/internal/app/core/domain"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		onDup  error
		reason domain.Reason
	}{
		{"lock timeout", &pgconn.PgError{Code: "55P03", Message: "canceling statement due to lock timeout"}, nil, domain.ReasonContention},
		{"serialization", &pgconn.PgError{Code: "40001"}, nil, domain.ReasonContention},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, nil, domain.ReasonContention},
		{"unique name", &pgconn.PgError{Code: "23505"}, domain.ErrAccountAlreadyExists, domain.ReasonAccountExists},
		{"unique ref", &pgconn.PgError{Code: "23505"}, domain.ErrDuplicateTransaction, domain.ReasonStorageFailure},
		{"check violation", &pgconn.PgError{Code: "23514"}, nil, domain.ReasonStorageFailure},
		{"deadline", context.DeadlineExceeded, nil, domain.ReasonContention},
		{"not found passes through", &domain.AccountNotFoundError{Which: "to", Name: "x"}, nil, domain.ReasonAccountNotFound},
		{"unknown", errors.New("conn closed"), nil, domain.ReasonStorageFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.reason, domain.ReasonOf(classify("op", tt.err, tt.onDup)))
		})
	}

	err := classify("append", &pgconn.PgError{Code: "23505"}, domain.ErrDuplicateTransaction)
	assert.ErrorIs(t, err, domain.ErrDuplicateTransaction)
}
