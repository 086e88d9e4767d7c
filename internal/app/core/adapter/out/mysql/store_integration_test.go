package mysql

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JoeShih716/go-transfer-ledger/internal/app/core/adapter/out/storetest"
	"github.com/JoeShih716/go-transfer-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-transfer-ledger/pkg/mysql"
)

// 需要 MYSQL_TEST_DSN，例: ledger:ledger@tcp(127.0.0.1:3306)/ledger_test?parseTime=true
func newTestStore(t *testing.T) usecase.Store {
	t.Helper()
	dsn := os.Getenv("MYSQL_TEST_DSN")
	if dsn == "" {
		t.Skip("MYSQL_TEST_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mysql.NewClientWithDSN(ctx, dsn, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.DB().Migrator().DropTable(&transactionRow{}, &accountRow{}))
	store := NewStore(client, WithLockTimeout(time.Second))
	require.NoError(t, store.Migrate(ctx))
	return store
}

func TestStore_Conformance(t *testing.T) {
	storetest.Run(t, newTestStore)
}
