package postgres

// schema 建表語句，可重複執行
const schema = `
CREATE TABLE IF NOT EXISTS accounts (
    id         BIGSERIAL PRIMARY KEY,
    name       TEXT NOT NULL,
    balance    NUMERIC(19,2) NOT NULL CHECK (balance >= 0),
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    CONSTRAINT uk_accounts_name UNIQUE (name)
);

CREATE TABLE IF NOT EXISTS transactions (
    id              BIGSERIAL PRIMARY KEY,
    ref_id          UUID NOT NULL,
    from_account_id BIGINT NOT NULL,
    to_account_id   BIGINT NOT NULL,
    amount          NUMERIC(19,2) NOT NULL CHECK (amount > 0),
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    CONSTRAINT uk_transactions_ref UNIQUE (ref_id),
    CONSTRAINT ck_transactions_accounts CHECK (from_account_id <> to_account_id)
);

CREATE INDEX IF NOT EXISTS idx_transactions_from ON transactions (from_account_id);
CREATE INDEX IF NOT EXISTS idx_transactions_to ON transactions (to_account_id);
`

const (
	accountColumns     = `id, name, balance::text, created_at`
	transactionColumns = `id, ref_id::text, from_account_id, to_account_id, amount::text, created_at`
)
