package store

// Schema creates every table the ledger uses. Money columns are TEXT holding
// exact decimal strings; dates are YYYY-MM-DD and timestamps RFC 3339.
const Schema = `
CREATE TABLE IF NOT EXISTS accounts (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    name TEXT NOT NULL,
    code TEXT,                          -- optional, unique per tenant
    type TEXT NOT NULL CHECK (type IN ('ASSET', 'LIABILITY', 'EQUITY', 'REVENUE', 'EXPENSE')),
    sub_type TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    balance TEXT NOT NULL DEFAULT '0',
    active INTEGER NOT NULL DEFAULT 1,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    UNIQUE (tenant_id, code)
);

CREATE INDEX IF NOT EXISTS idx_accounts_tenant_type
    ON accounts(tenant_id, type);

CREATE TABLE IF NOT EXISTS categories (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    name TEXT NOT NULL,
    color TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL,
    UNIQUE (tenant_id, name)
);

CREATE TABLE IF NOT EXISTS customers (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    name TEXT NOT NULL,
    email TEXT NOT NULL DEFAULT '',
    payment_terms INTEGER NOT NULL DEFAULT 30,
    created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_customers_tenant
    ON customers(tenant_id);

CREATE TABLE IF NOT EXISTS invoice_sequences (
    tenant_id TEXT PRIMARY KEY,
    last_number INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS invoices (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    number TEXT NOT NULL,
    customer_id TEXT NOT NULL REFERENCES customers(id),
    issue_date TEXT NOT NULL,
    due_date TEXT NOT NULL,
    status TEXT NOT NULL,
    tax_rate TEXT NOT NULL,
    gst_inclusive INTEGER NOT NULL,
    exempt_from_gst INTEGER NOT NULL,
    subtotal TEXT NOT NULL,
    tax_amount TEXT NOT NULL,
    total TEXT NOT NULL,
    paid_amount TEXT NOT NULL DEFAULT '0',
    paid_date TEXT,
    notes TEXT NOT NULL DEFAULT '',
    terms TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    UNIQUE (tenant_id, number)
);

CREATE INDEX IF NOT EXISTS idx_invoices_tenant_status
    ON invoices(tenant_id, status);

CREATE TABLE IF NOT EXISTS invoice_items (
    id TEXT PRIMARY KEY,
    invoice_id TEXT NOT NULL REFERENCES invoices(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    description TEXT NOT NULL,
    quantity TEXT NOT NULL,
    unit_price TEXT NOT NULL,
    total TEXT NOT NULL,
    tax_rate TEXT NOT NULL,
    tax_amount TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_invoice_items_invoice
    ON invoice_items(invoice_id, position);

CREATE TABLE IF NOT EXISTS transactions (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    date TEXT NOT NULL,
    description TEXT NOT NULL,
    reference TEXT NOT NULL DEFAULT '',
    amount TEXT NOT NULL,
    debit_account_id TEXT NOT NULL REFERENCES accounts(id),
    credit_account_id TEXT NOT NULL REFERENCES accounts(id),
    category_id TEXT REFERENCES categories(id),
    invoice_id TEXT REFERENCES invoices(id),
    kind TEXT NOT NULL DEFAULT 'manual',
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    CHECK (debit_account_id <> credit_account_id)
);

CREATE INDEX IF NOT EXISTS idx_transactions_tenant_date
    ON transactions(tenant_id, date);

CREATE INDEX IF NOT EXISTS idx_transactions_debit
    ON transactions(debit_account_id);

CREATE INDEX IF NOT EXISTS idx_transactions_credit
    ON transactions(credit_account_id);

-- At most one sale posting per invoice.
CREATE UNIQUE INDEX IF NOT EXISTS idx_transactions_invoice_sale
    ON transactions(invoice_id) WHERE kind = 'sale';

CREATE TABLE IF NOT EXISTS audit_log (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    tenant_id TEXT NOT NULL,
    timestamp TEXT NOT NULL,
    action TEXT NOT NULL,
    entity_id TEXT NOT NULL,
    details TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_audit_log_tenant
    ON audit_log(tenant_id, id);
`
