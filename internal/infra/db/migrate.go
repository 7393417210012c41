package db

import (
	"database/sql"
	_ "embed"
)

//go:embed seeds/roster.sql
var seedRosterSQL string

func MigrateUp(db *sql.DB) error {
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS tenants (
    id         UUID PRIMARY KEY,
    name       TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`); err != nil {
		return err
	}

	// tenant_id is nullable: platform admins and guardians reached only
	// through dependents have no home tenant.
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS recipients (
    id           UUID PRIMARY KEY,
    tenant_id    UUID REFERENCES tenants(id),
    role         VARCHAR(20) NOT NULL DEFAULT 'guardian',
    display_name TEXT NOT NULL,
    push_token   TEXT,
    email        TEXT,
    phone        TEXT,
    push_opt_in  BOOLEAN NOT NULL DEFAULT TRUE,
    email_opt_in BOOLEAN NOT NULL DEFAULT TRUE,
    sms_opt_in   BOOLEAN NOT NULL DEFAULT FALSE,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
    CONSTRAINT chk_recipient_role CHECK (role IN ('guardian', 'staff', 'admin'))
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS dependents (
    id         UUID PRIMARY KEY,
    tenant_id  UUID NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
    full_name  TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS guardian_links (
    guardian_id  UUID NOT NULL REFERENCES recipients(id) ON DELETE CASCADE,
    dependent_id UUID NOT NULL REFERENCES dependents(id) ON DELETE CASCADE,
    relationship VARCHAR(20) NOT NULL DEFAULT 'parent',
    is_primary   BOOLEAN NOT NULL DEFAULT FALSE,
    PRIMARY KEY (guardian_id, dependent_id)
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS notifications (
    id             UUID PRIMARY KEY,
    tenant_id      UUID NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
    title          VARCHAR(200) NOT NULL,
    body           TEXT NOT NULL,
    category       VARCHAR(20) NOT NULL DEFAULT 'general',
    target_mode    VARCHAR(10) NOT NULL DEFAULT 'auto',
    payload        JSONB,
    sent_via_push  BOOLEAN NOT NULL DEFAULT FALSE,
    sent_via_email BOOLEAN NOT NULL DEFAULT FALSE,
    sent_via_sms   BOOLEAN NOT NULL DEFAULT FALSE,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
    sent_at        TIMESTAMPTZ,
    CONSTRAINT chk_notification_category
        CHECK (category IN ('academic', 'behavior', 'payment', 'general')),
    CONSTRAINT chk_notification_target_mode
        CHECK (target_mode IN ('auto', 'explicit'))
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS notification_targets (
    notification_id UUID NOT NULL REFERENCES notifications(id) ON DELETE CASCADE,
    recipient_id    UUID NOT NULL REFERENCES recipients(id) ON DELETE CASCADE,
    PRIMARY KEY (notification_id, recipient_id)
)`); err != nil {
		return err
	}

	// UNIQUE(notification_id, recipient_id) is the concurrency boundary for
	// racing dispatch workers: the ledger upsert converges on one row.
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS delivery_records (
    id               BIGSERIAL PRIMARY KEY,
    notification_id  UUID NOT NULL REFERENCES notifications(id) ON DELETE CASCADE,
    recipient_id     UUID NOT NULL REFERENCES recipients(id) ON DELETE CASCADE,
    push_status      VARCHAR(20) NOT NULL DEFAULT 'not_attempted',
    push_error       TEXT,
    push_message_id  TEXT,
    push_attempts    INT NOT NULL DEFAULT 0,
    email_status     VARCHAR(20) NOT NULL DEFAULT 'not_attempted',
    email_error      TEXT,
    email_message_id TEXT,
    email_attempts   INT NOT NULL DEFAULT 0,
    sms_status       VARCHAR(20) NOT NULL DEFAULT 'not_attempted',
    sms_error        TEXT,
    sms_message_id   TEXT,
    sms_attempts     INT NOT NULL DEFAULT 0,
    delivered_at     TIMESTAMPTZ,
    read_at          TIMESTAMPTZ,
    created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (notification_id, recipient_id)
)`); err != nil {
		return err
	}

	// パフォーマンス最適化: インデックス追加
	indexes := []string{
		// 受信箱クエリ用(ORDER BY created_at DESC)
		`CREATE INDEX IF NOT EXISTS idx_notifications_tenant_created ON notifications(tenant_id, created_at DESC)`,
		// 未送信スイープ用の部分インデックス
		`CREATE INDEX IF NOT EXISTS idx_notifications_unsent ON notifications(created_at) WHERE sent_at IS NULL`,
		// 受信者別の可視判定用
		`CREATE INDEX IF NOT EXISTS idx_targets_recipient ON notification_targets(recipient_id)`,
		`CREATE INDEX IF NOT EXISTS idx_recipients_tenant ON recipients(tenant_id)`,
		`CREATE INDEX IF NOT EXISTS idx_dependents_tenant ON dependents(tenant_id)`,
		`CREATE INDEX IF NOT EXISTS idx_guardian_links_dependent ON guardian_links(dependent_id)`,
		`CREATE INDEX IF NOT EXISTS idx_delivery_recipient ON delivery_records(recipient_id)`,
		// リトライ対象検索用の部分インデックス(チャネル毎)
		`CREATE INDEX IF NOT EXISTS idx_delivery_push_failed ON delivery_records(updated_at) WHERE push_status = 'failed'`,
		`CREATE INDEX IF NOT EXISTS idx_delivery_email_failed ON delivery_records(updated_at) WHERE email_status = 'failed'`,
		`CREATE INDEX IF NOT EXISTS idx_delivery_sms_failed ON delivery_records(updated_at) WHERE sms_status = 'failed'`,
	}
	for _, idx := range indexes {
		if _, err := db.Exec(idx); err != nil {
			return err
		}
	}

	// シードデータの投入(重複は自動的にスキップ)
	if _, err := db.Exec(seedRosterSQL); err != nil {
		return err
	}

	return nil
}

// MigrateDown rolls back the database schema.
// This function removes tables in reverse order of creation.
// Use with caution: this will delete all data in the affected tables.
func MigrateDown(db *sql.DB) error {
	dropStatements := []string{
		`DROP TABLE IF EXISTS delivery_records CASCADE`,
		`DROP TABLE IF EXISTS notification_targets CASCADE`,
		`DROP TABLE IF EXISTS notifications CASCADE`,
		`DROP TABLE IF EXISTS guardian_links CASCADE`,
		`DROP TABLE IF EXISTS dependents CASCADE`,
		`DROP TABLE IF EXISTS recipients CASCADE`,
		`DROP TABLE IF EXISTS tenants CASCADE`,
	}

	for _, stmt := range dropStatements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	return nil
}
