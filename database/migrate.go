package database

import (
	"fmt"

	"billing-backend/models"

	"gorm.io/gorm"
)

// MigrateTenantSchema applies (idempotent) schema migrations for a single
// tenant schema. It pins search_path to the tenant and performs:
// - AutoMigrate (tables/columns)
// - Money column types (NUMERIC(12,2))
// - Indexes (receivables, invoice items, revenue records, snapshots)
// - Basic CHECK constraints (non-negative money, progress bounds)
// - Idempotency keys table + unique index
func MigrateTenantSchema(schema string) error {
	if schema == "" {
		return fmt.Errorf("schema name is empty")
	}

	return DB.Transaction(func(tx *gorm.DB) error {
		// Pin the tenant schema for this transaction
		if err := tx.Exec(`SET search_path = "` + schema + `", public`).Error; err != nil {
			return fmt.Errorf("set search_path failed: %w", err)
		}

		// --- AutoMigrate tables/columns/index tags (non-destructive) ---
		if err := tx.AutoMigrate(
			&models.Project{},
			&models.Task{},
			&models.Invoice{},
			&models.InvoiceItem{},
			&models.InvoiceSnapshot{},
			&models.Receivable{},
			&models.RevenueRecord{},
			&models.ApiKey{},
			&models.IdempotencyKey{},
		); err != nil {
			return fmt.Errorf("tenant automigrate failed: %w", err)
		}

		// --- Enforce money columns as NUMERIC(12,2) (idempotent ALTERs) ---
		alters := []string{
			`ALTER TABLE projects        ALTER COLUMN hourly_rate     TYPE numeric(12,2)`,
			`ALTER TABLE projects        ALTER COLUMN fixed_rate      TYPE numeric(12,2)`,
			`ALTER TABLE tasks           ALTER COLUMN hours_worked    TYPE numeric(8,2)`,
			`ALTER TABLE tasks           ALTER COLUMN estimated_hours TYPE numeric(8,2)`,
			`ALTER TABLE invoices        ALTER COLUMN total_amount    TYPE numeric(12,2)`,
			`ALTER TABLE invoices        ALTER COLUMN tax_amount      TYPE numeric(12,2)`,
			`ALTER TABLE invoices        ALTER COLUMN discount_amount TYPE numeric(12,2)`,
			`ALTER TABLE invoices        ALTER COLUMN final_amount    TYPE numeric(12,2)`,
			`ALTER TABLE invoice_items   ALTER COLUMN rate            TYPE numeric(12,2)`,
			`ALTER TABLE invoice_items   ALTER COLUMN amount          TYPE numeric(12,2)`,
			`ALTER TABLE invoice_items   ALTER COLUMN hours_billed    TYPE numeric(8,2)`,
			`ALTER TABLE receivables     ALTER COLUMN amount          TYPE numeric(12,2)`,
			`ALTER TABLE receivables     ALTER COLUMN paid_total      TYPE numeric(12,2)`,
			`ALTER TABLE receivables     ALTER COLUMN rate_used       TYPE numeric(12,2)`,
			`ALTER TABLE receivables     ALTER COLUMN hours_billed    TYPE numeric(8,2)`,
			`ALTER TABLE revenue_records ALTER COLUMN amount          TYPE numeric(12,2)`,
		}
		for _, stmt := range alters {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("money type migration failed on: %s - %w", stmt, err)
			}
		}

		// --- Composite / helpful indexes (idempotent) ---
		indexes := []string{
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_receivables_task_id ON receivables (task_id)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_invoice_items_invoice_task ON invoice_items (invoice_id, task_id)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_invoice_snapshots_invoice_version ON invoice_snapshots (invoice_id, version_no)`,
			`CREATE INDEX IF NOT EXISTS idx_revenue_records_receivable_recorded ON revenue_records (receivable_id, recorded_at)`,
			`CREATE INDEX IF NOT EXISTS idx_tasks_project ON tasks (project_id)`,
			`CREATE INDEX IF NOT EXISTS idx_tasks_billing_status ON tasks (billing_status)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_idempotency_keys_key ON idempotency_keys (key)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_api_keys_prefix ON api_keys (prefix)`,
		}
		for _, stmt := range indexes {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("index migration failed on: %s - %w", stmt, err)
			}
		}

		// --- Foreign key: receivables.task_id -> tasks.id (RESTRICT/RESTRICT) ---
		fk := `
DO $$
BEGIN
	IF NOT EXISTS (
		SELECT 1
		FROM pg_constraint
		WHERE conrelid = 'receivables'::regclass
		  AND conname  = 'fk_receivables_task'
	) THEN
		ALTER TABLE receivables
		ADD CONSTRAINT fk_receivables_task
		FOREIGN KEY (task_id)
		REFERENCES tasks(id)
		ON UPDATE RESTRICT
		ON DELETE RESTRICT;
	END IF;
END $$;`
		if err := tx.Exec(fk).Error; err != nil {
			return fmt.Errorf("foreign key migration failed: %w", err)
		}

		// --- Basic CHECK constraints (idempotent) ---
		checks := []string{
			`DO $$
			BEGIN
				IF NOT EXISTS (
					SELECT 1 FROM pg_constraint
					WHERE conrelid = 'tasks'::regclass
					  AND conname  = 'chk_tasks_progress_bounds'
				) THEN
					ALTER TABLE tasks
					ADD CONSTRAINT chk_tasks_progress_bounds
					CHECK (progress >= 0 AND progress <= 100);
				END IF;
			END $$;`,
			`DO $$
			BEGIN
				IF NOT EXISTS (
					SELECT 1 FROM pg_constraint
					WHERE conrelid = 'tasks'::regclass
					  AND conname  = 'chk_tasks_hours_nonneg'
				) THEN
					ALTER TABLE tasks
					ADD CONSTRAINT chk_tasks_hours_nonneg
					CHECK (hours_worked >= 0);
				END IF;
			END $$;`,
			`DO $$
			BEGIN
				IF NOT EXISTS (
					SELECT 1 FROM pg_constraint
					WHERE conrelid = 'revenue_records'::regclass
					  AND conname  = 'chk_revenue_records_amount_pos'
				) THEN
					ALTER TABLE revenue_records
					ADD CONSTRAINT chk_revenue_records_amount_pos
					CHECK (amount > 0);
				END IF;
			END $$;`,
			`DO $$
			BEGIN
				IF NOT EXISTS (
					SELECT 1 FROM pg_constraint
					WHERE conrelid = 'receivables'::regclass
					  AND conname  = 'chk_receivables_amount_nonneg'
				) THEN
					ALTER TABLE receivables
					ADD CONSTRAINT chk_receivables_amount_nonneg
					CHECK (amount >= 0);
				END IF;
			END $$;`,
			`DO $$
			BEGIN
				IF NOT EXISTS (
					SELECT 1 FROM pg_constraint
					WHERE conrelid = 'receivables'::regclass
					  AND conname  = 'chk_receivables_paid_total_bounds'
				) THEN
					ALTER TABLE receivables
					ADD CONSTRAINT chk_receivables_paid_total_bounds
					CHECK (paid_total >= 0 AND paid_total <= amount + 0.005);
				END IF;
			END $$;`,
		}
		for _, stmt := range checks {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("check constraint migration failed: %w", err)
			}
		}

		return nil
	})
}
