package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/paycollect/loan-notifier/internal/repository"
	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "000001_create_notification_plans",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&repository.PlanModel{}); err != nil {
					return err
				}
				// One live plan per credit; cancelled plans do not block a
				// replacement.
				return tx.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_plans_credit_id_live ON notification_plans (credit_id) WHERE status <> 'cancelled'`).Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.PlanModel{})
			},
		},
		{
			ID: "000002_create_notification_records",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&repository.RecordModel{}); err != nil {
					return err
				}
				indexes := []string{
					`CREATE INDEX IF NOT EXISTS idx_records_credit_scheduled ON notification_records (credit_id, scheduled_for)`,
					`CREATE INDEX IF NOT EXISTS idx_records_due ON notification_records (scheduled_for) WHERE status = 'scheduled'`,
					// Serves the daily-cap count: sent records per borrower
					// inside a day window.
					`CREATE INDEX IF NOT EXISTS idx_records_borrower_sent_at ON notification_records (borrower_id, sent_at) WHERE status = 'sent'`,
				}
				for _, sql := range indexes {
					if err := tx.Exec(sql).Error; err != nil {
						return err
					}
				}
				return nil
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.RecordModel{})
			},
		},
		{
			ID: "000003_create_delivery_attempts",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&repository.AttemptModel{}); err != nil {
					return err
				}
				return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_attempts_record_id ON delivery_attempts (record_id)`).Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.AttemptModel{})
			},
		},
	})

	return m.Migrate()
}
