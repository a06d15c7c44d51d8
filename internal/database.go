package internal

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"FOM-CERTS/internal/config"
)

// InitDB connects to MySQL and makes sure the schema exists.
func InitDB(cfg *config.Config, log *logrus.Logger) (*gorm.DB, error) {
	gormLog := logger.Default.LogMode(logger.Warn)
	if cfg.IsDevelopment() {
		gormLog = logger.Default.LogMode(logger.Info)
	}

	db, err := gorm.Open(mysql.Open(cfg.Database.DSN()), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
		Logger:                                   gormLog,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := migrate(db, log); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	log.WithField("database", cfg.Database.DBName).Info("database connected and migrated")
	return db, nil
}

type table struct {
	name    string
	create  string
	columns map[string]string
}

// Tables are created only when missing so existing data is preserved.
// Columns added after the first release are listed in columns.
var schema = []table{
	{
		name: "organizations",
		create: `
        CREATE TABLE IF NOT EXISTS organizations (
            id varchar(191) PRIMARY KEY,
            name varchar(255) NOT NULL,
            code varchar(16) NOT NULL,
            created_at datetime(3) NULL
        )`,
	},
	{
		name: "templates",
		create: `
        CREATE TABLE IF NOT EXISTS templates (
            id varchar(191) PRIMARY KEY,
            organization_id varchar(191),
            name varchar(255) NOT NULL,
            definition json,
            published boolean NOT NULL DEFAULT false,
            created_at datetime(3) NULL,
            updated_at datetime(3) NULL,
            INDEX idx_templates_organization_id (organization_id)
        )`,
		columns: map[string]string{
			"published": "ALTER TABLE templates ADD COLUMN published boolean NOT NULL DEFAULT false",
		},
	},
	{
		name: "issued_certificates",
		create: `
        CREATE TABLE IF NOT EXISTS issued_certificates (
            id varchar(64) PRIMARY KEY,
            organization_id varchar(191) NOT NULL,
            template_id varchar(191) NOT NULL,
            template_name varchar(255),
            recipient_name varchar(255) NOT NULL,
            issuer_name varchar(255),
            issue_date datetime(3) NULL,
            expiry_date datetime(3) NULL,
            status varchar(16) NOT NULL DEFAULT 'active',
            security_level varchar(16),
            custom_fields json,
            security_data json,
            chain_hash varchar(64),
            verification_url text,
            qr_payload text,
            created_at datetime(3) NULL,
            updated_at datetime(3) NULL,
            INDEX idx_issued_certificates_organization_id (organization_id),
            INDEX idx_issued_certificates_template_id (template_id),
            INDEX idx_issued_certificates_chain_hash (chain_hash),
            INDEX idx_issued_certificates_created_at (created_at)
        )`,
		columns: map[string]string{
			"security_level": "ALTER TABLE issued_certificates ADD COLUMN security_level varchar(16)",
			"chain_hash":     "ALTER TABLE issued_certificates ADD COLUMN chain_hash varchar(64)",
			"qr_payload":     "ALTER TABLE issued_certificates ADD COLUMN qr_payload text",
		},
	},
	{
		name: "sequences",
		create: `
        CREATE TABLE IF NOT EXISTS sequences (
            organization_id varchar(191) NOT NULL,
            template_id varchar(191) NOT NULL,
            value int NOT NULL DEFAULT 0,
            PRIMARY KEY (organization_id, template_id)
        )`,
	},
	{
		name: "chain_heads",
		create: `
        CREATE TABLE IF NOT EXISTS chain_heads (
            organization_id varchar(191) PRIMARY KEY,
            hash varchar(64) NOT NULL,
            certificate_id varchar(64),
            updated_at datetime(3) NULL
        )`,
	},
	{
		name: "verification_logs",
		create: `
        CREATE TABLE IF NOT EXISTS verification_logs (
            id varchar(191) PRIMARY KEY,
            certificate_id varchar(64),
            valid boolean NOT NULL,
            reason varchar(255),
            ip_address varchar(45),
            user_agent text,
            response_time bigint NOT NULL,
            created_at datetime(3) NULL,
            INDEX idx_verification_logs_certificate_id (certificate_id),
            INDEX idx_verification_logs_created_at (created_at)
        )`,
		columns: map[string]string{
			"reason": "ALTER TABLE verification_logs ADD COLUMN reason varchar(255)",
		},
	},
}

func migrate(db *gorm.DB, log *logrus.Logger) error {
	for _, t := range schema {
		log.Debugf("ensuring %s table exists", t.name)
		if err := db.Exec(t.create).Error; err != nil {
			return fmt.Errorf("failed to create %s table: %w", t.name, err)
		}
		for column, stmt := range t.columns {
			if err := ensureColumn(db, log, t.name, column, stmt); err != nil {
				return err
			}
		}
	}
	return nil
}

func ensureColumn(db *gorm.DB, log *logrus.Logger, table, column, statement string) error {
	if db.Migrator().HasColumn(table, column) {
		return nil
	}

	log.Infof("adding missing column %s.%s", table, column)
	if err := db.Exec(statement).Error; err != nil {
		return fmt.Errorf("failed to add column %s.%s: %w", table, column, err)
	}

	return nil
}

func CloseDB(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
