package cmd

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/doug7410/samplepal-leads-sub001/internal/config"
	"github.com/doug7410/samplepal-leads-sub001/internal/db"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with demo data",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		sqlDB, err := db.OpenMySQL(cfg.MySQL)
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer sqlDB.Close()

		log.Println(">> Seeding demo data...")

		if err := seedUsers(sqlDB); err != nil {
			return err
		}
		if err := seedCompaniesAndContacts(sqlDB); err != nil {
			return err
		}
		if err := seedCampaign(sqlDB); err != nil {
			return err
		}
		if err := seedSequence(sqlDB); err != nil {
			return err
		}

		log.Println(">> Seed completed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

// seedUsers inserts one deterministic API user (idempotent).
func seedUsers(dbx *sqlx.DB) error {
	_, err := dbx.Exec(`
		INSERT INTO users (id, name, email, api_key, status, created_at, updated_at)
		VALUES (1, 'Demo User', 'demo@samplepal.test', 'demo-api-key', 'active', NOW(), NOW())
		ON DUPLICATE KEY UPDATE updated_at = NOW()
	`)
	if err != nil {
		return fmt.Errorf("seed users: %w", err)
	}
	return nil
}

func seedCompaniesAndContacts(dbx *sqlx.DB) error {
	if _, err := dbx.Exec(`
		INSERT INTO companies (id, name, website, created_at, updated_at)
		VALUES (1, 'Acme Labs', 'https://acme.test', NOW(), NOW())
		ON DUPLICATE KEY UPDATE updated_at = NOW()
	`); err != nil {
		return fmt.Errorf("seed companies: %w", err)
	}

	contacts := []struct {
		id          int64
		first, last string
		email       string
		title       string
	}{
		{1, "Doug", "Steinberg", "doug.steinberg@acme.test", "Lab Director"},
		{2, "Doug", "Todd", "doug.todd@acme.test", "Purchasing Manager"},
		{3, "Angela", "Fisher", "angela.fisher@acme.test", "Research Lead"},
	}
	for _, c := range contacts {
		if _, err := dbx.Exec(`
			INSERT INTO contacts
				(id, company_id, first_name, last_name, email, job_title, company_name,
				 has_been_contacted, deal_status, unsubscribed, created_at, updated_at)
			VALUES (?, 1, ?, ?, ?, ?, 'Acme Labs', 0, 'none', 0, NOW(), NOW())
			ON DUPLICATE KEY UPDATE updated_at = NOW()
		`, c.id, c.first, c.last, c.email, c.title); err != nil {
			return fmt.Errorf("seed contact %d: %w", c.id, err)
		}
	}
	return nil
}

func seedCampaign(dbx *sqlx.DB) error {
	if _, err := dbx.Exec(`
		INSERT INTO campaigns
			(id, name, type, status, subject, content, from_email, from_name, reply_to, created_at, updated_at)
		VALUES (1, 'Spring Outreach', 'contact', 'draft',
		        'Samples for {{company}}',
		        'Hi {{first_name}},\n\nWe supply labs like {{company}} with reference samples.\n\nBest,\nThe SamplePal Team',
		        'hello@samplepal.test', 'SamplePal', 'hello@samplepal.test', NOW(), NOW())
		ON DUPLICATE KEY UPDATE updated_at = NOW()
	`); err != nil {
		return fmt.Errorf("seed campaigns: %w", err)
	}

	for contactID := int64(1); contactID <= 3; contactID++ {
		if _, err := dbx.Exec(`
			INSERT INTO campaign_contacts (campaign_id, contact_id, status, created_at, updated_at)
			VALUES (1, ?, 'pending', NOW(), NOW())
			ON DUPLICATE KEY UPDATE updated_at = NOW()
		`, contactID); err != nil {
			return fmt.Errorf("seed campaign_contacts: %w", err)
		}
	}
	return nil
}

func seedSequence(dbx *sqlx.DB) error {
	if _, err := dbx.Exec(`
		INSERT INTO sequences (id, name, status, from_email, from_name, reply_to, created_at, updated_at)
		VALUES (1, 'New Lead Follow-up', 'active', 'hello@samplepal.test', 'SamplePal', 'hello@samplepal.test', NOW(), NOW())
		ON DUPLICATE KEY UPDATE updated_at = NOW()
	`); err != nil {
		return fmt.Errorf("seed sequences: %w", err)
	}

	steps := []struct {
		id       int64
		position int
		delay    int
		subject  string
		content  string
	}{
		{1, 1, 0, "Quick question for {{first_name}}", "Hi {{first_name}},\n\nDoes {{company}} order reference samples?"},
		{2, 2, 3, "Following up", "Hi {{first_name}},\n\nJust checking in on my last note."},
		{3, 3, 7, "Last try", "Hi {{first_name}},\n\nClosing the loop here."},
	}
	for _, s := range steps {
		if _, err := dbx.Exec(`
			INSERT INTO sequence_steps (id, sequence_id, position, delay_days, send_hour, subject, content, created_at, updated_at)
			VALUES (?, 1, ?, ?, 9, ?, ?, NOW(), NOW())
			ON DUPLICATE KEY UPDATE updated_at = NOW()
		`, s.id, s.position, s.delay, s.subject, s.content); err != nil {
			return fmt.Errorf("seed sequence_steps: %w", err)
		}
	}

	if _, err := dbx.Exec(`
		INSERT INTO sequence_contacts (sequence_id, contact_id, status, current_step, next_send_at, entered_at, created_at, updated_at)
		VALUES (1, 3, 'active', 1, NOW(), NOW(), NOW(), NOW())
		ON DUPLICATE KEY UPDATE updated_at = NOW()
	`); err != nil {
		return fmt.Errorf("seed sequence_contacts: %w", err)
	}
	return nil
}
