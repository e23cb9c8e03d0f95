package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/geocoder89/ems/internal/config"
	"github.com/geocoder89/ems/internal/db"
)

type migrateOutput struct {
	Command string  `json:"command"`
	Applied []int64 `json:"applied,omitempty"`
	Version int64   `json:"version,omitempty"`
	Status  any     `json:"status,omitempty"`
}

func newMigrateCmd() *cobra.Command {
	var databaseURL string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or inspect the PostgreSQL schema migrations",
	}
	cmd.PersistentFlags().StringVar(&databaseURL, "database-url", "", "PostgreSQL URL (default: DATABASE_URL / DB_* settings)")

	open := func() (*db.Migrator, func(), error) {
		url := databaseURL
		if url == "" {
			cfg, err := config.Load()
			if err != nil {
				return nil, nil, err
			}
			url = cfg.DB.ConnectionString()
		}

		pool, err := db.NewPool(url, 2)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}

		m, err := db.NewMigrator(pool)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}

		return m, func() {
			_ = m.Close()
			pool.Close()
		}, nil
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, done, err := open()
			if err != nil {
				return err
			}
			defer done()

			applied, err := m.Up(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), migrateOutput{Command: "migrate up", Applied: applied})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, done, err := open()
			if err != nil {
				return err
			}
			defer done()

			version, err := m.Down(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), migrateOutput{Command: "migrate down", Version: version})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "List migrations and whether they are applied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, done, err := open()
			if err != nil {
				return err
			}
			defer done()

			status, err := m.Status(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), migrateOutput{Command: "migrate status", Status: status})
		},
	})

	return cmd
}
