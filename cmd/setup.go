package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/isrcx/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup writes a config file from the template when none exists, then creates
// the database and runs migrations.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	if _, err := os.Stat(r.configPath); err != nil {
		r.logger.Info("config file not found, creating from template", "path", r.configPath)
		if err := shared.CreateConfigFile(r.configPath); err != nil {
			return fmt.Errorf("failed to create config file: %w", err)
		}

		config, err := shared.LoadConfig(r.configPath)
		if err != nil {
			return fmt.Errorf("failed to load created config: %w", err)
		}
		config.ApplyEnv(".env")
		r.config = config
		r.writePlain("✓ Created %s\n", r.configPath)
	} else {
		r.logger.Info("using existing config", "path", r.configPath)
	}

	r.logger.Info("initializing database", "path", r.config.Database.Path)
	if cmd.Bool("rollback") {
		db, err := shared.NewDatabase(r.config.Database.Path)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		if err := shared.RollbackMigration(db); err != nil {
			return fmt.Errorf("failed to roll back migration: %w", err)
		}
		r.writePlain("✓ Rolled back the latest migration in %s\n", r.config.Database.Path)
		return nil
	}

	if _, err := r.database(); err != nil {
		return fmt.Errorf("failed to set up database: %w", err)
	}
	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)
	r.writePlain("✓ Database ready at %s\n", r.config.Database.Path)

	creds := r.config.Credentials.Spotify
	if creds.ClientID == "" || creds.ClientID == "your_spotify_client_id" {
		r.writePlainln("Next steps:")
		r.writePlain("1. Add your Spotify app credentials to %s (or set %s and %s)\n", r.configPath, shared.EnvClientID, shared.EnvClientSecret)
		r.writePlain("2. Run 'isrcx auth' to authorize playlist access\n")
	} else if creds.Token() == nil {
		r.writePlainln("Next step: run 'isrcx auth' to authorize playlist access")
	}
	return nil
}

func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Create the config file and initialize the database",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "rollback",
				Usage: "Roll back the most recent database migration instead",
			},
		},
		Action: r.Setup,
	}
}
