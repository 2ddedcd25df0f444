package main

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/isrcx/internal/retry"
	"github.com/desertthunder/isrcx/internal/services"
	"github.com/desertthunder/isrcx/internal/shared"
	"github.com/urfave/cli/v3"
)

const version = "0.3.0"

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	catalog    services.Catalog
	db         *sql.DB
	ownsDB     bool
	logger     *log.Logger
	output     io.Writer
	progress   io.Writer
	input      *bufio.Reader
	sleep      retry.Sleeper

	openBrowser func(url string) error
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config   *shared.Config   // loaded from --config when nil
	Catalog  services.Catalog // built from the Spotify credentials when nil
	DB       *sql.DB          // opened from the database config when nil
	Logger   *log.Logger
	Output   io.Writer     // results, defaults to stdout
	Progress io.Writer     // progress display, defaults to stderr
	Input    io.Reader     // answers to prompts, defaults to stdin
	Sleep    retry.Sleeper // backoff and throttle pauses

	OpenBrowser func(url string) error
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Progress == nil {
		opts.Progress = os.Stderr
	}
	if opts.Input == nil {
		opts.Input = os.Stdin
	}
	if opts.OpenBrowser == nil {
		opts.OpenBrowser = shared.OpenBrowser
	}

	return &Runner{
		config:   opts.Config,
		catalog:  opts.Catalog,
		db:       opts.DB,
		logger:   opts.Logger,
		output:   opts.Output,
		progress: opts.Progress,
		input:    bufio.NewReader(opts.Input),
		sleep:    opts.Sleep,

		openBrowser: opts.OpenBrowser,
	}
}

// app builds the root command.
func (r *Runner) app() *cli.Command {
	return &cli.Command{
		Name:    "isrcx",
		Usage:   "Build Spotify playlists from ISRC codes listed in a CSV file",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable debug logging",
			},
		},
		Before:   r.configure,
		After:    r.close,
		Commands: r.register(),
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		createCommand, columnsCommand, historyCommand, cacheCommand, authCommand, setupCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// configure loads the configuration file named by --config unless one was
// injected, applies .env overrides and sets the log level.
func (r *Runner) configure(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	r.configPath = cmd.String("config")

	if r.config == nil {
		config := shared.DefaultConfig()
		if _, err := os.Stat(r.configPath); err == nil {
			if config, err = shared.LoadConfig(r.configPath); err != nil {
				return ctx, fmt.Errorf("%w: %v", shared.ErrInvalidConfig, err)
			}
		} else {
			r.logger.Debug("config file not found, using defaults", "path", r.configPath)
		}
		config.ApplyEnv(".env")
		r.config = config
	}

	level := shared.ParseLogLevel(r.config.Log.Level)
	if cmd.Bool("verbose") {
		level = log.DebugLevel
	}
	shared.SetLogLevel(r.logger, level)
	return ctx, nil
}

func (r *Runner) close(ctx context.Context, cmd *cli.Command) error {
	if r.ownsDB && r.db != nil {
		err := r.db.Close()
		r.db = nil
		return err
	}
	return nil
}

// database returns the shared connection, opening and migrating it on first use.
func (r *Runner) database() (*sql.DB, error) {
	if r.db != nil {
		return r.db, nil
	}
	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return nil, err
	}
	r.db, r.ownsDB = db, true
	return db, nil
}

// spotify builds an authenticated Spotify client from the stored credentials.
func (r *Runner) spotify(ctx context.Context) (services.Catalog, error) {
	if r.catalog != nil {
		return r.catalog, nil
	}

	creds := r.config.Credentials.Spotify
	if creds.ClientID == "" || creds.ClientSecret == "" {
		return nil, fmt.Errorf("%w: set credentials.spotify in %s or %s/%s", shared.ErrMissingCredentials, r.configPath, shared.EnvClientID, shared.EnvClientSecret)
	}

	opts := []services.SpotifyOption{services.WithRateLimit(r.config.Client.RequestsPerSecond)}
	if timeout := r.config.Client.Timeout.Duration; timeout > 0 {
		opts = append(opts, services.WithHTTPClient(newHTTPClient(timeout)))
	}
	svc, err := services.NewSpotifyService(creds.Map(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Spotify service: %w", err)
	}

	token := creds.Token()
	if token == nil {
		return nil, fmt.Errorf("%w: run 'isrcx auth' first", shared.ErrNotAuthenticated)
	}
	if err := svc.OAuthenticate(ctx, token); err != nil {
		return nil, fmt.Errorf("failed to authenticate with stored token: %w", err)
	}

	r.catalog = svc
	return svc, nil
}

// saveToken persists a token refreshed during the command so the next run
// starts from it.
func (r *Runner) saveToken() {
	svc, ok := r.catalog.(*services.SpotifyService)
	if !ok {
		return
	}
	token, err := svc.Token()
	if err != nil || token.AccessToken == r.config.Credentials.Spotify.AccessToken {
		return
	}
	if _, err := os.Stat(r.configPath); err != nil {
		return
	}
	if err := r.config.Credentials.Spotify.Update(token); err != nil {
		r.logger.Warn("failed to update token", "error", err)
		return
	}
	if err := shared.SaveToken(r.configPath, token); err != nil {
		r.logger.Warn("failed to save refreshed token", "error", err)
		return
	}
	r.logger.Debug("saved refreshed token", "path", r.configPath)
}

// prompt asks for a value on the input stream. Surrounding quotes are removed
// so that paths pasted from a file manager work.
func (r *Runner) prompt(label string) (string, error) {
	r.writePlain("%s: ", label)
	line, err := r.input.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read %s: %w", strings.ToLower(label), err)
	}
	value := strings.Trim(strings.TrimSpace(line), `"'`)
	if value == "" {
		return "", fmt.Errorf("%w: %s", shared.ErrMissingArgument, strings.ToLower(label))
	}
	return value, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
