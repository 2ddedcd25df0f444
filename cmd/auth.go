package main

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/desertthunder/isrcx/internal/server"
	"github.com/desertthunder/isrcx/internal/services"
	"github.com/desertthunder/isrcx/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// Auth performs the OAuth2 authorization code flow for Spotify.
//
// Starts a local HTTP server on the redirect URI, opens the browser for user
// authorization and saves the issued tokens to the config file.
func (r *Runner) Auth(ctx context.Context, cmd *cli.Command) error {
	creds := r.config.Credentials.Spotify
	if creds.ClientID == "" || creds.ClientSecret == "" {
		return fmt.Errorf("%w: Spotify client_id and client_secret must be set in %s or the environment", shared.ErrInvalidArgument, r.configPath)
	}

	svc, err := services.NewSpotifyService(creds.Map(), services.WithHTTPClient(newHTTPClient(r.config.Client.Timeout.Duration)))
	if err != nil {
		return fmt.Errorf("failed to create Spotify service: %w", err)
	}

	token, err := r.doOAuth(ctx, svc, cmd.Duration("timeout"), cmd.Bool("no-browser"))
	if err != nil {
		return err
	}

	if err := r.config.Credentials.Spotify.Update(token); err != nil {
		return fmt.Errorf("failed to update spotify configuration: %w", err)
	}
	if err := shared.SaveToken(r.configPath, token); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	r.writePlainln("✓ Authorization successful")
	r.writePlain("✓ Tokens saved to %s\n", r.configPath)

	if err := svc.OAuthenticate(ctx, token); err == nil {
		if user, err := svc.CurrentUser(ctx); err == nil {
			r.writePlain("✓ Logged in as %s\n", displayName(user))
		} else {
			r.logger.Warn("token saved but profile lookup failed", "error", err)
		}
	}
	r.writePlain("\nYou can now use: isrcx create --csv tracks.csv --name \"My playlist\"\n")
	return nil
}

// AuthStatus reports whether stored credentials can reach the Spotify API.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	creds := r.config.Credentials.Spotify
	if r.catalog == nil && creds.Token() == nil {
		r.writePlain("Not authorized. Run 'isrcx auth' to log in.\n")
		return nil
	}

	catalog, err := r.spotify(ctx)
	if err != nil {
		return err
	}
	defer r.saveToken()

	user, err := catalog.CurrentUser(ctx)
	if err != nil {
		return fmt.Errorf("stored token rejected: %w", err)
	}

	r.writePlain("Logged in as %s (%s)\n", displayName(user), user.ID)
	if !creds.Expiry.IsZero() {
		r.writePlain("Access token expires %s\n", creds.Expiry.Local().Format(time.RFC1123))
	}
	return nil
}

// doOAuth executes the OAuth2 authorization flow with a local HTTP server
func (r *Runner) doOAuth(ctx context.Context, svc *services.SpotifyService, timeout time.Duration, noBrowser bool) (*oauth2.Token, error) {
	state, err := shared.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}

	config := svc.GetOAuthConfig()
	addr, err := callbackAddr(config.RedirectURL, r.config.Server)
	if err != nil {
		return nil, err
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	r.logger.Infof("starting OAuth callback server at %v", addr)

	authURL := svc.GetAuthURL(state)
	handler := server.NewOAuthHandler(config, state)

	if noBrowser {
		r.writePlain("Open this URL in your browser:\n%s\n\n", authURL)
	} else {
		r.writePlain("→ Opening browser for Spotify authorization...\n")
		if err := r.openBrowser(authURL); err != nil {
			r.logger.Warnf("failed to open browser automatically %v", err)
			r.writePlainln("⚠ Could not open browser automatically.")
			r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
		}
	}

	r.writePlain("→ Waiting for authorization (%v timeout)...\n", timeout)

	token, err := server.AwaitToken(ctx, listener, handler, shared.WithLogger(r.logger, "component", "oauth"), timeout)
	if err != nil {
		return nil, fmt.Errorf("authorization failed: %w", err)
	}
	return token, nil
}

// callbackAddr returns the listen address for redirectURI, falling back to
// the [shared.ServerConfig] values for missing parts.
func callbackAddr(redirectURI string, fallback shared.ServerConfig) (string, error) {
	host, port := fallback.Host, strconv.Itoa(fallback.Port)
	if redirectURI != "" {
		u, err := url.Parse(redirectURI)
		if err != nil {
			return "", fmt.Errorf("%w: redirect URI %q: %v", shared.ErrInvalidConfig, redirectURI, err)
		}
		if u.Hostname() != "" {
			host = u.Hostname()
		}
		if u.Port() != "" {
			port = u.Port()
		}
	}
	if host == "" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port), nil
}

func displayName(user *services.SpotifyUser) string {
	if user.DisplayName != "" {
		return user.DisplayName
	}
	return user.ID
}

func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authorize isrcx to manage your Spotify playlists",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "How long to wait for the browser callback",
				Value: 2 * time.Minute,
			},
			&cli.BoolFlag{
				Name:  "no-browser",
				Usage: "Print the authorization URL instead of opening a browser",
			},
		},
		Action: r.Auth,
		Commands: []*cli.Command{
			{
				Name:   "status",
				Usage:  "Check the stored Spotify token",
				Action: r.AuthStatus,
			},
		},
	}
}
