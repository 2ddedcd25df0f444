package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/isrcx/internal/repositories"
	"github.com/desertthunder/isrcx/internal/shared"
	"github.com/urfave/cli/v3"
)

// CacheList prints cached ISRC to track URI matches.
func (r *Runner) CacheList(ctx context.Context, cmd *cli.Command) error {
	db, err := r.database()
	if err != nil {
		return err
	}
	repo := repositories.NewMatchRepository(db)

	count, err := repo.Count()
	if err != nil {
		return err
	}
	matches, err := repo.List(map[string]any{"limit": cmd.Int("limit")})
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		out := make(map[string]string, len(matches))
		for _, m := range matches {
			out[m.Identifier()] = m.URI
		}
		return r.writeJSON(out, true)
	}

	r.writePlain("%d cached matches in %s\n", count, r.config.Database.Path)
	if len(matches) == 0 {
		return nil
	}

	rows := make([][]string, 0, len(matches))
	for _, m := range matches {
		rows = append(rows, []string{m.Identifier(), m.URI, m.UpdatedAt().Local().Format("2006-01-02 15:04")})
	}
	r.writePlain("%s\n", renderTable([]string{"ISRC", "URI", "Updated"}, rows))
	return nil
}

// CacheForget removes single identifiers so the next run searches them again.
func (r *Runner) CacheForget(ctx context.Context, cmd *cli.Command) error {
	ids := cmd.StringSlice("isrc")
	if len(ids) == 0 {
		return fmt.Errorf("%w: --isrc flag is required", shared.ErrMissingArgument)
	}

	db, err := r.database()
	if err != nil {
		return err
	}
	repo := repositories.NewMatchRepository(db)

	for _, id := range ids {
		id = strings.TrimSpace(id)
		if err := repo.Delete(id); err != nil {
			r.logger.Warn("not cached", "isrc", id)
			continue
		}
		r.writePlain("✓ Forgot %s\n", id)
	}
	return nil
}

// CacheClear removes every cached match.
func (r *Runner) CacheClear(ctx context.Context, cmd *cli.Command) error {
	db, err := r.database()
	if err != nil {
		return err
	}

	removed, err := repositories.NewMatchRepository(db).Clear()
	if err != nil {
		return err
	}
	r.logger.Infof("cleared %d cached matches", removed)
	r.writePlain("✓ Removed %d cached matches\n", removed)
	return nil
}

// cacheCommand manages the local match cache
func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect or reset the local ISRC match cache",
		Commands: []*cli.Command{
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List cached matches",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of matches to show",
						Value: 50,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output as a JSON object keyed by ISRC",
					},
				},
				Action: r.CacheList,
			},
			{
				Name:  "forget",
				Usage: "Remove cached matches for specific ISRC codes",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:     "isrc",
						Usage:    "ISRC code to forget (repeatable)",
						Required: true,
					},
				},
				Action: r.CacheForget,
			},
			{
				Name:   "clear",
				Usage:  "Remove all cached matches",
				Action: r.CacheClear,
			},
		},
	}
}
