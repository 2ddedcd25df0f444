package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/isrcx/internal/shared"
	"github.com/desertthunder/isrcx/internal/source"
	"github.com/urfave/cli/v3"
)

// Columns prints the header of a CSV file so the identifier column can be chosen.
func (r *Runner) Columns(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("csv")
	if path == "" {
		return fmt.Errorf("%w: --csv flag is required", shared.ErrMissingArgument)
	}

	columns, err := source.NewCSV(path, "").Columns()
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(columns, false)
	}

	r.writePlain("Available columns in %s:\n", path)
	for i, c := range columns {
		marker := " "
		if strings.EqualFold(c, r.config.Lookup.Column) {
			marker = "*"
		}
		r.writePlain("%s %d. %s\n", marker, i+1, c)
	}
	return nil
}

func columnsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "columns",
		Usage: "List the columns of a CSV file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "csv",
				Aliases:  []string{"f"},
				Usage:    "CSV file to inspect",
				Required: true,
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the columns as a JSON array",
			},
		},
		Action: r.Columns,
	}
}
