package commands

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/diffjury/diffjury/internal/app"
	"github.com/diffjury/diffjury/internal/utils"
)

// HistoryCommand returns the CLI command for browsing past analysis runs
func HistoryCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Browse past analysis runs",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List recent runs",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of runs to show",
						Value: 20,
					},
					&cli.IntFlag{
						Name:  "offset",
						Usage: "Number of runs to skip",
					},
				},
				Action: func(c *cli.Context) error {
					application, err := app.FromContext(c)
					if err != nil {
						return err
					}
					if application.History == nil {
						utils.PrintWarning("History is disabled (DIFFJURY_ANALYSIS_HISTORY=false)")
						return nil
					}

					runs, err := application.History.ListRuns(c.Context, c.Int("limit"), c.Int("offset"))
					if err != nil {
						return fmt.Errorf("listing runs: %w", err)
					}

					if len(runs) == 0 {
						utils.PrintInfo("No analysis runs recorded yet")
						return nil
					}

					rows := make([][]string, 0, len(runs))
					for _, run := range runs {
						outcome := color.GreenString("good")
						if !run.Verdict.IsGood {
							outcome = color.RedString("issues")
						}
						rows = append(rows, []string{
							run.ID,
							run.Label,
							utils.TruncateString(run.RepoURL, 40),
							fmt.Sprintf("%s..%s",
								utils.ShortCommit(run.OlderCommit),
								utils.ShortCommit(run.NewerCommit)),
							outcome,
							fmt.Sprintf("%d/%d", run.Verdict.FilesWithIssues, run.Verdict.TotalFiles),
							run.CreatedAt.Format(time.DateTime),
						})
					}

					utils.PrintTable(
						[]string{"ID", "Label", "Repository", "Commits", "Outcome", "Issues", "When"},
						rows,
					)
					return nil
				},
			},
			{
				Name:      "show",
				Usage:     "Show one run with its per-file verdicts",
				ArgsUsage: "<run-id>",
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return fmt.Errorf("expected <run-id>")
					}

					application, err := app.FromContext(c)
					if err != nil {
						return err
					}
					if application.History == nil {
						utils.PrintWarning("History is disabled (DIFFJURY_ANALYSIS_HISTORY=false)")
						return nil
					}

					run, err := application.History.GetRun(c.Context, c.Args().First())
					if err != nil {
						return err
					}

					utils.PrintHeading(fmt.Sprintf("Run %s (%s)", run.ID, run.Label))
					utils.PrintKeyValue("Repository", run.RepoURL)
					utils.PrintKeyValue("Commits", fmt.Sprintf("%s..%s", run.OlderCommit, run.NewerCommit))
					utils.PrintKeyValue("When", run.CreatedAt.Format(time.DateTime))

					printVerdict(&run.Verdict, true)
					return nil
				},
			},
		},
	}
}
