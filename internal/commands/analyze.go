// Package commands implements the diffjury CLI commands
package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/diffjury/diffjury/internal/analysis"
	"github.com/diffjury/diffjury/internal/app"
	"github.com/diffjury/diffjury/internal/utils"
)

// AnalyzeCommand returns the CLI command for analyzing repository changes
func AnalyzeCommand() *cli.Command {
	return &cli.Command{
		Name:      "analyze",
		Usage:     "Judge the changes between two commits of a repository",
		ArgsUsage: "<repo-url> <older-commit> <newer-commit>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "api-key",
				Aliases: []string{"k"},
				Usage:   "OpenAI API key (falls back to DIFFJURY_OPENAI_API_KEY)",
			},
			&cli.BoolFlag{
				Name:  "details",
				Usage: "Show the per-file verdict table",
				Value: true,
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 3 {
				return fmt.Errorf("expected <repo-url> <older-commit> <newer-commit>")
			}

			application, err := app.FromContext(c)
			if err != nil {
				return err
			}

			apiKey := c.String("api-key")
			if apiKey == "" {
				apiKey = application.Config.OpenAI.APIKey
			}

			req := &analysis.Request{
				RepoURL:     c.Args().Get(0),
				OlderCommit: c.Args().Get(1),
				NewerCommit: c.Args().Get(2),
				APIKey:      apiKey,
			}

			utils.PrintHeading("Analyzing repository changes")
			utils.PrintKeyValue("Repository", req.RepoURL)
			utils.PrintKeyValue("Commits", fmt.Sprintf("%s..%s",
				utils.ShortCommit(req.OlderCommit), utils.ShortCommit(req.NewerCommit)))

			verdict, err := application.Analysis.AnalyzeRepository(c.Context, req)
			if err != nil {
				utils.PrintError(fmt.Sprintf("Analysis failed: %s", err))
				return err
			}

			printVerdict(verdict, c.Bool("details"))
			return nil
		},
	}
}

func printVerdict(verdict *analysis.RepositoryVerdict, showDetails bool) {
	utils.PrintDivider()

	if verdict.IsGood {
		utils.PrintSuccess("Changes look " + color.GreenString("GOOD"))
	} else {
		utils.PrintError("Changes have " + color.RedString("ISSUES"))
	}

	utils.PrintKeyValue("Total files", fmt.Sprintf("%d", verdict.TotalFiles))
	utils.PrintKeyValue("Analyzed", fmt.Sprintf("%d", verdict.AnalyzedFiles))
	utils.PrintKeyValue("Good", color.GreenString("%d", verdict.GoodFiles))
	utils.PrintKeyValue("With issues", color.RedString("%d", verdict.FilesWithIssues))
	utils.PrintKeyValue("Skipped", fmt.Sprintf("%d", verdict.SkippedFiles))

	if !showDetails || len(verdict.Details) == 0 {
		return
	}

	rows := make([][]string, 0, len(verdict.Details))
	for _, d := range verdict.Details {
		status := color.GreenString("good")
		note := ""
		switch {
		case d.Skipped:
			status = color.YellowString("skipped")
			note = d.SkipReason
		case !d.IsGood:
			status = color.RedString("issue")
			note = utils.TruncateString(d.Issue, 80)
		}
		rows = append(rows, []string{d.Path, status, note})
	}

	utils.PrintTable([]string{"File", "Verdict", "Notes"}, rows)
}
