package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/diffjury/diffjury/internal/analysis"
	"github.com/diffjury/diffjury/internal/app"
	"github.com/diffjury/diffjury/internal/utils"
)

// VerifyCommand returns the CLI command for verifying changes against a
// stated intent
func VerifyCommand() *cli.Command {
	return &cli.Command{
		Name:      "verify",
		Usage:     "Check whether the changes between two commits fulfill a stated intent",
		ArgsUsage: "<repo-url> <older-commit> <newer-commit>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "intent",
				Aliases:  []string{"i"},
				Usage:    "What the changes are expected to accomplish",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "api-key",
				Aliases: []string{"k"},
				Usage:   "OpenAI API key (falls back to DIFFJURY_OPENAI_API_KEY)",
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

			req := &analysis.IntentRequest{
				RepoURL:     c.Args().Get(0),
				OlderCommit: c.Args().Get(1),
				NewerCommit: c.Args().Get(2),
				Intent:      c.String("intent"),
				APIKey:      apiKey,
			}

			utils.PrintHeading("Verifying intent against repository changes")
			utils.PrintKeyValue("Repository", req.RepoURL)
			utils.PrintKeyValue("Commits", fmt.Sprintf("%s..%s",
				utils.ShortCommit(req.OlderCommit), utils.ShortCommit(req.NewerCommit)))
			utils.PrintKeyValue("Intent", req.Intent)

			verdict, err := application.Analysis.VerifyIntent(c.Context, req)
			if err != nil {
				utils.PrintError(fmt.Sprintf("Verification failed: %s", err))
				return err
			}

			utils.PrintDivider()
			if verdict.Fulfilled {
				utils.PrintSuccess("Intent is " + color.GreenString("FULFILLED"))
			} else {
				utils.PrintError("Intent is " + color.RedString("NOT FULFILLED"))
			}
			utils.PrintKeyValue("Confidence", fmt.Sprintf("%.2f", verdict.Confidence))
			utils.PrintKeyValue("Summary", verdict.Explanation)

			if len(verdict.Files) > 0 {
				rows := make([][]string, 0, len(verdict.Files))
				for _, f := range verdict.Files {
					support := color.RedString("no")
					if f.SupportsIntent {
						support = color.GreenString("yes")
					}
					rows = append(rows, []string{f.Path, support, utils.TruncateString(f.Reasoning, 80)})
				}
				utils.PrintTable([]string{"File", "Supports", "Reasoning"}, rows)
			}

			if verdict.Assessment != "" {
				utils.PrintDivider()
				utils.PrintInfo(verdict.Assessment)
			}

			return nil
		},
	}
}
