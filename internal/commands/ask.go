package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"github.com/urfave/cli/v2"

	"github.com/diffjury/diffjury/internal/app"
	"github.com/diffjury/diffjury/internal/llm"
	"github.com/diffjury/diffjury/internal/utils"
)

// AskCommand returns the CLI command for free-form questions to the judge
func AskCommand() *cli.Command {
	return &cli.Command{
		Name:      "ask",
		Usage:     "Send a free-form prompt to the AI and print the answer",
		ArgsUsage: "<prompt>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "api-key",
				Aliases: []string{"k"},
				Usage:   "OpenAI API key (falls back to DIFFJURY_OPENAI_API_KEY)",
			},
			&cli.UintFlag{
				Name:  "retries",
				Usage: "Retries on transient transport failures",
				Value: 3,
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return fmt.Errorf("expected a prompt")
			}
			prompt := strings.Join(c.Args().Slice(), " ")

			application, err := app.FromContext(c)
			if err != nil {
				return err
			}

			apiKey := c.String("api-key")
			if apiKey == "" {
				apiKey = application.Config.OpenAI.APIKey
			}

			// The service performs a single attempt per call; transient
			// transport failures are retried here at the edge.
			var answer string
			operation := func() error {
				answer, err = application.Analysis.Ask(c.Context, apiKey, prompt)
				if err != nil {
					if errors.Is(err, llm.ErrTransport) {
						return err
					}
					return backoff.Permanent(err)
				}
				return nil
			}

			policy := backoff.WithContext(
				backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(c.Uint("retries"))),
				c.Context,
			)
			if err := backoff.Retry(operation, policy); err != nil {
				utils.PrintError(fmt.Sprintf("Ask failed: %s", err))
				return err
			}

			fmt.Println(answer)
			return nil
		},
	}
}
