package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"queryrouter/models"
	"queryrouter/services"
)

// classifyCmd prints the intent of a query.
func classifyCmd(rt **appServices) *cli.Command {
	return &cli.Command{
		Name:      "classify",
		Usage:     "Classify a query as search, ai_chat or ambiguous",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "heuristic", Usage: "Skip the model even when one is configured"},
		},
		Action: func(c *cli.Context) error {
			r := *rt
			query := strings.Join(c.Args().Slice(), " ")
			model := r.assistant.Model()
			if c.Bool("heuristic") {
				model = nil
			}
			intent, source := r.assistant.Classifier().ClassifyWithSource(c.Context, query, model)
			return outputJSON(map[string]string{
				"query":  query,
				"intent": string(intent),
				"source": source,
			})
		},
	}
}

// searchCmd searches the web and prints the fetched sources.
func searchCmd(rt **appServices) *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search the web and fetch the top results",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "max", Aliases: []string{"n"}, Value: services.DefaultMaxResults, Usage: "Maximum results to fetch"},
			&cli.BoolFlag{Name: "context", Usage: "Print the formatted context block instead of JSON"},
		},
		Action: func(c *cli.Context) error {
			r := *rt
			query := strings.Join(c.Args().Slice(), " ")
			if strings.TrimSpace(query) == "" {
				return cli.Exit("a query is required", 1)
			}
			sources, err := r.assistant.Retrieval().SearchAndFetch(c.Context, query, c.Int("max"))
			if err != nil {
				return outputError(err)
			}
			if c.Bool("context") {
				fmt.Println(services.FormatSourcesAsContext(sources))
				return nil
			}
			return outputJSON(sources)
		},
	}
}

// fetchCmd fetches one URL and prints its extracted text.
func fetchCmd(rt **appServices) *cli.Command {
	return &cli.Command{
		Name:      "fetch",
		Usage:     "Fetch a single URL and extract its text",
		ArgsUsage: "<url>",
		Action: func(c *cli.Context) error {
			r := *rt
			if c.NArg() != 1 {
				return cli.Exit("exactly one URL is required", 1)
			}
			source := r.assistant.Retrieval().FetchSingleURL(c.Context, c.Args().First())
			if source == nil {
				return cli.Exit("page could not be fetched", 1)
			}
			return outputJSON(source)
		},
	}
}

// askCmd routes a query through the assistant.
func askCmd(rt **appServices) *cli.Command {
	return &cli.Command{
		Name:      "ask",
		Usage:     "Route a query through the assistant",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "max", Aliases: []string{"n"}, Usage: "Maximum results to fetch"},
			&cli.BoolFlag{Name: "ground", Usage: "Ground conversational answers in a web search"},
		},
		Action: func(c *cli.Context) error {
			r := *rt
			query := strings.Join(c.Args().Slice(), " ")
			if strings.TrimSpace(query) == "" {
				return cli.Exit("a query is required", 1)
			}
			resp, err := r.assistant.Ask(c.Context, models.AskRequest{
				BaseRequest: models.BaseRequest{RequestID: uuid.NewString()},
				Query:       query,
				MaxResults:  c.Int("max"),
				Ground:      c.Bool("ground"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(resp)
		},
	}
}

func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var re *services.RetrievalError
	if errors.As(err, &re) {
		return cli.Exit(fmt.Sprintf("[%s] %s", re.Code, re.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}
