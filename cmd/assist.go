package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/etnz/cryptotax"
	"github.com/etnz/cryptotax/docs"
	"github.com/etnz/cryptotax/renderer"
	"github.com/google/subcommands"
	"google.golang.org/genai"
)

const assistInstruction = `You are an accountant helping an Italian resident understand the crypto
section of their tax return. You are given the documentation of the tool
that computed the figures, then the fiscal year report. Answer in plain
language, quote the figures from the report, and never compute new figures:
when something is missing from the report, say so.`

// AssistCmd is the subcommand for the AI assistant.
type AssistCmd struct {
	year int
}

// Name returns the name of the command.
func (*AssistCmd) Name() string { return "assist" }

// Synopsis returns a short-one line synopsis of the command.
func (*AssistCmd) Synopsis() string { return "ask the AI assistant to explain a fiscal year report" }

// Usage returns a long-form usage string.
func (*AssistCmd) Usage() string {
	return `ctax assist [-y <year>] [question]

  Sends the fiscal year report to Gemini and prints its explanation. Requires
  the GEMINI_API_KEY environment variable.
`
}

// SetFlags sets the flags for the command.
func (c *AssistCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.year, "y", lastYear(), "Fiscal year")
}

// Execute executes the command.
func (c *AssistCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	question := "Explain this report: what do I declare, and why?"
	if f.NArg() > 0 {
		question = strings.Join(f.Args(), " ")
	}

	cfg, err := LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		return subcommands.ExitFailure
	}
	report, err := NewReport(ctx, cfg, c.year)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error computing report: %v\n", err)
		return subcommands.ExitFailure
	}
	manual, err := docs.GetTopics("*")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading doc: %v\n", err)
		return subcommands.ExitFailure
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  os.Getenv("GEMINI_API_KEY"),
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error initializing Gemini's client:", err)
		return subcommands.ExitFailure
	}

	answer, err := explain(ctx, client, cfg, manual, renderer.ReportMarkdown(report), question)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Assistant failed:", err)
		return subcommands.ExitFailure
	}
	printMarkdown(answer)
	return subcommands.ExitSuccess
}

// explain asks the model a single question about a rendered report.
func explain(ctx context.Context, client *genai.Client, cfg *cryptotax.Config, manual, report, question string) (string, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(assistInstruction, genai.RoleUser),
	}
	chat, err := client.Chats.Create(ctx, cfg.Gemini.Model, config, nil)
	if err != nil {
		return "", err
	}
	cfg.Logger.Debug().Str("model", cfg.Gemini.Model).Int("report_bytes", len(report)).Msg("asking the assistant")

	resp, err := chat.Send(ctx,
		&genai.Part{Text: manual},
		&genai.Part{Text: report},
		&genai.Part{Text: question},
	)
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no response from %s", cfg.Gemini.Model)
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		b.WriteString(part.Text)
	}
	return b.String(), nil
}
