package session

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"docchat/internal/domain"
)

// Asker answers a single question. The RAG service satisfies it.
type Asker interface {
	Ask(ctx context.Context, question string) (domain.Answer, error)
}

const divider = "------------------------------------------------------------"

// Run drives the interactive question loop until the reader is
// exhausted, the context is cancelled, or the user types an exit
// command. Errors from a single question are printed and the loop
// continues; only I/O failures end the session.
func Run(ctx context.Context, asker Asker, in io.Reader, out io.Writer) error {
	prompt := color.New(color.FgCyan, color.Bold).SprintFunc()
	heading := color.New(color.FgGreen, color.Bold).SprintFunc()
	errText := color.New(color.FgRed).SprintFunc()

	fmt.Fprintln(out, "Ask me anything about the documents in the knowledge base.")
	fmt.Fprintln(out, "Type 'quit' or 'exit' to stop.")
	fmt.Fprintln(out, divider)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprintf(out, "\n%s ", prompt("Your question:"))
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if isExit(question) {
			fmt.Fprintln(out, "Goodbye!")
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		answer, err := asker.Ask(ctx, question)
		if err != nil {
			fmt.Fprintf(out, "\n%s %v\n", errText("Error:"), err)
			if hint := domain.Hint(err); hint != "" {
				fmt.Fprintf(out, "%s %s\n", errText("Hint:"), hint)
			}
			continue
		}

		fmt.Fprintf(out, "\n%s\n%s\n", heading("ANSWER:"), answer.Text)
		if len(answer.Sources) > 0 {
			fmt.Fprintf(out, "\n%s\n", heading("SOURCES:"))
			for i, src := range answer.Sources {
				fmt.Fprintf(out, "  %d. %s\n     %s\n", i+1, src.Source, src.Preview)
			}
		}
		fmt.Fprintln(out, divider)
	}
}

func isExit(line string) bool {
	switch strings.ToLower(line) {
	case "quit", "exit", "q":
		return true
	}
	return false
}
