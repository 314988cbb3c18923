package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/jarvis/internal/calendar"
	"github.com/hpungsan/jarvis/internal/errors"
	"github.com/hpungsan/jarvis/internal/mcp"
	"github.com/hpungsan/jarvis/internal/ops"
	"github.com/hpungsan/jarvis/internal/triage"
	"github.com/hpungsan/jarvis/internal/web"
)

// maxStdinBytes bounds text and JSON read from stdin.
const maxStdinBytes = 1 << 20

// newCLIApp creates the CLI application with all commands. svc may be nil
// when only help or version output is needed.
func newCLIApp(svc *services) *cli.App {
	app := &cli.App{
		Name:    "jarvis",
		Usage:   "Capture triage and assistant sync",
		Version: Version,
		Commands: []*cli.Command{
			captureCmd(svc),
			classifyCmd(svc),
			listCmd(svc),
			fetchCmd(svc),
			searchCmd(svc),
			deleteCmd(svc),
			promoteCmd(svc),
			doneCmd(svc),
			purgeCmd(svc),
			eventsCmd(svc),
			createEventCmd(svc),
			statusCmd(svc),
			syncCmd(svc),
			serveCmd(svc),
			mcpCmd(svc),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// captureCmd creates the capture command.
func captureCmd(svc *services) *cli.Command {
	return &cli.Command{
		Name:      "capture",
		Usage:     "Store and classify a capture (text from args or stdin)",
		ArgsUsage: "[text...]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "tags", Usage: "Comma-separated tags"},
			&cli.StringFlag{Name: "source", Value: "cli", Usage: "Capture source"},
		},
		Action: func(c *cli.Context) error {
			text, err := inputText(c)
			if err != nil {
				return outputError(err)
			}

			svc.probe(c.Context)
			source := c.String("source")
			output, err := ops.Store(c.Context, svc.db, svc.cfg, svc.orch, ops.StoreInput{
				Content: text,
				Tags:    parseTags(c.String("tags")),
				Source:  &source,
			})
			if err != nil {
				return outputError(err)
			}
			if svc.client.Configured() {
				svc.orch.Sync(c.Context, map[string]any{"type": "capture", "capture": output})
			}

			return outputJSON(c.App.Writer, output)
		},
	}
}

// classifyCmd creates the classify command.
func classifyCmd(svc *services) *cli.Command {
	return &cli.Command{
		Name:      "classify",
		Usage:     "Classify text without storing it",
		ArgsUsage: "[text...]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "local", Usage: "Use only the local rules"},
		},
		Action: func(c *cli.Context) error {
			text, err := inputText(c)
			if err != nil {
				return outputError(err)
			}

			if c.Bool("local") {
				return outputJSON(c.App.Writer, triage.Analyze(text))
			}
			svc.probe(c.Context)
			return outputJSON(c.App.Writer, svc.orch.Analyze(c.Context, text))
		},
	}
}

// listCmd creates the list command.
func listCmd(svc *services) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List captures, newest first",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Usage: "task|event|study|project|idea"},
			&cli.StringFlag{Name: "category", Aliases: []string{"c"}, Usage: "saude|trabalho|negocio|pessoal|dev|geral"},
			&cli.StringFlag{Name: "processed", Usage: "Filter by processed state (true|false)"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultListLimit, Usage: "Max items"},
			&cli.IntFlag{Name: "offset", Usage: "Skip items"},
		},
		Action: func(c *cli.Context) error {
			input := ops.ListInput{
				Type:     c.String("type"),
				Category: c.String("category"),
				Limit:    c.Int("limit"),
				Offset:   c.Int("offset"),
			}
			if s := c.String("processed"); s != "" {
				v, err := strconv.ParseBool(s)
				if err != nil {
					return outputError(errors.NewInvalidRequest("processed must be true or false"))
				}
				input.Processed = &v
			}

			output, err := ops.List(c.Context, svc.db, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, output)
		},
	}
}

// fetchCmd creates the fetch command.
func fetchCmd(svc *services) *cli.Command {
	return &cli.Command{
		Name:      "fetch",
		Usage:     "Fetch a capture by ID",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "html", Usage: "Include the content rendered as HTML"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Fetch(svc.db, ops.FetchInput{
				ID:          c.Args().First(),
				IncludeHTML: c.Bool("html"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, output)
		},
	}
}

// searchCmd creates the search command.
func searchCmd(svc *services) *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search captures by text",
		ArgsUsage: "<query...>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "type", Aliases: []string{"t"}},
			&cli.StringFlag{Name: "category", Aliases: []string{"c"}},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultListLimit},
			&cli.IntFlag{Name: "offset"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Search(c.Context, svc.db, ops.SearchInput{
				Query:    strings.Join(c.Args().Slice(), " "),
				Type:     c.String("type"),
				Category: c.String("category"),
				Limit:    c.Int("limit"),
				Offset:   c.Int("offset"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, output)
		},
	}
}

// deleteCmd creates the delete command.
func deleteCmd(svc *services) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Permanently delete a capture",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			output, err := ops.Delete(c.Context, svc.db, ops.DeleteInput{ID: c.Args().First()})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, output)
		},
	}
}

// promoteCmd creates the promote command.
func promoteCmd(svc *services) *cli.Command {
	return &cli.Command{
		Name:      "promote",
		Usage:     "Turn a capture into a task or note draft and mark it processed",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "kind", Aliases: []string{"k"}, Value: string(ops.PromoteTask), Usage: "task|note"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Promote(c.Context, svc.db, ops.PromoteInput{
				ID:   c.Args().First(),
				Kind: ops.PromoteKind(c.String("kind")),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, output)
		},
	}
}

// doneCmd creates the done command.
func doneCmd(svc *services) *cli.Command {
	return &cli.Command{
		Name:      "done",
		Usage:     "Mark a capture processed without promoting it",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			output, err := ops.MarkProcessed(c.Context, svc.db, ops.MarkProcessedInput{ID: c.Args().First()})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, output)
		},
	}
}

// purgeCmd creates the purge command.
func purgeCmd(svc *services) *cli.Command {
	return &cli.Command{
		Name:  "purge",
		Usage: "Permanently delete processed captures",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "older-than", Usage: "Only purge if processed more than N days ago (e.g., 7d); default 30d"},
		},
		Action: func(c *cli.Context) error {
			input := ops.PurgeInput{}
			if olderThan := c.String("older-than"); olderThan != "" {
				days, err := parseDuration(olderThan)
				if err != nil {
					return outputError(errors.NewInvalidRequest(err.Error()))
				}
				input.OlderThanDays = &days
			}

			output, err := ops.Purge(c.Context, svc.db, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, output)
		},
	}
}

// eventsCmd creates the events command.
func eventsCmd(svc *services) *cli.Command {
	return &cli.Command{
		Name:  "events",
		Usage: "Upcoming calendar events (demo events when the calendar is unavailable)",
		Action: func(c *cli.Context) error {
			return outputJSON(c.App.Writer, svc.calendar.FetchEvents(c.Context))
		},
	}
}

// createEventCmd creates the create-event command.
func createEventCmd(svc *services) *cli.Command {
	return &cli.Command{
		Name:  "create-event",
		Usage: "Create a calendar event",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "summary", Aliases: []string{"s"}},
			&cli.StringFlag{Name: "description", Aliases: []string{"d"}},
			&cli.StringFlag{Name: "location"},
			&cli.TimestampFlag{Name: "start", Layout: time.RFC3339, Usage: "RFC 3339 start (default now)"},
			&cli.TimestampFlag{Name: "end", Layout: time.RFC3339, Usage: "RFC 3339 end (default start + 1h)"},
		},
		Action: func(c *cli.Context) error {
			created, err := svc.calendar.CreateEvent(c.Context, calendar.EventInput{
				Summary:     c.String("summary"),
				Description: c.String("description"),
				Location:    c.String("location"),
				Start:       c.Timestamp("start"),
				End:         c.Timestamp("end"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, map[string]any{"status": "success", "event": created})
		},
	}
}

// statusCmd creates the status command.
func statusCmd(svc *services) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Probe the assistant service and print the connectivity state",
		Action: func(c *cli.Context) error {
			svc.probe(c.Context)
			return outputJSON(c.App.Writer, svc.orch.Status())
		},
	}
}

// syncCmd creates the sync command.
func syncCmd(svc *services) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Push a JSON document from stdin to the assistant service",
		Action: func(c *cli.Context) error {
			if !stdinHasData() {
				return outputError(errors.NewInvalidRequest("JSON data must be piped via stdin"))
			}
			raw, err := readStdin(maxStdinBytes)
			if err != nil {
				return outputError(errors.NewInvalidRequest(err.Error()))
			}
			if !json.Valid([]byte(raw)) {
				return outputError(errors.NewInvalidRequest("stdin is not valid JSON"))
			}

			output, err := svc.orch.SyncNow(c.Context, json.RawMessage(raw))
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, output)
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(svc *services) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP JSON API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Usage: "Bind address (default from config)"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "Port (default from config)"},
		},
		Action: func(c *cli.Context) error {
			bind := svc.cfg.Web.Bind
			if c.IsSet("bind") {
				bind = c.String("bind")
			}
			port := svc.cfg.Web.Port
			if c.IsSet("port") {
				port = c.Int("port")
			}

			ctx, cancel := context.WithCancel(c.Context)
			defer cancel()
			svc.orch.Start(ctx)

			srv := web.NewServer(svc.web(), Version, bind, port)
			return web.Run(ctx, srv, svc.logger)
		},
	}
}

// mcpCmd creates the mcp command.
func mcpCmd(svc *services) *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Run the MCP server on stdio (the default when stdin is piped)",
		Action: func(c *cli.Context) error {
			return runMCP(c.Context, svc)
		},
	}
}

func runMCP(ctx context.Context, svc *services) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	svc.orch.Start(ctx)
	return mcp.Run(svc.mcp(), Version)
}

// Helper functions

// outputJSON marshals result as indented JSON.
func outputJSON(w io.Writer, v any) error {
	if w == nil {
		w = os.Stdout
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if jErr, ok := errors.As(err); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", jErr.Code, jErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// inputText returns the positional args joined, or stdin when there are none.
func inputText(c *cli.Context) (string, error) {
	if c.NArg() > 0 {
		return strings.Join(c.Args().Slice(), " "), nil
	}
	if !stdinHasData() {
		return "", errors.NewInvalidRequest("text must be given as arguments or piped via stdin")
	}
	text, err := readStdin(maxStdinBytes)
	if err != nil {
		return "", errors.NewInvalidRequest(err.Error())
	}
	return text, nil
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads at most limit bytes from stdin.
func readStdin(limit int64) (string, error) {
	data, err := io.ReadAll(io.LimitReader(os.Stdin, limit+1))
	if err != nil {
		return "", err
	}
	if int64(len(data)) > limit {
		return "", fmt.Errorf("stdin exceeds %d bytes", limit)
	}
	return strings.TrimSpace(string(data)), nil
}

// parseTags splits a comma-separated string into a slice of tags.
func parseTags(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// parseDuration parses "7d" format to days.
func parseDuration(s string) (int, error) {
	if numStr, ok := strings.CutSuffix(s, "d"); ok {
		days, err := strconv.Atoi(numStr)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		if days < 0 {
			return 0, fmt.Errorf("duration must be non-negative")
		}
		return days, nil
	}
	return 0, fmt.Errorf("duration must end with 'd' (days), e.g., 7d")
}
