package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var (
	eventsServerURL string
	eventsFormat    string
	eventsTimeout   time.Duration

	// create/update body flags
	eventsData        string
	eventsTitle       string
	eventsDate        string
	eventsDescription string
)

// eventsCmd groups the API client subcommands
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Manage events on a running server",
	Long: `Manage events through the REST API of a running server.

Examples:
  # List all events
  server events list

  # Show one event as JSON
  server events get V1StGXR8 --format json

  # Create an event
  server events create --title "Meetup" --date 2026-11-02 --description "Monthly meetup"

  # Add arbitrary fields with a JSON body
  server events update V1StGXR8 --data '{"location":"Hall B"}'

  # Delete an event
  server events delete V1StGXR8`,
}

var eventsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all events",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := doEventsRequest(cmd.Context(), http.MethodGet, "/events", nil)
		if err != nil {
			return err
		}
		var items []map[string]any
		if err := json.Unmarshal(body, &items); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
		return printEvents(cmd.OutOrStdout(), items)
	},
}

var eventsGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show a single event",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := doEventsRequest(cmd.Context(), http.MethodGet, eventPath(args[0]), nil)
		if err != nil {
			return err
		}
		return printEventBody(cmd.OutOrStdout(), body)
	},
}

var eventsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an event",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		payload, err := buildEventPayload()
		if err != nil {
			return err
		}
		body, err := doEventsRequest(cmd.Context(), http.MethodPost, "/events", payload)
		if err != nil {
			return err
		}
		return printEventBody(cmd.OutOrStdout(), body)
	},
}

var eventsUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Merge fields into an existing event",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		payload, err := buildEventPayload()
		if err != nil {
			return err
		}
		body, err := doEventsRequest(cmd.Context(), http.MethodPut, eventPath(args[0]), payload)
		if err != nil {
			return err
		}
		return printEventBody(cmd.OutOrStdout(), body)
	},
}

var eventsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an event",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := doEventsRequest(cmd.Context(), http.MethodDelete, eventPath(args[0]), nil); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
		return nil
	},
}

func init() {
	eventsCmd.PersistentFlags().StringVar(&eventsServerURL, "server", "http://localhost:8080", "events API base URL")
	eventsCmd.PersistentFlags().StringVar(&eventsFormat, "format", "table", "output format (table, json)")
	eventsCmd.PersistentFlags().DurationVar(&eventsTimeout, "timeout", 10*time.Second, "request timeout")

	for _, c := range []*cobra.Command{eventsCreateCmd, eventsUpdateCmd} {
		c.Flags().StringVar(&eventsData, "data", "", "JSON object with the event fields")
		c.Flags().StringVar(&eventsTitle, "title", "", "event title")
		c.Flags().StringVar(&eventsDate, "date", "", "event date")
		c.Flags().StringVar(&eventsDescription, "description", "", "event description")
	}

	eventsCmd.AddCommand(eventsListCmd, eventsGetCmd, eventsCreateCmd, eventsUpdateCmd, eventsDeleteCmd)
}

func eventPath(id string) string {
	return "/events/" + url.PathEscape(strings.TrimSpace(id))
}

// buildEventPayload merges --data with the named field flags. Named flags
// win over the same keys in --data.
func buildEventPayload() ([]byte, error) {
	fields := map[string]any{}
	if strings.TrimSpace(eventsData) != "" {
		if err := json.Unmarshal([]byte(eventsData), &fields); err != nil {
			return nil, fmt.Errorf("--data must be a JSON object: %w", err)
		}
	}
	if eventsTitle != "" {
		fields["title"] = eventsTitle
	}
	if eventsDate != "" {
		fields["date"] = eventsDate
	}
	if eventsDescription != "" {
		fields["description"] = eventsDescription
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("no fields given: use --data or --title/--date/--description")
	}
	return json.Marshal(fields)
}

func doEventsRequest(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, eventsTimeout)
	defer cancel()

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(eventsServerURL, "/")+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach server: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, responseError(resp.StatusCode, body)
	}
	return body, nil
}

// responseError prefers the problem title/detail when the server sent one.
func responseError(status int, body []byte) error {
	var problem struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &problem); err == nil && problem.Title != "" {
		if problem.Detail != "" && problem.Detail != problem.Title {
			return fmt.Errorf("server returned %d: %s: %s", status, problem.Title, problem.Detail)
		}
		return fmt.Errorf("server returned %d: %s", status, problem.Title)
	}
	return fmt.Errorf("server returned %d: %s", status, strings.TrimSpace(string(body)))
}

func printEventBody(w io.Writer, body []byte) error {
	var event map[string]any
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	if eventsFormat == "json" {
		return writeIndented(w, event)
	}
	return printEvents(w, []map[string]any{event})
}

func printEvents(w io.Writer, items []map[string]any) error {
	if eventsFormat == "json" {
		if items == nil {
			items = []map[string]any{}
		}
		return writeIndented(w, items)
	}

	if len(items) == 0 {
		_, err := fmt.Fprintln(w, "No events found.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\tTITLE\tDATE\tDESCRIPTION\n")
	for _, event := range items {
		desc := getString(event, "description")
		if len(desc) > 60 {
			desc = desc[:57] + "..."
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", getString(event, "id"), getString(event, "title"), getString(event, "date"), desc)
	}
	return tw.Flush()
}

func writeIndented(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to format JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

func getString(m map[string]any, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
