package cmd

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

func TestRootHelpAndFlags(t *testing.T) {
	tests := []struct {
		args    []string
		want    string
		wantErr bool
	}{
		{args: []string{"--help"}, want: "Events API server"},
		{args: []string{"-h"}, want: "server events --help"},
		{args: []string{"--no-such-flag"}, want: "unknown flag: --no-such-flag", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.args[0], func(t *testing.T) {
			var out bytes.Buffer
			root := newRootCommand()
			root.SetOut(&out)
			root.SetErr(&out)
			root.SetArgs(tt.args)

			err := root.Execute()
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			require.Contains(t, out.String(), tt.want)
		})
	}
}

func TestRootGlobalFlags(t *testing.T) {
	root := newRootCommand()
	for _, name := range []string{"config", "log-level", "log-format"} {
		require.NotNil(t, root.PersistentFlags().Lookup(name), name)
	}
}

func TestRootSubcommands(t *testing.T) {
	root := newRootCommand()

	names := map[string]bool{}
	for _, sub := range root.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"serve", "version", "healthcheck", "events", "loadtest"} {
		require.True(t, names[want], "missing subcommand %q", want)
	}
}

func TestRootResolvesServe(t *testing.T) {
	found, _, err := rootCmd.Find([]string{"serve"})
	require.NoError(t, err)
	require.Same(t, serveCmd, found)
}

// newRootCommand builds a root that never starts a server. The shared
// subcommands are moved onto it from wherever a previous test left them.
func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:  rootCmd.Use,
		Long: rootCmd.Long,
		RunE: func(*cobra.Command, []string) error { return nil },
	}
	addGlobalFlags(root)

	for _, sub := range []*cobra.Command{versionCmd, healthcheckCmd, eventsCmd, loadtestCmd} {
		if sub.HasParent() {
			sub.Parent().RemoveCommand(sub)
		}
		root.AddCommand(sub)
	}
	root.AddCommand(newServeCommand())
	return root
}

// newServeCommand mirrors serveCmd's flags without its RunE.
func newServeCommand() *cobra.Command {
	var (
		host, store string
		port        int
		watch       bool
	)
	serve := &cobra.Command{
		Use:   serveCmd.Use,
		Short: serveCmd.Short,
		Long:  serveCmd.Long,
		RunE:  func(*cobra.Command, []string) error { return nil },
	}
	serve.Flags().StringVar(&host, "host", "", "server host address (default: 0.0.0.0)")
	serve.Flags().IntVar(&port, "port", 0, "server port (default: 8080)")
	serve.Flags().StringVar(&store, "store", "", "path of the JSON document (default: db.json)")
	serve.Flags().BoolVar(&watch, "watch", false, "reload the document when it changes on disk")
	return serve
}
