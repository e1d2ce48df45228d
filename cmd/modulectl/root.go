package main

import (
	"os"
	"time"

	"github.com/GriffinCanCode/AdminConsole/backend/internal/client"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const defaultServer = "http://localhost:8000"

type rootOptions struct {
	server  string
	timeout time.Duration
	retries int
	verbose bool
	json    bool
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "modulectl",
		Short:         "Operate the admin console module registry",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	server := os.Getenv("MODULECTL_SERVER")
	if server == "" {
		server = defaultServer
	}
	cmd.PersistentFlags().StringVar(&opts.server, "server", server, "registry server base URL")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 60*time.Second, "request timeout")
	cmd.PersistentFlags().IntVar(&opts.retries, "retries", 3, "retries for reads and imports")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log requests and retries")
	cmd.PersistentFlags().BoolVar(&opts.json, "json", false, "print raw JSON")

	cmd.AddCommand(
		newStatusCommand(opts),
		newRediscoverCommand(opts),
		newExportCommand(opts),
		newImportCommand(opts),
		newTransitionCommand(opts, "validate", "Validate a discovered module"),
		newTransitionCommand(opts, "activate", "Activate a module"),
		newTransitionCommand(opts, "disable", "Disable an active module"),
		newRemoveCommand(opts),
		newPurgeCommand(opts),
	)
	return cmd
}

func (o *rootOptions) client() *client.Client {
	logger := zap.NewNop()
	if o.verbose {
		if l, err := zap.NewDevelopment(); err == nil {
			logger = l
		}
	}

	cfg := client.DefaultConfig(o.server)
	cfg.Timeout = o.timeout
	cfg.MaxRetries = o.retries
	return client.New(cfg, logger)
}
