package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomasbasham/cli-runtime/templates"

	"github.com/felipeplets/percy-cli/internal/server"
	"github.com/felipeplets/percy-cli/internal/storage"
	"github.com/felipeplets/percy-cli/internal/watch"
	"github.com/felipeplets/percy-cli/internal/watchop"
)

type ServeOptions struct {
	root *PercyOptions

	Port              int
	GCSBucket         string
	NavigationTimeout time.Duration
	TotalTimeout      time.Duration
}

var (
	serveLong = templates.LongDesc(`Start the watch-session HTTP server.`)

	serveExample = templates.Examples(`
		# Start on the default port
		percy serve

		# Start on a custom port with a specific GCS bucket
		percy serve --port 9090 --bucket my-percy-bucket`)
)

func NewServeOptions(root *PercyOptions) *ServeOptions {
	return &ServeOptions{root: root}
}

func NewServeCommand(o *ServeOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Start the watch-session HTTP server",
		Long:    serveLong,
		Example: serveExample,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.Complete(cmd, args); err != nil {
				return err
			}
			if err := o.Validate(); err != nil {
				return err
			}
			return o.Run()
		},
	}

	cmd.Flags().IntVarP(&o.Port, "port", "p", 8080, "Port to listen on")
	cmd.Flags().StringVarP(&o.GCSBucket, "bucket", "b", "", "GCS bucket name for manifest storage (local directory used when empty)")
	cmd.Flags().DurationVarP(&o.NavigationTimeout, "navigation-timeout", "n", 10*time.Second, "Default navigation timeout for watches")
	cmd.Flags().DurationVarP(&o.TotalTimeout, "total-timeout", "t", 30*time.Second, "Default total timeout for watches")

	return cmd
}

func (o *ServeOptions) Complete(cmd *cobra.Command, args []string) error {
	return nil
}

func (o *ServeOptions) Validate() error {
	return nil
}

func (o *ServeOptions) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var uploader storage.Uploader
	var err error

	if o.GCSBucket != "" {
		uploader, err = storage.NewGCSUploader(ctx, o.GCSBucket)
		if err != nil {
			return fmt.Errorf("failed to initialise GCS uploader: %w", err)
		}
	} else {
		path, wdErr := os.Getwd()
		if wdErr != nil {
			return fmt.Errorf("failed to get current working directory: %w", wdErr)
		}
		uploader, err = storage.NewLocalUploader(path)
		if err != nil {
			return fmt.Errorf("failed to initialise local uploader: %w", err)
		}
	}

	store := watchop.NewMemoryStore()

	defaults := watch.Options{
		NavigationTimeout: o.NavigationTimeout,
		TotalTimeout:      o.TotalTimeout,
		Logger:            newLogger(o.root.Verbose),
	}

	srv := server.New(store, uploader, defaults)

	addr := fmt.Sprintf(":%d", o.Port)
	fmt.Printf("Starting percy watch server on %s\n", addr)
	return srv.ListenAndServe(addr)
}
