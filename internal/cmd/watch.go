package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomasbasham/cli-runtime/iooption"
	"github.com/tomasbasham/cli-runtime/templates"

	"github.com/felipeplets/percy-cli/internal/watch"
)

type WatchOptions struct {
	root    *PercyOptions
	outFile *os.File

	URL                 string
	NavigationTimeout   time.Duration
	TotalTimeout        time.Duration
	Intercept           bool
	DisableCache        bool
	EnableJavaScript    bool
	AllowedHostnames    []string
	DisallowedHostnames []string
	OutPath             string

	iooption.IOStreams
}

var (
	watchLong = templates.LongDesc(``)

	watchExample = templates.Examples(``)
)

func NewWatchOptions(root *PercyOptions) *WatchOptions {
	return &WatchOptions{
		root:      root,
		IOStreams: root.IOStreams,
	}
}

func NewWatchCommand(o *WatchOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:                   "watch [URL]",
		DisableFlagsInUseLine: true,
		Short:                 "Watch a page and report the network assets it discovers",
		Long:                  watchLong,
		Example:               watchExample,
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

	pflags := cmd.PersistentFlags()

	pflags.DurationVarP(&o.NavigationTimeout, "navigation-timeout", "n", 10*time.Second, "Navigation timeout duration")
	pflags.DurationVarP(&o.TotalTimeout, "total-timeout", "t", 30*time.Second, "Total watch timeout duration")
	pflags.BoolVar(&o.Intercept, "intercept", false, "Intercept requests via the Fetch domain instead of only observing")
	pflags.BoolVar(&o.DisableCache, "disable-cache", false, "Only fulfil root or explicitly provided cache entries")
	pflags.BoolVar(&o.EnableJavaScript, "enable-javascript", false, "Capture script/XHR/fetch/eventsource bodies in addition to visual assets")
	pflags.StringSliceVar(&o.AllowedHostnames, "allow-hostname", nil, "Hostname globs whose responses may be captured (repeatable)")
	pflags.StringSliceVar(&o.DisallowedHostnames, "disallow-hostname", nil, "Hostname globs blocked from the network (repeatable)")
	pflags.StringVarP(&o.OutPath, "out", "o", "", "Manifest output file (default: stdout)")

	return cmd
}

func (o *WatchOptions) Complete(cmd *cobra.Command, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("URL is required")
	}
	o.URL = args[0]
	return nil
}

func (o *WatchOptions) Validate() error {
	if len(o.URL) == 0 {
		return fmt.Errorf("URL is required")
	}

	if o.OutPath != "" {
		f, err := os.Create(o.OutPath)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		o.outFile = f // store for later cleanup.
	}

	return nil
}

func (o *WatchOptions) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if o.outFile != nil {
		defer o.outFile.Close()
	}

	fmt.Fprintf(o.Out, "Watching %s...\n", o.URL)
	result, err := watch.Run(ctx, watch.Options{
		URL:                 o.URL,
		NavigationTimeout:   o.NavigationTimeout,
		TotalTimeout:        o.TotalTimeout,
		Intercept:           o.Intercept,
		DisableCache:        o.DisableCache,
		EnableJavaScript:    o.EnableJavaScript,
		AllowedHostnames:    o.AllowedHostnames,
		DisallowedHostnames: o.DisallowedHostnames,
		Logger:              newLogger(o.root.Verbose),
	})
	if err != nil {
		return fmt.Errorf("watch failed: %w", err)
	}

	fmt.Fprintf(o.Out, "Watch complete: requestsSeen=%d resourcesCaptured=%d resourcesFulfilled=%d timedOut=%t\n",
		result.Stats.RequestsSeen, result.Stats.ResourcesCaptured, result.Stats.ResourcesFulfilled, result.TimedOut)
	if result.TimedOut {
		fmt.Fprintln(o.ErrOut, "Watch timed out before networkIdle; manifest may be incomplete")
	}

	manifestJSON, err := json.MarshalIndent(result.Resources, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	dest := o.outFile
	if dest == nil {
		fmt.Fprintln(o.Out, string(manifestJSON))
		return nil
	}

	if _, err := dest.Write(manifestJSON); err != nil {
		return fmt.Errorf("failed to write manifest file: %w", err)
	}

	return nil
}
