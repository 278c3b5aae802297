package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	cliflag "github.com/tomasbasham/cli-runtime/flag"
	"github.com/tomasbasham/cli-runtime/iooption"
	"github.com/tomasbasham/cli-runtime/printer"
	"github.com/tomasbasham/cli-runtime/templates"
)

var (
	rootLong = templates.LongDesc(``)

	rootExamples = templates.Examples(``)

	// Injected at build time using ldflags.
	version = ""
	commit  = ""
)

// PercyOptions defines the options for the `percy` command.
type PercyOptions struct {
	iooption.IOStreams

	Verbose bool
}

// NewPercyOptions provides an initialised PercyOptions instance.
func NewPercyOptions(streams iooption.IOStreams) *PercyOptions {
	return &PercyOptions{
		IOStreams: streams,
	}
}

// NewRootCommand creates the `percy` command with default arguments.
func NewRootCommand() *cobra.Command {
	options := NewPercyOptions(iooption.IOStreams{
		In:     os.Stdin,
		Out:    os.Stdout,
		ErrOut: os.Stderr,
	})

	return NewRootCommandWithArgs(options)
}

// NewRootCommandWithArgs creates the `percy` command and its nested
// children.
func NewRootCommandWithArgs(o *PercyOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:                   "percy [command]",
		Version:               versionInfo(),
		DisableFlagsInUseLine: true,
		Short:                 "Browser-driven network asset discovery tool",
		Long:                  rootLong,
		Example:               rootExamples,
		SilenceErrors:         true,
		SilenceUsage:          true,
	}

	printerOpts := printer.WarningPrinterOptions{Color: true}
	printer := printer.NewWarningPrinter(o.ErrOut, printerOpts)
	cmd.SetGlobalNormalizationFunc(cliflag.WarnWordSepNormalizeFunc(printer))

	cmd.PersistentFlags().BoolVarP(&o.Verbose, "verbose", "v", false, "Enable verbose (development) logging")

	cmd.AddCommand(NewWatchCommand(NewWatchOptions(o)))
	cmd.AddCommand(NewServeCommand(NewServeOptions(o)))

	// The global normalisation function ensures that all flags specified meet
	// the desired format, changing users' input if necessary.
	cmd.SetGlobalNormalizationFunc(cliflag.WordSepNormalizeFunc())

	return cmd
}

func versionInfo() string {
	if version == "" {
		return ""
	}
	return fmt.Sprintf("%s (commit: %s)", version, commit)
}
