package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wippyai/starbind/bind"
	"github.com/wippyai/starbind/bindgen"
	"github.com/wippyai/starbind/engine"
)

type options struct {
	verbose bool
	path    []string
	log     *zap.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{log: zap.NewNop()}

	cmd := &cobra.Command{
		Use:           "starbind",
		Short:         "Bind Go interfaces to Starlark modules",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !opts.verbose {
				return nil
			}
			l, err := zap.NewDevelopment()
			if err != nil {
				return fmt.Errorf("create logger: %w", err)
			}
			opts.log = l
			engine.SetLogger(l)
			bind.SetLogger(l)
			bindgen.SetLogger(l)
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log debug output to stderr")
	cmd.PersistentFlags().StringSliceVar(&opts.path, "path", nil, "directories searched for .star modules (also STARBIND_PATH)")

	cmd.AddCommand(
		newGenCmd(opts),
		newInspectCmd(opts),
		newCallCmd(opts),
		newSchemaCmd(),
	)
	return cmd
}

// interpreter creates an interpreter searching extra, then --path, then
// STARBIND_PATH.
func (o *options) interpreter(extra ...string) *engine.Interpreter {
	dirs := append([]string(nil), extra...)
	dirs = append(dirs, o.path...)
	if p := os.Getenv("STARBIND_PATH"); p != "" {
		dirs = append(dirs, filepath.SplitList(p)...)
	}
	return engine.New(engine.WithSearchPath(dirs...), engine.WithLogger(o.log))
}
