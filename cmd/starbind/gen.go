package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wippyai/starbind/bindgen"
	"github.com/wippyai/starbind/config"
)

func newGenCmd(opts *options) *cobra.Command {
	var (
		configPath string
		dryRun     bool
		noCache    bool
	)

	cmd := &cobra.Command{
		Use:   "gen",
		Short: "Generate Go bindings for the modules of a configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			in := opts.interpreter(cfg.SearchPath...)
			defer in.Close()

			genOpts := []bindgen.Option{bindgen.WithLogger(opts.log)}
			if !noCache {
				cache, err := config.DefaultCache()
				if err != nil {
					return err
				}
				genOpts = append(genOpts, bindgen.WithCache(cache))
			}
			g := bindgen.New(in, genOpts...)

			var files []bindgen.File
			if dryRun {
				files, err = g.Generate(cmd.Context(), cfg)
			} else {
				files, err = g.Run(cmd.Context(), cfg)
			}
			if err != nil {
				return fmt.Errorf("generate: %w", err)
			}

			out := cmd.OutOrStdout()
			for _, f := range files {
				if dryRun {
					fmt.Fprintf(out, "%s (%d bytes, not written)\n", f.Path, len(f.Source))
					continue
				}
				fmt.Fprintf(out, "wrote %s\n", f.Path)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "starbind.yaml", "binding configuration file")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "generate without writing files or updating the cache")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "do not consult or update the module cache")
	return cmd
}
