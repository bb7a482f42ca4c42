package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/wippyai/starbind/bindgen"
	"github.com/wippyai/starbind/engine"
)

func newInspectCmd(opts *options) *cobra.Command {
	var interactive bool

	cmd := &cobra.Command{
		Use:   "inspect <module>",
		Short: "List the classes and functions of a module",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if interactive && !term.IsTerminal(int(os.Stdout.Fd())) {
				return fmt.Errorf("interactive mode needs a terminal")
			}

			in := opts.interpreter()
			defer in.Close()

			if interactive {
				return runInteractive(in, args[0], opts)
			}

			ins, err := bindgen.Inspect(in, args[0])
			if err != nil {
				return fmt.Errorf("inspect %s: %w", args[0], err)
			}
			printInspection(cmd.OutOrStdout(), ins)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "browse and call functions in a TUI")
	return cmd
}

func printInspection(w io.Writer, ins *bindgen.Inspection) {
	fmt.Fprintf(w, "module %s\n", ins.Module)

	for _, c := range ins.Classes {
		fmt.Fprintf(w, "\nclass %s", c.Name)
		if c.Base != "" {
			fmt.Fprintf(w, "(%s)", c.Base)
		}
		fmt.Fprintln(w)
		if c.Doc != "" {
			fmt.Fprintf(w, "  %q\n", c.Doc)
		}
		fmt.Fprintf(w, "  %s\n", formatSignature("__init__", c.Init))
		for _, m := range c.Methods {
			fmt.Fprintf(w, "  %s\n", formatSignature(m.Name, m))
		}
		for _, s := range c.Statics {
			fmt.Fprintf(w, "  static %s\n", formatSignature(s.Name, s))
		}
		for _, p := range c.Properties {
			fmt.Fprintf(w, "  property %s\n", p)
		}
		if chain := ins.Chain(c); len(chain) > 1 {
			for _, base := range chain[1:] {
				for _, m := range base.Methods {
					fmt.Fprintf(w, "  %s  (from %s)\n", formatSignature(m.Name, m), base.Name)
				}
			}
		}
	}

	if len(ins.Functions) > 0 {
		fmt.Fprintln(w, "\nfunctions")
		for _, f := range ins.Functions {
			fmt.Fprintf(w, "  %s\n", formatSignature(f.Name, f))
		}
	}
}

// callables lists what the TUI can call: functions, then classes.
func callables(ins *bindgen.Inspection) []funcInfo {
	var funcs []funcInfo
	for _, f := range ins.Functions {
		funcs = append(funcs, newFuncInfo(f.Name, f))
	}
	for _, c := range ins.Classes {
		funcs = append(funcs, newFuncInfo(c.Name, c.Init))
	}
	return funcs
}

func newFuncInfo(name string, sig engine.Signature) funcInfo {
	fi := funcInfo{name: name, display: formatSignature(name, sig)}
	if !sig.Known {
		fi.params = []paramInfo{{name: "args", hint: "comma-separated", split: true}}
		return fi
	}
	for i, p := range sig.Params {
		hint := "value"
		if i >= sig.Required {
			hint = "optional"
		}
		fi.params = append(fi.params, paramInfo{name: p, hint: hint, optional: i >= sig.Required})
	}
	if sig.Variadic {
		fi.params = append(fi.params, paramInfo{name: "*args", hint: "comma-separated", split: true, optional: true})
	}
	return fi
}
