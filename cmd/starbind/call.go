package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wippyai/starbind/bind"
	"github.com/wippyai/starbind/engine"
)

func newCallCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "call <module> <op> [args...]",
		Short: "Call a module-level operation",
		Long: `Call a module-level operation and print its result.

Arguments are inferred: integers, floats, true/false and None become the
matching values, anything else is passed as a string. Quote a value to
force a string.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := opts.interpreter()
			defer in.Close()

			b, err := bind.NewBinder(in, bind.WithLogger(opts.log))
			if err != nil {
				return err
			}
			mod, err := openModule(b, args[0])
			if err != nil {
				return err
			}
			defer mod.Close()

			callArgs := make([]any, 0, len(args)-2)
			for _, a := range args[2:] {
				callArgs = append(callArgs, parseLiteral(a))
			}
			result, err := mod.CallForeign(args[1], callArgs...)
			if err != nil {
				return fmt.Errorf("call %s.%s: %w", args[0], args[1], err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatResult(result))
			return nil
		},
	}
}

// openModule imports a module and wraps it in a proxy without metadata.
func openModule(b *bind.Binder, name string) (*bind.Proxy, error) {
	ref, err := b.Bridge().Import(name)
	if err != nil {
		return nil, err
	}
	return b.Proxy(bind.NewHandle(b.Bridge(), ref, engine.TypeModule)), nil
}

// parseLiteral infers the value of a command-line argument.
func parseLiteral(s string) any {
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	switch s {
	case "true", "True":
		return true
	case "false", "False":
		return false
	case "None":
		return nil
	}
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}

// formatResult prints a result and releases it when it is a binding.
func formatResult(v any) string {
	switch v := v.(type) {
	case nil:
		return "None"
	case bind.Binding:
		defer v.Close()
		return fmt.Sprintf("%s (%s)", v.String(), v.Unwrap().TypeID())
	case string:
		return strconv.Quote(v)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	return fmt.Sprint(v)
}

// formatSignature renders a signature as name(a, b, opt?, *args).
func formatSignature(name string, sig engine.Signature) string {
	if !sig.Known {
		return name + "(...)"
	}
	params := make([]string, 0, len(sig.Params)+2)
	for i, p := range sig.Params {
		if i >= sig.Required {
			p += "?"
		}
		params = append(params, p)
	}
	if sig.Variadic {
		params = append(params, "*args")
	}
	if sig.Keywords {
		params = append(params, "**kwargs")
	}
	return name + "(" + strings.Join(params, ", ") + ")"
}
