package bindgen

import (
	"regexp"
	"strings"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/starbind/errors"
)

// signature is a declared function type. Types are kept as text until the
// module's classes are known.
type signature struct {
	names     []string
	params    []string
	result    string
	hasResult bool
}

var funcPattern = regexp.MustCompile(`([a-zA-Z_][a-zA-Z0-9_.-]*)\s*:\s*func\s*\(([^)]*)\)(?:\s*->\s*([^;]+))?`)

// parseSignatures extracts function signatures from WIT-style text:
//
//	sqrt: func(x: f64) -> f64;
//	Square.grow: func(by: s64);
//
// A dotted name scopes the signature to one class.
func parseSignatures(text string) (map[string]signature, error) {
	sigs := make(map[string]signature)
	if strings.TrimSpace(text) == "" {
		return sigs, nil
	}

	for _, match := range funcPattern.FindAllStringSubmatch(text, -1) {
		name := match[1]
		paramsStr := strings.TrimSpace(match[2])
		resultStr := strings.TrimSpace(match[3])

		var sig signature
		if paramsStr != "" {
			for _, p := range splitParams(paramsStr) {
				name, typ := "", p
				if idx := strings.LastIndex(p, ":"); idx != -1 {
					name = strings.TrimSpace(p[:idx])
					typ = strings.TrimSpace(p[idx+1:])
				}
				sig.names = append(sig.names, name)
				sig.params = append(sig.params, typ)
			}
		}
		if resultStr != "" && resultStr != "()" {
			sig.result = resultStr
			sig.hasResult = true
		}
		sigs[name] = sig
	}

	if len(sigs) == 0 {
		return nil, errors.InvalidInput(errors.PhaseParse, "no functions found in signature text")
	}
	return sigs, nil
}

// splitParams splits a parameter list, keeping nested parentheses and
// angle brackets together.
func splitParams(s string) []string {
	var result []string
	var current strings.Builder
	depth := 0

	for _, ch := range s {
		switch ch {
		case '(', '<':
			depth++
			current.WriteRune(ch)
		case ')', '>':
			depth--
			current.WriteRune(ch)
		case ',':
			if depth == 0 {
				if str := strings.TrimSpace(current.String()); str != "" {
					result = append(result, str)
				}
				current.Reset()
			} else {
				current.WriteRune(ch)
			}
		default:
			current.WriteRune(ch)
		}
	}

	if str := strings.TrimSpace(current.String()); str != "" {
		result = append(result, str)
	}
	return result
}

// scalarType maps a WIT primitive to its native Go host type. Anything
// that is not a primitive scalar maps to any.
func scalarType(s string) (Type, error) {
	t, err := wit.ParseType(strings.TrimSpace(s))
	if err != nil {
		return Type{}, errors.ParseFailed("type "+s, err)
	}

	switch t.(type) {
	case wit.Bool:
		return Type{Expr: "bool", Native: true}, nil
	case wit.S8, wit.S16, wit.S32, wit.S64, wit.U8, wit.U16, wit.U32, wit.U64:
		return Type{Expr: "int", Native: true}, nil
	case wit.F32, wit.F64:
		return Type{Expr: "float64", Native: true}, nil
	case wit.String, wit.Char:
		return Type{Expr: "string", Native: true}, nil
	}
	return anyType, nil
}
