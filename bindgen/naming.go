package bindgen

import (
	"go/token"
	"go/types"
	"strconv"
	"strings"
	"unicode"

	"github.com/wippyai/starbind/bind"
)

// words splits a foreign identifier on underscores and dashes.
func words(name string) []string {
	return strings.FieldsFunc(name, func(r rune) bool { return r == '_' || r == '-' })
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}

// exportedName turns a foreign name into an exported Go identifier. With
// conventions, snake_case becomes CamelCase; without, only the first
// letter is raised.
func exportedName(name string, conventions bool) string {
	var out string
	if conventions {
		var b strings.Builder
		for _, w := range words(name) {
			b.WriteString(upperFirst(w))
		}
		out = b.String()
	} else {
		out = upperFirst(strings.TrimLeft(name, "_"))
	}
	if out == "" {
		out = "X"
	}
	if !token.IsIdentifier(out) || !unicode.IsUpper([]rune(out)[0]) {
		out = "X" + out
	}
	return out
}

// methodName is exportedName plus a trailing underscore for names that
// would shadow a lifecycle method of bind.Binding.
func methodName(name string, conventions bool) string {
	n := exportedName(name, conventions)
	if bind.IsLifecycleMethod(n) {
		n += "_"
	}
	return n
}

// reservedParams are identifiers the rendered code uses itself.
var reservedParams = map[string]bool{"b": true, "p": true, "rest": true, "bind": true}

// paramName turns a foreign parameter name into a Go parameter name that
// does not collide with keywords, predeclared identifiers or the names in
// used. ignored counts parameters with no usable name.
func paramName(name string, conventions bool, used map[string]bool, ignored *int) string {
	var n string
	ws := words(name)
	switch {
	case len(ws) == 0:
		*ignored++
		n = "ignored" + strconv.Itoa(*ignored)
	case conventions:
		var b strings.Builder
		b.WriteString(lowerFirst(ws[0]))
		for _, w := range ws[1:] {
			b.WriteString(upperFirst(w))
		}
		n = b.String()
	default:
		n = name
	}
	if !token.IsKeyword(n) && !token.IsIdentifier(n) {
		n = "x" + n
	}
	if token.IsKeyword(n) || types.Universe.Lookup(n) != nil || reservedParams[n] {
		n += "_"
	}
	for base, i := n, 2; used[n]; i++ {
		n = base + strconv.Itoa(i)
	}
	used[n] = true
	return n
}

// uniqueName appends a counter until name is not in used.
func uniqueName(name string, used map[string]bool) string {
	n := name
	for i := 2; used[n]; i++ {
		n = name + strconv.Itoa(i)
	}
	used[n] = true
	return n
}

// fileName is the generated file name for module.
func fileName(module string) string {
	return strings.ReplaceAll(module, ".", "_") + "_bindings.go"
}

// isPrivate reports whether a foreign name is private by convention.
func isPrivate(name string) bool {
	return strings.HasPrefix(name, "_")
}
