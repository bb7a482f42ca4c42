package bindgen

import (
	"bytes"
	"go/format"
	"strconv"
	"strings"
	"text/template"

	"github.com/wippyai/starbind/errors"
)

var fileTemplate = template.Must(template.New("file").Funcs(template.FuncMap{
	"sig":      methodSig,
	"params":   paramList,
	"args":     callArgs,
	"result":   resultType,
	"comment":  comment,
	"quote":    strconv.Quote,
	"ops":      opsList,
	"hasOps":   func(ms []Method) bool { return len(ms) > 0 },
	"lowFirst": lowerFirst,
}).Parse(`// Code generated by starbind from module {{.Name}}. DO NOT EDIT.

package {{.Package}}

import (
	"github.com/wippyai/starbind/bind"
{{- range .Imports}}
	{{.Alias}} {{quote .Path}}
{{- end}}
)
{{range .Classes}}{{$c := .}}
{{comment (print .GoName " is the foreign class " $.Name "." .Name ".") .Doc ""}}
type {{.GoName}} interface {
{{- if .Embed}}
	{{.Embed}}
{{- else}}
	bind.Binding
{{- end}}
{{- range .Declared}}
{{comment (print .GoName " calls " .Op ".") .Doc "\t"}}
	{{sig .}}
{{- end}}
}

type {{.ProxyName}} struct{ *bind.Proxy }
{{range .Methods}}
func (p {{$c.ProxyName}}) {{sig .}} {
	{{template "call" .}}
}
{{end}}
// {{.Init.GoName}} constructs {{$.Name}}.{{.Name}}.
func {{.Init.GoName}}(b *bind.Binder{{if or .Init.Params .Init.Rest}}, {{params .Init}}{{end}}) ({{.GoName}}, error) {
	return bind.New[{{.GoName}}](b{{args .Init}})
}
{{if .Statics}}
// {{.StaticsName}} is the class object of {{$.Name}}.{{.Name}}.
type {{.StaticsName}} interface {
	bind.Binding
{{- range .Statics}}
{{comment (print .GoName " calls " .Op ".") .Doc "\t"}}
	{{sig .}}
{{- end}}
}

type {{lowFirst .StaticsName}}Proxy struct{ *bind.Proxy }
{{range .Statics}}
func (p {{lowFirst $c.StaticsName}}Proxy) {{sig .}} {
	{{template "call" .}}
}
{{end}}
// {{.GoName}}Statics returns the class object of {{$.Name}}.{{.Name}}.
func {{.GoName}}Statics(b *bind.Binder) ({{.StaticsName}}, error) {
	return bind.Static[{{.StaticsName}}](b)
}
{{end}}{{end}}
{{- if .Globals}}
// {{.GoName}} exposes the functions of module {{.Name}}.
type {{.GoName}} interface {
	bind.Binding
{{- range .Functions}}
{{comment (print .GoName " calls " .Op ".") .Doc "\t"}}
	{{sig .}}
{{- end}}
}

type {{.ProxyName}} struct{ *bind.Proxy }
{{range .Functions}}
func (p {{$.ProxyName}}) {{sig .}} {
	{{template "call" .}}
}
{{end}}
// Open{{.GoName}} imports module {{.Name}}.
func Open{{.GoName}}(b *bind.Binder) ({{.GoName}}, error) {
	return bind.Static[{{.GoName}}](b)
}
{{end}}
// {{.Register}} registers the bindings of module {{.Name}} with b.
func {{.Register}}(b *bind.Binder) error {
{{- range .Classes}}
	if err := bind.Register[{{.GoName}}](b, bind.Interface{
		Class: &bind.ClassBinding{Module: {{quote $.Name}}, Name: {{quote .Name}}},
{{- if hasOps .Methods}}
		Methods: bind.Ops({{ops .Methods}}),
{{- end}}
		New: func(p *bind.Proxy) bind.Binding { return {{.ProxyName}}{p} },
	}); err != nil {
		return err
	}
{{- if .Statics}}
	if err := bind.Register[{{.StaticsName}}](b, bind.Interface{
		Class:   &bind.ClassBinding{Module: {{quote $.Name}}, Name: {{quote .Name}}},
		Methods: bind.Ops({{ops .Statics}}),
		New:     func(p *bind.Proxy) bind.Binding { return {{lowFirst .StaticsName}}Proxy{p} },
	}); err != nil {
		return err
	}
{{- end}}
{{- end}}
{{- if .Globals}}
	if err := bind.Register[{{.GoName}}](b, bind.Interface{
		Module: &bind.ModuleBinding{Name: {{quote .Name}}},
{{- if hasOps .Functions}}
		Methods: bind.Ops({{ops .Functions}}),
{{- end}}
		New: func(p *bind.Proxy) bind.Binding { return {{.ProxyName}}{p} },
	}); err != nil {
		return err
	}
{{- end}}
	return nil
}
{{define "call"}}{{if .Void}}return bind.CallVoid(p.Proxy, {{quote .GoName}}{{args .}}){{else}}return bind.Call[{{result .}}](p.Proxy, {{quote .GoName}}{{args .}}){{end}}{{end}}
`))

// Render produces the gofmt'ed source of m.
func Render(m *Module) ([]byte, error) {
	var buf bytes.Buffer
	if err := fileTemplate.Execute(&buf, m); err != nil {
		return nil, errors.Wrap(errors.PhaseGenerate, errors.KindInvalidInput, err, "render module "+m.Name)
	}
	src, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, errors.New(errors.PhaseGenerate, errors.KindInvalidInput).
			Path(m.Name).
			Cause(err).
			Detail("generated code does not parse").
			Value(buf.String()).
			Build()
	}
	return src, nil
}

func methodSig(m Method) string {
	if m.Void {
		return m.GoName + "(" + paramList(m) + ") error"
	}
	return m.GoName + "(" + paramList(m) + ") (" + resultType(m) + ", error)"
}

func paramList(m Method) string {
	parts := make([]string, 0, len(m.Params)+1)
	for _, p := range m.Params {
		parts = append(parts, p.Name+" "+p.Type.Expr)
	}
	if m.Rest {
		parts = append(parts, "rest ...any")
	}
	return strings.Join(parts, ", ")
}

// callArgs renders the variadic tail of a bind call, including the
// leading comma.
func callArgs(m Method) string {
	names := make([]string, 0, len(m.Params))
	for _, p := range m.Params {
		names = append(names, p.Name)
	}
	switch {
	case len(names) == 0 && !m.Rest:
		return ""
	case !m.Rest:
		return ", " + strings.Join(names, ", ")
	case len(names) == 0:
		return ", rest..."
	}
	return ", append([]any{" + strings.Join(names, ", ") + "}, rest...)..."
}

func resultType(m Method) string {
	return m.Result.Expr
}

// comment renders a doc comment: a summary line, then doc text.
func comment(summary, doc, indent string) string {
	lines := []string{indent + "// " + summary}
	if doc = strings.TrimSpace(doc); doc != "" {
		lines = append(lines, indent+"//")
		for _, l := range strings.Split(doc, "\n") {
			l = strings.TrimSpace(l)
			if l == "" {
				lines = append(lines, indent+"//")
				continue
			}
			lines = append(lines, indent+"// "+l)
		}
	}
	return strings.Join(lines, "\n")
}


func opsList(ms []Method) string {
	parts := make([]string, 0, 2*len(ms))
	for _, m := range ms {
		parts = append(parts, strconv.Quote(m.GoName), strconv.Quote(m.Op))
	}
	return strings.Join(parts, ", ")
}
