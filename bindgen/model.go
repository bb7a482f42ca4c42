package bindgen

// Type is a Go type expression used in generated code.
type Type struct {
	Expr   string
	Native bool
	// Iface marks an interface generated for a foreign class.
	Iface bool
}

var anyType = Type{Expr: "any"}

// Param is one generated parameter.
type Param struct {
	Name string
	Type Type
}

// Method is one generated method or function. Op is the foreign attribute
// it dispatches to.
type Method struct {
	GoName string
	Op     string
	Doc    string
	Params []Param
	// Rest adds a trailing rest ...any for optional or variadic foreign
	// parameters.
	Rest   bool
	Result Type
	Void   bool
}

// Class is a generated interface, proxy and constructor for one foreign
// class.
type Class struct {
	Name   string
	GoName string
	Doc    string
	// Embed names the base interface when the base class is bound in the
	// same file.
	Embed string
	// Declared lists the methods the interface adds to Embed.
	Declared []Method
	// Methods lists every method the proxy implements.
	Methods []Method
	Init    Method
	Statics []Method
}

// ProxyName is the unexported proxy struct implementing the interface.
func (c Class) ProxyName() string { return lowerFirst(c.GoName) + "Proxy" }

// StaticsName is the class-object façade interface.
func (c Class) StaticsName() string { return c.GoName + "Class" }

// Import is an import of another generated package.
type Import struct {
	Alias string
	Path  string
}

// Module is everything generated for one foreign module.
type Module struct {
	Name      string
	Package   string
	GoName    string
	Register  string
	Imports   []Import
	Classes   []Class
	Functions []Method
	Globals   bool
}

// ProxyName is the unexported proxy struct of the module façade.
func (m Module) ProxyName() string { return lowerFirst(m.GoName) + "Proxy" }

// File is one generated source file.
type File struct {
	Module string
	Path   string
	Source []byte
}
