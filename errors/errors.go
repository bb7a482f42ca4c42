package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseStartup   Phase = "startup"   // runtime bootstrap
	PhaseImport    Phase = "import"    // foreign module import
	PhaseAttribute Phase = "attribute" // attribute lookup on a foreign object
	PhaseConstruct Phase = "construct" // foreign class instantiation
	PhaseCall      Phase = "call"      // foreign operation call
	PhaseMarshal   Phase = "marshal"   // foreign to Go value conversion
	PhaseRegister  Phase = "register"  // interface and type registration
	PhaseValidate  Phase = "validate"  // binding metadata validation
	PhaseRelease   Phase = "release"   // handle release
	PhaseParse     Phase = "parse"     // config and signature parsing
	PhaseGenerate  Phase = "generate"  // binding code generation
)

// Kind categorizes the error
type Kind string

const (
	KindConfiguration     Kind = "configuration"
	KindMappingConflict   Kind = "mapping_conflict"
	KindUnresolvedMapping Kind = "unresolved_mapping"
	KindForeignInvocation Kind = "foreign_invocation"
	KindLifecycle         Kind = "lifecycle"
	KindTypeMismatch      Kind = "type_mismatch"
	KindNotFound          Kind = "not_found"
	KindInvalidInput      Kind = "invalid_input"
)

// Sentinels for errors.Is. They carry no Phase, so they match any error of their Kind.
var (
	ErrConfiguration     = &Error{Kind: KindConfiguration}
	ErrMappingConflict   = &Error{Kind: KindMappingConflict}
	ErrUnresolvedMapping = &Error{Kind: KindUnresolvedMapping}
	ErrForeignInvocation = &Error{Kind: KindForeignInvocation}
	ErrLifecycle         = &Error{Kind: KindLifecycle}
	ErrTypeMismatch      = &Error{Kind: KindTypeMismatch}
	ErrNotFound          = &Error{Kind: KindNotFound}
)

// Error is the structured error type used throughout starbind
type Error struct {
	Value       any
	Cause       error
	Phase       Phase
	Kind        Kind
	HostType    string
	ForeignType string
	Detail      string
	Path        []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.HostType != "" || e.ForeignType != "" {
		b.WriteString(": ")
		if e.HostType != "" && e.ForeignType != "" {
			b.WriteString("Go type ")
			b.WriteString(e.HostType)
			b.WriteString(", foreign type ")
			b.WriteString(e.ForeignType)
		} else if e.HostType != "" {
			b.WriteString("Go type ")
			b.WriteString(e.HostType)
		} else {
			b.WriteString("foreign type ")
			b.WriteString(e.ForeignType)
		}
	}

	if e.Detail != "" {
		if e.HostType != "" || e.ForeignType != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// A target without a Phase matches on Kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase == "" {
		return e.Kind == t.Kind
	}
	return e.Phase == t.Phase && e.Kind == t.Kind
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the foreign attribute path (module, class, operation)
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// HostType sets the Go type name
func (b *Builder) HostType(t string) *Builder {
	b.err.HostType = t
	return b
}

// ForeignType sets the foreign runtime type identity
func (b *Builder) ForeignType(t string) *Builder {
	b.err.ForeignType = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// Configuration creates a configuration error for missing or malformed binding metadata
func Configuration(phase Phase, hostType, detail string) *Error {
	return &Error{
		Phase:    phase,
		Kind:     KindConfiguration,
		HostType: hostType,
		Detail:   detail,
	}
}

// MappingConflict creates an error for a registration over a native scalar identity
func MappingConflict(hostType, foreignType, owner string) *Error {
	return &Error{
		Phase:       PhaseRegister,
		Kind:        KindMappingConflict,
		HostType:    hostType,
		ForeignType: foreignType,
		Detail:      fmt.Sprintf("foreign type is bound to native %s", owner),
	}
}

// UnresolvedMapping creates an error for a foreign value whose type has no usable host type
func UnresolvedMapping(declared, foreignType, detail string) *Error {
	return &Error{
		Phase:       PhaseMarshal,
		Kind:        KindUnresolvedMapping,
		HostType:    declared,
		ForeignType: foreignType,
		Detail:      detail,
	}
}

// ForeignInvocation wraps a failure raised while crossing into the foreign runtime
func ForeignInvocation(phase Phase, path []string, cause error) *Error {
	return &Error{
		Phase: phase,
		Kind:  KindForeignInvocation,
		Path:  path,
		Cause: cause,
	}
}

// UseAfterRelease creates a lifecycle error for access to a released handle
func UseAfterRelease(phase Phase, foreignType string) *Error {
	return &Error{
		Phase:       phase,
		Kind:        KindLifecycle,
		ForeignType: foreignType,
		Detail:      "handle used after release",
	}
}

// DoubleRelease creates a lifecycle error for a second release of the same handle
func DoubleRelease(foreignType string) *Error {
	return &Error{
		Phase:       PhaseRelease,
		Kind:        KindLifecycle,
		ForeignType: foreignType,
		Detail:      "handle already released",
	}
}

// TypeMismatch creates a type mismatch error
func TypeMismatch(phase Phase, path []string, hostType, foreignType string) *Error {
	return &Error{
		Phase:       phase,
		Kind:        KindTypeMismatch,
		Path:        path,
		HostType:    hostType,
		ForeignType: foreignType,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// ParseFailed creates a parsing error
func ParseFailed(what string, cause error) *Error {
	return &Error{
		Phase:  PhaseParse,
		Kind:   KindInvalidInput,
		Detail: fmt.Sprintf("parse %s", what),
		Cause:  cause,
	}
}

// UnboundMethodsError is returned when an interface declares methods that carry no operation binding
type UnboundMethodsError struct {
	Interface string
	Methods   []string
}

// NewUnboundMethodsError creates an error listing the unbound methods of an interface
func NewUnboundMethodsError(iface string, methods []string) *UnboundMethodsError {
	return &UnboundMethodsError{
		Interface: iface,
		Methods:   methods,
	}
}

func (e *UnboundMethodsError) Error() string {
	if len(e.Methods) == 0 {
		return "[validate] configuration: no methods specified"
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("[validate] configuration: %s has %d method(s) without an operation binding:\n", e.Interface, len(e.Methods)))
	for _, m := range e.Methods {
		b.WriteString("    - ")
		b.WriteString(m)
		b.WriteByte('\n')
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Is reports whether target matches this error type.
// UnboundMethodsError is a configuration error.
func (e *UnboundMethodsError) Is(target error) bool {
	switch t := target.(type) {
	case *UnboundMethodsError:
		return true
	case *Error:
		return t.Kind == KindConfiguration && (t.Phase == "" || t.Phase == PhaseValidate)
	}
	return false
}
