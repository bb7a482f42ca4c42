// Package errors provides structured error types for starbind.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type includes rich context: foreign attribute path, Go and foreign type
// names, and cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseCall, errors.KindTypeMismatch).
//		Path("math", "sqrt").
//		HostType("float64").
//		ForeignType("string").
//		Detail("cannot extract a number").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.ForeignInvocation(errors.PhaseImport, []string{"pathlib"}, cause)
//	err := errors.DoubleRelease("pathlib.PosixPath")
//
// Every Kind has a sentinel (ErrConfiguration, ErrMappingConflict, ErrUnresolvedMapping,
// ErrForeignInvocation, ErrLifecycle, ...) that matches errors of that Kind in any Phase:
//
//	if errors.Is(err, errors.ErrLifecycle) { ... }
package errors
