// Package bindgen generates Go bindings for foreign modules.
//
// A Generator inspects each module of a configuration through the engine,
// then renders one file per module containing:
//
//   - an interface and proxy per class, embedding the base class
//     interface when the base is bound in the same module
//   - a New<Class> constructor
//   - a <Class>Class façade when the class has static methods
//   - a <Module>Module façade for module-level functions
//   - a Register<Module> function registering all of the above
//
// Foreign code carries no types, so parameters and results are any unless
// the target declares WIT-style signatures:
//
//	modules:
//	  - name: shapes
//	    signatures: |
//	      scale: func(shape: square, factor: s64) -> square;
//	      Square.grow: func(by: s64) -> square;
//
// Optional and variadic foreign parameters are passed through a trailing
// rest ...any.
package bindgen
