// Package engine embeds the Starlark interpreter and exposes the boundary
// primitives the binding core is built on.
//
// Every foreign object handed to Go is stored in a reference table and
// addressed by a Ref. A Ref stays valid until it is passed to Release;
// afterwards every primitive rejects it with a lifecycle error.
//
// # Boundary primitives
//
//	Import(module)            load a module (builtin or <name>.star on the search path)
//	GetAttr(ref, name)        attribute lookup on a module, class or instance
//	Call(ref, op, args)       call a named operation on an object
//	Invoke(ref, args)         call the object itself (functions, class construction)
//	TypeOf(ref)               runtime type identity
//	Str / Equal / Hash        native string conversion, equality and hashing
//	AsString/AsInt/AsBool/AsFloat   scalar extraction
//	Eval(expr)                evaluate a literal expression
//	Release(ref)              drop the reference
//
// All primitives of all interpreters are serialized behind a single
// process-wide lock. The Starlark runtime itself is safe for concurrent use
// only across independent threads, and bound objects are shared freely
// between goroutines, so one critical section guards every crossing.
//
// # Type identities
//
// Scalars report their Starlark type names (int, float, bool, string,
// NoneType). Instances of classes report the qualified class name, for
// example pathlib.PosixPath, so that subclasses have identities distinct from
// their bases.
//
// # Classes
//
// Starlark has no classes. The engine adds them: Class is a callable type
// with methods, static functions and an optional base class, and Instance is
// an object with settable fields whose attribute lookup walks the base chain.
// Scripts declare classes with the class builtin:
//
//	def _init(self, start):
//	    self.value = start
//
//	def _inc(self, n):
//	    self.value += n
//	    return self.value
//
//	Counter = klass("Counter", __init__ = _init, inc = _inc)
//
// # Builtin modules
//
//	math, time, json   from go.starlark.net/lib
//	pathlib            PurePath, PurePosixPath, Path and PosixPath
package engine
