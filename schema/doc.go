// Package schema provides the in-memory object model of a schema file.
//
// A schema file describes one Package holding Messages, Enums and Services.
// The model is produced by a parser (see compiler/load), numbered once by
// Package.Number, resolved against the other packages of a build by
// Set.Resolve, annotated with resolved options by compiler/options and then
// treated as read-only by the planner and the renderer.
//
// # Arena
//
// Messages and Enums are addressed by a package-wide integer id assigned in
// pre-order by Package.Number:
//
//	pkg.Number()
//	msg := pkg.Message(3)
//	enum := pkg.Enum(0)
//
// Field references are plain data (Ref) rather than pointers, so reference
// cycles between messages never become pointer cycles and a Package can be
// serialized as-is into the schema cache.
//
// # Options
//
// Every element carries inline options as declared in the schema and a
// resolved OptionSet. Built-in options have ids below CustomThreshold and
// typed accessors; everything at or above the threshold is a custom
// extension carried opaquely.
package schema
