// Package cppgen compiles protobuf-like schema descriptions into C++ value
// classes with lazily-built reflection tables.
//
// The pipeline is:
//
//	schema files ──▶ compiler/load (parse or cache-load)
//	             ──▶ compiler/options (layered option resolution)
//	             ──▶ compiler/plan (per-field storage/accessor plans)
//	             ──▶ compiler/gen (declaration/implementation rendering)
//	             ──▶ compiler/build (staleness + content-equality gated writes)
//
// This package holds the error taxonomy shared by every stage:
// ConfigurationError, PlanningError, RenderError and CacheError, plus the
// non-blocking Warning.
package cppgen

// Version of the generator.
const Version = "0.4.0"
