// Package options resolves the option set of every schema element.
//
// Options come from four layers, applied from the least to the most
// specific: global defaults per element kind, per-package overrides keyed by
// dotted element path, per-service overrides, and the options declared
// inline in the schema. The configuration file holding the first three
// layers is TOML or YAML; see Config.
//
// Resolution is deterministic: elements are visited in declaration order
// and the layers are only looked up by key. Errors are local to the element
// that caused them and collected in a Report together with the warnings.
package options
