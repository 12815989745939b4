// Package load discovers schema files and loads them into schema
// packages.
//
// A Parser turns the text of one schema file into a schema.Package. The
// YAMLParser reads the YAML description format:
//
//	package: acme.shop
//	imports: [acme.common]
//	options: {namespace: "acme::shop"}
//	messages:
//	  - name: First
//	    fields:
//	      - {name: a, type: int32, label: required, number: 1, default: "0"}
//	      - {name: b, type: Second, label: optional, number: 2}
//
// A Loader with a cache directory keeps a msgpack blob of every parsed
// package under <cache>/schemas. The blob is guarded by a build.Rule whose
// dependency is the schema file, so an untouched file is decoded from its
// blob without invoking the parser. A corrupt blob is reported as a
// CacheError, logged, and the file is parsed again.
package load
