// Package gen renders C++ code from planned schema packages.
//
// Each package of the build produces a header (acme/shop.h) with its enums
// and value classes, and an implementation file (acme/shop.cc) with the
// out-of-line members and the lazily built reflection descriptors. With the
// reflection feature, the build also produces descriptor_set.h and
// descriptor_set.cc, which own one descriptor slot per message.
//
// # Rendering
//
// A Renderer holds one record per message and moves it strictly forward
// through the states unplanned, planned, declared and implemented. The
// implementation walk follows nested classes and the message fields that
// point into the same package; a message already implemented, or still on
// the walk, is skipped, so recursive and self-referential graphs render
// every message exactly once.
//
// Nested messages and enums are emitted at namespace level under their
// flattened names (Order_Line) and aliased inside the enclosing class
// (using Line = Order_Line). Every class is forward declared, so only
// value containment orders the class definitions: a class is defined
// after the classes it contains by value. A containment cycle cannot be
// rendered and is reported as a planning error.
//
// # Features
//
//   - reflection: GetMessageDescriptor and the descriptor set (default on)
//   - separate-inlines: accessors as inline functions after all classes
//   - services: command tables of services (default on, needs reflection)
//
// Example:
//
//	cfg, err := gen.NewConfig(gen.WithTarget("out"), gen.WithFeatures(gen.FeatureSeparateInlines))
//	if err != nil {
//		return err
//	}
//	g, err := gen.New(cfg, set, report)
//	if err != nil {
//		return err
//	}
//	for _, a := range g.Artifacts() {
//		b, err := a.Render()
//		...
//	}
package gen
