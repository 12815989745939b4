// Package plan computes, for every field of a message, how the field is
// stored and accessed in the generated C++ class.
//
// For each field the planner decides, in order: the storage type from the
// logical type, the quantifier and the datatype option; the passing
// convention of the accessors; the accessor methods; the constructor
// parameter or member initializer; and the presence bit. The result is a
// pure function of the field, its resolved options and the names of its
// target type, so planning the same field twice yields the same plan.
package plan
