// Package binding resolves how to read the identifier, the geometry and the
// attributes of an arbitrary record type without reflective invocation.
//
// # Usage
//
// A caller describes a type once with plain getter functions and registers
// the description in a [Registry] it owns:
//
//	reg := binding.NewRegistry()
//	set, err := binding.Register(reg, binding.Describe[*Stop]("Stop").
//		ID(func(s *Stop) uint32 { return s.ID }).
//		Geometry(func(s *Stop) orb.Geometry { return s.Location }).
//		Attribute(
//			binding.Attr("Name", func(s *Stop) string { return s.Name }, binding.Ordinal(1)),
//			binding.Attr("Zone", func(s *Stop) int { return s.Zone }, binding.Nullable()),
//		))
//
// The returned [AccessorSet] is immutable. Its column schema starts with the
// identifier column followed by the attributes sorted by ordinal, ties kept in
// declaration order.
//
// Registration errors match errs.ErrConfiguration and are never retried.
package binding
