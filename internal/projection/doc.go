// Package projection exposes a repository as rows of features for tabular
// consumers such as map layers and exporters.
//
// A [Provider] runs the repository selections, applies an optional record
// filter and materializes every matching record into a [Feature]: its
// identifier, its geometry and its attribute values in column order. A
// selection returns a [Table] named after the repository.
//
// Reading an attribute can fail. The whole query then fails with an error
// matching errs.ErrMaterialization that names the record and the column; a
// Table never holds partial rows.
package projection
