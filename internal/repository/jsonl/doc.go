// Package jsonl provides a durable repository.Repository backed by a JSON
// Lines file.
//
// The first line of the file is a header holding the format version, the
// record type name, a revision and the column schema. Every following line
// is one record, encoded by a [Codec]. [FeatureCodec] writes GeoJSON
// features so the file can be read by any GeoJSON-aware tool.
//
// Reads are served by a memory.Repository loaded at [Open]. Inserts append
// lines; updates and deletes rewrite the whole file to a temporary file and
// rename it over the original. A failed write is rolled back in memory.
//
// [Store.Watch] follows changes made by other processes.
package jsonl
