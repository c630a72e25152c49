// Package document provides the in-memory shared document: an ordered
// sequence of lines, each holding its raw bytes and a render form with tabs
// expanded.
//
// The package provides:
//
//   - Four primitive mutations: InsertLine, DeleteLine, InsertCharAt, DeleteCharAt
//   - Line helpers composed from them: AppendString, SplitLine, MergeIntoPrevious
//   - Apply, which executes an edit.Op with peer-replay semantics
//   - Replace, a destructive snapshot overwrite
//
// Bounds:
//
// Any operation whose row or column lies outside the current document is a
// silent no-op. Mutators return false in that case and leave the document
// untouched. Remote peers send absolute coordinates without sequencing, so a
// replica that has drifted will drop such ops without noticing.
//
// Thread Safety:
//
// Document is not safe for concurrent use. The collaboration coordinator
// owns the single instance and serializes every access to it.
package document
