// Package core provides the CSV normalization pipeline and the in-memory
// dataset cache.
//
// The package holds all domain logic independent of any transport. It can be
// used by web handlers, CLI tools, or tests without modification.
//
// # Pipeline
//
// Raw text becomes a cached dataset in three steps:
//
//  1. [Parse] splits the text into rows. The first non-blank row is the header.
//  2. [NormalizeHeaders] turns header cells into unique snake_case names.
//  3. [Infer] types each cell as null, boolean, number, date or string.
//
// Rows whose field count differs from the header are returned as [ParseError]
// values next to the good records; one bad row never fails the whole file.
//
//	res := core.Parse("Region,Units\nNorth,10\nSouth,20\n")
//	// res.Columns == []string{"region", "units"}
//	v, _ := res.Records[0].Get("units") // Number(10)
//
// # Dataset Cache
//
// [Cache] maps names to immutable [Dataset] values. [Cache.Load] replaces a
// name atomically; concurrent readers see the old or the new dataset, never a
// mix. [Cache.Get] returns a dataset with an optional record sample,
// [Cache.Preview] the first few records, and [Cache.List] a summary of every
// dataset in load order.
//
// # Service
//
// [Service] is the entry point used by the server. It loads inline text
// ([Service.LoadText]), files, directories and archives ([Service.LoadPath]),
// or a YAML manifest of paths ([Service.LoadManifest]). Parsing is bounded by
// a [LoadLimiter]; loads of one name are serialized. Every attempt, including
// failures, is kept in a bounded in-memory [AuditLog].
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - DS001-DS002: Dataset errors (not found, invalid name)
//   - FILE001-FILE005: File errors (size, encoding, format)
//   - SRC001-SRC004: Source errors (unsupported type, corrupt archive, missing path)
//   - LOAD001-LOAD004: Load errors (busy, cancelled, timeout)
//   - REQ001-REQ002: Request errors (bad parameter, bad body)
//   - RATE001: Too many requests
package core
