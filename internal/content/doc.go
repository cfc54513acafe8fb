// Package content provides the file tree the site listener serves.
//
// A [Snapshot] is an fs.FS plus metadata about where it came from. It is
// produced by [LoadDir] from a local public directory, or by an [S3Loader]
// that downloads a .tar.gz bundle, verifies its SHA-256 and unpacks it into
// memory. The [Manager] holds the active snapshot behind an atomic pointer so
// request handlers never lock.
//
// Bundle extraction enforces a maximum compressed size, a per-file size, a
// total extracted size and rejects absolute or traversing paths.
package content
