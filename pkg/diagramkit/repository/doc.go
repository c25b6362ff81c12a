// Package repository persists diagrams.
//
// Three Store implementations share one contract:
//
//   - MemoryStore for tests and the default CLI server
//   - SQLiteStore for single-process deployments (pure Go driver, WAL mode)
//   - RedisStore for shared deployments, with optional expiry
//
// Payloads are native JSON unless WithCodec says otherwise, so a stored
// diagram can be read back with format.NativeConverter.
package repository
