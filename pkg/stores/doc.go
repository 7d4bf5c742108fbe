// Package stores provides the compile cache. It includes an SQLite-based
// store with embedded migrations and an in-memory store, both holding
// compiled configurations keyed by request hash and a history of compile
// runs.
package stores
