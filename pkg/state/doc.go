// Package state captures what a compiled configuration depended on so a
// cached copy can be checked before reuse.
//
// A Snapshot records every source file (modification time and SHA-256 of its
// content), every environment variable that was read and every constant that
// was read. Reuse is all or nothing: one changed input invalidates the whole
// artifact.
package state
