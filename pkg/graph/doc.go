// Package graph turns the requested configuration files into the ordered list
// of file units that make up one compilation.
//
// Files are looked up in the search paths from the most recently added path
// to the first. Every loaded file adds its own directory as the most local
// search path for the files it references, so a file's relative imports
// resolve next to it first.
//
// A file's inherit target is placed before it and its imports after it, all
// under the same namespace. Vendor isolation stops a library under the vendor
// directory from resolving files through the application's search paths.
package graph
