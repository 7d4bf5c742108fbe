// Package compiler produces a CompiledConfig from a set of configuration
// files.
//
// Compile runs the whole pipeline: the file graph is walked, the files are
// merged by weight, abstract definitions are expanded into the services that
// extend them, extensions are appended, tags are indexed and every value is
// resolved. The result records the files, environment variables and
// constants it depended on so that a cached copy can be validated later.
//
// CompiledConfigBuilder is the last stage on its own and accepts any Source,
// which keeps it usable without touching the filesystem.
package compiler
