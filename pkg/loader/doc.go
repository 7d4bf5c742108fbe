// Package loader decodes configuration files into plain documents.
//
// Loaders exist for YAML (.yml, .yaml), JSON (.json), TOML (.toml), CUE
// (.cue) and Starlark (.star). Every loader produces the same shape: nested map[string]any and
// []any values with string, bool, int, float64 and nil leaves. A Registry
// picks the loader by file extension.
package loader
