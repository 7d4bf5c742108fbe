// Package aggregate folds the weighted entries of all loaded files into one
// configuration.
//
// Parameters and services are last-writer-wins after a stable sort by
// weight, which lets the application's root files (weight 10) override
// explicitly namespaced keys (weight 5), which in turn override a library's
// own keys (weight 1). Extensions never override; their call lists are
// concatenated.
package aggregate
