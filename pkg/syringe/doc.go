// Package syringe serves compiled service configurations.
//
// A Builder wraps the compiler with a persistent cache. Requests are keyed
// by the hash of their canonical form. A cached entry is served without
// touching the source files unless ValidateCache is set, in which case the
// files, environment variables and constants recorded at compile time are
// checked first and a stale entry is recompiled and replaced. Every request
// is recorded as a compile run in the store.
//
//	store, _ := stores.NewSQLiteStore(stores.Config{Path: "syringe.db"})
//	_ = store.Init(ctx)
//	_ = store.Migrate(ctx)
//
//	b := syringe.New(syringe.Options{Store: store, ValidateCache: true})
//	res, err := b.Build(ctx, compiler.Request{
//	    AppDir: "config",
//	    Files:  []compiler.FileSpec{{Path: "services.yml"}},
//	})
//
// A Watcher keeps a request compiled while its files are edited:
//
//	w := b.NewWatcher(req)
//	err := w.Run(ctx, func(res *syringe.Result, err error) { ... })
package syringe
