// Package processor finds annotated declarations in Go packages and expands
// their macros into generated source files.
//
// Annotations live at the end of a declaration's doc comment, one or more
// per line:
//
//	// UserService looks up users.
//	//
//	// @Injectable(scope: .singleton)
//	// @DebugContainer
//	type UserService struct { ... }
//
// Everything in the doc comment before the first line that starts with '@'
// is ordinary documentation. Tool directives like //go:generate are ignored.
//
// Processor Invocation
//
// The key type is processor.Config. It names the packages to process, the
// macros to expand and the output factory, which controls where generated
// files are actually written. After a Config is constructed, its Execute
// method loads and parses the packages, extracts annotations and then expands
// them, one package at a time. Expansions within a package run concurrently.
//
// Each source file foo.go with annotations gets one generated file,
// foo_macros.go (or foo_macros_test.go for test files), in the same package.
// A file whose expansions report errors is not written. Generated
// declarations may not collide with declarations that already exist in the
// package or with each other.
//
// There is also a shortcut, Process, that creates a Config with typical
// settings and calls its Execute method.
//
// Macros
//
// The built-in macros are registered by the macros package, which this
// package imports. Custom macros can be registered with macro.Register before
// Execute is called, or passed explicitly in Config.Macros.
package processor
