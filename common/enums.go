// Package common keeps enumerations shared by configuration and processing
// packages.
package common

// Requested layout of compiled stylesheet.
// ENUM(nested, expanded, compact, compressed)
type OutputStyle int

// Dart Sass only knows two styles, legacy ones are rendered expanded.
func (s OutputStyle) Compressed() bool {
	return s == OutputStyleCompressed
}

// Which stylesheet compiler implementation to use.
// ENUM(embedded, cli)
type CompilerKind int
