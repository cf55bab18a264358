// Package logger provides structured logging for gorpo built on zerolog.
//
// A single Logger is created at startup and handed down to components via
// WithComponent, which tags every entry with the component name. The global
// logger exists for call sites that have no handle, mostly cmd wiring.
package logger
