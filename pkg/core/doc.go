// Package core defines the shared leaf types of the dbridge access layer.
//
// This package contains pure data types — connection configuration, schema
// descriptions, query results. The Golden Rule: pkg/core imports ONLY the
// standard library, so every other package can depend on it without cycles.
package core
