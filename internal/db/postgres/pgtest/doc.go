// Package pgtest starts a throwaway PostgreSQL container for integration tests.
// Build with -tags integration; Docker is required.
package pgtest
