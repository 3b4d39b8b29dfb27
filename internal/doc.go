// Package internal contains the core implementation packages for srcanalyze.
//
// This package follows Go's internal package convention, making these
// packages unavailable for import by external modules while providing
// all the core functionality for the srcanalyze CLI tool.
//
// # Package Organization
//
// The internal packages are organized by functional domain:
//
//   - build: Scheduler, staleness checks, command synthesis, worker pool and metrics
//   - components: Component ownership and per-component build settings
//   - config: Configuration management with validation
//   - errors: Typed analysis errors and a concurrent failure collector
//   - logging: Structured logging and the serialized console
//   - scanner: Source tree walking, classification and directory exclusion
//   - types: Tasks and results shared between packages
//   - watcher: File system monitoring with debouncing
//
// # Data Flow
//
// One run moves files through a fixed sequence of stages:
//
//   - Scanner walks the source root, pruning excluded directories
//   - Build checks each analyzable file against its artifact
//   - Components resolves the owning component's settings
//   - Build synthesizes the analyzer command and queues the task
//   - Workers run analyzers and report to the result processor
//
// Traversal is the only producer; workers are the only consumers. A run
// finishes when traversal is done and every queued task has completed.
package internal
