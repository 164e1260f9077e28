// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// The sync state machine, the job queue and the batch engine live here.
// Services never import adapters; tests wire them over the in-memory ones.
package services
