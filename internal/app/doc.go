// Package app wires one report run together: configuration loading, state
// resolution, data fetching, artifact scheduling, and page writing.
package app
