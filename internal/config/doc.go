// Package config defines the format-agnostic configuration model for a
// report run, along with the Loader interface for reading it from disk.
//
// The config.Model is the single source of truth for the expand package.
// Concrete loaders, such as for HCL, are provided in separate packages.
package config
