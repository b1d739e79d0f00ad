// Package config defines the format-agnostic site definition model: typed
// variables, resource declarations, content enumerations and output bindings.
// Everything downstream of the loader works against this model, never against
// raw HCL structures.
package config
