package config

import "context"

// Loader abstracts the configuration format from the application. Load reads
// every definition file reachable from the given paths and returns the merged
// model.
type Loader interface {
	Load(ctx context.Context, paths ...string) (*Model, error)
}
