// Package app defines common runtime contracts shared by the cmd/*
// entrypoints (inspector server, development node, migration runner).
//
// It lets commands start application components without depending on their
// concrete implementations.
package app

import "context"

// Runner represents a runnable application component. Run blocks until ctx
// is canceled or the component fails.
type Runner interface {
	Run(ctx context.Context) error
}
