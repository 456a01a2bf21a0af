package internal

import (
	"io"

	"github.com/starford/pathgraph/internal/graphstore"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config    *Config
	store     graphstore.Store
	logOutput io.Writer
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithStore replaces the store selected by the configuration. The caller keeps ownership.
func WithStore(s graphstore.Store) Option {
	return func(a *application) {
		a.store = s
	}
}

// WithLogOutput redirects the JSON logs (stdout by default).
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOutput = w
	}
}
