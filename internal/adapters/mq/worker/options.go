package worker

import (
	"github.com/okian/oralscan/pkg/logger"
)

// Option applies a configuration option to the Pool.
type Option func(*Pool)

// WithOutputWidth makes workers reject distributions whose length is not n.
func WithOutputWidth(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.width = n
		}
	}
}

// WithLogger sets a custom logger for the pool.
func WithLogger(l logger.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.logger = l
		}
	}
}
