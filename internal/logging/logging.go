// Package logging constructs the process-wide zap logger.
package logging

import "go.uber.org/zap"

// New builds a development logger (human-readable, debug-level) or a
// production logger (JSON, info-level) depending on dev.
func New(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
