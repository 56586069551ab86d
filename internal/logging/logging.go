// Package logging builds the zap.Logger every other package receives
// by dependency injection, so nothing below cmd/paramhunt reaches for a
// global logger.
package logging

import "go.uber.org/zap"

// New builds a human-readable console logger in verbose mode, or a
// warn-and-above logger otherwise.
func New(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	if !verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	cfg.DisableStacktrace = true
	return cfg.Build()
}
