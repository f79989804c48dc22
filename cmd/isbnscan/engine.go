package main

import (
	"log/slog"

	"github.com/jackzampolin/isbnscan/internal/config"
	"github.com/jackzampolin/isbnscan/internal/discovery"
	"github.com/jackzampolin/isbnscan/internal/toolchain"
)

// newTools builds the external-program collaborators for cfg.
func newTools(cfg *config.Config, logger *slog.Logger) (*toolchain.Set, error) {
	tcfg, err := cfg.ToToolchainConfig()
	if err != nil {
		return nil, err
	}
	return toolchain.New(tcfg, logger), nil
}

// newEngine builds a discovery engine backed by the external programs.
// Workspaces go under the home scratch directory unless temp_dir is set.
// obs may be nil.
func (a *app) newEngine(cfg *config.Config, obs discovery.Observer) (*discovery.Engine, error) {
	tools, err := newTools(cfg, a.logger)
	if err != nil {
		return nil, err
	}
	opts, err := cfg.ToDiscoveryOptions()
	if err != nil {
		return nil, err
	}
	if opts.TempDir == "" {
		if err := a.home.EnsureExists(); err != nil {
			return nil, err
		}
		opts.TempDir = a.home.TempDir(opts.TempDir)
	}
	return discovery.New(opts, discovery.Collaborators{
		Classifier: tools.MIME,
		Archiver:   tools.Archiver,
		Converter:  tools.Converter,
		Metadata:   tools.Metadata,
		OCR:        tools.OCR,
		Observer:   obs,
	}, a.logger)
}
