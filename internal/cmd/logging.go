package cmd

import (
	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
)

// newLogger builds the logr.Logger sink used throughout internal/netwatch
// and internal/watch, following the zapr.NewLogger(zap.New...) composition
// kubernaut uses to unify structured logging behind logr.
func newLogger(verbose bool) logr.Logger {
	var zl *zap.Logger
	var err error
	if verbose {
		zl, err = zap.NewDevelopment()
	} else {
		zl, err = zap.NewProduction()
	}
	if err != nil {
		return logr.Discard()
	}
	return zapr.NewLogger(zl)
}
