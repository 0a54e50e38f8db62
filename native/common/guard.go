package common

import (
	"context"
	"errors"
)

var ErrModulePaused = errors.New("module paused")

type PauseView interface {
	IsPaused(ctx context.Context, module string) bool
}

func Guard(ctx context.Context, p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(ctx, module) {
		return ErrModulePaused
	}
	return nil
}
