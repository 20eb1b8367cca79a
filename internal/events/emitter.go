package events

import (
	"context"

	"github.com/wailsapp/wails/v2/pkg/runtime"
)

// Emit delivers a notice to the frontend. The default is a no-op so the
// engine stays testable without a running shell; the shell swaps in the
// runtime emitter during startup.
var Emit = func(ctx context.Context, name string, notice Notice) {}

func EnableRuntimeEmitter() {
	Emit = func(ctx context.Context, name string, notice Notice) {
		if notice.SessionID == "" {
			if session := SessionFromContext(ctx); session != "" {
				notice.SessionID = session
			}
		}
		runtime.EventsEmit(ctx, name, notice)
	}
}

func SetCustomEmitter(f func(ctx context.Context, name string, notice Notice)) {
	if f == nil {
		Emit = func(context.Context, string, Notice) {}
		return
	}
	Emit = func(ctx context.Context, name string, notice Notice) {
		if notice.SessionID == "" {
			if session := SessionFromContext(ctx); session != "" {
				notice.SessionID = session
			}
		}
		f(ctx, name, notice)
	}
}
