package session

import (
	"github.com/foxseedlab/kikitori/internal/config"
	"github.com/foxseedlab/kikitori/internal/transcriber"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Handler, error) {
		cfg := do.MustInvoke[*config.Config](i)
		gw := do.MustInvoke[transcriber.Gateway](i)
		return NewHandler(gw, HandlerConfig{
			MaxUtteranceBytes: cfg.MaxUtteranceBytes,
			WriteTimeout:      cfg.WriteTimeout,
		}), nil
	})
}
