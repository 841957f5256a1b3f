package server

import (
	"log/slog"

	"github.com/foxseedlab/kikitori/internal/config"
	"github.com/foxseedlab/kikitori/internal/session"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Server, error) {
		c := do.MustInvoke[*config.Config](i)
		handler := do.MustInvoke[*session.Handler](i)
		if c.AllowsAnyOrigin() {
			slog.Warn("stream endpoint accepts connections from any origin")
		}
		return New(Config{
			Addr:            c.ListenAddr,
			StreamPath:      c.StreamPath,
			StaticDir:       c.StaticDir,
			AllowedOrigins:  c.AllowedOrigins,
			MaxMessageBytes: c.MaxMessageBytes,
			WriteTimeout:    c.WriteTimeout,
		}, handler), nil
	})
}
