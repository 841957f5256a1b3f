package gemini

import (
	"context"

	"github.com/foxseedlab/kikitori/internal/config"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Client, error) {
		c := do.MustInvoke[*config.Config](i)
		return NewClient(context.Background(), Config{
			APIKey: c.GeminiAPIKey,
			Model:  c.GeminiModel,
		})
	})
}
