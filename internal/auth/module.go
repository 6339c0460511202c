package auth

import (
	"github.com/nagare-io/authgate/internal/auth/pending"
	"github.com/nagare-io/authgate/internal/auth/providers"
	"github.com/nagare-io/authgate/internal/config"
	"go.uber.org/fx"
)

// Module provides the authentication service dependencies
var Module = fx.Module("auth",
	fx.Provide(
		func(cfg *config.Config) (*config.OAuthConfig, error) {
			if err := cfg.ValidateServer(); err != nil {
				return nil, err
			}
			return cfg.OAuth, nil
		},
		fx.Annotate(
			providers.NewCognitoProvider,
			fx.As(new(providers.Provider)),
		),
		fx.Annotate(
			pending.NewMemoryStore,
			fx.As(new(pending.Store)),
		),
		NewService,
	),
)
