package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/nagare-io/authgate/internal/auth"
	"github.com/nagare-io/authgate/internal/config"
	"github.com/nagare-io/authgate/internal/logger"
	"github.com/nagare-io/authgate/internal/server"
)

func main() {
	// Local deployments keep secrets in a .env file; a missing file is fine.
	_ = godotenv.Load()

	config.InitFlags()
	versionFlag := pflag.BoolP("version", "v", false, "Show version information")
	pflag.Parse()

	if *versionFlag {
		fmt.Println(config.GetVersionInfo())
		os.Exit(0)
	}

	app := fx.New(
		fx.NopLogger,
		fx.Provide(config.Load),
		fx.Invoke(func(cfg *config.Config) error {
			return logger.InitLogger(&cfg.Logging)
		}),
		auth.Module,
		server.Module,
		fx.Invoke(runServer),
	)

	app.Run()
	_ = logger.Sync()
}

func runServer(lc fx.Lifecycle, srv *server.Server, shutdowner fx.Shutdowner) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				if err := srv.Start(ctx); err != nil {
					logger.Error("Server exited", zap.Error(err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-stopCtx.Done():
			}
			return nil
		},
	})
}
