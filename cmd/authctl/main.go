package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/nagare-io/authgate/internal/auth/providers"
	"github.com/nagare-io/authgate/internal/client/guard"
	"github.com/nagare-io/authgate/internal/client/session"
	"github.com/nagare-io/authgate/internal/client/store"
	"github.com/nagare-io/authgate/internal/config"
	"github.com/nagare-io/authgate/internal/logger"
)

func main() {
	Execute()
}

var (
	importURL       string
	importIDToken   string
	importAccess    string
	importRefresh   string
	importTokenType string
	importExpiresIn int
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "authctl",
	Short: "Manage the local authgate session",
	Long: `authctl manages the token lifecycle against an authgate server:
it persists tokens in an encrypted store, reports session status and keeps
the access token fresh.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		versionFlag, _ := cmd.Flags().GetBool("version")
		if versionFlag {
			pterm.Info.Println(config.GetVersionInfo())
			os.Exit(0)
		}
	}

	if err := rootCmd.Execute(); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolP("version", "v", false, "Show version information")

	importCmd.Flags().StringVar(&importURL, "url", "", "Callback validation URL carrying the token parameters")
	importCmd.Flags().StringVar(&importIDToken, "id-token", "", "ID token")
	importCmd.Flags().StringVar(&importAccess, "access-token", "", "Access token")
	importCmd.Flags().StringVar(&importRefresh, "refresh-token", "", "Refresh token")
	importCmd.Flags().StringVar(&importTokenType, "token-type", "Bearer", "Token type")
	importCmd.Flags().IntVar(&importExpiresIn, "expires-in", 3600, "Access token lifetime in seconds")

	rootCmd.AddCommand(statusCmd, importCmd, refreshCmd, watchCmd, logoutCmd, routesCmd)
}

// openManager loads configuration and opens the encrypted token store.
func openManager() (*session.Manager, *config.Config, func(), error) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}
	if err := cfg.ValidateClient(); err != nil {
		return nil, nil, nil, err
	}
	if err := logger.InitLogger(&cfg.Logging); err != nil {
		return nil, nil, nil, err
	}

	st, err := store.Open(cfg.Client.StorePath, cfg.Client.Secret)
	if err != nil {
		return nil, nil, nil, err
	}

	manager := session.NewManager(cfg.Client, st)
	if err := manager.Initialize(); err != nil {
		_ = st.Close()
		return nil, nil, nil, err
	}

	return manager, cfg, func() { _ = st.Close() }, nil
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current session",
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, _, closeStore, err := openManager()
		if err != nil {
			return err
		}
		defer closeStore()

		tokens := manager.Tokens()
		if tokens.AccessToken == "" {
			pterm.Warning.Println("No stored session")
			return nil
		}

		rows := pterm.TableData{{"Field", "Value"}}
		if p := manager.Principal(); p != nil {
			rows = append(rows, []string{"Email", p.Email}, []string{"Name", p.Name})
		}
		rows = append(rows,
			[]string{"Token type", tokens.TokenType},
			[]string{"Expires at", tokens.ExpiresAt.Format(time.RFC3339)},
			[]string{"Refresh token", fmt.Sprintf("%t", tokens.RefreshToken != "")},
		)
		if err := pterm.DefaultTable.WithHasHeader().WithData(rows).Render(); err != nil {
			return err
		}

		if manager.IsAuthenticated() {
			pterm.Success.Println("Session is valid")
		} else {
			pterm.Warning.Println("Session has expired")
		}
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Persist tokens handed back by the auth callback",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := tokenResponseFromFlags()
		if err != nil {
			return err
		}

		manager, _, closeStore, err := openManager()
		if err != nil {
			return err
		}
		defer closeStore()

		if err := manager.SetTokens(resp); err != nil {
			return err
		}
		pterm.Success.Println("Session stored")
		return nil
	},
}

// tokenResponseFromFlags accepts either the individual token flags or a full
// validation URL of the form /auth/validation?id_token=...&access_token=...
func tokenResponseFromFlags() (*providers.TokenResponse, error) {
	if importURL == "" {
		if importAccess == "" {
			return nil, fmt.Errorf("either --url or --access-token is required")
		}
		return &providers.TokenResponse{
			IDToken:      importIDToken,
			AccessToken:  importAccess,
			RefreshToken: importRefresh,
			TokenType:    importTokenType,
			ExpiresIn:    importExpiresIn,
		}, nil
	}

	u, err := url.Parse(importURL)
	if err != nil {
		return nil, fmt.Errorf("invalid callback URL: %w", err)
	}
	q := u.Query()
	if q.Get("access_token") == "" {
		return nil, fmt.Errorf("callback URL carries no access_token parameter")
	}

	expiresIn := importExpiresIn
	if v := q.Get("expires_in"); v != "" {
		expiresIn, err = strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid expires_in parameter: %w", err)
		}
	}

	resp := &providers.TokenResponse{
		IDToken:      q.Get("id_token"),
		AccessToken:  q.Get("access_token"),
		RefreshToken: q.Get("refresh_token"),
		TokenType:    q.Get("token_type"),
		ExpiresIn:    expiresIn,
	}
	if resp.TokenType == "" {
		resp.TokenType = importTokenType
	}
	return resp, nil
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Refresh the access token once",
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, _, closeStore, err := openManager()
		if err != nil {
			return err
		}
		defer closeStore()

		if err := manager.Refresh(cmd.Context()); err != nil {
			return fmt.Errorf("refresh failed, session cleared: %w", err)
		}
		pterm.Success.Printfln("Token refreshed, valid until %s",
			manager.Tokens().ExpiresAt.Format(time.RFC3339))
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep the access token fresh until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, cfg, closeStore, err := openManager()
		if err != nil {
			return err
		}
		defer closeStore()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		pterm.Info.Printfln("Watching session, checking every %s", cfg.Client.RefreshInterval)
		refresher := session.NewRefresher(manager, cfg.Client.RefreshInterval, cfg.Client.RefreshThreshold)
		refresher.Run(ctx)

		pterm.Info.Println("Stopped")
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and wipe the stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, _, closeStore, err := openManager()
		if err != nil {
			return err
		}
		defer closeStore()

		if err := manager.SignOut(cmd.Context()); err != nil {
			return err
		}
		pterm.Success.Println("Logged out")
		return nil
	},
}

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "Show the route guard decisions for the current session",
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, cfg, closeStore, err := openManager()
		if err != nil {
			return err
		}
		defer closeStore()

		g := guard.New(nil)
		if cfg.Client.RoutesFile != "" {
			if g, err = guard.Load(cfg.Client.RoutesFile); err != nil {
				return err
			}
		}

		authenticated := manager.IsAuthenticated()
		rows := pterm.TableData{{"Route", "Path", "Decision"}}
		for _, r := range g.Routes() {
			rows = append(rows, []string{r.Name, r.Path, g.Decide(authenticated, r.Name).String()})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
	},
}
