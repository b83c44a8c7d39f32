package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Prathameshworks247/AGILITY/internal/app"
	"github.com/Prathameshworks247/AGILITY/internal/config"
	"github.com/Prathameshworks247/AGILITY/internal/db"
	"github.com/Prathameshworks247/AGILITY/internal/engine"
	"github.com/Prathameshworks247/AGILITY/internal/migrate"
	"github.com/Prathameshworks247/AGILITY/internal/output"
	"github.com/Prathameshworks247/AGILITY/internal/repo"
)

var rootCmd = &cobra.Command{
	Use:   "agility",
	Short: "AGILITY CLI",
	Long: `AGILITY links editor saves to review verdicts on a task board.
- capture: watches saves in this workspace and sends snapshots of the active task's files to the analysis gateway.
- gateway: analyzes snapshots and records the verdict in the review store on the developer's behalf.
- serve: the review store; task boards read review history and each task's latest review from it.
- org/project/sprint/task: the board data reviews hang off.`,
	SilenceUsage: true,
}

var ui = output.New()

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		ui.Error("%v", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("AGILITY")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("user", "local-user", "acting user id for local board commands")
	rootCmd.PersistentFlags().String("org", app.DefaultOrgID, "organization id")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("user", rootCmd.PersistentFlags().Lookup("user"))
	_ = viper.BindPFlag("org", rootCmd.PersistentFlags().Lookup("org"))
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(gatewayCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(orgCmd())
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(sprintCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(reviewCmd())
	rootCmd.AddCommand(captureCmd())
}

func initCmd() *cobra.Command {
	var orgName string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the workspace database, default organization and capture config",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				if err := app.Bootstrap(ctx, r, viper.GetString("org"), orgName, viper.GetString("user")); err != nil {
					return err
				}
				if _, err := os.Stat(config.CapturePath(workspace)); os.IsNotExist(err) {
					cfg := config.Default()
					cfg.DeveloperID = viper.GetString("user")
					if err := config.SaveCapture(workspace, cfg); err != nil {
						return err
					}
				}
				ui.Success("Workspace ready at %s", db.Dir(workspace))
				ui.Info("Organization %s owned by %s", viper.GetString("org"), viper.GetString("user"))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&orgName, "org-name", "", "organization display name")
	return cmd
}

// --- helpers ---

func newLogger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(viper.GetString("log-level"))); err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	return withRepo(ctx, func(ctx context.Context, r repo.Repo) error {
		e := engine.New(r.DB)
		return fn(ctx, e)
	})
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	r := repo.Repo{DB: conn}
	return fn(ctx, r)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func requireEnv(key string) (string, error) {
	v := strings.TrimSpace(viper.GetString(key))
	if v == "" {
		return "", fmt.Errorf("AGILITY_%s is required", strings.ToUpper(strings.ReplaceAll(key, "-", "_")))
	}
	return v, nil
}
