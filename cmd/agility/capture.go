package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Prathameshworks247/AGILITY/internal/capture"
	"github.com/Prathameshworks247/AGILITY/internal/config"
)

func captureCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "capture", Short: "Capture agent for this workspace"}
	cmd.PersistentFlags().String("capture-extensions", "", `extra extension map, e.g. "rust=.rs;kotlin=.kt,.kts"`)
	_ = viper.BindPFlag("capture-extensions", cmd.PersistentFlags().Lookup("capture-extensions"))
	cmd.AddCommand(captureStatusCmd())
	cmd.AddCommand(captureTaskCmd())
	cmd.AddCommand(captureAutoTrackCmd())
	cmd.AddCommand(captureSendCmd())
	cmd.AddCommand(captureWatchCmd())
	return cmd
}

type captureEnv struct {
	agent     *capture.Agent
	cfg       *config.Capture
	languages config.ExtensionIndex
}

func newCaptureEnv() (captureEnv, error) {
	workspace := viper.GetString("workspace")
	cfg, err := config.LoadCapture(workspace)
	if err != nil {
		return captureEnv{}, err
	}
	if tok := strings.TrimSpace(viper.GetString("token")); tok != "" {
		cfg.Token = tok
	}
	agent, err := capture.NewAgent(capture.Options{
		Config:    cfg,
		Workspace: workspace,
		State:     capture.NewFileStateStore(workspace),
		Notifier:  ui,
		Logger:    newLogger(),
	})
	if err != nil {
		return captureEnv{}, err
	}
	overrides := map[string][]string{}
	for lang, exts := range cfg.Extensions {
		overrides[lang] = append(overrides[lang], exts...)
	}
	for lang, exts := range config.ParseExtensions(viper.GetString("capture-extensions")) {
		overrides[lang] = append(overrides[lang], exts...)
	}
	return captureEnv{agent: agent, cfg: cfg, languages: config.NewExtensionIndex(overrides)}, nil
}

func captureStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the active task and auto-track setting",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newCaptureEnv()
			if err != nil {
				return err
			}
			st := env.agent.Status()
			if viper.GetBool("json") {
				return printJSON(map[string]any{
					"activeTaskId": st.ActiveTaskID,
					"autoTrack":    st.AutoTrack,
					"gatewayUrl":   env.cfg.GatewayURL,
					"languages":    env.cfg.Languages,
					"roots":        env.agent.Roots(),
				})
			}
			if st.ActiveTaskID != nil {
				ui.Info("Active task: %s", *st.ActiveTaskID)
			} else {
				ui.Warning("No active task")
			}
			ui.Info("Auto-track: %s", onOff(st.AutoTrack))
			ui.Info("Gateway: %s", env.cfg.GatewayURL)
			ui.Info("Languages: %s", strings.Join(env.cfg.Languages, ", "))
			ui.Info("Roots: %s", strings.Join(env.agent.Roots(), ", "))
			return nil
		},
	}
}

func captureTaskCmd() *cobra.Command {
	task := &cobra.Command{Use: "task", Short: "Bind or clear the active task"}
	task.AddCommand(&cobra.Command{
		Use:   "set <task-id>",
		Short: "Bind subsequent snapshots to a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newCaptureEnv()
			if err != nil {
				return err
			}
			if err := env.agent.SetActiveTask(optionalString(strings.TrimSpace(args[0]))); err != nil {
				return err
			}
			if st := env.agent.Status(); st.ActiveTaskID != nil {
				ui.Success("Active task: %s", *st.ActiveTaskID)
			} else {
				ui.Warning("Task id was blank; active task cleared")
			}
			return nil
		},
	})
	task.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Stop sending snapshots until a task is bound",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newCaptureEnv()
			if err != nil {
				return err
			}
			if err := env.agent.SetActiveTask(nil); err != nil {
				return err
			}
			ui.Success("Active task cleared")
			return nil
		},
	})
	return task
}

func captureAutoTrackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "autotrack",
		Short: "Toggle sending snapshots on save",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newCaptureEnv()
			if err != nil {
				return err
			}
			on, err := env.agent.ToggleAutoTrack()
			if err != nil {
				return err
			}
			ui.Success("Auto-track %s", onOff(on))
			return nil
		},
	}
}

func captureSendCmd() *cobra.Command {
	var language string
	cmd := &cobra.Command{
		Use:   "send <file>",
		Short: "Send a snapshot of a file now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newCaptureEnv()
			if err != nil {
				return err
			}
			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			content, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			if language == "" {
				language = env.languages.LanguageFor(path)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(env.cfg.TimeoutSeconds+5)*time.Second)
			defer cancel()
			ack, err := env.agent.SendManualSnapshot(ctx, capture.Document{Path: path, LanguageID: language, Content: string(content)})
			if err != nil {
				if errors.Is(err, capture.ErrNoActiveTask) {
					ui.Warning("Bind a task first: agility capture task set <task-id>")
				}
				return err
			}
			if viper.GetBool("json") {
				return printJSON(ack)
			}
			if ack.AcknowledgementID != "" {
				ui.Info("Acknowledgement %s", ack.AcknowledgementID)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&language, "language", "", "language id (detected from the extension when empty)")
	return cmd
}

func captureWatchCmd() *cobra.Command {
	var settle time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Send snapshots as files in the workspace are saved",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newCaptureEnv()
			if err != nil {
				return err
			}
			w, err := capture.NewWatcher(env.agent, env.languages, settle)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ui.Info("Watching %s", strings.Join(env.agent.Roots(), ", "))
			err = w.Run(ctx)
			env.agent.Wait()
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&settle, "settle", capture.DefaultSettle, "quiet period before a burst of writes counts as one save")
	return cmd
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
