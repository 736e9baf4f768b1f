package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/peterh/liner"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"multichat/internal/chatui"
	"multichat/internal/gateway"
	"multichat/internal/localdb"
	"multichat/internal/model"
	"multichat/internal/pkg/logger"
	"multichat/internal/store"
)

const (
	localDBFile     = "multichat.db"
	lineHistoryFile = "history"
	clientLogFile   = "multichat.log"
	renderWidth     = 100

	healthCheckTimeout = 5 * time.Second
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Open the interactive terminal client",
	Long: `Chat with the configured backend from the terminal. Conversations are kept on the
backend and mirrored locally, so the last session is still readable when the backend is down.`,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)

	flags := chatCmd.Flags()
	flags.String("base-url", "http://localhost:8080/api", "chat API base url")
	flags.StringP("model", "m", "phi3:mini", "model for new conversations")
	flags.String("theme", "dark", "markdown theme (dark/light)")
	flags.Bool("no-markdown", false, "print replies as plain text")

	_ = viper.BindPFlag("client.base_url", flags.Lookup("base-url"))
	_ = viper.BindPFlag("client.default_model", flags.Lookup("model"))
	_ = viper.BindPFlag("client.theme", flags.Lookup("theme"))
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	ccfg := cfg.Client
	if noMarkdown, _ := cmd.Flags().GetBool("no-markdown"); noMarkdown {
		ccfg.RenderMarkdown = false
	}
	if err := ccfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	dataDir := expandHome(ccfg.DataDir)
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	// 日志写文件，避免和终端输出交错
	if cfg.Log.Output != "file" {
		logCfg := cfg.Log
		logCfg.Output = "file"
		if logCfg.FilePath == "" {
			logCfg.FilePath = filepath.Join(dataDir, clientLogFile)
		}
		if err := logger.Init(&logCfg); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
	}

	gw, err := gateway.New(gateway.Config{
		BaseURL:       ccfg.BaseURL,
		Timeout:       ccfg.Timeout,
		UploadTimeout: ccfg.UploadTimeout,
		Token:         ccfg.Token,
	})
	if err != nil {
		return err
	}

	db, err := localdb.Open(filepath.Join(dataDir, localDBFile))
	if err != nil {
		return fmt.Errorf("open local database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	theme := ccfg.Theme
	if !cmd.Flags().Changed("theme") {
		if saved, err := db.Theme(ctx); err == nil && saved != "" {
			theme = saved
		}
	}
	renderer, err := chatui.NewRenderer(theme, renderWidth, ccfg.RenderMarkdown)
	if err != nil {
		return err
	}

	opts := []store.Option{
		store.WithMirror(db),
		store.WithPreferences(db),
		store.WithDefaultModel(model.ModelID(ccfg.DefaultModel)),
		store.WithHistoryLimit(ccfg.HistoryLimit),
	}
	if ccfg.GenerateTitles {
		opts = append(opts, store.WithTitleGenerator())
	}
	st := store.New(gw, opts...)
	defer st.Close()

	probeCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	if err := gw.Health(probeCtx); err != nil {
		log.Warn().Err(err).Str("base_url", ccfg.BaseURL).Msg("backend health check failed")
		fmt.Fprintf(cmd.ErrOrStderr(), "backend %s is unreachable, conversations are kept locally until it is back\n", ccfg.BaseURL)
	}
	cancel()

	st.Initialize(ctx)
	log.Info().
		Str("base_url", ccfg.BaseURL).
		Int("conversations", len(st.Conversations())).
		Bool("local_only", st.LocalOnly()).
		Msg("chat client started")

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	historyPath := filepath.Join(dataDir, lineHistoryFile)
	if f, err := os.Open(historyPath); err == nil {
		_, _ = line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		f, err := os.Create(historyPath)
		if err != nil {
			log.Warn().Err(err).Msg("failed to save input history")
			return
		}
		defer f.Close()
		if _, err := line.WriteHistory(f); err != nil {
			log.Warn().Err(err).Msg("failed to save input history")
		}
	}()

	app := chatui.NewApp(chatui.AppConfig{
		Store:    st,
		Tools:    gw,
		Themes:   db,
		Renderer: renderer,
		Input:    line,
		Output:   cmd.OutOrStdout(),
	})
	if err := app.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "$HOME") && !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	rest := strings.TrimPrefix(strings.TrimPrefix(path, "$HOME"), "~")
	return filepath.Join(home, rest)
}
