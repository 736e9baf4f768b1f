package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"multichat/internal/config"
)

// Init 按配置设置全局 zerolog logger
// output: stdout（默认）、stderr、file；format: json（默认）、console
func Init(cfg *config.LogConfig) error {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	switch cfg.TimeFormat {
	case "Unix":
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	case "UnixMs":
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	default:
		zerolog.TimeFieldFormat = time.RFC3339
	}

	output, err := openOutput(cfg)
	if err != nil {
		return err
	}
	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
			NoColor:    cfg.Output == "file",
		}
	}

	log.Logger = zerolog.New(output).With().Timestamp().Caller().Logger()
	return nil
}

func openOutput(cfg *config.LogConfig) (io.Writer, error) {
	switch cfg.Output {
	case "", "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	case "file":
		if cfg.FilePath == "" {
			return nil, fmt.Errorf("log.file_path is required when log.output is file")
		}
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
			return nil, err
		}
		return os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	default:
		return nil, fmt.Errorf("unsupported log output: %s", cfg.Output)
	}
}
