package cmd

import (
	"errors"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	configVersionKey     = "version"
	currentConfigVersion = 1

	configBaseName   = "gapfill"
	configFileName   = configBaseName + ".yaml"
	configFolderPath = "."

	triggerFlagName      = "trigger"
	installHooksFlagName = "install-hooks"
	dryRunFlagName       = "dry-run"
	verboseFlagName      = "verbose"

	coverageThresholdKey = "coverage_threshold"
	excludedFoldersKey   = "excluded_folders"
	dryRunKey            = "dry_run"
	sourceRootKey        = "source_root"
	testRootKey          = "test_root"
	reportDirKey         = "report_dir"
	toolTimeoutKey       = "tool_timeout"
	workersKey           = "workers"

	defaultCoverageThreshold = 0.0
	defaultDryRun            = false
	defaultSourceRoot        = "."
	defaultTestRoot          = ""
	defaultReportDir         = ".gapfill"
	defaultToolTimeout       = 10 * time.Minute
	defaultWorkers           = 8

	envPrefix = "GAPFILL"

	logFilenameKey   = "log.filename"
	logLevelKey      = "log.level"
	logVerboseKey    = "log.verbose"
	logMaxSizeKey    = "log.max_size"
	logMaxBackupsKey = "log.max_backups"
	logMaxAgeKey     = "log.max_age"
	logCompressKey   = "log.compress"

	defaultLogFilename   = ".gapfill.log"
	defaultLogLevel      = int(slog.LevelInfo)
	defaultLogVerbose    = false
	defaultLogMaxSize    = 10
	defaultLogMaxBackups = 3
	defaultLogMaxAge     = 28
	defaultLogCompress   = true
)

var globalLogger *slog.Logger

func init() {
	viper.SetConfigName(configBaseName)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configFolderPath)
	viper.SetConfigFile(filepath.Join(configFolderPath, configFileName))
	viper.AutomaticEnv()
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	viper.SetDefault(configVersionKey, currentConfigVersion)
	viper.SetDefault(coverageThresholdKey, defaultCoverageThreshold)
	viper.SetDefault(excludedFoldersKey, []string{})
	viper.SetDefault(dryRunKey, defaultDryRun)
	viper.SetDefault(sourceRootKey, defaultSourceRoot)
	viper.SetDefault(testRootKey, defaultTestRoot)
	viper.SetDefault(reportDirKey, defaultReportDir)
	viper.SetDefault(toolTimeoutKey, int64(defaultToolTimeout.Seconds()))
	viper.SetDefault(workersKey, defaultWorkers)

	// Logging defaults (used by config/env and as fallbacks for flags).
	viper.SetDefault(logFilenameKey, defaultLogFilename)
	viper.SetDefault(logLevelKey, defaultLogLevel)
	viper.SetDefault(logVerboseKey, defaultLogVerbose)
	viper.SetDefault(logMaxSizeKey, defaultLogMaxSize)
	viper.SetDefault(logMaxBackupsKey, defaultLogMaxBackups)
	viper.SetDefault(logMaxAgeKey, defaultLogMaxAge)
	viper.SetDefault(logCompressKey, defaultLogCompress)

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return
		}

		return
	}
}

// toolTimeout reads tool_timeout in seconds. Non-positive values fall back to the default.
func toolTimeout() time.Duration {
	seconds := viper.GetInt64(toolTimeoutKey)
	if seconds <= 0 {
		return defaultToolTimeout
	}

	return time.Duration(seconds) * time.Second
}

func parseSlogLevel(value string, defaultLevel slog.Level) slog.Level {
	level := strings.ToLower(strings.TrimSpace(value))
	if level == "" {
		return defaultLevel
	}

	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}

	// Allow numeric slog levels as well (e.g. -4 for debug).
	if n, err := strconv.Atoi(level); err == nil {
		return slog.Level(n)
	}

	return defaultLevel
}

// configureLogger builds the rotating file logger and installs it as the
// slog default. It logs at Info unless verbose or log.level say otherwise.
func configureLogger(logPath string, verbose bool) *slog.Logger {
	if strings.TrimSpace(logPath) == "" {
		logPath = viper.GetString(logFilenameKey)
	}

	if strings.TrimSpace(logPath) == "" {
		logPath = defaultLogFilename
	}

	var logLevel slog.Level
	if verbose || viper.GetBool(logVerboseKey) {
		logLevel = slog.LevelDebug
	} else {
		logLevel = parseSlogLevel(viper.GetString(logLevelKey), slog.LevelInfo)
	}

	logWriter := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    viper.GetInt(logMaxSizeKey),
		MaxBackups: viper.GetInt(logMaxBackupsKey),
		MaxAge:     viper.GetInt(logMaxAgeKey),
		Compress:   viper.GetBool(logCompressKey),
	}

	handler := slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		AddSource: true,
		Level:     logLevel,
	})

	globalLogger = slog.New(handler)
	slog.SetDefault(globalLogger)

	return globalLogger
}
