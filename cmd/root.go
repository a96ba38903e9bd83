// Package cmd provides the root command and CLI setup for gapfill.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"gapfill.dev/pkg/gapfill/internal/adapter"
	"gapfill.dev/pkg/gapfill/internal/controller"
	"gapfill.dev/pkg/gapfill/internal/domain"
	m "gapfill.dev/pkg/gapfill/internal/model"
)

const rootLongDescription = `gapfill scaffolds regression tests for recently changed Go code.

It detects the functions, methods and types touched by the last commit, runs
the test suite with coverage, appends baseline test stubs for every changed
symbol that has uncovered lines and no test yet, and validates the result.
When the generated tests break the suite they are marked as expected
failures and the suite is run once more.

Run with --install-hooks to analyze on every commit.`

// buildWorkflow assembles the pipeline for a project root. Tests replace it.
var buildWorkflow = newWorkflow

// newFS returns the filesystem hooks are written to. Tests replace it.
var newFS = afero.NewOsFs

// rootCmd represents the base command when called without any subcommands.
var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := baseRootCmd()
	configureRootFlags(cmd)

	return cmd
}

func baseRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "gapfill",
		Short:        "Scaffold regression tests for uncovered changed code",
		Long:         rootLongDescription,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         runRoot,
	}
}

func configureRootFlags(cmd *cobra.Command) {
	cmd.Flags().String(triggerFlagName, string(domain.TriggerManual), "what started the run: manual or git")
	cmd.Flags().Bool(installHooksFlagName, false, "install the pre-commit and post-commit git hooks and exit")

	cmd.Flags().Bool(dryRunFlagName, viper.GetBool(dryRunKey), "stop after coverage analysis without writing tests")
	bindFlagToConfig(cmd.Flags().Lookup(dryRunFlagName), dryRunKey)

	cmd.PersistentFlags().BoolP(verboseFlagName, "v", viper.GetBool(logVerboseKey), "log at debug level")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(verboseFlagName), logVerboseKey)
}

// bindFlagToConfig wires a Cobra flag to a Viper key so config/env values feed the flag.
func bindFlagToConfig(flag *pflag.Flag, key string) {
	if flag == nil {
		cobra.CheckErr(fmt.Errorf("flag for config key %q not found", key))
		return
	}

	cobra.CheckErr(viper.BindPFlag(key, flag))
}

func runRoot(cmd *cobra.Command, _ []string) error {
	triggerValue, err := cmd.Flags().GetString(triggerFlagName)
	if err != nil {
		return err
	}

	trigger, err := domain.ParseTrigger(triggerValue)
	if err != nil {
		return err
	}

	logger := configureLogger("", viper.GetBool(logVerboseKey))

	root, err := projectRoot()
	if err != nil {
		return err
	}

	runner := adapter.NewLocalCommandRunner(toolTimeout(), logger)

	installHooks, err := cmd.Flags().GetBool(installHooksFlagName)
	if err != nil {
		return err
	}

	ui := controller.NewUI(cmd, trigger == domain.TriggerManual && controller.IsTTY(cmd.OutOrStdout()))

	if installHooks {
		return runInstallHooks(cmd, newFS(), adapter.NewGitAdapter(runner), ui, root)
	}

	workflow := buildWorkflow(root, runner, ui, logger)

	_, err = workflow.Run(cmd.Context(), domain.RunArgs{
		Trigger: trigger,
		DryRun:  viper.GetBool(dryRunKey),
	})

	return err
}

// projectRoot is the nearest directory holding go.mod, or the working directory.
func projectRoot() (string, error) {
	workDir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}

	root, err := adapter.FindProjectRoot(workDir)
	if err != nil {
		return workDir, nil
	}

	return root, nil
}

// newWorkflow wires the pipeline components for the project at root.
func newWorkflow(root string, runner adapter.CommandRunner, ui controller.UI, logger *slog.Logger) domain.Workflow {
	settings := domain.Settings{
		WorkDir:           root,
		SourceRoot:        projectPath(root, viper.GetString(sourceRootKey)),
		TestRoot:          projectPath(root, viper.GetString(testRootKey)),
		ReportDir:         projectPath(root, viper.GetString(reportDirKey)),
		Exclude:           adapter.NewPathFilter(viper.GetStringSlice(excludedFoldersKey)),
		CoverageThreshold: viper.GetFloat64(coverageThresholdKey),
		Workers:           viper.GetInt(workersKey),
	}

	goFileAdapter := adapter.NewLocalGoFileAdapter()
	fsAdapter := adapter.NewLocalSourceFSAdapter(root)
	reportStore := adapter.NewReportStore(fsAdapter)
	testAdapter := adapter.NewLocalTestRunnerAdapter(runner)
	indexer := domain.NewSymbolIndexer(goFileAdapter, fsAdapter)
	discovery := domain.NewTestDiscovery(goFileAdapter, fsAdapter, settings, logger)

	return domain.NewWorkflow(
		domain.NewChangeDetector(adapter.NewGitAdapter(runner), fsAdapter, indexer, settings, logger),
		discovery,
		domain.NewCoverageAnalyzer(testAdapter, reportStore, fsAdapter, indexer, settings, logger),
		domain.NewTestGenerator(goFileAdapter, fsAdapter, discovery, domain.NewSourceModuleLoader(reportStore), logger),
		domain.NewValidator(goFileAdapter, fsAdapter, testAdapter, settings, logger),
		reportStore,
		ui,
		settings,
		logger,
	)
}

// projectPath turns a configured directory into a slash path relative to root.
func projectPath(root, value string) m.Path {
	if value == "" {
		return ""
	}

	if filepath.IsAbs(value) {
		if rel, err := filepath.Rel(root, value); err == nil {
			value = rel
		}
	}

	return m.Path(filepath.ToSlash(filepath.Clean(value)))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
