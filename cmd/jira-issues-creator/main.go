package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	liblog "trpc.group/trpc-go/trpc-a2a-go/log"

	"github.com/tuannvm/jira-issues-creator/internal/config"
	log "github.com/tuannvm/jira-issues-creator/internal/logging"
	"github.com/tuannvm/jira-issues-creator/internal/telemetry"
)

const appName = "jira-issues-creator"

var (
	shutdownTelemetry func(context.Context) error
	syncLogs          func()
)

var rootCmd = &cobra.Command{
	Use:   appName,
	Short: "Create Jira epics, issues and sub-tasks from YAML issues files",
	Long: `jira-issues-creator automates the creation of epics, stories, tasks and sub-tasks
in Jira from a YAML issues file.

Issues are created depth-first in input order. Epic children carry the epic link,
sub-tasks are attached through their parent, and every other child is linked to
its parent issue. Fields are renamed and reshaped according to jira_special_fields
in the configuration file.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if env := config.LoadDotEnv(); env != "" {
			log.Debugf("Loaded environment from %s", env)
		}
		logPath, sync, err := log.Setup(log.Options{Debug: viper.GetBool("debug"), AppName: appName})
		if err != nil {
			return err
		}
		syncLogs = sync
		liblog.Default = log.Logger
		log.Debugf("Debug execution log: %s", logPath)

		shutdown, err := telemetry.Init(cmd.Context(), telemetry.DefaultConfig())
		if err != nil {
			log.Warnf("Telemetry disabled: %v", err)
			return nil
		}
		shutdownTelemetry = shutdown
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		cleanup()
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		cleanup()
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("JIRA_CREATOR")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("config-file", "c", config.DefaultConfigFile, "path to the YAML file containing Jira configuration")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug-level logging for detailed output")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("audit-db", "", "record runs in this SQLite database")
	rootCmd.PersistentFlags().Int("concurrency", 1, "maximum number of issues created at once across the whole tree")
	_ = viper.BindPFlag("config-file", rootCmd.PersistentFlags().Lookup("config-file"))
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("audit-db", rootCmd.PersistentFlags().Lookup("audit-db"))
	_ = viper.BindPFlag("concurrency", rootCmd.PersistentFlags().Lookup("concurrency"))
}

func registerCommands() {
	rootCmd.AddCommand(createCmd())
	rootCmd.AddCommand(draftCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(submitCmd())
	rootCmd.AddCommand(historyCmd())
}

func cleanup() {
	if shutdownTelemetry != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(ctx); err != nil {
			log.Warnf("Failed to flush telemetry: %v", err)
		}
		shutdownTelemetry = nil
	}
	if syncLogs != nil {
		syncLogs()
		syncLogs = nil
	}
}

// loadConfig reads the configuration file named by --config-file.
func loadConfig() (*config.Config, error) {
	path, err := config.ResolvePath(viper.GetString("config-file"))
	if err != nil {
		return nil, err
	}
	log.Debugf("Loading configuration from %s", path)
	return config.Load(path, viper.GetViper())
}
