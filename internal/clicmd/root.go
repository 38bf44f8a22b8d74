// Package clicmd implements the bdp client command tree: init, source
// management, pull, status, clean, search, config, audit, and uninstall.
package clicmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/biopkg/bdp/internal/config"
	"github.com/biopkg/bdp/internal/models"
)

var projectDir string

// RootCmd is the bdp client entrypoint.
var RootCmd = &cobra.Command{
	Use:           "bdp",
	Short:         "BDP biological dataset package manager client",
	SilenceUsage:  true,
	SilenceErrors: true,
	Long: `bdp manages biological dataset dependencies the way a language
package manager manages libraries: declare sources in a manifest, resolve
them against a bdp-server registry into a lockfile, and pull the resolved
files into a local content-addressed cache.`,
}

func init() {
	RootCmd.PersistentFlags().StringVar(&projectDir, "dir", "", "project directory (default: current directory)")

	RootCmd.AddCommand(initCmd)
	RootCmd.AddCommand(sourceCmd)
	RootCmd.AddCommand(pullCmd)
	RootCmd.AddCommand(statusCmd)
	RootCmd.AddCommand(cleanCmd)
	RootCmd.AddCommand(searchCmd)
	RootCmd.AddCommand(configCmd)
	RootCmd.AddCommand(auditCmd)
	RootCmd.AddCommand(uninstallCmd)
}

func currentDir() string {
	if projectDir != "" {
		return projectDir
	}
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

// loadClientConfig resolves the client configuration with environment
// variables taking precedence over the project config file, which takes
// precedence over the built-in defaults.
func loadClientConfig() config.ClientConfig {
	dir := currentDir()
	cfg := config.LoadClientConfig(dir)
	v := newClientViper(dir)
	for key, envVar := range clientConfigKeys {
		if os.Getenv(envVar) != "" {
			continue
		}
		fileValue := v.GetString(key)
		if fileValue == "" {
			continue
		}
		switch key {
		case "server_url":
			cfg.ServerURL = fileValue
		case "cache_dir":
			cfg.CacheDir = fileValue
		}
	}
	return cfg
}

// Execute runs the root command and, on failure, exits with the code the
// returned error's category maps to.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		exitWithError(err)
	}
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(exitCodeFor(err))
}

// exitCodeFor maps a models.Error category onto a process exit code:
// 2 for invalid input, 3 for a project-state mismatch (not initialized or
// already initialized), 1 for anything else.
func exitCodeFor(err error) int {
	bdpErr, ok := err.(*models.Error)
	if !ok {
		return 1
	}
	switch bdpErr.Category {
	case models.CategoryInputInvalid:
		return 2
	case models.CategoryNotInitialized, models.CategoryAlreadyInit:
		return 3
	default:
		return 1
	}
}
