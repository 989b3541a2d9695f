package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/blackscorpionster/rubits/config"
	"github.com/spf13/cobra"
)

var (
	version   = getVersion()
	cfgFile   string
	configDir string
)

// getVersion returns the module version from build info
func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "" && info.Main.Version != "(devel)" {
			return info.Main.Version
		}
	}
	return "dev"
}

// loadConfig reads --config when given, otherwise config-<APP_ENV>.yaml from --config-dir
func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		return config.Load(cfgFile)
	}
	return config.LoadByEnv(configDir)
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "rubits",
		Short: "Rubits scratch ticket server and tools",
		Long: `Rubits runs the scratch ticket API and the tools around it.

Example:
  rubits migrate up
  rubits seed --catalog config/draws.yaml
  rubits serve
  rubits play --email alice@example.com --server http://localhost:8080`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Config file (default: config-<APP_ENV>.yaml in --config-dir)")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "config", "Directory searched for config-<APP_ENV>.yaml")

	rootCmd.AddCommand(
		newServeCmd(),
		newMigrateCmd(),
		newSeedCmd(),
		newDrawsCmd(),
		newPlayCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
