package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile      string
	server       string
	keystoreFile string
	address      string
	jsonOutput   bool
)

// Execute runs the CLI
func Execute(version string) error {
	return newRootCmd(version).Execute()
}

func newRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "domaguardian",
		Short:   "DomaGuardian CLI",
		Long:    `DomaGuardian is a CLI for buying credit, requesting analyses, monitoring targets, messaging, and managing tokenized domains.`,
		Version: version,
		// Errors are printed once by main.
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: domaguardian.toml or dg.toml)")
	rootCmd.PersistentFlags().StringVar(&server, "server", "", "server URL (default from config)")
	rootCmd.PersistentFlags().StringVar(&keystoreFile, "keystore", "", "keystore file used to sign requests")
	rootCmd.PersistentFlags().StringVar(&address, "address", "", "send unsigned requests as this address (servers with auth disabled)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	// Add subcommands
	rootCmd.AddCommand(createAccountCmd())
	rootCmd.AddCommand(createConfigCmd())
	rootCmd.AddCommand(createChainCmd())
	rootCmd.AddCommand(createOwnershipCmd())
	rootCmd.AddCommand(createLedgerCmd())
	rootCmd.AddCommand(createDepositCmd())
	rootCmd.AddCommand(createCreditCmd())
	rootCmd.AddCommand(createRequestCmd())
	rootCmd.AddCommand(createRequestsCmd())
	rootCmd.AddCommand(createCompleteCmd())
	rootCmd.AddCommand(createMonitorCmd())
	rootCmd.AddCommand(createMessageCmd())
	rootCmd.AddCommand(createDomainCmd())
	rootCmd.AddCommand(createEventsCmd())

	return rootCmd
}

// getServer returns the server URL from flag, env, or config files
func getServer() string {
	// 1. Command line flag
	if server != "" {
		return server
	}

	// 2. Environment variable
	if env := os.Getenv("DOMAGUARDIAN_SERVER"); env != "" {
		return env
	}

	// 3. Project config file (TOML)
	if config := loadProjectConfigSilent(); config != nil && config.Server != "" {
		return config.Server
	}

	// 4. Global config file (YAML)
	if global := loadGlobalConfigSilent(); global != nil && global.Server != "" {
		return global.Server
	}

	// 5. Default
	return "http://localhost:8080"
}

// getKeystore returns the keystore path from flag, env, or config files
func getKeystore() string {
	if keystoreFile != "" {
		return keystoreFile
	}
	if env := os.Getenv("DOMAGUARDIAN_KEYSTORE"); env != "" {
		return env
	}
	if config := loadProjectConfigSilent(); config != nil && config.Keystore != "" {
		return config.Keystore
	}
	if global := loadGlobalConfigSilent(); global != nil && global.Keystore != "" {
		return global.Keystore
	}
	return defaultKeystorePath()
}
