package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// projectConfigFiles is the search order for project config files
var projectConfigFiles = []string{"domaguardian.toml", "dg.toml"}

// ProjectConfig is the project-level TOML configuration
type ProjectConfig struct {
	Server   string `toml:"server"`
	Keystore string `toml:"keystore,omitempty"`
}

// GlobalConfig is the user configuration (stored in ~/.domaguardian/config.yaml)
type GlobalConfig struct {
	Server   string `yaml:"server"`
	Keystore string `yaml:"keystore,omitempty"`
}

func createConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration commands",
	}

	cmd.AddCommand(createConfigInitCmd())
	cmd.AddCommand(createConfigShowCmd())

	return cmd
}

func createConfigInitCmd() *cobra.Command {
	var serverURL string
	var keystorePath string
	var global bool
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create config file",
		Long: `Create a domaguardian.toml configuration file in the current directory,
or ~/.domaguardian/config.yaml with --global.

EXAMPLES:
  # Create project config with default server
  domaguardian config init

  # Create global config for a specific server
  domaguardian config init --global --server https://guardian.example.com

  # Overwrite existing config
  domaguardian config init --force
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if global {
				return runGlobalConfigInit(cmd, serverURL, keystorePath, force)
			}
			return runConfigInit(cmd, serverURL, keystorePath, force)
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "server URL")
	cmd.Flags().StringVar(&keystorePath, "keystore", "", "keystore file used to sign requests")
	cmd.Flags().BoolVar(&global, "global", false, "write ~/.domaguardian/config.yaml instead")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing config")

	return cmd
}

func createConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display current config",
		Long: `Display the current configuration.

Shows the local project config (domaguardian.toml), the global config from
~/.domaguardian/config.yaml, and the effective settings.

EXAMPLES:
  domaguardian config show
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd)
		},
	}
}

func runConfigInit(cmd *cobra.Command, serverURL, keystorePath string, force bool) error {
	configPath := "domaguardian.toml"

	for _, name := range projectConfigFiles {
		if _, err := os.Stat(name); err == nil && !force {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", name)
		}
	}

	f, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	defer f.Close()

	fmt.Fprintln(f, "# DomaGuardian project configuration")
	fmt.Fprintln(f)
	if err := toml.NewEncoder(f).Encode(ProjectConfig{Server: serverURL, Keystore: keystorePath}); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created %s\n", configPath)
	fmt.Fprintf(out, "  Server:   %s\n", serverURL)
	if keystorePath != "" {
		fmt.Fprintf(out, "  Keystore: %s\n", keystorePath)
	}
	return nil
}

func runGlobalConfigInit(cmd *cobra.Command, serverURL, keystorePath string, force bool) error {
	path := globalConfigPath()
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	data, err := yaml.Marshal(GlobalConfig{Server: serverURL, Keystore: keystorePath})
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", path)
	return nil
}

func runConfigShow(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Configuration sources (in order of precedence):")
	fmt.Fprintln(out)

	fmt.Fprintln(out, "1. Command line flags")
	fmt.Fprintln(out, "   --server, --keystore, --address, --config")
	fmt.Fprintln(out)

	fmt.Fprintln(out, "2. Environment variables")
	for _, key := range []string{"DOMAGUARDIAN_SERVER", "DOMAGUARDIAN_KEYSTORE"} {
		if v := os.Getenv(key); v != "" {
			fmt.Fprintf(out, "   %s=%s\n", key, v)
		} else {
			fmt.Fprintf(out, "   %s=(not set)\n", key)
		}
	}
	if os.Getenv("DOMAGUARDIAN_PRIVATE_KEY") != "" {
		fmt.Fprintln(out, "   DOMAGUARDIAN_PRIVATE_KEY=(set)")
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "3. Local project config (domaguardian.toml or dg.toml)")
	projectConfig, configPath, err := loadProjectConfig()
	switch {
	case os.IsNotExist(err):
		fmt.Fprintln(out, "   (not found)")
	case err != nil:
		fmt.Fprintf(out, "   Error: %v\n", err)
	default:
		fmt.Fprintf(out, "   Loaded from: %s\n", configPath)
		if projectConfig.Server != "" {
			fmt.Fprintf(out, "   server: %s\n", projectConfig.Server)
		}
		if projectConfig.Keystore != "" {
			fmt.Fprintf(out, "   keystore: %s\n", projectConfig.Keystore)
		}
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "4. Global config (~/.domaguardian/config.yaml)")
	globalConfig, err := loadGlobalConfig()
	switch {
	case os.IsNotExist(err):
		fmt.Fprintln(out, "   (not found)")
	case err != nil:
		fmt.Fprintf(out, "   Error: %v\n", err)
	default:
		if globalConfig.Server != "" {
			fmt.Fprintf(out, "   server: %s\n", globalConfig.Server)
		}
		if globalConfig.Keystore != "" {
			fmt.Fprintf(out, "   keystore: %s\n", globalConfig.Keystore)
		}
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Effective configuration:")
	fmt.Fprintf(out, "   Server:   %s\n", getServer())
	fmt.Fprintf(out, "   Keystore: %s\n", getKeystore())
	return nil
}

// loadProjectConfig loads the project config from the first matching config file.
// Returns the config, the path it was loaded from, and an error.
func loadProjectConfig() (*ProjectConfig, string, error) {
	if cfgFile != "" {
		config, err := loadProjectConfigFromPath(cfgFile)
		if err != nil {
			return nil, cfgFile, err
		}
		return config, cfgFile, nil
	}

	for _, name := range projectConfigFiles {
		if _, err := os.Stat(name); err == nil {
			config, err := loadProjectConfigFromPath(name)
			if err != nil {
				return nil, name, err
			}
			return config, name, nil
		}
	}
	return nil, "", os.ErrNotExist
}

// loadProjectConfigFromPath loads a project config from a specific path
func loadProjectConfigFromPath(path string) (*ProjectConfig, error) {
	var config ProjectConfig
	if _, err := toml.DecodeFile(path, &config); err != nil {
		if os.IsNotExist(err) {
			return nil, err
		}
		return nil, fmt.Errorf("parsing TOML: %w", err)
	}
	return &config, nil
}

// loadProjectConfigSilent returns nil if the file doesn't exist, and warns on
// parse failures.
func loadProjectConfigSilent() *ProjectConfig {
	config, _, err := loadProjectConfig()
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		fmt.Fprintf(os.Stderr, "Warning: failed to load project config: %v\n", err)
		return nil
	}
	return config
}

func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".domaguardian"
	}
	return filepath.Join(home, ".domaguardian")
}

func globalConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

func defaultKeystorePath() string {
	return filepath.Join(configDir(), "keystore.json")
}

func loadGlobalConfig() (*GlobalConfig, error) {
	data, err := os.ReadFile(globalConfigPath())
	if err != nil {
		return nil, err
	}
	var config GlobalConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	return &config, nil
}

func loadGlobalConfigSilent() *GlobalConfig {
	config, err := loadGlobalConfig()
	if err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load global config: %v\n", err)
		}
		return nil
	}
	return config
}
