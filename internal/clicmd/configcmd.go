package clicmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/biopkg/bdp/internal/models"
)

// clientConfigKeys maps a `bdp config` key to the environment variable
// that overrides it. Environment wins over the config file, which wins
// over the built-in default.
var clientConfigKeys = map[string]string{
	"server_url": "BDP_SERVER_URL",
	"cache_dir":  "BDP_CACHE_DIR",
}

func clientConfigFile(dir string) string {
	return filepath.Join(dotBDPDir(dir), "config.yml")
}

func newClientViper(dir string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(clientConfigFile(dir))
	_ = v.ReadInConfig()
	return v
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or change client configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the resolved client configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadClientConfig()
		fmt.Println("server_url:", cfg.ServerURL)
		fmt.Println("cache_dir:", cfg.CacheDir)
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print a single configuration value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadClientConfig()
		switch args[0] {
		case "server_url":
			fmt.Println(cfg.ServerURL)
		case "cache_dir":
			fmt.Println(cfg.CacheDir)
		default:
			return models.InvalidSpec("unknown configuration key %q", args[0])
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Persist a configuration value to the project config file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, ok := clientConfigKeys[args[0]]; !ok {
			return models.InvalidSpec("unknown configuration key %q", args[0])
		}
		dir := currentDir()
		if err := os.MkdirAll(dotBDPDir(dir), 0o755); err != nil {
			return err
		}
		v := newClientViper(dir)
		v.Set(args[0], args[1])
		if err := v.WriteConfigAs(clientConfigFile(dir)); err != nil {
			return err
		}
		fmt.Printf("%s = %s\n", args[0], args[1])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configGetCmd, configSetCmd)
}
