package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/nxsync/nxsync/internal/utils"
	"github.com/nxsync/nxsync/pkg/syncer"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

const (
	LOGO = `
	 _ __ __  __ ___ _   _ _ __   ___
	| '_ \\ \/ // __| | | | '_ \ / __|
	| | | |>  < \__ \ |_| | | | | (__
	|_| |_/_/\_\|___/\__, |_| |_|\___|
	                 |___/
`
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "nxsync",
	Short: "Manage, sync, diff and clone NextDNS profiles.",
	Long: LOGO + `nxsync keeps several NextDNS profiles consistent: add or remove a domain
everywhere at once, align denylists and allowlists by majority vote, compare
configurations side by side and clone a profile into the same or another account.`,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		levelString, _ := cmd.Flags().GetString("loglevel")
		return utils.SetLogLevel(levelString)
	},
}

// errFailures is returned when a command ran to completion but recorded failures.
type errFailures struct{ count int }

func (e errFailures) Error() string { return fmt.Sprintf("%d operation(s) failed", e.count) }

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	// Interrupting a sync stops it after the request in flight.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		var ef errFailures
		if !errors.As(err, &ef) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		stop()
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.nxsync.yaml)")

	// Global flags
	rootCmd.PersistentFlags().StringP("api-key", "k", "", "NextDNS API key (overrides nextdns.apikey)")
	rootCmd.PersistentFlags().StringP("proxy", "", "", "HTTP Proxy (Useful for debugging. Example: http://127.0.0.1:8080)")
	rootCmd.PersistentFlags().StringP("loglevel", "l", "info", "Set log level. Available: debug, info, warn, error, fatal")
	rootCmd.PersistentFlags().StringP("output", "o", "table", "Output format: table, json or yaml")

	viper.BindPFlag("nextdns.apikey", rootCmd.PersistentFlags().Lookup("api-key"))
	viper.BindPFlag("http.proxy", rootCmd.PersistentFlags().Lookup("proxy"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".nxsync")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("NXSYNC")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok && cfgFile == "" {
			// Config file not found; create it with defaults.
			home, _ := homedir.Dir()
			configPath := home + "/.nxsync.yaml"
			if err := viper.SafeWriteConfigAs(configPath); err != nil {
				utils.Log.Debugf("Could not create config file: %s", err)
			}
		}
	}
}

func setDefaults() {
	viper.SetDefault("nextdns.apikey", "")
	viper.SetDefault("nextdns.baseurl", "https://api.nextdns.io")
	viper.SetDefault("throttle.delay", syncer.DefaultDelay)
	viper.SetDefault("throttle.retrydelay", syncer.DefaultRetryDelay)
	viper.SetDefault("throttle.maxretries", syncer.DefaultMaxRetries)
	viper.SetDefault("http.retrymax", 2)
	viper.SetDefault("http.timeout", "30s")
}
