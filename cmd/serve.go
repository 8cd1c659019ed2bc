package cmd

import (
	"github.com/nxsync/nxsync/internal/server"
	"github.com/nxsync/nxsync/pkg/nextdns"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard JSON API",
	Long:  `Start an HTTP server exposing profiles, domains, sync, diff and copy as a JSON API. Each request authenticates against NextDNS with its own X-Api-Key header.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("username")
		pass, _ := cmd.Flags().GetString("password")
		addr, _ := cmd.Flags().GetString("listen")

		srv := server.New(func(apiKey string) (nextdns.API, error) {
			c, err := newClient(apiKey)
			if err != nil {
				return nil, err
			}
			return c, nil
		}, server.Config{
			Username:   user,
			Password:   pass,
			Delay:      viper.GetDuration("throttle.delay"),
			RetryDelay: viper.GetDuration("throttle.retrydelay"),
			MaxRetries: viper.GetInt("throttle.maxretries"),
		})
		return srv.Start(addr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("listen", "b", ":8080", "Address to bind the server to")
	serveCmd.Flags().StringP("username", "u", "", "Username for basic auth (optional)")
	serveCmd.Flags().StringP("password", "P", "", "Password for basic auth (optional)")
}
