package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/nxsync/nxsync/internal/utils"
	"github.com/nxsync/nxsync/pkg/nextdns"
	"github.com/nxsync/nxsync/pkg/report"
	"github.com/nxsync/nxsync/pkg/whttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// newClient builds a client for apiKey from the http.* and nextdns.* settings.
func newClient(apiKey string) (*nextdns.Client, error) {
	opts := whttp.DefaultOptions()
	if d := viper.GetDuration("http.timeout"); d > 0 {
		opts.Timeout = d
	}
	opts.RetryMax = viper.GetInt("http.retrymax")
	opts.Proxy = viper.GetString("http.proxy")
	opts.Logger = utils.RetryLogger{L: utils.Log}

	hc, err := whttp.NewClient(opts)
	if err != nil {
		return nil, err
	}
	return nextdns.NewClient(apiKey,
		nextdns.WithBaseURL(viper.GetString("nextdns.baseurl")),
		nextdns.WithHTTPClient(hc),
	)
}

// defaultClient is the client for the configured account.
func defaultClient() (*nextdns.Client, error) {
	return newClient(viper.GetString("nextdns.apikey"))
}

func outputFormat(cmd *cobra.Command) (report.Format, error) {
	s, _ := cmd.Flags().GetString("output")
	return report.ParseFormat(s)
}

// render writes v in the selected format. Text progress lines go to stderr when
// the output is machine readable so stdout stays parseable.
func render(cmd *cobra.Command, v interface{}, table func(io.Writer) error) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	return report.Write(cmd.OutOrStdout(), format, v, table)
}

func progressWriter(cmd *cobra.Command) io.Writer {
	if format, _ := outputFormat(cmd); format != report.FormatTable {
		return cmd.ErrOrStderr()
	}
	return cmd.OutOrStdout()
}

// withLock runs fn while no other nxsync process mutates the same account.
func withLock(apiKey string, fn func() error) error {
	if apiKey == "" {
		return errors.New("an API key is required")
	}
	lock, err := utils.NewRunLock(apiKey)
	if err != nil {
		return err
	}
	if err := lock.Lock(); err != nil {
		return err
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}()
	return fn()
}

func splitFlag(cmd *cobra.Command, name string) []string {
	v, _ := cmd.Flags().GetString(name)
	return utils.SplitList(v)
}
