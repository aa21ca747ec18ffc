package app

import (
	"errors"

	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to a Home Assistant server at a known address",
	Long: `Run the authorization flow against the server at --url and exchange the result
for an access token.

Examples:
  # Sign in through the default browser
  hass-onboard login --url http://homeassistant.local:8123

  # Follow redirects without a browser, trusting a self-signed certificate
  hass-onboard login --url https://192.168.1.10:8123 --surface headless --trust-server-certificate`,
	RunE: runLogin,
}

func init() {
	loginCmd.Flags().String("url", "", "Base URL of the Home Assistant server (required)")
	loginCmd.Flags().String("format", formatTable, "Output format (table or json)")
	addAuthorizeFlags(loginCmd)

	if err := loginCmd.MarkFlagRequired("url"); err != nil {
		panic(err)
	}
}

func runLogin(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	format, _ := cmd.Flags().GetString("format")
	if err := validateFormat(format); err != nil {
		return err
	}
	baseURL, _ := cmd.Flags().GetString("url")
	if baseURL == "" {
		return errors.New("--url is required")
	}

	env, err := newEnvironment(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	opts, err := authorizeOptionsFromFlags(cmd, env.cfg)
	if err != nil {
		return err
	}

	client, token, err := env.authorize(ctx, baseURL, opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	res, err := finishLogin(client, "", token, opts.save)
	if err != nil {
		return err
	}
	if format == formatJSON {
		return writeJSON(cmd.OutOrStdout(), res)
	}
	return renderLogin(cmd.OutOrStdout(), res)
}
