package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/stacklok/hass-onboard/internal/chooser"
	"github.com/stacklok/hass-onboard/internal/discovery"
	"github.com/stacklok/hass-onboard/internal/hass"
)

var errNoInstances = errors.New("no Home Assistant servers found; use --manual-url to enter an address")

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Discover a Home Assistant server, choose it, and sign in",
	Long: `Discover Home Assistant servers on the local network, let you choose one, and run
the authorization flow against it.

When stdin is not a terminal the server named by --instance, or the first one found,
is used. --manual-url skips discovery and asks the server to describe itself instead.`,
	RunE: runOnboard,
}

func init() {
	onboardCmd.Flags().Duration("window", 0, "How long to collect announcements (default from config, 5s)")
	onboardCmd.Flags().Bool("dedupe", false, "Drop servers announcing an already listed base URL")
	onboardCmd.Flags().String("instance", "", "Name or base URL of the discovered server to use")
	onboardCmd.Flags().String("manual-url", "", "Skip discovery and use the server at this address")
	onboardCmd.Flags().String("format", formatTable, "Output format (table or json)")
	addAuthorizeFlags(onboardCmd)
}

func runOnboard(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	format, _ := cmd.Flags().GetString("format")
	if err := validateFormat(format); err != nil {
		return err
	}
	window, _ := cmd.Flags().GetDuration("window")
	dedupe, _ := cmd.Flags().GetBool("dedupe")
	name, _ := cmd.Flags().GetString("instance")
	manualURL, _ := cmd.Flags().GetString("manual-url")

	env, err := newEnvironment(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	opts, err := authorizeOptionsFromFlags(cmd, env.cfg)
	if err != nil {
		return err
	}

	var info discovery.Info
	if manualURL != "" {
		info, err = env.probe(ctx, manualURL, opts)
	} else {
		info, err = env.discoverAndChoose(ctx, cmd, window, dedupe, name, opts)
	}
	if err != nil {
		return err
	}

	if err := hass.CheckVersion(info); err != nil {
		return err
	}
	if info.RequiresAPIPassword {
		slog.Warn("Server still has a legacy API password configured", "server", info.BaseURL)
	}

	client, token, err := env.authorize(ctx, info.BaseURL, opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	res, err := finishLogin(client, info.LocationName, token, opts.save)
	if err != nil {
		return err
	}
	if format == formatJSON {
		return writeJSON(cmd.OutOrStdout(), res)
	}
	return renderLogin(cmd.OutOrStdout(), res)
}

func (e *environment) discoverAndChoose(
	ctx context.Context, cmd *cobra.Command, window time.Duration, dedupe bool, name string, opts authorizeOptions,
) (discovery.Info, error) {
	collector, err := e.newCollector(window, dedupe)
	if err != nil {
		return discovery.Info{}, err
	}

	_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "Looking for Home Assistant servers...")
	instances, err := collector.Discover(ctx)
	if err != nil {
		return discovery.Info{}, fmt.Errorf("discovery failed: %w", err)
	}

	interactive := isInteractive()
	info, err := pickInstance(ctx, instances, name, interactive, cmd.InOrStdin(), cmd.OutOrStdout())
	if !errors.Is(err, chooser.ErrManualEntry) {
		return info, err
	}

	address, err := readAddress(cmd.InOrStdin(), cmd.OutOrStdout())
	if err != nil {
		return discovery.Info{}, err
	}
	return e.probe(ctx, address, opts)
}

// probe asks the server at rawURL to describe itself. Certificate and proxy exceptions
// from opts apply as they do during sign-in.
func (e *environment) probe(ctx context.Context, rawURL string, opts authorizeOptions) (discovery.Info, error) {
	base, err := hass.ParseBaseURL(rawURL)
	if err != nil {
		return discovery.Info{}, err
	}
	exceptions := newEvaluator(base.Hostname(), opts.trustServer, opts.basicUser, opts.basicPassword)
	httpClient, err := e.apiHTTPClient(exceptions)
	if err != nil {
		return discovery.Info{}, err
	}
	client, err := hass.NewClient(base.String(), hass.WithHTTPClient(httpClient))
	if err != nil {
		return discovery.Info{}, err
	}
	return client.FetchDiscoveryInfo(ctx)
}

// pickInstance selects the server to sign in to. name matches a location name
// case-insensitively or a base URL exactly.
func pickInstance(
	ctx context.Context, instances []discovery.Info, name string, interactive bool, in io.Reader, out io.Writer,
) (discovery.Info, error) {
	if name != "" {
		for _, info := range instances {
			if strings.EqualFold(info.LocationName, name) || info.BaseURL == name {
				return info, nil
			}
		}
		return discovery.Info{}, fmt.Errorf("no discovered server matches %q", name)
	}

	if interactive {
		return chooser.Choose(ctx, instances, in, out)
	}

	if len(instances) == 0 {
		return discovery.Info{}, errNoInstances
	}
	if len(instances) > 1 {
		slog.Info("Several servers found, using the first", "name", instances[0].LocationName, "count", len(instances))
	}
	return instances[0], nil
}

func readAddress(in io.Reader, out io.Writer) (string, error) {
	_, _ = fmt.Fprint(out, "Home Assistant address: ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read address: %w", err)
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", errors.New("no address entered")
	}
	return line, nil
}

func isInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd())) // #nosec G115
}
