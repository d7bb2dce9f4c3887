package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hierynomus/taipan"
	home "github.com/mitchellh/go-homedir"
	"github.com/rb3ckers/dualwrite/internal/config"
	"github.com/rb3ckers/dualwrite/internal/proxy"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	Version string
	Commit  string
	Date    string
)

var EnvPrefix = "DUALWRITE"

func RootCommand(cfg *config.Config) *cobra.Command {
	var verbosity int

	cmd := &cobra.Command{
		Use:   "dualwrite",
		Short: "Runs the dual-write proxy",
		Long: `
HTTP reverse proxy that:
* sends requests to a primary upstream from which the response is returned
* asynchronously replicates each request, at most once, to a shadow upstream

The shadow delivery is fire-and-forget: its outcome never changes the
response, latency, or headers seen by the client.
`,
		Version: fmt.Sprintf("%s (Built on: %s, Commit: %s)", Version, Date, Commit),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch verbosity {
			case 0:
				// Nothing to do
			case 1:
				zerolog.SetGlobalLevel(zerolog.InfoLevel)
			case 2: //nolint:gomnd
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			default:
				zerolog.SetGlobalLevel(zerolog.TraceLevel)
			}

			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			PrintUsage(cfg)

			return RunProxy(cmd.Context(), cfg)
		},
	}

	cmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Print more verbose logging")

	cmd.Flags().StringP("listen", "l", ":8080", "Address to listen on")
	cmd.Flags().StringP("primary", "p", "http://localhost:3000", "Primary upstream, its responses are returned to the client")
	cmd.Flags().StringP("shadow", "s", "http://localhost:3001", "Shadow upstream that receives a best-effort copy of each request. Leave empty to disable replication")
	cmd.Flags().String("status", "status", "Path on which the proxy status can be read via GET")
	cmd.Flags().String("status-address", "", "Address on which the status and metrics endpoints are made available. Leave empty to expose them on the proxied address")
	cmd.Flags().String("response-tag", "dual-write", "Value of the 'user-content' header stamped on client responses")
	cmd.Flags().String("username", "", "Username to protect the status endpoint with.")
	cmd.Flags().String("password", "", "Password to protect the status endpoint with.")
	cmd.Flags().String("passwordFile", "", "Provide a file that contains username/password to protect the status endpoint. Contains 1 username/password combination separated by ':'.")
	cmd.Flags().Int("max-queued-shadows", 500, "Maximum amount of shadow requests queued; newer requests are dropped when full.")   //nolint:gomnd
	cmd.Flags().Int("shadow-workers", 4, "Number of workers delivering shadow requests.")                                          //nolint:gomnd
	cmd.Flags().Int("shadow-timeout-seconds", 20, "Timeout for a single shadow delivery.")                                         //nolint:gomnd
	cmd.Flags().Int("retry-after", 1, "After 5 successive failures the shadow is temporarily skipped, retried after this many minutes.")
	cmd.Flags().Int("max-connections", 0, "Maximum concurrent inbound connections, 0 for unlimited.")

	return cmd
}

func RunProxy(ctx context.Context, cfg *config.Config) error {
	sigs := make(chan os.Signal, 1)
	done := make(chan bool, 1)

	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	p, err := proxy.NewProxy(cfg)
	if err != nil {
		return err
	}

	go func() {
		sig := <-sigs
		log.Info().Msgf("Received signal '%s', exiting", sig)

		if err := p.Stop(); err != nil {
			panic(err)
		}

		done <- true
	}()

	if err := p.Start(ctx); err != nil {
		return err
	}

	<-done

	return nil
}

func Execute(ctx context.Context) {
	cfg := &config.Config{}
	cmd := RootCommand(cfg)

	homeFolder, err := home.Expand("~/.dualwrite")
	if err != nil {
		fmt.Printf("%s", err)
		os.Exit(1)
	}

	zerolog.SetGlobalLevel(zerolog.ErrorLevel)

	taipanConfig := &taipan.Config{
		DefaultConfigName:  "dualwrite",
		ConfigurationPaths: []string{".", homeFolder},
		EnvironmentPrefix:  EnvPrefix,
		AddConfigFlag:      true,
		ConfigObject:       cfg,
		PrefixCommands:     true,
	}

	t := taipan.New(taipanConfig)
	t.Inject(cmd)

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Printf("%s\n", err)
		os.Exit(1)
	}
}

func PrintUsage(cfg *config.Config) {
	var statusText string
	if cfg.StatusListenAddress != "" {
		statusText = fmt.Sprintf("http://%s/%s", cfg.StatusListenAddress, cfg.StatusEndpoint)
	} else {
		statusText = fmt.Sprintf("http://%s/%s", cfg.ListenAddress, cfg.StatusEndpoint)
	}

	fmt.Printf("Proxying to %s, shadowing to %s\n", cfg.PrimaryTarget, cfg.ShadowTarget)
	fmt.Printf("Status: curl %s\n", statusText)
	fmt.Println()
}
