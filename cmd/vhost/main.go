package main

import (
	"fmt"
	"net/http"
	"os"

	"SIM-TCP/pkg/iptcpstack"
	"SIM-TCP/pkg/lnxconfig"
	"SIM-TCP/pkg/repl"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type rootOptions struct {
	configPath  string
	metricsAddr string
	verbose     bool
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "vhost",
		Short: "Simulated in-memory socket host",
		Long: `vhost runs an in-memory socket stack. Sockets, ports and
connections exist only inside the process; sends are delivered straight
into the receive buffer of the endpoint bound to the destination.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "stack config file (ini)")
	cmd.PersistentFlags().StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "trace every socket call")

	cmd.AddCommand(replCmd(opts), demoCmd(opts))
	return cmd
}

func replCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Drive the stack interactively from stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			stack, err := initializeStack(opts)
			if err != nil {
				return err
			}
			defer stack.Shutdown()
			repl.StartRepl(stack, cmd.InOrStdin(), cmd.OutOrStdout())
			return nil
		},
	}
}

func demoCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Run the UDP ping and TCP echo scenarios",
		RunE: func(cmd *cobra.Command, args []string) error {
			stack, err := initializeStack(opts)
			if err != nil {
				return err
			}
			defer stack.Shutdown()
			return runDemo(stack, cmd.OutOrStdout())
		},
	}
}

func initializeStack(opts *rootOptions) (*iptcpstack.Stack, error) {
	config := lnxconfig.Default()
	if opts.configPath != "" {
		var err error
		config, err = lnxconfig.ParseConfig(opts.configPath)
		if err != nil {
			return nil, err
		}
	}
	if opts.verbose {
		config.Verbose = true
	}

	var stackOpts []iptcpstack.Option
	if opts.metricsAddr != "" {
		log, err := zap.NewProduction()
		if err != nil {
			return nil, err
		}
		stackOpts = append(stackOpts, iptcpstack.WithRegisterer(prometheus.DefaultRegisterer))
		go serveMetrics(opts.metricsAddr, log)
	}
	return iptcpstack.New(config, stackOpts...), nil
}

// serveMetrics blocks until the metrics listener fails.
func serveMetrics(addr string, log *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error("metrics server stopped", zap.String("addr", addr), zap.Error(err))
	}
}
