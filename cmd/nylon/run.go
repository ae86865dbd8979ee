package main

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/encodeous/nylon/internal/actor"
	"github.com/encodeous/nylon/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "run [dir]",
		Short: "load node.json/net.json from dir and run the mesh client",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}

			node, err := config.LoadNodeConfig(filepath.Join(dir, "node.json"))
			if err != nil {
				return fmt.Errorf("loading node.json: %w", err)
			}
			signedCentral, err := config.LoadCentralConfig(filepath.Join(dir, "net.json"))
			if err != nil {
				return fmt.Errorf("loading net.json: %w", err)
			}
			if err := config.ValidateCentralConfig(*signedCentral); err != nil {
				return fmt.Errorf("net.json failed validation: %w", err)
			}
			central := signedCentral.Claim.Data

			var metrics *actor.Metrics
			if metricsAddr != "" {
				reg := prometheus.NewRegistry()
				metrics = actor.NewMetrics(reg)
				buildInfo := promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
					Name: "nylon_build_info",
					Help: "Build information of the nylon client.",
				}, []string{"version", "commit", "date"})
				buildInfo.WithLabelValues(version, commit, date).Set(1)

				listener, err := net.Listen("tcp", metricsAddr)
				if err != nil {
					return fmt.Errorf("starting metrics listener: %w", err)
				}
				mux := http.NewServeMux()
				mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
				go func() {
					if err := http.Serve(listener, mux); err != nil {
						cmd.PrintErrln("metrics server stopped:", err)
					}
				}()
			}

			a, err := actor.New(actor.Options{
				Dir:     dir,
				Node:    node,
				Central: central,
				Metrics: metrics,
			})
			if err != nil {
				return fmt.Errorf("constructing actor: %w", err)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if fi, err := os.Stdin.Stat(); err == nil && fi.Mode()&os.ModeCharDevice != 0 {
				go readCommands(ctx, a)
			}

			return a.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "address to serve prometheus metrics on (disabled if empty)")
	return cmd
}

// readCommands feeds stdin lines into the actor as operator commands until
// ctx is cancelled or stdin closes.
func readCommands(ctx context.Context, a *actor.Actor) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}
		a.PostCommand(scanner.Text())
	}
}
