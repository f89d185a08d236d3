package main

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/vectorsql/vectorsql/pkg/log"
	"github.com/vectorsql/vectorsql/pkg/metrics"
)

var metricsServerCmd = &cobra.Command{
	Use:   "metrics-server",
	Short: "Serve the Prometheus scheduler metrics registered at package init",
	RunE:  runMetricsServer,
}

func init() {
	metricsServerCmd.Flags().String("addr", ":9090", "address to listen on")
}

func runMetricsServer(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	log.Logger.Info().Str("addr", addr).Msg("serving scheduler metrics")
	return http.ListenAndServe(addr, mux)
}
