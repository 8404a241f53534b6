package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configFile string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "rspd",
		Short:         "Remote Serial Protocol server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "path to an optional YAML config file")

	root.AddCommand(newServeCmd())
	root.AddCommand(newStatusCmd())
	return root
}

func bindServeFlags(cmd *cobra.Command) func(*viper.Viper) {
	port := cmd.Flags().Int("port", 0, "base TCP port (default 3333); each target after the first gets port+i")
	targets := cmd.Flags().StringSlice("target", nil, "name of a demonstration target to register (repeatable)")
	logLevel := cmd.Flags().String("log-level", "", "log level: trace, debug, info, warn, error")
	metricsAddr := cmd.Flags().String("metrics-addr", "", "address to serve Prometheus metrics on, e.g. :9333")
	metricsEnabled := cmd.Flags().Bool("metrics", false, "enable the Prometheus metrics endpoint")

	return func(v *viper.Viper) {
		if *port != 0 {
			v.Set("port", *port)
		}
		if len(*targets) > 0 {
			v.Set("targets", *targets)
		}
		if *logLevel != "" {
			v.Set("logging.level", *logLevel)
		}
		if *metricsAddr != "" {
			v.Set("metrics.addr", *metricsAddr)
		}
		if cmd.Flags().Changed("metrics") {
			v.Set("metrics.enabled", *metricsEnabled)
		}
	}
}
