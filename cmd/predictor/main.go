package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/mikey/social-ads-predictor/internal/client"
	"github.com/mikey/social-ads-predictor/internal/config"
	"github.com/mikey/social-ads-predictor/internal/core"
	"github.com/mikey/social-ads-predictor/internal/di"
	"github.com/mikey/social-ads-predictor/internal/ports"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "predictor",
		Short: "Social network ads purchase predictor",
		Long: `predictor serves purchase predictions from a trained artifact.

It loads the artifact named by artifact.ref from the configured store and
answers requests over HTTP or once from the command line.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "Path to config file")
	rootCmd.PersistentFlags().String("artifact", "", "Artifact reference to serve (name or name:version)")
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable verbose output")
	rootCmd.PersistentFlags().Bool("json-log", false, "Output logs in JSON format")

	rootCmd.AddCommand(
		newServeCmd(),
		newPredictCmd(),
		newArtifactsCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func cliFlags(cmd *cobra.Command) *di.CLIFlags {
	configFile, _ := cmd.Flags().GetString("config")
	ref, _ := cmd.Flags().GetString("artifact")
	verbose, _ := cmd.Flags().GetBool("verbose")
	jsonLog, _ := cmd.Flags().GetBool("json-log")

	flags := &di.CLIFlags{
		ConfigFile: configFile,
		Verbose:    verbose,
		JSONLog:    jsonLog,
		Overrides:  map[string]interface{}{},
	}
	if ref != "" {
		flags.Overrides["artifact.ref"] = ref
	}
	return flags
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve predictions until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cliFlags(cmd)
			if addr, _ := cmd.Flags().GetString("listen"); addr != "" {
				flags.Overrides["server.listen_address"] = addr
			}

			container, err := di.BuildContainer(di.Options{
				ConfigFile: flags.ConfigFile,
				Overrides:  flags.Overrides,
			})
			if err != nil {
				return fmt.Errorf("failed to build dependency container: %w", err)
			}
			return container.Invoke(serve)
		},
	}
	cmd.Flags().String("listen", "", "Listen address (overrides server.listen_address)")
	return cmd
}

// serve is the main service function that gets all dependencies injected
func serve(
	logger *zap.Logger,
	endpoint ports.PredictionEndpoint,
	store core.ArtifactStore,
) error {
	defer logger.Sync()

	// Start the endpoint
	if err := endpoint.Start(); err != nil {
		logger.Error("Failed to start endpoint", zap.Error(err))
		return err
	}

	// Endpoints that serve in the background report a failed server here
	var serveErr <-chan error
	if reporter, ok := endpoint.(interface{ Errors() <-chan error }); ok {
		serveErr = reporter.Errors()
	}

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case <-sigCh:
		logger.Info("Shutting down...")
	case runErr = <-serveErr:
		logger.Error("Endpoint failed, shutting down", zap.Error(runErr))
	}

	// Stop the endpoint
	if err := endpoint.Stop(); err != nil {
		logger.Error("Failed to stop endpoint", zap.Error(err))
	}

	// Stop the store if needed
	if stopper, ok := store.(interface{ Stop() }); ok {
		stopper.Stop()
	}

	logger.Info("Shutdown complete")
	return runErr
}

func newPredictCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Predict whether one customer will purchase",
		Long: `Predict whether one customer will purchase.

Examples:
  predictor predict --gender Male --age 42 --salary 80000
  predictor predict --gender Female --age 30 --salary 45000 --remote http://localhost:3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			input := predictionInput(cmd)
			remote, _ := cmd.Flags().GetString("remote")
			flags := cliFlags(cmd)

			if remote != "" {
				return predictRemote(cmd, flags, remote, input)
			}

			container, err := di.BuildCLIContainer(flags)
			if err != nil {
				return fmt.Errorf("failed to build dependency container: %w", err)
			}
			return container.Invoke(func(logger *zap.Logger, endpoint ports.PredictionEndpoint) error {
				defer logger.Sync()
				_, err := endpoint.Process(context.Background(), input)
				return err
			})
		},
	}
	cmd.Flags().String("gender", "", "Customer gender (Male or Female)")
	cmd.Flags().String("age", "", "Customer age in years")
	cmd.Flags().String("salary", "", "Customer estimated yearly salary")
	cmd.Flags().String("remote", "", "Base URL of a running predictor to ask instead of loading the artifact")
	cmd.Flags().Duration("timeout", 10*time.Second, "Timeout of remote requests")
	return cmd
}

// predictionInput leaves unset flags nil so the predictor reports them as missing
func predictionInput(cmd *cobra.Command) core.PredictionInput {
	var input core.PredictionInput
	if cmd.Flags().Changed("gender") {
		gender, _ := cmd.Flags().GetString("gender")
		input.Gender = &gender
	}
	if cmd.Flags().Changed("age") {
		age, _ := cmd.Flags().GetString("age")
		input.Age = core.NumericFromString(age)
	}
	if cmd.Flags().Changed("salary") {
		salary, _ := cmd.Flags().GetString("salary")
		input.Salary = core.NumericFromString(salary)
	}
	return input
}

func predictRemote(cmd *cobra.Command, flags *di.CLIFlags, baseURL string, input core.PredictionInput) error {
	timeout, _ := cmd.Flags().GetDuration("timeout")
	container, err := di.BuildCLIContainer(flags)
	if err != nil {
		return fmt.Errorf("failed to build dependency container: %w", err)
	}
	return container.Invoke(func(logger *zap.Logger) error {
		defer logger.Sync()
		resp, err := client.New(baseURL, timeout, logger).Predict(cmd.Context(), input)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	})
}

func newArtifactsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "artifacts [name]",
		Short: "List the stored versions of an artifact, newest first",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := di.BuildCLIContainer(cliFlags(cmd))
			if err != nil {
				return fmt.Errorf("failed to build dependency container: %w", err)
			}
			return container.Invoke(func(cfg *config.Config, store core.ArtifactStore) error {
				name := cfg.GetString("artifact.name")
				if len(args) == 1 {
					name = args[0]
				}
				handles, err := store.List(cmd.Context(), name)
				if err != nil {
					return err
				}
				if len(handles) == 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "No versions of %s stored\n", name)
					return nil
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "VERSION\tCREATED\tSIZE")
				for _, h := range handles {
					fmt.Fprintf(w, "%s\t%s\t%d\n", h.Version, h.CreatedAt.Format(time.RFC3339), h.Size)
				}
				return w.Flush()
			})
		},
	}
}
