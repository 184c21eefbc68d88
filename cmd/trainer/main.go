package main

import (
	"fmt"
	"os"

	"github.com/mikey/social-ads-predictor/internal/core"
	"github.com/mikey/social-ads-predictor/internal/di"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "trainer",
		Short: "Offline training of the purchase classifier",
	}

	trainCmd := &cobra.Command{
		Use:   "train",
		Short: "Train the purchase classifier and publish an artifact",
		Long: `train fits the feature scaler and a linear SVC on the labeled CSV
dataset, evaluates it on a held-out split and saves the exported graph
together with its scaler parameters as a new artifact version.

Examples:
  trainer train --dataset Social_Network_Ads.csv
  trainer train --dataset data.csv --test-ratio 0.2 --seed 42 --name social_ads`,
		SilenceUsage: true,
		RunE:         runTrain,
	}

	trainCmd.Flags().String("config", "", "Path to config file")
	trainCmd.Flags().Bool("verbose", false, "Enable verbose logging")
	trainCmd.Flags().Bool("json-log", false, "Output logs in JSON format")
	trainCmd.Flags().String("dataset", "", "Path of the labeled CSV dataset (overrides training.dataset_path)")
	trainCmd.Flags().String("name", "", "Artifact name (overrides artifact.name)")
	trainCmd.Flags().Float64("test-ratio", 0, "Fraction of rows held out for evaluation (overrides training.test_ratio)")
	trainCmd.Flags().Int64("seed", 0, "Seed of the split and solver (overrides training.seed)")
	trainCmd.Flags().Float64("c", 0, "Penalty of the hinge loss (overrides training.svm.c)")
	trainCmd.Flags().String("store", "", "Artifact store type (overrides store.type)")

	rootCmd.AddCommand(trainCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// flagOverrides maps changed flags to the configuration keys they replace
var flagOverrides = map[string]string{
	"dataset":    "training.dataset_path",
	"name":       "artifact.name",
	"test-ratio": "training.test_ratio",
	"seed":       "training.seed",
	"c":          "training.svm.c",
	"store":      "store.type",
}

func runTrain(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")
	jsonLog, _ := cmd.Flags().GetBool("json-log")

	flags := &di.CLIFlags{
		ConfigFile: configFile,
		Verbose:    verbose,
		JSONLog:    jsonLog,
		Overrides:  map[string]interface{}{},
	}
	for name, key := range flagOverrides {
		if cmd.Flags().Changed(name) {
			flags.Overrides[key] = cmd.Flags().Lookup(name).Value.String()
		}
	}

	container, err := di.BuildTrainerContainer(flags)
	if err != nil {
		return fmt.Errorf("failed to build dependency container: %w", err)
	}

	return container.Invoke(func(logger *zap.Logger, trainer *core.TrainingService, store core.ArtifactStore) error {
		defer logger.Sync()
		if stopper, ok := store.(interface{ Stop() }); ok {
			defer stopper.Stop()
		}

		handle, err := trainer.Train(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved artifact %s (%d bytes)\n", handle, handle.Size)
		return nil
	})
}
