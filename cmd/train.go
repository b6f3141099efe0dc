// Copyright 2026 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"sentiment-launcher/pkg/config"
	"sentiment-launcher/pkg/launcher"
	"sentiment-launcher/pkg/logging"
	"sentiment-launcher/pkg/orchestrator"
	"sentiment-launcher/pkg/orchestrator/manifest"
	"sentiment-launcher/pkg/orchestrator/sagemaker"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(trainCmd)

	d := config.Default()
	f := trainCmd.Flags()

	f.String("job-name", "", "Exact training job name. Defaults to --base-job-name plus a timestamp.")
	f.String("base-job-name", d.BaseJobName, "Prefix for generated training job names.")
	f.StringP("entry-point", "e", d.EntryPoint, "Training script, relative to --source-dir.")
	f.StringP("source-dir", "s", d.SourceDir, "Directory packaged and shipped to the training instances.")
	f.StringP("role", "r", "", "IAM role ARN the training job assumes. Required.")
	f.String("framework-version", d.FrameworkVersion, "PyTorch version of the training image.")
	f.String("py-version", d.PyVersion, "Python version of the training image (e.g., 'py311').")
	f.StringP("instance-type", "t", d.InstanceType, "Training instance type.")
	f.IntP("instance-count", "n", d.InstanceCount, "Number of training instances.")
	f.Int("batch-size", d.BatchSize, "Batch size passed to the training script.")
	f.Int("epochs", d.Epochs, "Number of epochs passed to the training script.")
	f.String("train-data", d.Data.Train, "S3 URI of the training split.")
	f.String("validation-data", d.Data.Validation, "S3 URI of the validation split.")
	f.String("test-data", d.Data.Test, "S3 URI of the test split.")
	f.String("tensorboard-output", d.TensorBoard.OutputPath, "S3 URI TensorBoard logs are mirrored to while the job runs.")
	f.String("tensorboard-local-path", d.TensorBoard.LocalPath, "Path inside the container the training script writes TensorBoard logs to.")
	f.String("region", "", "AWS region. Defaults to the AWS SDK's region resolution.")
	f.String("image-uri", "", "Training image to use instead of the PyTorch deep learning container.")
	f.String("output-path", "", "S3 URI for model artifacts. Defaults to the account's SageMaker bucket.")
	f.String("code-location", "", "S3 URI the source bundle is uploaded under. Defaults to the account's SageMaker bucket.")
	f.Int("volume-size", d.VolumeSizeGB, "EBS volume size in GB per training instance.")
	f.Duration("max-run", d.MaxRun, "Maximum run time before the job is stopped.")
	f.Duration("poll-interval", d.PollInterval, "How often to poll the job status while waiting.")
	f.Bool("no-wait", false, "Return as soon as the job has been created.")
	f.Bool("no-logs", false, "Do not print the training container's output while waiting.")
	f.StringP("output-descriptor", "o", "", "Write the job descriptor as YAML to this path ('-' for stdout) instead of submitting it.")
}

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Submits the sentiment model training job and waits for it to finish.",
	Long: `The 'train' command builds a training job descriptor from defaults, the
config file, SENTIMENT_* environment variables and flags (in increasing order of
precedence), submits it with the training, validation and test data channels,
and blocks until the job reaches a terminal state.

Interrupting the command stops waiting but does not stop the remote job.`,
	Args:          cobra.NoArgs,
	RunE:          runTrainCmd,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// runTrainCmd logs failures itself and returns them so deferred cleanup runs
// before main exits non-zero.
func runTrainCmd(cmd *cobra.Command, args []string) error {
	logging.Info("Executing sentiment-launcher train command...")

	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		logging.Error("Invalid configuration: %v", err)
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orch, err := newOrchestrator(ctx, *cfg)
	if err != nil {
		logging.Error("Failed to create orchestrator: %v", err)
		return err
	}

	if err := launcher.New(orch).StartTraining(ctx, *cfg); err != nil {
		logging.Error("Training failed (%s): %v", orchestrator.KindOf(err), err)
		return err
	}

	switch {
	case cfg.OutputDescriptor != "":
		color.New(color.FgGreen).Fprintln(os.Stderr, "Training job descriptor generated.")
	case !cfg.Wait:
		color.New(color.FgGreen).Fprintln(os.Stderr, "Training job submitted.")
	default:
		color.New(color.FgGreen, color.Bold).Fprintln(os.Stderr, "Training job finished.")
	}
	return nil
}

// newOrchestrator picks the descriptor writer for dry runs and SageMaker
// otherwise.
func newOrchestrator(ctx context.Context, cfg config.Training) (orchestrator.Orchestrator, error) {
	if cfg.OutputDescriptor != "" {
		imageURI := cfg.ImageURI
		if resolved, err := sagemaker.ResolveImageURI(cfg.FrameworkVersion, cfg.PyVersion, cfg.InstanceType, cfg.Region, cfg.ImageURI); err == nil {
			imageURI = resolved
		} else {
			logging.Debug("Training image left unresolved in descriptor: %v", err)
		}
		return manifest.NewWriter(manifest.Options{
			Path:     cfg.OutputDescriptor,
			JobName:  cfg.JobName,
			ImageURI: imageURI,
			Labels:   cfg.Tags,
		}), nil
	}

	sm, err := sagemaker.NewSageMakerOrchestrator(ctx, sagemaker.Options{
		Region:       cfg.Region,
		JobName:      cfg.JobName,
		BaseJobName:  cfg.BaseJobName,
		ImageURI:     cfg.ImageURI,
		OutputPath:   cfg.OutputPath,
		CodeLocation: cfg.CodeLocation,
		VolumeSizeGB: cfg.VolumeSizeGB,
		MaxRun:       cfg.MaxRun,
		PollInterval: cfg.PollInterval,
		NoWait:       !cfg.Wait,
		NoLogs:       !cfg.Logs,
		Tags:         cfg.Tags,
		Environment:  cfg.Environment,
	})
	if err != nil {
		return nil, err
	}
	logging.Info("Submitting to SageMaker in %s", sm.Region())
	return sm, nil
}
