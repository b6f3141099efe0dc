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

// Package launcher turns a training configuration into one job submission.
package launcher

import (
	"context"

	"sentiment-launcher/pkg/config"
	"sentiment-launcher/pkg/logging"
	"sentiment-launcher/pkg/orchestrator"
)

// Hyperparameter names the training script parses from its command line.
const (
	HyperparameterBatchSize = "batch-size"
	HyperparameterEpochs    = "epochs"
)

// Launcher submits training jobs through an Orchestrator.
type Launcher struct {
	orch orchestrator.Orchestrator
}

// New returns a Launcher that submits through orch.
func New(orch orchestrator.Orchestrator) *Launcher {
	return &Launcher{orch: orch}
}

// BuildJob constructs the job descriptor and data channels for cfg.
func BuildJob(cfg config.Training) (orchestrator.JobDescriptor, orchestrator.Channels, error) {
	telemetry, err := orchestrator.NewTelemetryOutputConfig(cfg.TensorBoard.OutputPath, cfg.TensorBoard.LocalPath)
	if err != nil {
		return orchestrator.JobDescriptor{}, nil, err
	}

	job, err := orchestrator.NewJobDescriptor(orchestrator.JobDescriptor{
		EntryPoint:             cfg.EntryPoint,
		SourceDirectory:        cfg.SourceDir,
		ExecutionRole:          cfg.Role,
		FrameworkVersion:       cfg.FrameworkVersion,
		LanguageRuntimeVersion: cfg.PyVersion,
		InstanceCount:          cfg.InstanceCount,
		InstanceType:           cfg.InstanceType,
		Hyperparameters: map[string]any{
			HyperparameterBatchSize: cfg.BatchSize,
			HyperparameterEpochs:    cfg.Epochs,
		},
		Telemetry: telemetry,
	})
	if err != nil {
		return orchestrator.JobDescriptor{}, nil, err
	}

	channels := orchestrator.Channels{
		orchestrator.ChannelTraining:   cfg.Data.Train,
		orchestrator.ChannelValidation: cfg.Data.Validation,
		orchestrator.ChannelTest:       cfg.Data.Test,
	}
	if err := channels.Validate(); err != nil {
		return orchestrator.JobDescriptor{}, nil, err
	}
	return job, channels, nil
}

// StartTraining builds the submission for cfg and hands it to the
// orchestrator once. The orchestrator's error is returned as is.
func (l *Launcher) StartTraining(ctx context.Context, cfg config.Training) error {
	job, channels, err := BuildJob(cfg)
	if err != nil {
		return err
	}

	logging.Info("Submitting %s from %s on %d x %s (batch size %d, %d epochs)",
		job.EntryPoint, job.SourceDirectory, job.InstanceCount, job.InstanceType, cfg.BatchSize, cfg.Epochs)
	return l.orch.SubmitJob(ctx, job, channels)
}
