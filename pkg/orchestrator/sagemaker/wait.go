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

package sagemaker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sentiment-launcher/pkg/logging"
	"sentiment-launcher/pkg/orchestrator"

	"github.com/aws/aws-sdk-go-v2/aws"
	sm "github.com/aws/aws-sdk-go-v2/service/sagemaker"
	smtypes "github.com/aws/aws-sdk-go-v2/service/sagemaker/types"
)

// waitForCompletion polls the job until it is Completed, Failed or Stopped.
// Cancelling ctx stops the polling only; the remote job keeps running.
func (o *SageMakerOrchestrator) waitForCompletion(ctx context.Context, jobName string) error {
	logging.Info("Waiting for training job %s to finish (polling every %s)...", jobName, o.opts.PollInterval)

	ticker := time.NewTicker(o.opts.PollInterval)
	defer ticker.Stop()

	var follower *logFollower
	if !o.opts.NoLogs && o.logs != nil {
		follower = newLogFollower(o.logs, jobName, o.stdout)
	}

	seen := 0
	for {
		desc, err := o.sm.DescribeTrainingJob(ctx, &sm.DescribeTrainingJobInput{TrainingJobName: aws.String(jobName)})
		if err != nil {
			if ctx.Err() != nil {
				return stoppedWaiting(ctx, jobName)
			}
			return classifyError("DescribeTrainingJob", jobName, err)
		}
		seen = logTransitions(jobName, desc.SecondaryStatusTransitions, seen)
		follower = followLogs(ctx, follower)

		if done, err := terminalResult(jobName, desc); done {
			// Events written just before the status changed may show up late.
			followLogs(ctx, follower)
			return err
		}

		select {
		case <-ctx.Done():
			return stoppedWaiting(ctx, jobName)
		case <-ticker.C:
		}
	}
}

func stoppedWaiting(ctx context.Context, jobName string) error {
	logging.Warn("Stopped waiting for %s; the job keeps running remotely. Stop it with: aws sagemaker stop-training-job --training-job-name %s", jobName, jobName)
	return fmt.Errorf("waiting for training job %s: %w", jobName, ctx.Err())
}

// followLogs prints new container output. A follower that fails is dropped
// so that log access problems never fail the job.
func followLogs(ctx context.Context, f *logFollower) *logFollower {
	if f == nil {
		return nil
	}
	if err := f.poll(ctx); err != nil {
		if ctx.Err() == nil {
			logging.Warn("No longer following training logs: %v", err)
		}
		return nil
	}
	return f
}

// logTransitions logs the secondary status transitions after the first seen
// and returns the new count.
func logTransitions(jobName string, transitions []smtypes.SecondaryStatusTransition, seen int) int {
	if seen > len(transitions) {
		seen = 0
	}
	entry := logging.WithField("job", jobName)
	for _, t := range transitions[seen:] {
		msg := aws.ToString(t.StatusMessage)
		if t.StartTime != nil {
			entry.Infof("%s %s - %s", t.StartTime.UTC().Format(time.RFC3339), t.Status, msg)
		} else {
			entry.Infof("%s - %s", t.Status, msg)
		}
	}
	return len(transitions)
}

func terminalResult(jobName string, desc *sm.DescribeTrainingJobOutput) (bool, error) {
	switch desc.TrainingJobStatus {
	case smtypes.TrainingJobStatusCompleted:
		logging.Info("Training job %s completed.", jobName)
		if desc.ModelArtifacts != nil {
			logging.Info("Model artifacts: %s", aws.ToString(desc.ModelArtifacts.S3ModelArtifacts))
		}
		if desc.BillableTimeInSeconds != nil {
			logging.Info("Billable seconds: %d", aws.ToInt32(desc.BillableTimeInSeconds))
		}
		return true, nil
	case smtypes.TrainingJobStatusStopped:
		logging.Warn("Training job %s was stopped before it finished.", jobName)
		return true, nil
	case smtypes.TrainingJobStatusFailed:
		reason := aws.ToString(desc.FailureReason)
		if reason == "" {
			reason = "no failure reason reported"
		}
		logging.Error("Training job %s failed: %s", jobName, reason)
		return true, &orchestrator.ServiceError{
			Kind:    orchestrator.KindRemoteExecution,
			Op:      "training",
			JobName: jobName,
			Err:     errors.New(reason),
		}
	default:
		return false, nil
	}
}
