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

// Package sagemaker submits training jobs to Amazon SageMaker and follows
// them until they finish.
package sagemaker

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"sentiment-launcher/pkg/logging"
	"sentiment-launcher/pkg/orchestrator"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	sm "github.com/aws/aws-sdk-go-v2/service/sagemaker"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/spf13/afero"
)

const (
	DefaultBaseJobName  = "pytorch-training"
	DefaultVolumeSizeGB = 30
	DefaultMaxRun       = 24 * time.Hour
	DefaultPollInterval = 30 * time.Second
)

// Options carries the settings that shape the request but are not part of the
// job descriptor itself.
type Options struct {
	Region       string
	JobName      string
	BaseJobName  string
	ImageURI     string
	OutputPath   string
	CodeLocation string
	VolumeSizeGB int
	MaxRun       time.Duration
	PollInterval time.Duration
	// NoWait returns as soon as the job has been created.
	NoWait bool
	// NoLogs skips copying the training container's output while waiting.
	NoLogs      bool
	Tags        map[string]string
	Environment map[string]string
}

func (o Options) withDefaults() Options {
	if o.BaseJobName == "" {
		o.BaseJobName = DefaultBaseJobName
	}
	if o.VolumeSizeGB == 0 {
		o.VolumeSizeGB = DefaultVolumeSizeGB
	}
	if o.MaxRun == 0 {
		o.MaxRun = DefaultMaxRun
	}
	if o.PollInterval == 0 {
		o.PollInterval = DefaultPollInterval
	}
	return o
}

type sageMakerAPI interface {
	CreateTrainingJob(ctx context.Context, params *sm.CreateTrainingJobInput, optFns ...func(*sm.Options)) (*sm.CreateTrainingJobOutput, error)
	DescribeTrainingJob(ctx context.Context, params *sm.DescribeTrainingJobInput, optFns ...func(*sm.Options)) (*sm.DescribeTrainingJobOutput, error)
}

type s3API interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type stsAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// SageMakerOrchestrator implements the Orchestrator interface for SageMaker.
type SageMakerOrchestrator struct {
	sm     sageMakerAPI
	s3     s3API
	sts    stsAPI
	logs   logsAPI
	fs     afero.Fs
	stdout io.Writer
	region string
	opts   Options
	now    func() time.Time
}

var _ orchestrator.Orchestrator = (*SageMakerOrchestrator)(nil)

// NewSageMakerOrchestrator loads AWS credentials and region from the default
// chain and builds the service clients.
func NewSageMakerOrchestrator(ctx context.Context, opts Options) (*SageMakerOrchestrator, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, &orchestrator.ServiceError{Kind: orchestrator.KindAuthorization, Op: "load AWS configuration", Err: err}
	}
	if cfg.Region == "" {
		return nil, &orchestrator.ServiceError{
			Kind: orchestrator.KindConfiguration,
			Op:   "load AWS configuration",
			Err:  fmt.Errorf("no AWS region configured: set --region, AWS_REGION or a profile region"),
		}
	}
	return newWithClients(sm.NewFromConfig(cfg), s3.NewFromConfig(cfg), sts.NewFromConfig(cfg), cloudwatchlogs.NewFromConfig(cfg), afero.NewOsFs(), cfg.Region, opts), nil
}

func newWithClients(smc sageMakerAPI, s3c s3API, stsc stsAPI, logsc logsAPI, fsys afero.Fs, region string, opts Options) *SageMakerOrchestrator {
	return &SageMakerOrchestrator{
		sm:     smc,
		s3:     s3c,
		sts:    stsc,
		logs:   logsc,
		fs:     fsys,
		stdout: os.Stdout,
		region: region,
		opts:   opts.withDefaults(),
		now:    time.Now,
	}
}

// Region is the region jobs are submitted to.
func (o *SageMakerOrchestrator) Region() string { return o.region }

// SubmitJob packages the source directory, creates the training job and, unless
// NoWait is set, blocks until the job reaches a terminal state.
func (o *SageMakerOrchestrator) SubmitJob(ctx context.Context, job orchestrator.JobDescriptor, channels orchestrator.Channels) error {
	logging.Info("Starting SageMaker training workflow...")

	if err := job.Validate(); err != nil {
		return err
	}
	if err := channels.Validate(); err != nil {
		return err
	}
	warnUnknownInstanceType(job.InstanceType)

	jobName, err := o.jobName()
	if err != nil {
		return &orchestrator.ServiceError{Kind: orchestrator.KindConfiguration, Op: "validate", Err: err}
	}

	imageURI, err := ResolveImageURI(job.FrameworkVersion, job.LanguageRuntimeVersion, job.InstanceType, o.region, o.opts.ImageURI)
	if err != nil {
		return &orchestrator.ServiceError{Kind: orchestrator.KindConfiguration, Op: "resolve training image", JobName: jobName, Err: err}
	}
	logging.Info("Using training image %s", imageURI)

	outputPath, codeLocation, err := o.resolveLocations(ctx, jobName)
	if err != nil {
		return err
	}

	submitDir, err := o.uploadSource(ctx, job, codeLocation, jobName)
	if err != nil {
		return err
	}

	input, err := buildCreateTrainingJobInput(job, channels, requestParams{
		JobName:         jobName,
		ImageURI:        imageURI,
		Region:          o.region,
		SubmitDirectory: submitDir,
		OutputPath:      outputPath,
		VolumeSizeGB:    o.opts.VolumeSizeGB,
		MaxRun:          o.opts.MaxRun,
		Tags:            o.opts.Tags,
		Environment:     o.opts.Environment,
	})
	if err != nil {
		return &orchestrator.ServiceError{Kind: orchestrator.KindConfiguration, Op: "build request", JobName: jobName, Err: err}
	}

	logging.Info("Creating training job %s on %d x %s...", jobName, job.InstanceCount, job.InstanceType)
	out, err := o.sm.CreateTrainingJob(ctx, input)
	if err != nil {
		return classifyError("CreateTrainingJob", jobName, err)
	}
	logging.Info("Training job created: %s", aws.ToString(out.TrainingJobArn))
	logging.Info("TensorBoard logs will be written to %s", job.Telemetry.RemoteOutputURI)

	if o.opts.NoWait {
		logging.Info("Not waiting for %s to finish.", jobName)
		return nil
	}
	return o.waitForCompletion(ctx, jobName)
}
