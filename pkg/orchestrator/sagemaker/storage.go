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
	"path"
	"strings"

	"sentiment-launcher/pkg/logging"
	"sentiment-launcher/pkg/orchestrator"
	"sentiment-launcher/pkg/sourcebundle"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"
)

// resolveLocations returns the model output path and the code location,
// falling back to the account's default bucket for either one left unset.
func (o *SageMakerOrchestrator) resolveLocations(ctx context.Context, jobName string) (outputPath, codeLocation string, err error) {
	outputPath, codeLocation = o.opts.OutputPath, o.opts.CodeLocation
	if outputPath != "" && codeLocation != "" {
		return outputPath, codeLocation, nil
	}

	bucket, err := o.defaultBucket(ctx, jobName)
	if err != nil {
		return "", "", err
	}
	if outputPath == "" {
		outputPath = "s3://" + bucket + "/"
	}
	if codeLocation == "" {
		codeLocation = "s3://" + bucket
	}
	return outputPath, codeLocation, nil
}

// DefaultBucketName is the per-account, per-region bucket jobs share when no
// explicit location is configured.
func DefaultBucketName(region, account string) string {
	return fmt.Sprintf("sagemaker-%s-%s", region, account)
}

func (o *SageMakerOrchestrator) defaultBucket(ctx context.Context, jobName string) (string, error) {
	id, err := o.sts.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", classifyError("GetCallerIdentity", jobName, err)
	}
	bucket := DefaultBucketName(o.region, aws.ToString(id.Account))
	if err := o.ensureBucket(ctx, bucket, jobName); err != nil {
		return "", err
	}
	return bucket, nil
}

func isNotFound(err error) bool {
	var nf *s3types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var nsb *s3types.NoSuchBucket
	if errors.As(err, &nsb) {
		return true
	}
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && (apiErr.ErrorCode() == "NotFound" || apiErr.ErrorCode() == "NoSuchBucket")
}

func (o *SageMakerOrchestrator) ensureBucket(ctx context.Context, bucket, jobName string) error {
	_, err := o.s3.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)})
	if err == nil {
		logging.Debug("Using default bucket %s", bucket)
		return nil
	}
	if !isNotFound(err) {
		return classifyError("HeadBucket "+bucket, jobName, err)
	}

	logging.Info("Creating default bucket %s", bucket)
	input := &s3.CreateBucketInput{Bucket: aws.String(bucket)}
	// us-east-1 rejects an explicit location constraint.
	if o.region != "us-east-1" {
		input.CreateBucketConfiguration = &s3types.CreateBucketConfiguration{
			LocationConstraint: s3types.BucketLocationConstraint(o.region),
		}
	}
	if _, err := o.s3.CreateBucket(ctx, input); err != nil {
		var owned *s3types.BucketAlreadyOwnedByYou
		if errors.As(err, &owned) {
			return nil
		}
		return classifyError("CreateBucket "+bucket, jobName, err)
	}
	return nil
}

// SourceObjectURI is where the source bundle for jobName is stored.
func SourceObjectURI(codeLocation, jobName string) (bucket, key string, err error) {
	bucket, prefix, err := orchestrator.ParseObjectURI(codeLocation)
	if err != nil {
		return "", "", err
	}
	key = path.Join(strings.Trim(prefix, "/"), jobName, "source", sourcebundle.ArchiveName)
	return bucket, key, nil
}

// uploadSource bundles the job's source directory and uploads it, returning
// the URI the container downloads it from.
func (o *SageMakerOrchestrator) uploadSource(ctx context.Context, job orchestrator.JobDescriptor, codeLocation, jobName string) (string, error) {
	if err := sourcebundle.CheckEntryPoint(o.fs, job.SourceDirectory, job.EntryPoint); err != nil {
		return "", &orchestrator.ServiceError{Kind: orchestrator.KindConfiguration, Op: "package source", JobName: jobName, Err: err}
	}
	bucket, key, err := SourceObjectURI(codeLocation, jobName)
	if err != nil {
		return "", &orchestrator.ServiceError{Kind: orchestrator.KindConfiguration, Op: "package source", JobName: jobName, Err: err}
	}

	matcher, err := sourcebundle.ReadIgnorePatterns(o.fs, job.SourceDirectory, sourcebundle.DefaultIgnorePatterns)
	if err != nil {
		return "", &orchestrator.ServiceError{Kind: orchestrator.KindConfiguration, Op: "package source", JobName: jobName, Err: err}
	}
	bundlePath, err := sourcebundle.Create(o.fs, job.SourceDirectory, matcher)
	if err != nil {
		return "", &orchestrator.ServiceError{Kind: orchestrator.KindService, Op: "package source", JobName: jobName, Err: err}
	}
	defer func() {
		if err := o.fs.Remove(bundlePath); err != nil {
			logging.Debug("Failed to remove %s: %v", bundlePath, err)
		}
	}()

	f, err := o.fs.Open(bundlePath)
	if err != nil {
		return "", &orchestrator.ServiceError{Kind: orchestrator.KindService, Op: "package source", JobName: jobName, Err: err}
	}
	defer f.Close()

	uri := fmt.Sprintf("s3://%s/%s", bucket, key)
	logging.Info("Uploading %s to %s", job.SourceDirectory, uri)
	if _, err := o.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String("application/gzip"),
	}); err != nil {
		return "", classifyError("PutObject "+uri, jobName, err)
	}
	return uri, nil
}
