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
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"regexp"
	"slices"
	"strings"
	"time"

	"sentiment-launcher/pkg/orchestrator"

	"github.com/aws/aws-sdk-go-v2/aws"
	sm "github.com/aws/aws-sdk-go-v2/service/sagemaker"
	smtypes "github.com/aws/aws-sdk-go-v2/service/sagemaker/types"
)

// Hyperparameters the training container reads to find and run the script.
const (
	paramProgram         = "sagemaker_program"
	paramSubmitDirectory = "sagemaker_submit_directory"
	paramRegion          = "sagemaker_region"
	paramJobName         = "sagemaker_job_name"
	paramLogLevel        = "sagemaker_container_log_level"
	reservedParamPrefix  = "sagemaker_"

	// logging.INFO in the container's Python runtime.
	containerLogLevel = 20

	maxJobNameLength = 63
)

var jobNameRe = regexp.MustCompile(`^[a-zA-Z0-9](-*[a-zA-Z0-9]){0,62}$`)

type requestParams struct {
	JobName         string
	ImageURI        string
	Region          string
	SubmitDirectory string
	OutputPath      string
	VolumeSizeGB    int
	MaxRun          time.Duration
	Tags            map[string]string
	Environment     map[string]string
}

// EncodeHyperparameters renders each value as JSON text, which the training
// container decodes back into typed command-line arguments.
func EncodeHyperparameters(params map[string]any) (map[string]string, error) {
	out := make(map[string]string, len(params))
	for _, k := range slices.Sorted(maps.Keys(params)) {
		b, err := json.Marshal(params[k])
		if err != nil {
			return nil, fmt.Errorf("failed to encode hyperparameter %q: %w", k, err)
		}
		out[k] = string(b)
	}
	return out, nil
}

func buildHyperparameters(job orchestrator.JobDescriptor, p requestParams) (map[string]string, error) {
	for k := range job.Hyperparameters {
		if strings.HasPrefix(k, reservedParamPrefix) {
			return nil, fmt.Errorf("hyperparameter %q uses the reserved %q prefix", k, reservedParamPrefix)
		}
	}
	all := maps.Clone(job.Hyperparameters)
	if all == nil {
		all = map[string]any{}
	}
	all[paramProgram] = job.EntryPoint
	all[paramSubmitDirectory] = p.SubmitDirectory
	all[paramRegion] = p.Region
	all[paramJobName] = p.JobName
	all[paramLogLevel] = containerLogLevel
	return EncodeHyperparameters(all)
}

func buildCreateTrainingJobInput(job orchestrator.JobDescriptor, channels orchestrator.Channels, p requestParams) (*sm.CreateTrainingJobInput, error) {
	hp, err := buildHyperparameters(job, p)
	if err != nil {
		return nil, err
	}
	if job.InstanceCount > math.MaxInt32 {
		return nil, fmt.Errorf("instance count %d is too large", job.InstanceCount)
	}
	maxRun := p.MaxRun.Seconds()
	if maxRun < 1 || maxRun > math.MaxInt32 {
		return nil, fmt.Errorf("max run %s is out of range", p.MaxRun)
	}

	input := &sm.CreateTrainingJobInput{
		TrainingJobName: aws.String(p.JobName),
		RoleArn:         aws.String(job.ExecutionRole),
		AlgorithmSpecification: &smtypes.AlgorithmSpecification{
			TrainingImage:                    aws.String(p.ImageURI),
			TrainingInputMode:                smtypes.TrainingInputModeFile,
			EnableSageMakerMetricsTimeSeries: aws.Bool(true),
		},
		HyperParameters: hp,
		InputDataConfig: buildChannels(channels),
		OutputDataConfig: &smtypes.OutputDataConfig{
			S3OutputPath: aws.String(p.OutputPath),
		},
		ResourceConfig: &smtypes.ResourceConfig{
			InstanceCount:  aws.Int32(int32(job.InstanceCount)),
			InstanceType:   smtypes.TrainingInstanceType(job.InstanceType),
			VolumeSizeInGB: aws.Int32(int32(p.VolumeSizeGB)),
		},
		StoppingCondition: &smtypes.StoppingCondition{
			MaxRuntimeInSeconds: aws.Int32(int32(maxRun)),
		},
		TensorBoardOutputConfig: &smtypes.TensorBoardOutputConfig{
			S3OutputPath: aws.String(job.Telemetry.RemoteOutputURI),
			LocalPath:    aws.String(job.Telemetry.LocalOutputPath),
		},
	}
	if len(p.Environment) > 0 {
		input.Environment = maps.Clone(p.Environment)
	}
	for _, k := range slices.Sorted(maps.Keys(p.Tags)) {
		input.Tags = append(input.Tags, smtypes.Tag{Key: aws.String(k), Value: aws.String(p.Tags[k])})
	}
	return input, nil
}

// buildChannels emits the channels in RequiredChannels order so requests are
// deterministic.
func buildChannels(channels orchestrator.Channels) []smtypes.Channel {
	out := make([]smtypes.Channel, 0, len(channels))
	for _, name := range orchestrator.RequiredChannels {
		uri, ok := channels[name]
		if !ok {
			continue
		}
		out = append(out, smtypes.Channel{
			ChannelName: aws.String(name),
			DataSource: &smtypes.DataSource{
				S3DataSource: &smtypes.S3DataSource{
					S3DataType:             smtypes.S3DataTypeS3Prefix,
					S3Uri:                  aws.String(uri),
					S3DataDistributionType: smtypes.S3DataDistributionFullyReplicated,
				},
			},
		})
	}
	return out
}

// NameFromBase appends a millisecond timestamp to base, trimming base so the
// result fits the service's job name limit.
func NameFromBase(base string, now time.Time) string {
	ts := fmt.Sprintf("%s-%03d", now.UTC().Format("2006-01-02-15-04-05"), now.Nanosecond()/int(time.Millisecond))
	if room := maxJobNameLength - len(ts) - 1; len(base) > room {
		base = base[:room]
	}
	return base + "-" + ts
}

func (o *SageMakerOrchestrator) jobName() (string, error) {
	name := o.opts.JobName
	if name == "" {
		name = NameFromBase(o.opts.BaseJobName, o.now())
	}
	if !jobNameRe.MatchString(name) {
		return "", fmt.Errorf("invalid training job name %q: use up to %d letters, digits and hyphens, starting with a letter or digit", name, maxJobNameLength)
	}
	return name, nil
}
