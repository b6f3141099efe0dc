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

package orchestrator

import (
	"context"
	"fmt"
	"maps"
	"net/url"
	"slices"
	"strings"
)

// Names of the data channels every training job receives.
const (
	ChannelTraining   = "training"
	ChannelValidation = "validation"
	ChannelTest       = "test"
)

// RequiredChannels lists the channels a submission must carry, in order.
var RequiredChannels = []string{ChannelTraining, ChannelValidation, ChannelTest}

// TelemetryOutputConfig tells the remote job where to mirror live training
// metrics so an external viewer can read them while the job runs.
type TelemetryOutputConfig struct {
	RemoteOutputURI string `yaml:"remote_output_uri" json:"remote_output_uri"`
	LocalOutputPath string `yaml:"local_output_path" json:"local_output_path"`
}

// NewTelemetryOutputConfig returns a telemetry config, rejecting empty paths.
func NewTelemetryOutputConfig(remoteOutputURI, localOutputPath string) (TelemetryOutputConfig, error) {
	tc := TelemetryOutputConfig{
		RemoteOutputURI: strings.TrimSpace(remoteOutputURI),
		LocalOutputPath: strings.TrimSpace(localOutputPath),
	}
	if err := tc.Validate(); err != nil {
		return TelemetryOutputConfig{}, err
	}
	return tc, nil
}

// Validate checks that both telemetry locations are present.
func (tc TelemetryOutputConfig) Validate() error {
	if tc.RemoteOutputURI == "" {
		return configError("telemetry remote output URI must not be empty")
	}
	if err := validateObjectURI(tc.RemoteOutputURI); err != nil {
		return configError("telemetry remote output URI: %v", err)
	}
	if tc.LocalOutputPath == "" {
		return configError("telemetry local output path must not be empty")
	}
	if !strings.HasPrefix(tc.LocalOutputPath, "/") {
		return configError("telemetry local output path %q must be absolute", tc.LocalOutputPath)
	}
	return nil
}

// JobDescriptor holds everything the managed service needs to run one
// training job. It is built once, submitted once and then discarded.
type JobDescriptor struct {
	EntryPoint             string                `yaml:"entry_point" json:"entry_point"`
	SourceDirectory        string                `yaml:"source_directory" json:"source_directory"`
	ExecutionRole          string                `yaml:"execution_role" json:"execution_role"`
	FrameworkVersion       string                `yaml:"framework_version" json:"framework_version"`
	LanguageRuntimeVersion string                `yaml:"language_runtime_version" json:"language_runtime_version"`
	InstanceCount          int                   `yaml:"instance_count" json:"instance_count"`
	InstanceType           string                `yaml:"instance_type" json:"instance_type"`
	Hyperparameters        map[string]any        `yaml:"hyperparameters" json:"hyperparameters"`
	Telemetry              TelemetryOutputConfig `yaml:"telemetry_config" json:"telemetry_config"`
}

// NewJobDescriptor copies the hyperparameter map so later changes by the
// caller cannot leak into a submitted descriptor, then validates the result.
func NewJobDescriptor(d JobDescriptor) (JobDescriptor, error) {
	d.Hyperparameters = maps.Clone(d.Hyperparameters)
	if d.Hyperparameters == nil {
		d.Hyperparameters = map[string]any{}
	}
	if err := d.Validate(); err != nil {
		return JobDescriptor{}, err
	}
	return d, nil
}

// Validate enforces the descriptor invariants that can be checked locally.
// Whether the role or URIs are actually usable is only known remotely.
func (d JobDescriptor) Validate() error {
	required := []struct {
		name, value string
	}{
		{"entry point", d.EntryPoint},
		{"source directory", d.SourceDirectory},
		{"execution role", d.ExecutionRole},
		{"framework version", d.FrameworkVersion},
		{"language runtime version", d.LanguageRuntimeVersion},
		{"instance type", d.InstanceType},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return configError("%s must not be empty", r.name)
		}
	}
	if d.InstanceCount < 1 {
		return configError("instance count must be at least 1, got %d", d.InstanceCount)
	}
	for _, k := range slices.Sorted(maps.Keys(d.Hyperparameters)) {
		if k == "" {
			return configError("hyperparameter names must not be empty")
		}
		if !IsScalar(d.Hyperparameters[k]) {
			return configError("hyperparameter %q has non-scalar value of type %T", k, d.Hyperparameters[k])
		}
	}
	return d.Telemetry.Validate()
}

// IsScalar reports whether v can be passed verbatim as a job parameter.
func IsScalar(v any) bool {
	switch v.(type) {
	case string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	default:
		return false
	}
}

// Channels maps a channel name to the object-storage URI of its data.
type Channels map[string]string

// Validate checks that exactly the required channels are present and that each
// points at an object-storage URI.
func (c Channels) Validate() error {
	for _, name := range RequiredChannels {
		uri, ok := c[name]
		if !ok || strings.TrimSpace(uri) == "" {
			return configError("missing data channel %q", name)
		}
		if err := validateObjectURI(uri); err != nil {
			return configError("data channel %q: %v", name, err)
		}
	}
	if len(c) != len(RequiredChannels) {
		var extra []string
		for name := range c {
			if !slices.Contains(RequiredChannels, name) {
				extra = append(extra, name)
			}
		}
		slices.Sort(extra)
		return configError("unexpected data channels %v", extra)
	}
	return nil
}

// ParseObjectURI splits an s3://bucket/prefix URI.
func ParseObjectURI(uri string) (bucket, prefix string, err error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", "", fmt.Errorf("invalid URI %q: %w", uri, err)
	}
	if u.Scheme != "s3" {
		return "", "", fmt.Errorf("URI %q must use the s3:// scheme", uri)
	}
	if u.Host == "" {
		return "", "", fmt.Errorf("URI %q has no bucket", uri)
	}
	return u.Host, strings.TrimPrefix(u.Path, "/"), nil
}

func validateObjectURI(uri string) error {
	_, _, err := ParseObjectURI(uri)
	return err
}

// Orchestrator submits a training job to a backend.
type Orchestrator interface {
	// SubmitJob submits the descriptor with its data channels and blocks
	// until the job reaches a terminal state.
	SubmitJob(ctx context.Context, job JobDescriptor, channels Channels) error
}
