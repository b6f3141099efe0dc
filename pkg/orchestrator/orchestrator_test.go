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
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func validDescriptor() JobDescriptor {
	return JobDescriptor{
		EntryPoint:             "train.py",
		SourceDirectory:        "training",
		ExecutionRole:          "arn:aws:iam::123456789012:role/test-role",
		FrameworkVersion:       "2.5.1",
		LanguageRuntimeVersion: "py311",
		InstanceCount:          1,
		InstanceType:           "ml.g5.xlarge",
		Hyperparameters:        map[string]any{"batch-size": 32, "epochs": 25},
		Telemetry: TelemetryOutputConfig{
			RemoteOutputURI: "s3://bucket/tensorboard",
			LocalOutputPath: "/opt/ml/output/tensorboard",
		},
	}
}

func TestNewTelemetryOutputConfig(t *testing.T) {
	tests := []struct {
		name    string
		remote  string
		local   string
		wantErr string
	}{
		{name: "valid", remote: "s3://bucket/tb", local: "/opt/ml/output/tensorboard"},
		{name: "empty remote", remote: " ", local: "/opt/ml", wantErr: "remote output URI must not be empty"},
		{name: "empty local", remote: "s3://bucket/tb", local: "", wantErr: "local output path must not be empty"},
		{name: "relative local", remote: "s3://bucket/tb", local: "tb", wantErr: "must be absolute"},
		{name: "non s3 remote", remote: "gs://bucket/tb", local: "/opt/ml", wantErr: "s3:// scheme"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc, err := NewTelemetryOutputConfig(tt.remote, tt.local)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("NewTelemetryOutputConfig() unexpected error: %v", err)
				}
				if tc.RemoteOutputURI == "" || tc.LocalOutputPath == "" {
					t.Errorf("NewTelemetryOutputConfig() returned empty paths: %+v", tc)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("NewTelemetryOutputConfig() error = %v, want containing %q", err, tt.wantErr)
			}
			if KindOf(err) != KindConfiguration {
				t.Errorf("KindOf() = %q, want %q", KindOf(err), KindConfiguration)
			}
		})
	}
}

func TestJobDescriptorValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*JobDescriptor)
		wantErr string
	}{
		{name: "valid", mutate: func(*JobDescriptor) {}},
		{name: "zero instances", mutate: func(d *JobDescriptor) { d.InstanceCount = 0 }, wantErr: "at least 1"},
		{name: "missing role", mutate: func(d *JobDescriptor) { d.ExecutionRole = "" }, wantErr: "execution role"},
		{name: "missing entry point", mutate: func(d *JobDescriptor) { d.EntryPoint = "" }, wantErr: "entry point"},
		{
			name:    "non scalar hyperparameter",
			mutate:  func(d *JobDescriptor) { d.Hyperparameters["layers"] = []int{1, 2} },
			wantErr: `hyperparameter "layers" has non-scalar value`,
		},
		{
			name:    "missing telemetry",
			mutate:  func(d *JobDescriptor) { d.Telemetry = TelemetryOutputConfig{} },
			wantErr: "telemetry remote output URI",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validDescriptor()
			tt.mutate(&d)
			err := d.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestNewJobDescriptorCopiesHyperparameters(t *testing.T) {
	hp := map[string]any{"batch-size": 32, "epochs": 25}
	in := validDescriptor()
	in.Hyperparameters = hp
	d, err := NewJobDescriptor(in)
	if err != nil {
		t.Fatalf("NewJobDescriptor() unexpected error: %v", err)
	}

	hp["epochs"] = 1
	hp["learning-rate"] = 0.1
	want := map[string]any{"batch-size": 32, "epochs": 25}
	if diff := cmp.Diff(want, d.Hyperparameters); diff != "" {
		t.Errorf("descriptor changed with the caller's map (-want +got):\n%s", diff)
	}

	d.Hyperparameters["batch-size"] = 64
	if hp["batch-size"] != 32 {
		t.Errorf("caller's map changed with the descriptor: batch-size = %v", hp["batch-size"])
	}
}

func TestNewJobDescriptorNilHyperparameters(t *testing.T) {
	in := validDescriptor()
	in.Hyperparameters = nil
	d, err := NewJobDescriptor(in)
	if err != nil {
		t.Fatalf("NewJobDescriptor() unexpected error: %v", err)
	}
	if d.Hyperparameters == nil {
		t.Errorf("NewJobDescriptor() left Hyperparameters nil")
	}
}

func TestChannelsValidate(t *testing.T) {
	valid := Channels{
		ChannelTraining:   "s3://bucket/dataset/train",
		ChannelValidation: "s3://bucket/dataset/dev",
		ChannelTest:       "s3://bucket/dataset/test",
	}

	tests := []struct {
		name     string
		channels Channels
		wantErr  string
	}{
		{name: "valid", channels: valid},
		{
			name:     "missing test",
			channels: Channels{ChannelTraining: valid[ChannelTraining], ChannelValidation: valid[ChannelValidation]},
			wantErr:  `missing data channel "test"`,
		},
		{
			name: "extra channel",
			channels: Channels{
				ChannelTraining:   valid[ChannelTraining],
				ChannelValidation: valid[ChannelValidation],
				ChannelTest:       valid[ChannelTest],
				"holdout":         "s3://bucket/dataset/holdout",
			},
			wantErr: "unexpected data channels [holdout]",
		},
		{
			name: "bad uri",
			channels: Channels{
				ChannelTraining:   "/local/train",
				ChannelValidation: valid[ChannelValidation],
				ChannelTest:       valid[ChannelTest],
			},
			wantErr: `data channel "training"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.channels.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestParseObjectURI(t *testing.T) {
	bucket, prefix, err := ParseObjectURI("s3://multimodal-sentiment-analysis-project/dataset/train")
	if err != nil {
		t.Fatalf("ParseObjectURI() unexpected error: %v", err)
	}
	if bucket != "multimodal-sentiment-analysis-project" || prefix != "dataset/train" {
		t.Errorf("ParseObjectURI() = (%q, %q)", bucket, prefix)
	}

	if _, _, err := ParseObjectURI("s3:///no-bucket"); err == nil {
		t.Errorf("ParseObjectURI() with no bucket succeeded")
	}
}

func TestServiceError(t *testing.T) {
	cause := errors.New("AccessDenied: not allowed")
	err := &ServiceError{Kind: KindAuthorization, Op: "CreateTrainingJob", JobName: "job-1", Err: cause}

	if !errors.Is(err, cause) {
		t.Errorf("errors.Is() did not find the wrapped cause")
	}
	want := "AuthorizationError during CreateTrainingJob (job job-1): AccessDenied: not allowed"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if KindOf(errors.New("plain")) != KindService {
		t.Errorf("KindOf(plain error) should be %q", KindService)
	}
}
