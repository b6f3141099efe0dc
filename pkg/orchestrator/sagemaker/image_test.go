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
	"strings"
	"testing"
	"time"

	"sentiment-launcher/pkg/orchestrator"

	"github.com/google/go-cmp/cmp"
)

func TestResolveImageURI(t *testing.T) {
	tests := []struct {
		name         string
		fw, py, inst string
		region       string
		override     string
		want         string
		wantErr      string
	}{
		{
			name: "gpu default region", fw: "2.5.1", py: "py311", inst: "ml.g5.xlarge", region: "us-east-1",
			want: "763104351884.dkr.ecr.us-east-1.amazonaws.com/pytorch-training:2.5.1-gpu-py311",
		},
		{
			name: "cpu instance", fw: "2.5.1", py: "py311", inst: "ml.m5.xlarge", region: "eu-west-1",
			want: "763104351884.dkr.ecr.eu-west-1.amazonaws.com/pytorch-training:2.5.1-cpu-py311",
		},
		{
			name: "p family is gpu", fw: "2.3", py: "py311", inst: "ml.p4d.24xlarge", region: "us-west-2",
			want: "763104351884.dkr.ecr.us-west-2.amazonaws.com/pytorch-training:2.3-gpu-py311",
		},
		{
			name: "china region", fw: "2.5.1", py: "py311", inst: "ml.g5.xlarge", region: "cn-north-1",
			want: "727897471807.dkr.ecr.cn-north-1.amazonaws.com.cn/pytorch-training:2.5.1-gpu-py311",
		},
		{
			name: "regional account", fw: "2.5.1", py: "py311", inst: "ml.g5.xlarge", region: "af-south-1",
			want: "626614931356.dkr.ecr.af-south-1.amazonaws.com/pytorch-training:2.5.1-gpu-py311",
		},
		{
			name: "override wins", fw: "bogus", py: "bogus", inst: "bogus", region: "",
			override: "123456789012.dkr.ecr.us-east-1.amazonaws.com/custom-train:v3",
			want:     "123456789012.dkr.ecr.us-east-1.amazonaws.com/custom-train:v3",
		},
		{name: "override without registry kept as given", override: "my-image:1", want: "my-image:1"},
		{
			name:     "override without tag kept as given",
			override: "123456789012.dkr.ecr.us-east-1.amazonaws.com/custom-train",
			want:     "123456789012.dkr.ecr.us-east-1.amazonaws.com/custom-train",
		},
		{name: "override trimmed", override: "  my-image:1\n", want: "my-image:1"},
		{name: "bad override", override: "Not A Reference", wantErr: "invalid image URI"},
		{name: "no region", fw: "2.5.1", py: "py311", inst: "ml.g5.xlarge", wantErr: "region is required"},
		{name: "bad framework", fw: "two", py: "py311", inst: "ml.g5.xlarge", region: "us-east-1", wantErr: "invalid framework version"},
		{name: "bad python", fw: "2.5.1", py: "3.11", inst: "ml.g5.xlarge", region: "us-east-1", wantErr: "invalid Python version"},
		{name: "missing ml prefix", fw: "2.5.1", py: "py311", inst: "g5.xlarge", region: "us-east-1", wantErr: "must start with"},
		{name: "neuron instance", fw: "2.5.1", py: "py311", inst: "ml.trn1.2xlarge", region: "us-east-1", wantErr: "Neuron"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveImageURI(tt.fw, tt.py, tt.inst, tt.region, tt.override)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("ResolveImageURI() error = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveImageURI() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ResolveImageURI() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSuggestInstanceType(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"ml.g5.xlarge", ""},
		{"ml.g5.xlarg", "ml.g5.xlarge"},
		{"ml.g5.2xlrage", "ml.g5.2xlarge"},
		{"completely-wrong", ""},
	}
	for _, tt := range tests {
		if got := SuggestInstanceType(tt.in); got != tt.want {
			t.Errorf("SuggestInstanceType(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEncodeHyperparameters(t *testing.T) {
	got, err := EncodeHyperparameters(map[string]any{
		"batch-size": 32,
		"epochs":     25,
		"lr":         0.0005,
		"amp":        true,
		"optimizer":  "adamw",
	})
	if err != nil {
		t.Fatalf("EncodeHyperparameters() failed: %v", err)
	}
	want := map[string]string{
		"batch-size": "32",
		"epochs":     "25",
		"lr":         "0.0005",
		"amp":        "true",
		"optimizer":  `"adamw"`,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("EncodeHyperparameters() mismatch (-want +got):\n%s", diff)
	}
}

func TestNameFromBase(t *testing.T) {
	now := time.Date(2026, 10, 18, 9, 5, 7, 123456789, time.UTC)

	if got, want := NameFromBase("pytorch-training", now), "pytorch-training-2026-10-18-09-05-07-123"; got != want {
		t.Errorf("NameFromBase() = %q, want %q", got, want)
	}

	long := NameFromBase(strings.Repeat("a", 80), now)
	if len(long) != maxJobNameLength {
		t.Errorf("NameFromBase(long) has length %d, want %d", len(long), maxJobNameLength)
	}
	if !strings.HasSuffix(long, "-2026-10-18-09-05-07-123") {
		t.Errorf("NameFromBase(long) = %q lost its timestamp", long)
	}
	if !jobNameRe.MatchString(long) {
		t.Errorf("NameFromBase(long) = %q is not a valid job name", long)
	}
}

func TestKindForCode(t *testing.T) {
	tests := []struct {
		code string
		want orchestrator.ErrorKind
	}{
		{"ValidationException", orchestrator.KindConfiguration},
		{"ResourceLimitExceeded", orchestrator.KindConfiguration},
		{"ResourceInUse", orchestrator.KindConfiguration},
		{"AccessDeniedException", orchestrator.KindAuthorization},
		{"AccessDenied", orchestrator.KindAuthorization},
		{"ExpiredTokenException", orchestrator.KindAuthorization},
		{"UnrecognizedClientException", orchestrator.KindAuthorization},
		{"InvalidClientTokenId", orchestrator.KindAuthorization},
		{"Forbidden", orchestrator.KindAuthorization},
		{"InternalFailure", orchestrator.KindService},
		{"ThrottlingException", orchestrator.KindService},
	}
	for _, tt := range tests {
		if got := kindForCode(tt.code); got != tt.want {
			t.Errorf("kindForCode(%q) = %s, want %s", tt.code, got, tt.want)
		}
	}
}

func TestSourceObjectURI(t *testing.T) {
	tests := []struct {
		location, bucket, key string
	}{
		{"s3://sagemaker-us-east-1-123456789012", "sagemaker-us-east-1-123456789012", "job-1/source/sourcedir.tar.gz"},
		{"s3://code-bucket/prefix/", "code-bucket", "prefix/job-1/source/sourcedir.tar.gz"},
		{"s3://code-bucket/a/b", "code-bucket", "a/b/job-1/source/sourcedir.tar.gz"},
	}
	for _, tt := range tests {
		bucket, key, err := SourceObjectURI(tt.location, "job-1")
		if err != nil {
			t.Fatalf("SourceObjectURI(%q) failed: %v", tt.location, err)
		}
		if bucket != tt.bucket || key != tt.key {
			t.Errorf("SourceObjectURI(%q) = (%q, %q), want (%q, %q)", tt.location, bucket, key, tt.bucket, tt.key)
		}
	}
	if _, _, err := SourceObjectURI("gs://bucket", "job-1"); err == nil {
		t.Errorf("SourceObjectURI(gs://) succeeded, want error")
	}
}
