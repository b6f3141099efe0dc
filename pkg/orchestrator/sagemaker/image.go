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
	"fmt"
	"regexp"
	"slices"
	"strings"

	"sentiment-launcher/pkg/logging"

	"github.com/agext/levenshtein"
	"github.com/google/go-containerregistry/pkg/name"
)

// Processor is the hardware flavor a training image is built for.
type Processor string

const (
	ProcessorCPU Processor = "cpu"
	ProcessorGPU Processor = "gpu"
)

const (
	trainingRepository = "pytorch-training"
	defaultDLCAccount  = "763104351884"
)

// Regions whose deep learning containers live in a different registry account.
var dlcAccounts = map[string]string{
	"af-south-1":     "626614931356",
	"ap-east-1":      "871362719292",
	"ap-south-2":     "772153158452",
	"ap-southeast-3": "907027046896",
	"ap-southeast-4": "457447274322",
	"ca-west-1":      "204538143572",
	"cn-north-1":     "727897471807",
	"cn-northwest-1": "727897471807",
	"eu-central-2":   "380420809688",
	"eu-south-1":     "692866216735",
	"eu-south-2":     "503227376785",
	"il-central-1":   "780543022126",
	"me-central-1":   "914824155844",
	"me-south-1":     "217643126080",
	"us-gov-east-1":  "446045086412",
	"us-gov-west-1":  "442386744353",
}

var (
	frameworkVersionRe = regexp.MustCompile(`^\d+\.\d+(\.\d+)?$`)
	pyVersionRe        = regexp.MustCompile(`^py\d+$`)
)

// knownInstanceTypes is used only to suggest corrections; the service is the
// authority on what it accepts.
var knownInstanceTypes = []string{
	"ml.m5.large", "ml.m5.xlarge", "ml.m5.2xlarge", "ml.m5.4xlarge", "ml.m5.12xlarge", "ml.m5.24xlarge",
	"ml.c5.xlarge", "ml.c5.2xlarge", "ml.c5.4xlarge", "ml.c5.9xlarge", "ml.c5.18xlarge",
	"ml.p3.2xlarge", "ml.p3.8xlarge", "ml.p3.16xlarge", "ml.p3dn.24xlarge",
	"ml.p4d.24xlarge", "ml.p4de.24xlarge", "ml.p5.48xlarge",
	"ml.g4dn.xlarge", "ml.g4dn.2xlarge", "ml.g4dn.4xlarge", "ml.g4dn.8xlarge", "ml.g4dn.12xlarge", "ml.g4dn.16xlarge",
	"ml.g5.xlarge", "ml.g5.2xlarge", "ml.g5.4xlarge", "ml.g5.8xlarge", "ml.g5.12xlarge", "ml.g5.16xlarge", "ml.g5.24xlarge", "ml.g5.48xlarge",
	"ml.g6.xlarge", "ml.g6.2xlarge", "ml.g6.4xlarge", "ml.g6.8xlarge", "ml.g6.12xlarge", "ml.g6.16xlarge", "ml.g6.24xlarge", "ml.g6.48xlarge",
}

// ProcessorForInstanceType maps a training instance type to the image flavor
// it needs.
func ProcessorForInstanceType(instanceType string) (Processor, error) {
	family, ok := strings.CutPrefix(instanceType, "ml.")
	if !ok {
		return "", fmt.Errorf("instance type %q must start with \"ml.\"", instanceType)
	}
	family, _, _ = strings.Cut(family, ".")
	switch {
	case strings.HasPrefix(family, "trn"), strings.HasPrefix(family, "inf"):
		return "", fmt.Errorf("instance type %q needs a Neuron image; set an explicit image URI", instanceType)
	case strings.HasPrefix(family, "p"), strings.HasPrefix(family, "g"):
		return ProcessorGPU, nil
	default:
		return ProcessorCPU, nil
	}
}

func registryDomain(region string) string {
	switch {
	case strings.HasPrefix(region, "cn-"):
		return "amazonaws.com.cn"
	case strings.HasPrefix(region, "us-isob-"):
		return "sc2s.sgov.gov"
	case strings.HasPrefix(region, "us-iso-"):
		return "c2s.ic.gov"
	default:
		return "amazonaws.com"
	}
}

// ResolveImageURI returns the training image for the job. An explicit
// override wins and is returned unchanged; otherwise the PyTorch deep learning
// container matching the framework version, Python version and instance
// hardware is used.
func ResolveImageURI(frameworkVersion, pyVersion, instanceType, region, override string) (string, error) {
	override = strings.TrimSpace(override)
	if override != "" {
		if _, err := name.ParseReference(override); err != nil {
			return "", fmt.Errorf("invalid image URI %q: %w", override, err)
		}
		return override, nil
	}

	if region == "" {
		return "", fmt.Errorf("a region is required to resolve the training image")
	}
	if !frameworkVersionRe.MatchString(frameworkVersion) {
		return "", fmt.Errorf("invalid framework version %q, expected MAJOR.MINOR[.PATCH]", frameworkVersion)
	}
	if !pyVersionRe.MatchString(pyVersion) {
		return "", fmt.Errorf("invalid Python version %q, expected e.g. \"py311\"", pyVersion)
	}
	processor, err := ProcessorForInstanceType(instanceType)
	if err != nil {
		return "", err
	}

	account := defaultDLCAccount
	if a, ok := dlcAccounts[region]; ok {
		account = a
	}

	uri := fmt.Sprintf("%s.dkr.ecr.%s.%s/%s:%s-%s-%s",
		account, region, registryDomain(region), trainingRepository, frameworkVersion, processor, pyVersion)
	if _, err := name.ParseReference(uri); err != nil {
		return "", fmt.Errorf("failed to construct image reference %q: %w", uri, err)
	}
	return uri, nil
}

// SuggestInstanceType returns the closest known instance type, or "" when
// instanceType is already known or nothing is close.
func SuggestInstanceType(instanceType string) string {
	if slices.Contains(knownInstanceTypes, instanceType) {
		return ""
	}
	best, bestDist := "", 4
	for _, known := range knownInstanceTypes {
		if d := levenshtein.Distance(instanceType, known, nil); d < bestDist {
			best, bestDist = known, d
		}
	}
	return best
}

func warnUnknownInstanceType(instanceType string) {
	if slices.Contains(knownInstanceTypes, instanceType) {
		return
	}
	if s := SuggestInstanceType(instanceType); s != "" {
		logging.Warn("Instance type %q is not one this tool knows; did you mean %q?", instanceType, s)
		return
	}
	logging.Warn("Instance type %q is not one this tool knows; submitting anyway", instanceType)
}
