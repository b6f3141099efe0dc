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
	"errors"
	"strings"

	"sentiment-launcher/pkg/orchestrator"

	"github.com/aws/smithy-go"
)

// kindForCode maps an AWS error code onto the launcher's failure categories.
func kindForCode(code string) orchestrator.ErrorKind {
	switch {
	case code == "ValidationException",
		code == "ResourceLimitExceeded",
		code == "ResourceInUse",
		code == "InvalidParameterValue",
		code == "InvalidBucketName":
		return orchestrator.KindConfiguration
	case strings.HasPrefix(code, "AccessDenied"),
		strings.HasPrefix(code, "ExpiredToken"),
		code == "UnrecognizedClientException",
		code == "InvalidClientTokenId",
		code == "SignatureDoesNotMatch",
		code == "Forbidden":
		return orchestrator.KindAuthorization
	default:
		return orchestrator.KindService
	}
}

// classifyError wraps an SDK error without changing its message.
func classifyError(op, jobName string, err error) error {
	if err == nil {
		return nil
	}
	var se *orchestrator.ServiceError
	if errors.As(err, &se) {
		return err
	}
	kind := orchestrator.KindService
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		kind = kindForCode(apiErr.ErrorCode())
	}
	return &orchestrator.ServiceError{Kind: kind, Op: op, JobName: jobName, Err: err}
}
