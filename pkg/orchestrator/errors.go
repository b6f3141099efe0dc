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
	"fmt"
)

// ErrorKind is a stable failure category callers can switch on.
type ErrorKind string

const (
	// KindConfiguration covers malformed descriptors, rejected before the
	// remote job starts.
	KindConfiguration ErrorKind = "ConfigurationError"
	// KindAuthorization covers missing permissions on storage or compute.
	KindAuthorization ErrorKind = "AuthorizationError"
	// KindRemoteExecution means the training process itself failed remotely.
	KindRemoteExecution ErrorKind = "RemoteExecutionFailure"
	// KindService is any other failure reported by the service.
	KindService ErrorKind = "ServiceError"
)

// ServiceError carries a failure from the training service boundary. The
// message of the wrapped error is the one the service client produced.
type ServiceError struct {
	Kind    ErrorKind
	Op      string
	JobName string
	Err     error
}

func (e *ServiceError) Error() string {
	if e == nil {
		return "<nil>"
	}
	prefix := string(e.Kind)
	if e.Op != "" {
		prefix += " during " + e.Op
	}
	if e.JobName != "" {
		prefix += fmt.Sprintf(" (job %s)", e.JobName)
	}
	if e.Err == nil {
		return prefix
	}
	return fmt.Sprintf("%s: %v", prefix, e.Err)
}

func (e *ServiceError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// KindOf returns the kind of the first ServiceError in err's chain, or
// KindService when there is none.
func KindOf(err error) ErrorKind {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindService
}

func configError(format string, args ...any) error {
	return &ServiceError{Kind: KindConfiguration, Op: "validate", Err: fmt.Errorf(format, args...)}
}
