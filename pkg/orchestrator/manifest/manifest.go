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

// Package manifest renders a training submission as a YAML document instead
// of sending it to the service, for review or for feeding another tool.
package manifest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"sentiment-launcher/pkg/logging"
	"sentiment-launcher/pkg/orchestrator"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

const (
	APIVersion = "sentiment-launcher/v1"
	Kind       = "TrainingJob"

	// StdoutPath selects standard output instead of a file.
	StdoutPath = "-"
)

// Document is the rendered form of one submission.
type Document struct {
	APIVersion string   `yaml:"apiVersion"`
	Kind       string   `yaml:"kind"`
	Metadata   Metadata `yaml:"metadata"`
	Spec       Spec     `yaml:"spec"`
}

type Metadata struct {
	Name   string            `yaml:"name,omitempty"`
	Labels map[string]string `yaml:"labels,omitempty"`
}

type Spec struct {
	orchestrator.JobDescriptor `yaml:",inline"`
	ImageURI                   string                `yaml:"image_uri,omitempty"`
	Channels                   orchestrator.Channels `yaml:"channels"`
}

// Options holds parameters for descriptor generation.
type Options struct {
	// Path is the output file, or StdoutPath.
	Path     string
	JobName  string
	ImageURI string
	Labels   map[string]string
}

// Writer implements the Orchestrator interface by writing the submission to a
// file. Nothing is sent to the training service.
type Writer struct {
	fs     afero.Fs
	stdout io.Writer
	opts   Options
}

var _ orchestrator.Orchestrator = (*Writer)(nil)

// NewWriter returns a Writer on the OS filesystem and standard output.
func NewWriter(opts Options) *Writer {
	return newWriter(afero.NewOsFs(), os.Stdout, opts)
}

func newWriter(fsys afero.Fs, stdout io.Writer, opts Options) *Writer {
	return &Writer{fs: fsys, stdout: stdout, opts: opts}
}

// Generate renders the YAML document for a submission.
func Generate(job orchestrator.JobDescriptor, channels orchestrator.Channels, opts Options) ([]byte, error) {
	doc := Document{
		APIVersion: APIVersion,
		Kind:       Kind,
		Metadata:   Metadata{Name: opts.JobName, Labels: opts.Labels},
		Spec: Spec{
			JobDescriptor: job,
			ImageURI:      opts.ImageURI,
			Channels:      channels,
		},
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("failed to encode training job descriptor: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode training job descriptor: %w", err)
	}
	return buf.Bytes(), nil
}

// SubmitJob validates the submission and writes it out. It never blocks on a
// remote job.
func (w *Writer) SubmitJob(ctx context.Context, job orchestrator.JobDescriptor, channels orchestrator.Channels) error {
	if err := job.Validate(); err != nil {
		return err
	}
	if err := channels.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	logging.Info("Generating training job descriptor...")
	content, err := Generate(job, channels, w.opts)
	if err != nil {
		return err
	}

	if w.opts.Path == "" || w.opts.Path == StdoutPath {
		if _, err := w.stdout.Write(content); err != nil {
			return fmt.Errorf("failed to write training job descriptor: %w", err)
		}
		return nil
	}

	if dir := filepath.Dir(w.opts.Path); dir != "." {
		if err := w.fs.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", w.opts.Path, err)
		}
	}
	logging.Info("Saving training job descriptor to %s", w.opts.Path)
	if err := afero.WriteFile(w.fs, w.opts.Path, content, 0644); err != nil {
		return fmt.Errorf("failed to write training job descriptor to file %s: %w", w.opts.Path, err)
	}
	logging.Info("Training job descriptor saved successfully.")
	return nil
}
