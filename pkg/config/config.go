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

// Package config loads the training launch configuration.
//
// Values are layered, lowest precedence first: built-in defaults, the YAML
// config file, a .env file, SENTIMENT_* environment variables and command
// line flags.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"sentiment-launcher/pkg/logging"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	EnvPrefix = "SENTIMENT"

	KeyJobName               = "job_name"
	KeyBaseJobName           = "base_job_name"
	KeyEntryPoint            = "entry_point"
	KeySourceDir             = "source_dir"
	KeyRole                  = "role"
	KeyFrameworkVersion      = "framework_version"
	KeyPyVersion             = "py_version"
	KeyInstanceType          = "instance_type"
	KeyInstanceCount         = "instance_count"
	KeyBatchSize             = "batch_size"
	KeyEpochs                = "epochs"
	KeyTrainData             = "data.train"
	KeyValidationData        = "data.validation"
	KeyTestData              = "data.test"
	KeyTensorBoardOutputPath = "tensorboard.output_path"
	KeyTensorBoardLocalPath  = "tensorboard.local_path"
	KeyRegion                = "region"
	KeyImageURI              = "image_uri"
	KeyOutputPath            = "output_path"
	KeyCodeLocation          = "code_location"
	KeyVolumeSize            = "volume_size"
	KeyMaxRun                = "max_run"
	KeyPollInterval          = "poll_interval"
	KeyWait                  = "wait"
	KeyLogs                  = "logs"
	KeyOutputDescriptor      = "output_descriptor"
	KeyTags                  = "tags"
	KeyEnvironment           = "environment"
)

const (
	defaultDatasetBucket    = "s3://multimodal-sentiment-analysis-project"
	defaultTensorBoardLocal = "/opt/ml/output/tensorboard"
	defaultBaseJobName      = "pytorch-training"
	defaultPollInterval     = 30 * time.Second
	defaultMaxRun           = 24 * time.Hour
	defaultVolumeSizeGB     = 30
	defaultFrameworkVersion = "2.5.1"
	defaultPyVersion        = "py311"
	defaultInstanceType     = "ml.g5.xlarge"
	defaultEntryPoint       = "train.py"
	defaultSourceDir        = "training"
	defaultBatchSize        = 32
	defaultEpochs           = 25
	defaultInstanceCount    = 1

	configFileBaseName = "sentiment"
)

// FlagKeys maps command line flag names to configuration keys.
var FlagKeys = map[string]string{
	"job-name":               KeyJobName,
	"base-job-name":          KeyBaseJobName,
	"entry-point":            KeyEntryPoint,
	"source-dir":             KeySourceDir,
	"role":                   KeyRole,
	"framework-version":      KeyFrameworkVersion,
	"py-version":             KeyPyVersion,
	"instance-type":          KeyInstanceType,
	"instance-count":         KeyInstanceCount,
	"batch-size":             KeyBatchSize,
	"epochs":                 KeyEpochs,
	"train-data":             KeyTrainData,
	"validation-data":        KeyValidationData,
	"test-data":              KeyTestData,
	"tensorboard-output":     KeyTensorBoardOutputPath,
	"tensorboard-local-path": KeyTensorBoardLocalPath,
	"region":                 KeyRegion,
	"image-uri":              KeyImageURI,
	"output-path":            KeyOutputPath,
	"code-location":          KeyCodeLocation,
	"volume-size":            KeyVolumeSize,
	"max-run":                KeyMaxRun,
	"poll-interval":          KeyPollInterval,
	"output-descriptor":      KeyOutputDescriptor,
}

// DataChannels holds the object-storage URIs of the three data splits.
type DataChannels struct {
	Train      string `mapstructure:"train"`
	Validation string `mapstructure:"validation"`
	Test       string `mapstructure:"test"`
}

// TensorBoard is where the remote job mirrors live metrics.
type TensorBoard struct {
	OutputPath string `mapstructure:"output_path"`
	LocalPath  string `mapstructure:"local_path"`
}

// Training is the full set of options recognized by the launcher.
type Training struct {
	JobName          string            `mapstructure:"job_name"`
	BaseJobName      string            `mapstructure:"base_job_name"`
	EntryPoint       string            `mapstructure:"entry_point"`
	SourceDir        string            `mapstructure:"source_dir"`
	Role             string            `mapstructure:"role"`
	FrameworkVersion string            `mapstructure:"framework_version"`
	PyVersion        string            `mapstructure:"py_version"`
	InstanceType     string            `mapstructure:"instance_type"`
	InstanceCount    int               `mapstructure:"instance_count"`
	BatchSize        int               `mapstructure:"batch_size"`
	Epochs           int               `mapstructure:"epochs"`
	Data             DataChannels      `mapstructure:"data"`
	TensorBoard      TensorBoard       `mapstructure:"tensorboard"`
	Region           string            `mapstructure:"region"`
	ImageURI         string            `mapstructure:"image_uri"`
	OutputPath       string            `mapstructure:"output_path"`
	CodeLocation     string            `mapstructure:"code_location"`
	VolumeSizeGB     int               `mapstructure:"volume_size"`
	MaxRun           time.Duration     `mapstructure:"max_run"`
	PollInterval     time.Duration     `mapstructure:"poll_interval"`
	Wait             bool              `mapstructure:"wait"`
	Logs             bool              `mapstructure:"logs"`
	OutputDescriptor string            `mapstructure:"output_descriptor"`
	Tags             map[string]string `mapstructure:"tags"`
	Environment      map[string]string `mapstructure:"environment"`
}

// Default returns the configuration of the sentiment model's standard run.
// The execution role has no default and must be supplied.
func Default() Training {
	return Training{
		BaseJobName:      defaultBaseJobName,
		EntryPoint:       defaultEntryPoint,
		SourceDir:        defaultSourceDir,
		FrameworkVersion: defaultFrameworkVersion,
		PyVersion:        defaultPyVersion,
		InstanceType:     defaultInstanceType,
		InstanceCount:    defaultInstanceCount,
		BatchSize:        defaultBatchSize,
		Epochs:           defaultEpochs,
		Data: DataChannels{
			Train:      defaultDatasetBucket + "/dataset/train",
			Validation: defaultDatasetBucket + "/dataset/dev",
			Test:       defaultDatasetBucket + "/dataset/test",
		},
		TensorBoard: TensorBoard{
			OutputPath: defaultDatasetBucket + "/tensorboard",
			LocalPath:  defaultTensorBoardLocal,
		},
		VolumeSizeGB: defaultVolumeSizeGB,
		MaxRun:       defaultMaxRun,
		PollInterval: defaultPollInterval,
		Wait:         true,
		Logs:         true,
	}
}

// Load builds the configuration from every source. cfgFile may be empty, in
// which case sentiment.yaml or sentiment.yml in the working directory is used
// when present. flags may be nil.
func Load(cfgFile string, flags *pflag.FlagSet) (*Training, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logging.Warn("Failed to load .env file: %v", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := readConfigFile(v, cfgFile); err != nil {
		return nil, err
	}

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
	}

	var cfg Training
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if f := v.ConfigFileUsed(); f != "" {
		if err := readCaseSensitiveMaps(f, &cfg); err != nil {
			return nil, err
		}
		logging.Debug("Loaded configuration from %s", f)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault(KeyJobName, d.JobName)
	v.SetDefault(KeyBaseJobName, d.BaseJobName)
	v.SetDefault(KeyEntryPoint, d.EntryPoint)
	v.SetDefault(KeySourceDir, d.SourceDir)
	v.SetDefault(KeyRole, d.Role)
	v.SetDefault(KeyFrameworkVersion, d.FrameworkVersion)
	v.SetDefault(KeyPyVersion, d.PyVersion)
	v.SetDefault(KeyInstanceType, d.InstanceType)
	v.SetDefault(KeyInstanceCount, d.InstanceCount)
	v.SetDefault(KeyBatchSize, d.BatchSize)
	v.SetDefault(KeyEpochs, d.Epochs)
	v.SetDefault(KeyTrainData, d.Data.Train)
	v.SetDefault(KeyValidationData, d.Data.Validation)
	v.SetDefault(KeyTestData, d.Data.Test)
	v.SetDefault(KeyTensorBoardOutputPath, d.TensorBoard.OutputPath)
	v.SetDefault(KeyTensorBoardLocalPath, d.TensorBoard.LocalPath)
	v.SetDefault(KeyRegion, d.Region)
	v.SetDefault(KeyImageURI, d.ImageURI)
	v.SetDefault(KeyOutputPath, d.OutputPath)
	v.SetDefault(KeyCodeLocation, d.CodeLocation)
	v.SetDefault(KeyVolumeSize, d.VolumeSizeGB)
	v.SetDefault(KeyMaxRun, d.MaxRun)
	v.SetDefault(KeyPollInterval, d.PollInterval)
	v.SetDefault(KeyWait, d.Wait)
	v.SetDefault(KeyLogs, d.Logs)
	v.SetDefault(KeyOutputDescriptor, d.OutputDescriptor)
}

func readConfigFile(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config file %s: %w", cfgFile, err)
		}
		return nil
	}

	for _, name := range []string{configFileBaseName + ".yaml", configFileBaseName + ".yml"} {
		if _, err := os.Stat(name); err != nil {
			continue
		}
		v.SetConfigFile(name)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config file %s: %w", name, err)
		}
		break
	}
	return nil
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range FlagKeys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("binding flag --%s: %w", name, err)
		}
	}
	if f := flags.Lookup("no-wait"); f != nil && f.Changed && f.Value.String() == "true" {
		v.Set(KeyWait, false)
	}
	if f := flags.Lookup("no-logs"); f != nil && f.Changed && f.Value.String() == "true" {
		v.Set(KeyLogs, false)
	}
	return nil
}

// readCaseSensitiveMaps reads tags and environment again from the config file.
// Viper lowercases every key it loads, and both maps are sent to the service
// with the keys exactly as written.
func readCaseSensitiveMaps(path string, cfg *Training) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
	default:
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	var raw struct {
		Tags        map[string]string `yaml:"tags"`
		Environment map[string]string `yaml:"environment"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parsing %s and %s in %s: %w", KeyTags, KeyEnvironment, path, err)
	}
	if raw.Tags != nil {
		cfg.Tags = raw.Tags
	}
	if raw.Environment != nil {
		cfg.Environment = raw.Environment
	}
	return nil
}

// Validate checks the options that are not covered by descriptor validation.
func (c Training) Validate() error {
	if strings.TrimSpace(c.Role) == "" {
		return fmt.Errorf("an execution role is required: set --role, %s_ROLE or %q in the config file", EnvPrefix, KeyRole)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("batch size must be at least 1, got %d", c.BatchSize)
	}
	if c.Epochs < 1 {
		return fmt.Errorf("epoch count must be at least 1, got %d", c.Epochs)
	}
	if c.InstanceCount < 1 {
		return fmt.Errorf("instance count must be at least 1, got %d", c.InstanceCount)
	}
	if c.VolumeSizeGB < 1 {
		return fmt.Errorf("volume size must be at least 1 GB, got %d", c.VolumeSizeGB)
	}
	if c.MaxRun < time.Second {
		return fmt.Errorf("max run must be at least one second, got %s", c.MaxRun)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.PollInterval)
	}
	return nil
}
