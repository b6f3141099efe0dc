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
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	cwltypes "github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
)

// TrainingLogGroup is the CloudWatch log group training containers write to.
const TrainingLogGroup = "/aws/sagemaker/TrainingJobs"

type logsAPI interface {
	DescribeLogStreams(ctx context.Context, params *cloudwatchlogs.DescribeLogStreamsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.DescribeLogStreamsOutput, error)
	GetLogEvents(ctx context.Context, params *cloudwatchlogs.GetLogEventsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.GetLogEventsOutput, error)
}

// logFollower copies the job's container log streams to out. Each call to
// poll prints only the events that appeared since the previous call.
type logFollower struct {
	client  logsAPI
	jobName string
	out     io.Writer

	streams []string
	tokens  map[string]*string
}

func newLogFollower(client logsAPI, jobName string, out io.Writer) *logFollower {
	return &logFollower{
		client:  client,
		jobName: jobName,
		out:     out,
		tokens:  map[string]*string{},
	}
}

func (f *logFollower) poll(ctx context.Context) error {
	if err := f.discoverStreams(ctx); err != nil {
		return err
	}
	for _, stream := range f.streams {
		if err := f.drain(ctx, stream); err != nil {
			return err
		}
	}
	return nil
}

// discoverStreams picks up streams of instances that started since the last
// poll. The log group does not exist until the first container writes to it.
func (f *logFollower) discoverStreams(ctx context.Context) error {
	var next *string
	for {
		out, err := f.client.DescribeLogStreams(ctx, &cloudwatchlogs.DescribeLogStreamsInput{
			LogGroupName:        aws.String(TrainingLogGroup),
			LogStreamNamePrefix: aws.String(f.jobName + "/"),
			NextToken:           next,
		})
		if err != nil {
			var notFound *cwltypes.ResourceNotFoundException
			if errors.As(err, &notFound) {
				return nil
			}
			return fmt.Errorf("listing log streams for %s: %w", f.jobName, err)
		}
		for _, s := range out.LogStreams {
			name := aws.ToString(s.LogStreamName)
			if _, ok := f.tokens[name]; ok || name == "" {
				continue
			}
			f.tokens[name] = nil
			f.streams = append(f.streams, name)
		}
		if out.NextToken == nil || aws.ToString(out.NextToken) == aws.ToString(next) {
			return nil
		}
		next = out.NextToken
	}
}

// drain reads a stream forward until the service hands back the token it was
// given, which marks the current end of the stream.
func (f *logFollower) drain(ctx context.Context, stream string) error {
	for {
		token := f.tokens[stream]
		out, err := f.client.GetLogEvents(ctx, &cloudwatchlogs.GetLogEventsInput{
			LogGroupName:  aws.String(TrainingLogGroup),
			LogStreamName: aws.String(stream),
			StartFromHead: aws.Bool(true),
			NextToken:     token,
		})
		if err != nil {
			return fmt.Errorf("reading log stream %s: %w", stream, err)
		}
		for _, ev := range out.Events {
			f.print(stream, aws.ToString(ev.Message))
		}
		f.tokens[stream] = out.NextForwardToken
		if len(out.Events) == 0 || out.NextForwardToken == nil || aws.ToString(out.NextForwardToken) == aws.ToString(token) {
			return nil
		}
	}
}

func (f *logFollower) print(stream, msg string) {
	msg = strings.TrimRight(msg, "\n")
	if len(f.streams) > 1 {
		fmt.Fprintf(f.out, "[%s] %s\n", strings.TrimPrefix(stream, f.jobName+"/"), msg)
		return
	}
	fmt.Fprintln(f.out, msg)
}
