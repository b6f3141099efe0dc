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

// Package sourcebundle packages a training source directory into the
// sourcedir.tar.gz archive the remote job downloads before running its entry
// point.
package sourcebundle

import (
	"archive/tar"
	"compress/gzip"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/moby/patternmatcher"
	"github.com/moby/patternmatcher/ignorefile"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// IgnoreFileName is read from the root of the source directory, using
// .dockerignore syntax.
const IgnoreFileName = ".trainignore"

// ArchiveName is the object name the remote job expects.
const ArchiveName = "sourcedir.tar.gz"

// DefaultIgnorePatterns are never worth shipping to a training instance.
var DefaultIgnorePatterns = []string{
	".git",
	".venv",
	"venv",
	"**/__pycache__",
	"**/*.pyc",
	"**/.ipynb_checkpoints",
	"**/.DS_Store",
	"**/*.log",
	IgnoreFileName,
}

// ReadIgnorePatterns combines defaultPatterns with the patterns of the
// directory's ignore file, if there is one.
func ReadIgnorePatterns(fsys afero.Fs, dir string, defaultPatterns []string) (*patternmatcher.PatternMatcher, error) {
	ignorePath := filepath.Join(dir, IgnoreFileName)

	patterns := make([]string, len(defaultPatterns))
	copy(patterns, defaultPatterns)

	file, err := fsys.Open(ignorePath)
	switch {
	case err == nil:
		defer file.Close()
		filePatterns, err := ignorefile.ReadAll(file)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read ignore file %q", ignorePath)
		}
		patterns = append(patterns, filePatterns...)
		logrus.Debugf("Found %d patterns in %q", len(filePatterns), ignorePath)
	case !os.IsNotExist(err):
		return nil, errors.Wrapf(err, "failed to open ignore file %q", ignorePath)
	}

	matcher, err := patternmatcher.New(patterns)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create pattern matcher")
	}
	return matcher, nil
}

// CheckEntryPoint verifies the entry point is a regular file inside dir.
func CheckEntryPoint(fsys afero.Fs, dir, entryPoint string) error {
	if filepath.IsAbs(entryPoint) || strings.HasPrefix(filepath.Clean(entryPoint), "..") {
		return errors.Errorf("entry point %q must be a path relative to the source directory", entryPoint)
	}
	info, err := fsys.Stat(dir)
	if err != nil {
		return errors.Wrapf(err, "source directory %q is not accessible", dir)
	}
	if !info.IsDir() {
		return errors.Errorf("source directory %q is not a directory", dir)
	}
	path := filepath.Join(dir, entryPoint)
	info, err = fsys.Stat(path)
	if err != nil {
		return errors.Wrapf(err, "entry point %q not found in %q", entryPoint, dir)
	}
	if !info.Mode().IsRegular() {
		return errors.Errorf("entry point %q is not a regular file", path)
	}
	return nil
}

// Create writes a gzipped tarball of sourceDir, skipping ignored paths, to a
// temporary file and returns its path. The caller removes the file.
func Create(fsys afero.Fs, sourceDir string, ignoreMatcher *patternmatcher.PatternMatcher) (string, error) {
	tmpFile, err := afero.TempFile(fsys, "", "sentiment-sourcedir-*.tar.gz")
	if err != nil {
		return "", errors.Wrap(err, "failed to create temporary file for source bundle")
	}
	name := tmpFile.Name()

	gzipWriter := gzip.NewWriter(tmpFile)
	tarWriter := tar.NewWriter(gzipWriter)

	logrus.Debugf("Creating source bundle from %s in %s", sourceDir, name)

	walkErr := afero.Walk(fsys, sourceDir, func(path string, info fs.FileInfo, err error) error {
		return addEntry(fsys, tarWriter, sourceDir, ignoreMatcher, path, info, err)
	})

	// Close in order so the gzip trailer follows the tar footer.
	if closeErr := tarWriter.Close(); closeErr != nil && walkErr == nil {
		walkErr = errors.Wrap(closeErr, "failed to close tar writer")
	}
	if closeErr := gzipWriter.Close(); closeErr != nil && walkErr == nil {
		walkErr = errors.Wrap(closeErr, "failed to close gzip writer")
	}
	if closeErr := tmpFile.Close(); closeErr != nil && walkErr == nil {
		walkErr = errors.Wrap(closeErr, "failed to close source bundle")
	}

	if walkErr != nil {
		fsys.Remove(name)
		return "", walkErr
	}
	return name, nil
}

func addEntry(fsys afero.Fs, tarWriter *tar.Writer, sourceDir string, ignoreMatcher *patternmatcher.PatternMatcher, path string, info fs.FileInfo, errFromWalk error) error {
	if errFromWalk != nil {
		return errFromWalk
	}

	relPath, err := filepath.Rel(sourceDir, path)
	if err != nil {
		return errors.Wrapf(err, "failed to get relative path for %q", path)
	}
	if relPath == "." {
		return nil
	}

	// Directories need a trailing slash for "foo/" style patterns.
	relPathSlash := filepath.ToSlash(relPath)
	if info.IsDir() && !strings.HasSuffix(relPathSlash, "/") {
		relPathSlash += "/"
	}

	if ignoreMatcher != nil {
		ignored, err := ignoreMatcher.MatchesOrParentMatches(relPathSlash)
		if err != nil {
			return errors.Wrapf(err, "failed to check ignore patterns for %q", path)
		}
		if ignored {
			if info.IsDir() {
				logrus.Debugf("Ignoring directory %q", relPath)
				return filepath.SkipDir
			}
			logrus.Debugf("Ignoring file %q", relPath)
			return nil
		}
	}

	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return errors.Wrapf(err, "failed to create tar header for %q", path)
	}
	header.Name = filepath.ToSlash(relPath)
	if info.IsDir() {
		header.Name += "/"
	}

	if err := tarWriter.WriteHeader(header); err != nil {
		return errors.Wrapf(err, "failed to write tar header for %q", path)
	}

	if !info.Mode().IsRegular() {
		return nil
	}

	file, err := fsys.Open(path)
	if err != nil {
		return errors.Wrapf(err, "failed to open file %q", path)
	}
	defer file.Close()

	if _, err := io.Copy(tarWriter, file); err != nil {
		return errors.Wrapf(err, "failed to write file content for %q", path)
	}
	return nil
}
