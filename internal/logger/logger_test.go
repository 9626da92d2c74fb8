// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logger

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

const (
	textInfoString    = `^time=[0-9TZ:.+-]+ severity=INFO message="TestLogs: www\.infoExample\.com"`
	textWarningString = `^time=[0-9TZ:.+-]+ severity=WARNING message="TestLogs: www\.warningExample\.com"`
	textErrorString   = `^time=[0-9TZ:.+-]+ severity=ERROR message="TestLogs: www\.errorExample\.com"`

	jsonInfoString    = `^{"timestamp":{"seconds":\d+,"nanos":\d+},"severity":"INFO","message":"TestLogs: www\.infoExample\.com"}`
	jsonWarningString = `^{"timestamp":{"seconds":\d+,"nanos":\d+},"severity":"WARNING","message":"TestLogs: www\.warningExample\.com"}`
	jsonErrorString   = `^{"timestamp":{"seconds":\d+,"nanos":\d+},"severity":"ERROR","message":"TestLogs: www\.errorExample\.com"}`
)

type LoggerTest struct {
	suite.Suite
}

func TestLoggerSuite(t *testing.T) {
	suite.Run(t, new(LoggerTest))
}

func redirectLogsToBuffer(buf *bytes.Buffer, format, level string) {
	defaultLoggerFactory.format = format
	v := new(slog.LevelVar)
	defaultLogger = slog.New(defaultLoggerFactory.createJsonOrTextHandler(buf, v, "TestLogs: "))
	setLoggingLevel(level, v)
}

func (t *LoggerTest) SetupTest() {
	defaultLoggerFactory = &loggerFactory{level: INFO, format: "json", logRotateConfig: DefaultRotateConfig()}
}

func (t *LoggerTest) TestLevelOffSuppressesEverything() {
	var buf bytes.Buffer
	redirectLogsToBuffer(&buf, "json", OFF)

	Errorf("www.errorExample.com")

	assert.Empty(t.T(), buf.String())
}

func (t *LoggerTest) TestTextFormatRespectsSeverityThreshold() {
	var buf bytes.Buffer
	redirectLogsToBuffer(&buf, "text", WARNING)

	Infof("www.infoExample.com")
	assert.Empty(t.T(), buf.String())

	Warnf("www.warningExample.com")
	assert.Regexp(t.T(), regexp.MustCompile(textWarningString), buf.String())
	buf.Reset()

	Errorf("www.errorExample.com")
	assert.Regexp(t.T(), regexp.MustCompile(textErrorString), buf.String())
}

func (t *LoggerTest) TestJSONFormatRespectsSeverityThreshold() {
	var buf bytes.Buffer
	redirectLogsToBuffer(&buf, "json", INFO)

	Infof("www.infoExample.com")
	assert.Regexp(t.T(), regexp.MustCompile(jsonInfoString), buf.String())
}

func (t *LoggerTest) TestSetLoggingLevel() {
	testData := []struct {
		input    string
		expected slog.Level
	}{
		{TRACE, LevelTrace},
		{DEBUG, LevelDebug},
		{INFO, LevelInfo},
		{WARNING, LevelWarn},
		{ERROR, LevelError},
		{OFF, LevelOff},
	}

	for _, test := range testData {
		v := new(slog.LevelVar)
		setLoggingLevel(test.input, v)
		assert.Equal(t.T(), test.expected, v.Level())
	}
}

func (t *LoggerTest) TestInitOpensFileAndAppliesConfig() {
	dir := t.T().TempDir()
	path := filepath.Join(dir, "objfuse.log")

	err := Init(Config{
		Format:   "text",
		Severity: DEBUG,
		FilePath: path,
		Rotate:   RotateConfig{MaxFileSizeMB: 100, BackupFileCount: 2, Compress: true},
	})
	t.Require().NoError(err)
	defer os.Remove(path)

	assert.Equal(t.T(), path, defaultLoggerFactory.file.Name())
	assert.Equal(t.T(), "text", defaultLoggerFactory.format)
	assert.Equal(t.T(), DEBUG, defaultLoggerFactory.level)
	assert.Equal(t.T(), 100, defaultLoggerFactory.logRotateConfig.MaxFileSizeMB)
	assert.Equal(t.T(), 2, defaultLoggerFactory.logRotateConfig.BackupFileCount)
	assert.True(t.T(), defaultLoggerFactory.logRotateConfig.Compress)
}

func (t *LoggerTest) TestSetLogFormat() {
	defaultLoggerFactory = &loggerFactory{level: INFO, format: "json", logRotateConfig: DefaultRotateConfig()}

	testData := []struct {
		format   string
		expected string
	}{
		{"text", textInfoString},
		{"json", jsonInfoString},
		{"", jsonInfoString},
	}

	for _, test := range testData {
		SetLogFormat(test.format)

		assert.Equal(t.T(), test.format, defaultLoggerFactory.format)

		var buf bytes.Buffer
		redirectLogsToBuffer(&buf, defaultLoggerFactory.format, defaultLoggerFactory.level)
		Infof("www.infoExample.com")
		assert.Regexp(t.T(), regexp.MustCompile(test.expected), buf.String())
	}
}
