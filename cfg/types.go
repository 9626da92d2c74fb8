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

package cfg

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Octal is the datatype for params such as file-mode and dir-mode which
// accept a base-8 value.
type Octal int

func (o *Octal) UnmarshalText(text []byte) error {
	v, err := strconv.ParseInt(string(text), 8, 32)
	if err != nil {
		return err
	}
	*o = Octal(v)
	return nil
}

func (o Octal) String() string {
	return fmt.Sprintf("%o", int(o))
}

// LogSeverity is one of TRACE/DEBUG/INFO/WARNING/ERROR/OFF.
type LogSeverity string

func (l *LogSeverity) UnmarshalText(text []byte) error {
	level := strings.ToUpper(string(text))
	valid := []string{"TRACE", "DEBUG", "INFO", "WARNING", "ERROR", "OFF"}
	if !slices.Contains(valid, level) {
		return fmt.Errorf("invalid log severity %q, must be one of %v", string(text), valid)
	}
	*l = LogSeverity(level)
	return nil
}

// LogFormat is one of text/json.
type LogFormat string

func (f *LogFormat) UnmarshalText(text []byte) error {
	format := strings.ToLower(string(text))
	if format != "text" && format != "json" {
		return fmt.Errorf("invalid log format %q, must be text or json", string(text))
	}
	*f = LogFormat(format)
	return nil
}
