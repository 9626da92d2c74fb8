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

// Package mount parses the repeated "-o key=value" mount options accepted
// by the CLI and handed through verbatim to fuse.MountConfig.
package mount

import "strings"

// ParseOptions splits a single "-o" argument, which may itself contain
// several comma-separated "key=value" or bare "key" options, and merges
// the result into m. A later option with the same key overwrites an
// earlier one, matching mount(8)'s own "-o" semantics.
func ParseOptions(m map[string]string, s string) {
	for _, pair := range strings.Split(s, ",") {
		if pair == "" {
			continue
		}

		key, value, hasValue := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}

		if hasValue {
			m[key] = strings.TrimSpace(value)
		} else {
			m[key] = ""
		}
	}
}
