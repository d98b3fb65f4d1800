// Copyright 2024 Google LLC
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
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// ResolvedPath is a filesystem path that expands a leading "~" to the user's
// home directory on unmarshal, same custom-text-unmarshal idiom gcsfuse uses
// for its Octal flag type.
type ResolvedPath string

func (p *ResolvedPath) UnmarshalText(text []byte) error {
	s := string(text)
	if s == "~" || strings.HasPrefix(s, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("resolving home directory: %w", err)
		}
		s = filepath.Join(home, strings.TrimPrefix(s, "~"))
	}
	*p = ResolvedPath(s)
	return nil
}

func (p ResolvedPath) MarshalText() ([]byte, error) {
	return []byte(string(p)), nil
}

// LogSeverity is the datatype for the logging.severity config key and CLI
// flag; it accepts "TRACE", "DEBUG", "INFO", "WARNING", "ERROR", "OFF".
type LogSeverity string

var validSeverities = []LogSeverity{TRACE, DEBUG, INFO, WARNING, ERROR, OFF}

func (s *LogSeverity) UnmarshalText(text []byte) error {
	v := LogSeverity(strings.ToUpper(string(text)))
	if !slices.Contains(validSeverities, v) {
		return fmt.Errorf("invalid log severity: %q, must be one of %v", text, validSeverities)
	}
	*s = v
	return nil
}

func (s LogSeverity) MarshalText() ([]byte, error) {
	return []byte(string(s)), nil
}
