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

const (
	// Logging-level constants.

	TRACE   LogSeverity = "TRACE"
	DEBUG   LogSeverity = "DEBUG"
	INFO    LogSeverity = "INFO"
	WARNING LogSeverity = "WARNING"
	ERROR   LogSeverity = "ERROR"
	OFF     LogSeverity = "OFF"
)

const (
	// Default directory roots, created unconditionally at mount startup and
	// never removed by catalog pruning.

	DefaultMovieRoot      = "/movies"
	DefaultShowRoot       = "/shows"
	DefaultAnimeMovieRoot = "/anime_movies"
	DefaultAnimeShowRoot  = "/anime_shows"
)

// DefaultRoots returns the well-known directory roots in a stable order.
func DefaultRoots() []string {
	return []string{DefaultMovieRoot, DefaultShowRoot, DefaultAnimeMovieRoot, DefaultAnimeShowRoot}
}
