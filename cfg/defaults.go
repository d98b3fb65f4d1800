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

// DefaultLoggingConfig returns the default configuration used during
// application startup before the real configuration has been parsed.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Severity: INFO,
		Format:   "text",
		LogRotate: LogRotateConfig{
			BackupFileCount: 10,
			Compress:        true,
			MaxFileSizeMb:   512,
		},
	}
}

// DefaultConfig returns a Config populated with every default named in the
// external-interfaces configuration table, for use before flags/viper have
// been parsed (e.g. in unit tests).
func DefaultConfig() Config {
	return Config{
		AppName: "rivenfs",
		Mount: MountConfig{
			FSName:              "rivenfs",
			AllowOther:          true,
			EntryTimeoutSeconds: 300,
			AttrTimeoutSeconds:  300,
		},
		Streaming: StreamingConfig{
			UrlCacheTtlMinutes:           15,
			EnableRequestSerialization:   true,
			MaxConcurrentRequestsPerFile: 1,
			ReadaheadBufferMb:            4,
			HttpTimeoutSeconds:           30,
			HttpConnectTimeoutSeconds:    5,
			HttpLowSpeedLimitKbps:        10,
			HttpLowSpeedTimeSeconds:      15,
			EnableHttpKeepalive:          true,
		},
		Logging: DefaultLoggingConfig(),
	}
}
