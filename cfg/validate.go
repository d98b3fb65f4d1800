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

import "fmt"

func isValidLogRotateConfig(config *LogRotateConfig) error {
	if config.MaxFileSizeMb <= 0 {
		return fmt.Errorf("max-file-size-mb should be atleast 1")
	}
	if config.BackupFileCount < 0 {
		return fmt.Errorf("backup-file-count should be 0 (to retain all backup files) or a positive value")
	}
	return nil
}

func isValidStreamingConfig(c *StreamingConfig) error {
	if c.UrlCacheTtlMinutes < 0 {
		return fmt.Errorf("url-cache-ttl-minutes cannot be negative")
	}
	if c.ReadaheadBufferMb <= 0 {
		return fmt.Errorf("readahead-buffer-mb must be at least 1")
	}
	if c.HttpTimeoutSeconds <= 0 {
		return fmt.Errorf("http-timeout-seconds must be at least 1")
	}
	if c.HttpConnectTimeoutSeconds <= 0 {
		return fmt.Errorf("http-connect-timeout-seconds must be at least 1")
	}
	if c.MaxConcurrentRequestsPerFile < 1 {
		return fmt.Errorf("max-concurrent-requests-per-file must be at least 1")
	}
	return nil
}

func isValidMountConfig(c *MountConfig) error {
	if c.EntryTimeoutSeconds < 0 {
		return fmt.Errorf("entry-timeout-seconds cannot be negative")
	}
	if c.AttrTimeoutSeconds < 0 {
		return fmt.Errorf("attr-timeout-seconds cannot be negative")
	}
	if c.FSName == "" {
		return fmt.Errorf("fs-name must not be empty")
	}
	return nil
}

// ValidateConfig returns a non-nil error if the config is invalid.
func ValidateConfig(config *Config) error {
	if err := isValidLogRotateConfig(&config.Logging.LogRotate); err != nil {
		return fmt.Errorf("error parsing log-rotate config: %w", err)
	}

	if err := isValidStreamingConfig(&config.Streaming); err != nil {
		return fmt.Errorf("error parsing streaming config: %w", err)
	}

	if err := isValidMountConfig(&config.Mount); err != nil {
		return fmt.Errorf("error parsing mount config: %w", err)
	}

	if config.Catalog.DatabasePath == "" {
		return fmt.Errorf("catalog.database-path must not be empty")
	}

	return nil
}
