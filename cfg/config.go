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
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the root configuration object for a rivenfs mount. It is
// populated by BindFlags + viper from CLI flags and an optional YAML config
// file, then decoded into this struct with
// mapstructure (see DecodeHook).
type Config struct {
	AppName string `yaml:"app-name"`

	Mount MountConfig `yaml:"mount"`

	Streaming StreamingConfig `yaml:"streaming"`

	Catalog CatalogConfig `yaml:"catalog"`

	Logging LoggingConfig `yaml:"logging"`
}

// MountConfig controls how the kernel-facing mount point is created and the
// kernel-visible cache lifetimes of names and attributes (KernelAdapter, C9).
type MountConfig struct {
	MountPoint ResolvedPath `yaml:"mount-point"`

	FSName string `yaml:"fs-name"`

	AllowOther bool `yaml:"allow-other"`

	DebugFuse bool `yaml:"debug-fuse"`

	EntryTimeoutSeconds int64 `yaml:"entry-timeout-seconds"`

	AttrTimeoutSeconds int64 `yaml:"attr-timeout-seconds"`
}

func (c MountConfig) EntryTimeout() time.Duration {
	return time.Duration(c.EntryTimeoutSeconds) * time.Second
}

func (c MountConfig) AttrTimeout() time.Duration {
	return time.Duration(c.AttrTimeoutSeconds) * time.Second
}

// StreamingConfig controls URL caching, request serialization and the HTTP
// range-fetch policy used by the streaming read path (C3, C6, C7, C8).
type StreamingConfig struct {
	UrlCacheTtlMinutes int64 `yaml:"url-cache-ttl-minutes"`

	EnableRequestSerialization bool `yaml:"enable-request-serialization"`

	MaxConcurrentRequestsPerFile int `yaml:"max-concurrent-requests-per-file"`

	ReadaheadBufferMb int64 `yaml:"readahead-buffer-mb"`

	HttpTimeoutSeconds int64 `yaml:"http-timeout-seconds"`

	HttpConnectTimeoutSeconds int64 `yaml:"http-connect-timeout-seconds"`

	HttpLowSpeedLimitKbps int64 `yaml:"http-low-speed-limit-kbps"`

	HttpLowSpeedTimeSeconds int64 `yaml:"http-low-speed-time-seconds"`

	EnableHttpKeepalive bool `yaml:"enable-http-keepalive"`
}

func (c StreamingConfig) UrlCacheTtl() time.Duration {
	return time.Duration(c.UrlCacheTtlMinutes) * time.Minute
}

func (c StreamingConfig) ReadaheadBufferBytes() int64 {
	return c.ReadaheadBufferMb * 1024 * 1024
}

func (c StreamingConfig) HttpTimeout() time.Duration {
	return time.Duration(c.HttpTimeoutSeconds) * time.Second
}

func (c StreamingConfig) HttpConnectTimeout() time.Duration {
	return time.Duration(c.HttpConnectTimeoutSeconds) * time.Second
}

func (c StreamingConfig) HttpLowSpeedTime() time.Duration {
	return time.Duration(c.HttpLowSpeedTimeSeconds) * time.Second
}

// CatalogConfig controls the persistent path->entry mapping (C1).
type CatalogConfig struct {
	DatabasePath ResolvedPath `yaml:"database-path"`
}

// LoggingConfig controls the ambient logging stack (see internal/logger).
type LoggingConfig struct {
	FilePath ResolvedPath `yaml:"file-path"`

	Severity LogSeverity `yaml:"severity"`

	Format string `yaml:"format"`

	LogRotate LogRotateConfig `yaml:"log-rotate"`
}

// LogRotateConfig mirrors gcsfuse's LogRotateLoggingConfig, consumed by
// lumberjack.Logger for on-disk rotation of the log file.
type LogRotateConfig struct {
	MaxFileSizeMb int `yaml:"max-file-size-mb"`

	BackupFileCount int `yaml:"backup-file-count"`

	Compress bool `yaml:"compress"`
}

// BindFlags registers every config key as a pflag and binds it into viper,
// in the same generated-config idiom as gcsfuse's cfg.BindFlags.
func BindFlags(flagSet *pflag.FlagSet) error {
	var err error

	flagSet.StringP("app-name", "", "rivenfs", "The application name of this mount.")
	if err = viper.BindPFlag("app-name", flagSet.Lookup("app-name")); err != nil {
		return err
	}

	flagSet.StringP("fs-name", "", "rivenfs", "The fsname reported to the kernel for this mount.")
	if err = viper.BindPFlag("mount.fs-name", flagSet.Lookup("fs-name")); err != nil {
		return err
	}

	flagSet.BoolP("allow-other", "", true, "Pass allow_other to the kernel mount options.")
	if err = viper.BindPFlag("mount.allow-other", flagSet.Lookup("allow-other")); err != nil {
		return err
	}

	flagSet.BoolP("debug-fuse", "", false, "Enable verbose FUSE protocol logging.")
	if err = viper.BindPFlag("mount.debug-fuse", flagSet.Lookup("debug-fuse")); err != nil {
		return err
	}

	flagSet.Int64P("fuse-entry-timeout-seconds", "", 300, "Kernel name-cache TTL.")
	if err = viper.BindPFlag("mount.entry-timeout-seconds", flagSet.Lookup("fuse-entry-timeout-seconds")); err != nil {
		return err
	}

	flagSet.Int64P("fuse-attr-timeout-seconds", "", 300, "Kernel attr-cache TTL.")
	if err = viper.BindPFlag("mount.attr-timeout-seconds", flagSet.Lookup("fuse-attr-timeout-seconds")); err != nil {
		return err
	}

	flagSet.Int64P("url-cache-ttl-minutes", "", 15, "Lifetime of a cached unrestricted URL before forced refresh.")
	if err = viper.BindPFlag("streaming.url-cache-ttl-minutes", flagSet.Lookup("url-cache-ttl-minutes")); err != nil {
		return err
	}

	flagSet.BoolP("enable-request-serialization", "", true, "Serialize HTTP reads per path.")
	if err = viper.BindPFlag("streaming.enable-request-serialization", flagSet.Lookup("enable-request-serialization")); err != nil {
		return err
	}

	flagSet.IntP("max-concurrent-requests-per-file", "", 1, "Informational when request serialization is enabled.")
	if err = viper.BindPFlag("streaming.max-concurrent-requests-per-file", flagSet.Lookup("max-concurrent-requests-per-file")); err != nil {
		return err
	}

	flagSet.Int64P("readahead-buffer-mb", "", 4, "Minimum HTTP fetch window per buffer miss.")
	if err = viper.BindPFlag("streaming.readahead-buffer-mb", flagSet.Lookup("readahead-buffer-mb")); err != nil {
		return err
	}

	flagSet.Int64P("http-timeout-seconds", "", 30, "Per-request wall-clock limit.")
	if err = viper.BindPFlag("streaming.http-timeout-seconds", flagSet.Lookup("http-timeout-seconds")); err != nil {
		return err
	}

	flagSet.Int64P("http-connect-timeout-seconds", "", 5, "Connect phase limit.")
	if err = viper.BindPFlag("streaming.http-connect-timeout-seconds", flagSet.Lookup("http-connect-timeout-seconds")); err != nil {
		return err
	}

	flagSet.Int64P("http-low-speed-limit-kbps", "", 10, "Abort threshold for stuck transfers.")
	if err = viper.BindPFlag("streaming.http-low-speed-limit-kbps", flagSet.Lookup("http-low-speed-limit-kbps")); err != nil {
		return err
	}

	flagSet.Int64P("http-low-speed-time-seconds", "", 15, "Time below threshold before abort.")
	if err = viper.BindPFlag("streaming.http-low-speed-time-seconds", flagSet.Lookup("http-low-speed-time-seconds")); err != nil {
		return err
	}

	flagSet.BoolP("enable-http-keepalive", "", true, "Reuse connection across ranges of one handle.")
	if err = viper.BindPFlag("streaming.enable-http-keepalive", flagSet.Lookup("enable-http-keepalive")); err != nil {
		return err
	}

	flagSet.StringP("database-path", "", "", "Path to the sqlite catalog database.")
	if err = viper.BindPFlag("catalog.database-path", flagSet.Lookup("database-path")); err != nil {
		return err
	}

	flagSet.StringP("log-file", "", "", "Path to the log file, or empty for stderr.")
	if err = viper.BindPFlag("logging.file-path", flagSet.Lookup("log-file")); err != nil {
		return err
	}

	flagSet.StringP("log-severity", "", "INFO", "Logging severity: TRACE, DEBUG, INFO, WARNING, ERROR, OFF.")
	if err = viper.BindPFlag("logging.severity", flagSet.Lookup("log-severity")); err != nil {
		return err
	}

	flagSet.StringP("log-format", "", "text", "Logging format: text or json.")
	if err = viper.BindPFlag("logging.format", flagSet.Lookup("log-format")); err != nil {
		return err
	}

	return nil
}
