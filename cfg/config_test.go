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
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindFlagsPopulatesDefaults(t *testing.T) {
	v := viper.New()
	flagSet := pflag.NewFlagSet("rivenfs", pflag.ContinueOnError)
	require.NoError(t, BindFlags(flagSet))

	// viper.BindPFlag is called against the package-level viper in BindFlags;
	// reuse it here to exercise Decode end to end.
	config, err := Decode(viper.GetViper())
	require.NoError(t, err)
	assert.Equal(t, "rivenfs", config.AppName)
	assert.Equal(t, "rivenfs", config.Mount.FSName)
	assert.True(t, config.Mount.AllowOther)
	assert.EqualValues(t, 300, config.Mount.EntryTimeoutSeconds)
	assert.EqualValues(t, 15, config.Streaming.UrlCacheTtlMinutes)
	assert.True(t, config.Streaming.EnableRequestSerialization)
	assert.EqualValues(t, 4, config.Streaming.ReadaheadBufferMb)
	assert.Equal(t, LogSeverity("INFO"), config.Logging.Severity)

	_ = v
}

func TestValidateConfigRejectsBadLogRotate(t *testing.T) {
	config := DefaultConfig()
	config.Catalog.DatabasePath = "/tmp/rivenfs.db"
	config.Logging.LogRotate.MaxFileSizeMb = 0

	err := ValidateConfig(&config)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "log-rotate")
}

func TestValidateConfigRejectsMissingDatabasePath(t *testing.T) {
	config := DefaultConfig()

	err := ValidateConfig(&config)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "database-path")
}

func TestValidateConfigAcceptsDefaults(t *testing.T) {
	config := DefaultConfig()
	config.Catalog.DatabasePath = "/tmp/rivenfs.db"

	assert.NoError(t, ValidateConfig(&config))
}

func TestResolvedPathExpandsTilde(t *testing.T) {
	var p ResolvedPath
	require.NoError(t, p.UnmarshalText([]byte("~/rivenfs.db")))
	assert.NotEqual(t, "~/rivenfs.db", string(p))
}

func TestLogSeverityRejectsUnknownValue(t *testing.T) {
	var s LogSeverity
	err := s.UnmarshalText([]byte("NOPE"))
	assert.Error(t, err)
}

func TestLogSeverityAcceptsLowercase(t *testing.T) {
	var s LogSeverity
	require.NoError(t, s.UnmarshalText([]byte("debug")))
	assert.Equal(t, DEBUG, s)
}
