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
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Decode unmarshals the current viper state (flags, config file) into a
// fresh Config using DecodeHook for the custom-unmarshal types
// (ResolvedPath, LogSeverity), the same pattern gcsfuse's cmd package uses to
// turn bound viper state into a cfg.Config before validation. Fields are
// matched by their yaml tags, which are also the flag and viper key names.
func Decode(v *viper.Viper) (*Config, error) {
	config := &Config{}
	useYamlTags := func(dc *mapstructure.DecoderConfig) { dc.TagName = "yaml" }
	if err := v.Unmarshal(config, viper.DecodeHook(DecodeHook()), useYamlTags); err != nil {
		return nil, err
	}
	return config, nil
}
