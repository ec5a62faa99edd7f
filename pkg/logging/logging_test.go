/*
Copyright 2024 Google LLC

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package logging

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigure(t *testing.T) {
	defer logrus.SetLevel(logrus.InfoLevel)

	require.NoError(t, Configure("debug", FormatText, false))
	assert.Equal(t, logrus.DebugLevel, logrus.GetLevel())

	require.NoError(t, Configure("warn", FormatJSON, true))
	assert.Equal(t, logrus.WarnLevel, logrus.GetLevel())

	require.NoError(t, Configure(DefaultLevel, FormatColor, DefaultLogTimestamp))
}

func TestConfigureInvalidLevel(t *testing.T) {
	assert.Error(t, Configure("loud", FormatText, false))
}

func TestConfigureInvalidFormat(t *testing.T) {
	assert.Error(t, Configure("info", "yaml", false))
}
