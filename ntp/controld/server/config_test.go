/*
Copyright (c) Facebook, Inc. and its affiliates.

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

package server

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMultiIPs(t *testing.T) {
	var m MultiIPs
	require.NoError(t, m.Set("127.0.0.1"))
	require.NoError(t, m.Set("::1"))
	require.Error(t, m.Set("nonsense"))
	require.Equal(t, "127.0.0.1, ::1", m.String())

	var d MultiIPs
	d.SetDefault()
	require.Equal(t, DefaultServerIPs, d)
}

func TestReadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
ips:
  - 127.0.0.1
  - ::1
port: 1123
monitoringport: 9100
controlkey: 7
mrudepth: 2048
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	c := Config{}
	require.NoError(t, ReadConfig(path, &c))
	require.Equal(t, 1123, c.Port)
	require.Equal(t, 9100, c.MonitoringPort)
	require.Equal(t, uint32(7), c.ControlKeyID)
	require.Equal(t, 2048, c.MRUDepth)
	require.Len(t, c.IPs, 2)

	require.NoError(t, c.Validate())

	c.Port = 0
	require.Error(t, c.Validate())

	require.Error(t, ReadConfig(filepath.Join(dir, "missing"), &c))
}
