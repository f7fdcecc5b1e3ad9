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

package controld

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSymKeyStoreMAC(t *testing.T) {
	s := NewSymKeyStore()
	s.Add(7, "MD5", []byte("sekret"))

	msg := []byte("some message")
	mac := s.ComputeMAC(7, msg)
	require.Len(t, mac, 16)
	require.True(t, s.VerifyMAC(7, msg, mac))

	// tampered message fails
	require.False(t, s.VerifyMAC(7, []byte("some messagf"), mac))
	// unknown key fails
	require.Nil(t, s.ComputeMAC(8, msg))
	require.False(t, s.VerifyMAC(8, msg, mac))
}

func TestSymKeyStoreSHA1(t *testing.T) {
	s := NewSymKeyStore()
	s.Add(11, "SHA1", []byte("sekret"))

	mac := s.ComputeMAC(11, []byte("msg"))
	require.Len(t, mac, 20)
	require.True(t, s.VerifyMAC(11, []byte("msg"), mac))
}

func TestLoadKeysFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ntp.keys")
	content := `# control keys
7 MD5 sekret
11 SHA1 othersecret

`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	s, err := LoadKeysFile(path)
	require.NoError(t, err)
	require.True(t, s.IsTrusted(7))
	require.True(t, s.IsTrusted(11))
	require.False(t, s.IsTrusted(12))

	_, err = LoadKeysFile(filepath.Join(dir, "missing"))
	require.Error(t, err)

	bad := filepath.Join(dir, "bad.keys")
	require.NoError(t, os.WriteFile(bad, []byte("7 MD5\n"), 0600))
	_, err = LoadKeysFile(bad)
	require.Error(t, err)
}
