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
	"bufio"
	"crypto/md5"
	"crypto/sha1"
	"crypto/subtle"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// symKey is one symmetric key: digest type plus secret.
type symKey struct {
	digest string // "MD5" or "SHA1"
	secret []byte
}

// SymKeyStore is a KeyStore over ntp.keys-style symmetric keys. NTP
// MACs are digest(key || message).
type SymKeyStore struct {
	keys    map[uint32]symKey
	trusted map[uint32]bool
}

// NewSymKeyStore builds an empty store.
func NewSymKeyStore() *SymKeyStore {
	return &SymKeyStore{
		keys:    make(map[uint32]symKey),
		trusted: make(map[uint32]bool),
	}
}

// Add installs a key and marks it trusted.
func (s *SymKeyStore) Add(id uint32, digest string, secret []byte) {
	s.keys[id] = symKey{digest: strings.ToUpper(digest), secret: secret}
	s.trusted[id] = true
}

// IsTrusted reports whether the key id is known and trusted.
func (s *SymKeyStore) IsTrusted(keyID uint32) bool {
	return s.trusted[keyID]
}

func (s *SymKeyStore) digest(k symKey, message []byte) []byte {
	switch k.digest {
	case "SHA1":
		h := sha1.New()
		h.Write(k.secret)
		h.Write(message)
		return h.Sum(nil)
	default:
		h := md5.New()
		h.Write(k.secret)
		h.Write(message)
		return h.Sum(nil)
	}
}

// ComputeMAC returns the digest over message under keyID, nil when the
// key is unknown.
func (s *SymKeyStore) ComputeMAC(keyID uint32, message []byte) []byte {
	k, ok := s.keys[keyID]
	if !ok {
		return nil
	}
	return s.digest(k, message)
}

// VerifyMAC checks digest against message under keyID in constant
// time.
func (s *SymKeyStore) VerifyMAC(keyID uint32, message, digest []byte) bool {
	k, ok := s.keys[keyID]
	if !ok {
		return false
	}
	want := s.digest(k, message)
	if len(want) != len(digest) {
		return false
	}
	return subtle.ConstantTimeCompare(want, digest) == 1
}

// LoadKeysFile reads an ntp.keys-format file: "keyid type secret" per
// line, '#' comments.
func LoadKeysFile(path string) (*SymKeyStore, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening keys file")
	}
	defer f.Close()

	store := NewSymKeyStore()
	scanner := bufio.NewScanner(f)
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			return nil, errors.Errorf("%s:%d: want 'keyid type secret'", path, lineno)
		}
		id, err := strconv.ParseUint(fields[0], 10, 32)
		if err != nil {
			return nil, errors.Wrapf(err, "%s:%d: bad key id", path, lineno)
		}
		store.Add(uint32(id), fields[1], []byte(fields[2]))
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading keys file")
	}
	return store, nil
}
