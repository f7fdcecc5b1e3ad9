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

package stats

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
)

// JSONStats implements the responder Stats interface and reports the
// counters as JSON via an http interface. This is a passive
// implementation, only Start needs to be called.
type JSONStats struct {
	// keep these aligned to 64-bit for sync/atomic
	requests     int64
	badPkts      int64
	responses    int64
	frags        int64
	errors       int64
	tooShort     int64
	inputResp    int64
	inputFrag    int64
	inputErr     int64
	badOffset    int64
	badVersion   int64
	dataTooShort int64
	badOp        int64
}

// toMap converts the counters to a map
func (j *JSONStats) toMap() map[string]int64 {
	return map[string]int64{
		nRequests:     atomic.LoadInt64(&j.requests),
		nBadPkts:      atomic.LoadInt64(&j.badPkts),
		nResponses:    atomic.LoadInt64(&j.responses),
		nFrags:        atomic.LoadInt64(&j.frags),
		nErrors:       atomic.LoadInt64(&j.errors),
		nTooShort:     atomic.LoadInt64(&j.tooShort),
		nInputResp:    atomic.LoadInt64(&j.inputResp),
		nInputFrag:    atomic.LoadInt64(&j.inputFrag),
		nInputErr:     atomic.LoadInt64(&j.inputErr),
		nBadOffset:    atomic.LoadInt64(&j.badOffset),
		nBadVersion:   atomic.LoadInt64(&j.badVersion),
		nDataTooShort: atomic.LoadInt64(&j.dataTooShort),
		nBadOp:        atomic.LoadInt64(&j.badOp),
	}
}

// Start runs the http server on the monitoring port.
func (j *JSONStats) Start(port int) {
	http.HandleFunc("/", j.handleRequest)
	addr := fmt.Sprintf(":%d", port)
	log.Infof("Starting http json server on %s", addr)
	err := http.ListenAndServe(addr, nil)
	if err != nil {
		log.Fatalf("failed to start listener: %v", err)
	}
}

func (j *JSONStats) handleRequest(w http.ResponseWriter, _ *http.Request) {
	js, err := json.Marshal(j.toMap())
	if err != nil {
		log.Errorf("failed to marshal json: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(js); err != nil {
		log.Errorf("failed to write response: %v", err)
	}
}

// IncRequests counts one inbound request.
func (j *JSONStats) IncRequests() { atomic.AddInt64(&j.requests, 1) }

// IncBadPkts counts one malformed packet.
func (j *JSONStats) IncBadPkts() { atomic.AddInt64(&j.badPkts, 1) }

// IncResponses counts one completed response.
func (j *JSONStats) IncResponses() { atomic.AddInt64(&j.responses, 1) }

// IncFrags counts one intermediate fragment.
func (j *JSONStats) IncFrags() { atomic.AddInt64(&j.frags, 1) }

// IncErrors counts one error response.
func (j *JSONStats) IncErrors() { atomic.AddInt64(&j.errors, 1) }

// IncTooShort counts one truncated input.
func (j *JSONStats) IncTooShort() { atomic.AddInt64(&j.tooShort, 1) }

// IncInputResp counts a response arriving on input.
func (j *JSONStats) IncInputResp() { atomic.AddInt64(&j.inputResp, 1) }

// IncInputFrag counts a fragment arriving on input.
func (j *JSONStats) IncInputFrag() { atomic.AddInt64(&j.inputFrag, 1) }

// IncInputErr counts an error bit arriving on input.
func (j *JSONStats) IncInputErr() { atomic.AddInt64(&j.inputErr, 1) }

// IncBadOffset counts a nonzero offset on input.
func (j *JSONStats) IncBadOffset() { atomic.AddInt64(&j.badOffset, 1) }

// IncBadVersion counts an unsupported version on input.
func (j *JSONStats) IncBadVersion() { atomic.AddInt64(&j.badVersion, 1) }

// IncDataTooShort counts a count field pointing past the datagram.
func (j *JSONStats) IncDataTooShort() { atomic.AddInt64(&j.dataTooShort, 1) }

// IncBadOp counts an unknown opcode.
func (j *JSONStats) IncBadOp() { atomic.AddInt64(&j.badOp, 1) }
