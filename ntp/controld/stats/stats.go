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

/*
Package stats implements statistics collection and reporting for the
control responder: a prometheus implementation for scraping and a JSON
implementation reporting via plain http.
*/
package stats

import (
	"github.com/prometheus/client_golang/prometheus"
)

// counter names, one per responder statistic
const (
	nRequests     = "requests"
	nBadPkts      = "badpkts"
	nResponses    = "responses"
	nFrags        = "frags"
	nErrors       = "errors"
	nTooShort     = "tooshort"
	nInputResp    = "inputresp"
	nInputFrag    = "inputfrag"
	nInputErr     = "inputerr"
	nBadOffset    = "badoffset"
	nBadVersion   = "badversion"
	nDataTooShort = "datatooshort"
	nBadOp        = "badop"
)

var counterHelp = map[string]string{
	nRequests:     "control requests received",
	nBadPkts:      "malformed control packets",
	nResponses:    "responses sent with data",
	nFrags:        "response fragments sent",
	nErrors:       "error responses sent",
	nTooShort:     "input packets shorter than the header",
	nInputResp:    "responses received on input",
	nInputFrag:    "fragments received on input",
	nInputErr:     "input packets with the error bit set",
	nBadOffset:    "input packets with a nonzero offset",
	nBadVersion:   "input packets with an unknown version",
	nDataTooShort: "data too short for the declared count",
	nBadOp:        "unknown opcodes received",
}

// PromStats implements the responder Stats interface with prometheus
// counters.
type PromStats struct {
	counters map[string]prometheus.Counter
}

// NewPromStats builds the counter set and registers it with reg.
func NewPromStats(reg prometheus.Registerer) *PromStats {
	p := &PromStats{counters: map[string]prometheus.Counter{}}
	for name, help := range counterHelp {
		c := prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ntpcontrold",
			Name:      name,
			Help:      help,
		})
		reg.MustRegister(c)
		p.counters[name] = c
	}
	return p
}

// IncRequests counts one inbound request.
func (p *PromStats) IncRequests() { p.counters[nRequests].Inc() }

// IncBadPkts counts one malformed packet.
func (p *PromStats) IncBadPkts() { p.counters[nBadPkts].Inc() }

// IncResponses counts one completed response.
func (p *PromStats) IncResponses() { p.counters[nResponses].Inc() }

// IncFrags counts one intermediate fragment.
func (p *PromStats) IncFrags() { p.counters[nFrags].Inc() }

// IncErrors counts one error response.
func (p *PromStats) IncErrors() { p.counters[nErrors].Inc() }

// IncTooShort counts one truncated input.
func (p *PromStats) IncTooShort() { p.counters[nTooShort].Inc() }

// IncInputResp counts a response arriving on input.
func (p *PromStats) IncInputResp() { p.counters[nInputResp].Inc() }

// IncInputFrag counts a fragment arriving on input.
func (p *PromStats) IncInputFrag() { p.counters[nInputFrag].Inc() }

// IncInputErr counts an error bit arriving on input.
func (p *PromStats) IncInputErr() { p.counters[nInputErr].Inc() }

// IncBadOffset counts a nonzero offset on input.
func (p *PromStats) IncBadOffset() { p.counters[nBadOffset].Inc() }

// IncBadVersion counts an unsupported version on input.
func (p *PromStats) IncBadVersion() { p.counters[nBadVersion].Inc() }

// IncDataTooShort counts a count field pointing past the datagram.
func (p *PromStats) IncDataTooShort() { p.counters[nDataTooShort].Inc() }

// IncBadOp counts an unknown opcode.
func (p *PromStats) IncBadOp() { p.counters[nBadOp].Inc() }
