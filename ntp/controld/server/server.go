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
Package server implements the UDP front of the control responder: it
binds the configured addresses, receives mode 6 datagrams, feeds the
MRU table and hands each request to the responder, one at a time.
*/
package server

import (
	"context"
	"net"
	"net/netip"

	log "github.com/sirupsen/logrus"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
	"golang.org/x/sync/errgroup"

	"github.com/timekeep/timekeep/ntp/control"
	"github.com/timekeep/timekeep/ntp/controld"
	"github.com/timekeep/timekeep/ntp/controld/mru"
)

// task is one received datagram with everything needed to serve it.
type task struct {
	data     []byte
	src      netip.AddrPort
	local    *controld.Endpoint
	received control.LFP
}

// Server owns the sockets and the serialization of the responder.
type Server struct {
	Config    Config
	Responder *controld.Responder
	MRU       *mru.List
	Restrict  controld.Restrictions
	Clock     controld.Clock

	endpoints []*controld.Endpoint
	conns     map[int]*net.UDPConn // endpoint index -> socket
	tasks     chan task
}

// Endpoints returns the endpoint list for the responder's collaborator
// wiring. Valid after Bind (or Start) has bound the sockets.
func (s *Server) Endpoints() []*controld.Endpoint {
	return s.endpoints
}

// Bind opens one socket per configured IP and builds the endpoint
// list.
func (s *Server) Bind() error {
	s.conns = make(map[int]*net.UDPConn)
	for i, ip := range s.Config.IPs {
		conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: ip, Port: s.Config.Port})
		if err != nil {
			return err
		}
		addr := conn.LocalAddr().(*net.UDPAddr)
		ep := &controld.Endpoint{
			Index: i,
			Name:  ip.String(),
			Addr:  addr.AddrPort(),
		}
		s.endpoints = append(s.endpoints, ep)
		s.conns[i] = conn
		log.Infof("listening on %s", addr)
	}
	return nil
}

// Send implements the responder's Transport over the bound sockets.
func (s *Server) Send(dst netip.AddrPort, local *controld.Endpoint, b []byte) error {
	var conn *net.UDPConn
	if local != nil {
		conn = s.conns[local.Index]
	}
	if conn == nil {
		for _, c := range s.conns {
			conn = c
			break
		}
	}
	if conn == nil {
		return net.ErrClosed
	}
	_, err := conn.WriteToUDPAddrPort(b, dst)
	return err
}

// Start runs the listeners and the single responder worker until the
// context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if s.conns == nil {
		if err := s.Bind(); err != nil {
			return err
		}
	}
	s.tasks = make(chan task, 128)

	g, ctx := errgroup.WithContext(ctx)
	for i := range s.Config.IPs {
		ep := s.endpoints[i]
		conn := s.conns[i]
		g.Go(func() error {
			return s.listen(ctx, conn, ep)
		})
	}

	// the responder is strictly single-threaded: one worker drains
	// the task queue
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case t := <-s.tasks:
				s.serve(t)
			}
		}
	})

	<-ctx.Done()
	for _, conn := range s.conns {
		conn.Close()
	}
	return g.Wait()
}

// listen reads datagrams off one socket. Wildcard binds turn on
// destination control messages, but the destination they carry is not
// used: every datagram is attributed to the endpoint of the socket it
// arrived on.
func (s *Server) listen(ctx context.Context, conn *net.UDPConn, ep *controld.Endpoint) error {
	wildcard := ep.Addr.Addr().IsUnspecified()
	var p4 *ipv4.PacketConn
	var p6 *ipv6.PacketConn
	if wildcard {
		if ep.Addr.Addr().Is4() {
			p4 = ipv4.NewPacketConn(conn)
			if err := p4.SetControlMessage(ipv4.FlagDst, true); err != nil {
				log.Warningf("no destination control messages on %s: %v", ep.Addr, err)
			}
		} else {
			p6 = ipv6.NewPacketConn(conn)
			if err := p6.SetControlMessage(ipv6.FlagDst, true); err != nil {
				log.Warningf("no destination control messages on %s: %v", ep.Addr, err)
			}
		}
	}

	buf := make([]byte, 65536)
	for {
		var n int
		var src net.Addr
		var err error
		switch {
		case p4 != nil:
			n, _, src, err = p4.ReadFrom(buf)
		case p6 != nil:
			n, _, src, err = p6.ReadFrom(buf)
		default:
			n, src, err = conn.ReadFromUDP(buf)
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Errorf("failed to read packet on %s: %v", ep.Addr, err)
			continue
		}
		ep.Received++

		srcAP := udpAddrPort(src)
		data := make([]byte, n)
		copy(data, buf[:n])
		select {
		case s.tasks <- task{
			data:     data,
			src:      srcAP,
			local:    ep,
			received: s.Clock.Now(),
		}:
		default:
			log.Debug("task queue full, dropping control request")
		}
	}
}

// serve feeds the MRU table and runs one request to completion.
func (s *Server) serve(t task) {
	restrict := s.restrictMaskFor(t.src.Addr())
	if len(t.data) > 0 && s.MRU != nil {
		s.MRU.Observe(t.src, t.received, t.data[0], restrict, t.local)
	}
	s.Responder.Process(&controld.Request{
		Data:         t.data,
		Src:          t.src,
		Local:        t.local,
		Received:     t.received,
		RestrictMask: restrict,
	})
	t.local.Sent++
}

// restrictMaskFor folds the restrict lists down to the flags applying
// to one source. Longest match wins, v4 and v6 lists are separate.
func (s *Server) restrictMaskFor(src netip.Addr) uint16 {
	if s.Restrict == nil {
		return 0
	}
	list := s.Restrict.V4()
	if src.Is6() && !src.Is4In6() {
		list = s.Restrict.V6()
	}
	var flags uint16
	best := -1
	for _, e := range list {
		if !maskCovers(e.Addr, e.Mask, src) {
			continue
		}
		n := 0
		for _, b := range e.Mask.As16() {
			for ; b != 0; b &= b - 1 {
				n++
			}
		}
		if n >= best {
			best = n
			flags = e.Flags
		}
	}
	return flags
}

// maskCovers reports whether src falls inside addr/mask.
func maskCovers(addr, mask, src netip.Addr) bool {
	if !addr.IsValid() || !mask.IsValid() {
		return false
	}
	a := addr.As16()
	m := mask.As16()
	s := src.As16()
	for i := range a {
		if a[i]&m[i] != s[i]&m[i] {
			return false
		}
	}
	return true
}

func udpAddrPort(a net.Addr) netip.AddrPort {
	if u, ok := a.(*net.UDPAddr); ok {
		return u.AddrPort()
	}
	ap, _ := netip.ParseAddrPort(a.String())
	return ap
}
