// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package wifi

import (
	"fmt"
	"log"
	"net"

	"github.com/miekg/dns"
)

// CaptivePortal answers every DNS A query with the access point's own
// address, so any hostname a client resolves in AP mode lands on the
// configuration UI.
type CaptivePortal struct {
	IP net.IP

	server *dns.Server
}

// NewCaptivePortal creates a portal resolving everything to ip.
func NewCaptivePortal(ip net.IP) *CaptivePortal {
	return &CaptivePortal{IP: ip}
}

// Start serves DNS on the given UDP address (typically ":53").
func (p *CaptivePortal) Start(addr string) error {
	mux := dns.NewServeMux()
	mux.HandleFunc(".", p.handle)

	p.server = &dns.Server{Addr: addr, Net: "udp", Handler: mux}
	go func() {
		if err := p.server.ListenAndServe(); err != nil {
			log.Printf("captive: dns server: %v", err)
		}
	}()
	log.Printf("captive: redirecting all DNS to %s", p.IP)
	return nil
}

// Shutdown stops the DNS server.
func (p *CaptivePortal) Shutdown() error {
	if p.server == nil {
		return nil
	}
	return p.server.Shutdown()
}

func (p *CaptivePortal) handle(w dns.ResponseWriter, r *dns.Msg) {
	m := new(dns.Msg)
	m.SetReply(r)
	m.Authoritative = true

	for _, q := range r.Question {
		if q.Qtype != dns.TypeA {
			continue
		}
		rr, err := dns.NewRR(fmt.Sprintf("%s 60 IN A %s", q.Name, p.IP))
		if err != nil {
			continue
		}
		m.Answer = append(m.Answer, rr)
	}
	w.WriteMsg(m)
}
