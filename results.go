/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nrtkKodama/memory-game/memory"
)

// resultPublisher sends every finished round to a NATS subject.
// A nil publisher discards results.
type resultPublisher struct {
	cfg     *Config
	nc      *nats.Conn
	subject string
}

func newResultPublisher(cfg *Config) (*resultPublisher, error) {
	if cfg.natsURL == "" {
		return nil, nil
	}

	nc, err := nats.Connect(cfg.natsURL,
		nats.Name("memory v"+releaseVersion),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logf(cfg, "ERROR: NATS disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logf(cfg, "RESULTS: Reconnected to %s", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, err
	}

	logf(cfg, "RESULTS: Publishing rounds to %s on %q", nc.ConnectedUrl(), cfg.natsSubject)

	return &resultPublisher{cfg: cfg, nc: nc, subject: cfg.natsSubject}, nil
}

func encodeResult(r memory.RoundResult) ([]byte, error) {
	return json.Marshal(r)
}

// publish must not block; it runs with the finishing session locked.
func (p *resultPublisher) publish(r memory.RoundResult) {
	if p == nil {
		return
	}

	data, err := encodeResult(r)
	if err != nil {
		logf(p.cfg, "ERROR: Encoding result for %s: %v", r.Session, err)
		return
	}

	if err := p.nc.Publish(p.subject, data); err != nil {
		logf(p.cfg, "ERROR: Publishing result for %s: %v", r.Session, err)
	}
}

func (p *resultPublisher) close() {
	if p == nil {
		return
	}

	if err := p.nc.Drain(); err != nil {
		logf(p.cfg, "ERROR: Draining NATS connection: %v", err)
	}
}
