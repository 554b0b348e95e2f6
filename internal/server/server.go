// Package server hosts the LDAP front end. It translates protocol requests
// into partition operations and partition outcomes back into LDAP result
// codes; no directory semantics live here.
package server

import (
	"crypto/tls"
	"fmt"

	"github.com/hashicorp/go-hclog"
	"github.com/jimlambrt/gldap"

	"github.com/dirbridge/crowdldap/internal/config"
	"github.com/dirbridge/crowdldap/internal/directory"
)

// Server is the LDAP listener over a directory partition.
type Server struct {
	cfg  *config.Config
	part *directory.Partition
	ldap *gldap.Server
	log  hclog.Logger
}

// New wires the protocol routes. The server does not listen until Run.
func New(cfg *config.Config, part *directory.Partition, log hclog.Logger) (*Server, error) {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	log = log.Named("server")

	ldapSrv, err := gldap.NewServer(gldap.WithLogger(log))
	if err != nil {
		return nil, fmt.Errorf("failed to create LDAP server: %w", err)
	}

	s := &Server{cfg: cfg, part: part, ldap: ldapSrv, log: log}

	mux, err := gldap.NewMux()
	if err != nil {
		return nil, fmt.Errorf("failed to create LDAP mux: %w", err)
	}
	if err := mux.Bind(s.handleBind); err != nil {
		return nil, err
	}
	if err := mux.Search(s.handleSearch); err != nil {
		return nil, err
	}
	if err := mux.Add(s.handleAdd); err != nil {
		return nil, err
	}
	if err := mux.Modify(s.handleModify); err != nil {
		return nil, err
	}
	if err := mux.Delete(s.handleDelete); err != nil {
		return nil, err
	}
	if err := ldapSrv.Router(mux); err != nil {
		return nil, fmt.Errorf("failed to install LDAP routes: %w", err)
	}
	return s, nil
}

// Run listens on the configured address and serves until Stop. With TLS
// enabled the listener speaks LDAPS on the same address.
func (s *Server) Run() error {
	var opts []gldap.Option
	if s.cfg.TLS.Enabled {
		cert, err := tls.LoadX509KeyPair(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		if err != nil {
			return fmt.Errorf("failed to load TLS key pair: %w", err)
		}
		opts = append(opts, gldap.WithTLSConfig(&tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}))
		s.log.Info("listening with TLS", "addr", s.cfg.Listen)
	} else {
		s.log.Info("listening", "addr", s.cfg.Listen)
	}
	return s.ldap.Run(s.cfg.Listen, opts...)
}

// Stop shuts the listener down and closes active connections.
func (s *Server) Stop() error {
	return s.ldap.Stop()
}
