// crowdldap serves a read-only LDAP view of a Crowd-style identity service.
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/dirbridge/crowdldap/internal/config"
	"github.com/dirbridge/crowdldap/internal/crowd"
	"github.com/dirbridge/crowdldap/internal/directory"
	"github.com/dirbridge/crowdldap/internal/server"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "crowdldap",
		Short:         "LDAP bridge for a Crowd-style identity service",
		Long:          "crowdldap exposes the users and groups of a remote identity service\nas a read-only LDAP directory, including simple-bind authentication\nand AD-style memberOf emulation.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}
	root.Flags().StringVarP(&configPath, "config", "c", "", "path to the configuration file")

	if err := root.Execute(); err != nil {
		hclog.Default().Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log := hclog.New(&hclog.LoggerOptions{
		Name:  "crowdldap",
		Level: hclog.LevelFromString(cfg.LogLevel),
	})

	client, err := crowd.NewClient(crowd.ClientConfig{
		BaseURL:     cfg.Crowd.BaseURL,
		Application: cfg.Crowd.Application,
		Password:    cfg.Crowd.Password,
		Timeout:     cfg.Crowd.Timeout,
		MaxRetries:  cfg.Crowd.MaxRetries,
	}, log.Named("crowd"))
	if err != nil {
		return err
	}

	part, err := directory.NewPartition(cfg, client, log)
	if err != nil {
		return err
	}

	srv, err := server.New(cfg, part, log)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.Info("shutting down", "signal", sig.String())
		return srv.Stop()
	}
}
