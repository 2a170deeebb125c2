// Package main provides the labrun-mcp binary: the labrun MCP server for
// AI agents, configured from the environment and config file only.
package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/client"
	"github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/config"
	"github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/log"
	lmcp "github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/mcp"
)

var version = "dev"

func main() {
	if err := serve(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func serve() error {
	cfg, err := config.Load(nil)
	if err != nil {
		return err
	}
	// Stdout carries the MCP stream; logs go to stderr.
	logger, err := log.NewWithWriter(os.Stderr, cfg.Log.Level)
	if err != nil {
		return err
	}
	c := client.New(cfg.APIURL, cfg.Timeout)
	c.Logger = logger
	s := lmcp.NewServer(version, &lmcp.Handlers{
		Service:      c,
		Logger:       logger,
		TickInterval: cfg.TickInterval,
	})
	return server.ServeStdio(s)
}
