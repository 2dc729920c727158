package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var preamble = `daapsrv ` + Version + `

daapsrv is a DAAP (Digital Audio Access Protocol) compatible music server.
It advertises a music library via multicast DNS and serves it to DAAP
clients on the local network.`

var rootCmd = &cobra.Command{
	Use:     "daapsrv",
	Short:   "daapsrv music server",
	Long:    preamble,
	Version: Version,
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Printf("%v\n", err)
		os.Exit(1)
	}
}
