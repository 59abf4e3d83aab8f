package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	rootCmd    = &cobra.Command{
		Use:   "ngenesis",
		Short: "NGenesis - natural-language agent generation service",
		Long: `NGenesis turns a natural-language intent and a target URL into a working
web agent. It plans the build with an LLM, authors and reviews the code,
verifies it, and optionally wires up change monitoring and a branded icon,
exposing progress over HTTP.`,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
