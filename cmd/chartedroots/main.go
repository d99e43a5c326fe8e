package main

import (
	"os"

	"github.com/spf13/cobra"

	"chartedroots/internal/config"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:          "chartedroots",
		Short:        "Genealogy graph tools for a vault of markdown person notes",
		SilenceUsage: true,
	}
	root.Version = version
	root.SetVersionTemplate("{{.Version}}\n")
	root.PersistentFlags().StringVar(&configPath, "config", config.DefaultFile, "Path to the project config")

	root.AddCommand(initCmd())
	root.AddCommand(indexCmd())
	root.AddCommand(validateCmd())
	root.AddCommand(duplicatesCmd())
	root.AddCommand(ancestorsCmd())
	root.AddCommand(relateCmd())
	root.AddCommand(renameCmd())
	root.AddCommand(gedcomCmd())
	root.AddCommand(queryCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(watchCmd())
	root.AddCommand(versionCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
