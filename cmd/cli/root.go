package main

import (
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "laalactl",
		Short:         "Operate a La-a-La API deployment",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String("api", envOr("LAALA_API", "http://localhost:8080/api"), "API base URL")
	root.PersistentFlags().String("token", os.Getenv("LAALA_TOKEN"), "bearer token of an admin principal")

	root.AddCommand(newRequestsCmd(), newMigrateCmd(), newTokenCmd())
	return root
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
