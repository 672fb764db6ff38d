package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/karsov/opsloop/internal/db"
)

func agentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "agents",
		Short: "List registered role agents and their status",
		RunE: func(cmd *cobra.Command, args []string) error {
			storeDB, _, closeFn, err := openDB()
			if err != nil {
				return err
			}
			defer closeFn()

			agents, err := db.NewStore(storeDB).ListAgents(cmd.Context())
			if err != nil {
				return err
			}
			if len(agents) == 0 {
				fmt.Println("No agents registered yet; submit a task first.")
				return nil
			}
			for _, a := range agents {
				fmt.Printf("%-12s %-10s %s\n", a.Role, a.Status, strings.Join(a.Capabilities, ", "))
			}
			return nil
		},
	}
}
