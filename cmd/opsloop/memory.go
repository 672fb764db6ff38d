package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/karsov/opsloop/internal/memory"
)

func memoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Inspect and manage agent memory",
	}
	cmd.AddCommand(memoryListCmd())
	cmd.AddCommand(memoryPromoteCmd())
	cmd.AddCommand(memoryForgetCmd())
	return cmd
}

func memoryListCmd() *cobra.Command {
	var role string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List memory entries for a role",
		RunE: func(cmd *cobra.Command, args []string) error {
			storeDB, _, closeFn, err := openDB()
			if err != nil {
				return err
			}
			defer closeFn()

			entries, err := memory.NewStore(storeDB).List(cmd.Context(), role, limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("No memory entries.")
				return nil
			}
			for _, e := range entries {
				fmt.Printf("%s  [%s/%s imp=%d %s]\n  %s\n", e.ID, e.Role, e.Type, e.Importance, humanize.Time(e.CreatedAt), e.Content)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "filter by role")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum entries to show")
	return cmd
}

func memoryPromoteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "promote <id>",
		Short: "Promote a short-term note to a durable lesson",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			storeDB, _, closeFn, err := openDB()
			if err != nil {
				return err
			}
			defer closeFn()

			if err := memory.NewStore(storeDB).Promote(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("Promoted %s to LESSON\n", args[0])
			return nil
		},
	}
}

func memoryForgetCmd() *cobra.Command {
	var role string
	var project string

	cmd := &cobra.Command{
		Use:   "forget [id]",
		Short: "Delete a memory entry by id, or all entries for a role",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			storeDB, _, closeFn, err := openDB()
			if err != nil {
				return err
			}
			defer closeFn()

			store := memory.NewStore(storeDB)
			if len(args) == 1 {
				if err := store.Delete(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Printf("Deleted %s\n", args[0])
				return nil
			}
			if role == "" {
				return fmt.Errorf("pass an entry id or --role")
			}
			var projectID *string
			if project != "" {
				projectID = &project
			}
			n, err := store.DeleteByRole(cmd.Context(), role, projectID)
			if err != nil {
				return err
			}
			fmt.Printf("Deleted %d entries for role %s\n", n, role)
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "delete every entry for this role")
	cmd.Flags().StringVar(&project, "project", "", "restrict --role deletion to one project")
	return cmd
}
