package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/karsov/opsloop/internal/agent"
)

func submitCmd() *cobra.Command {
	var project string
	var resource string
	var meta []string

	cmd := &cobra.Command{
		Use:   "submit <request>",
		Short: "Submit a request and run it through the pipeline",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			request := strings.TrimSpace(strings.Join(args, " "))
			if request == "" {
				return fmt.Errorf("request is required")
			}

			storeDB, workRoot, closeFn, err := openDB()
			if err != nil {
				return err
			}
			defer closeFn()

			cfg, err := loadConfig(workRoot)
			if err != nil {
				return err
			}

			orch, cleanup, err := buildPipeline(cmd.Context(), cfg, storeDB, workRoot)
			if err != nil {
				return err
			}
			defer cleanup()

			task := agent.Task{Request: request}
			if project != "" {
				task.ProjectID = &project
			} else {
				task.ProjectID = cfg.ProjectID()
			}
			if resource != "" {
				task.ResourceID = &resource
			}
			task.Metadata, err = parseMeta(meta)
			if err != nil {
				return err
			}

			out, err := orch.Submit(cmd.Context(), task)
			if err != nil {
				return err
			}

			fmt.Printf("Task %s routed to %s\n", out.TaskID, out.Role)
			fmt.Printf("Plan: %s\n", out.Plan)
			if out.Blocked {
				fmt.Println("Execution blocked pending approval.")
			}
			for i, result := range out.Results {
				fmt.Printf("\n--- step %d ---\n%s\n", i+1, result)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&project, "project", "", "project id (defaults to the configured project)")
	cmd.Flags().StringVar(&resource, "resource", "", "target resource id")
	cmd.Flags().StringArrayVar(&meta, "meta", nil, "metadata key=value (repeatable)")
	return cmd
}

func parseMeta(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, kv := range pairs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("--meta %q is not key=value", kv)
		}
		out[k] = v
	}
	return out, nil
}
