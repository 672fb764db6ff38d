package main

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/karsov/opsloop/internal/db"
	"github.com/karsov/opsloop/internal/web"
)

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the status server",
		RunE: func(cmd *cobra.Command, args []string) error {
			storeDB, workRoot, closeFn, err := openDB()
			if err != nil {
				return err
			}
			defer closeFn()

			if addr == "" {
				cfg, err := loadConfig(workRoot)
				if err != nil {
					fatal(err)
					addr = ":8700"
				} else {
					addr = cfg.Serve.Addr
				}
			}

			server, err := web.NewServer(db.NewStore(storeDB))
			if err != nil {
				return err
			}

			fmt.Printf("Status server on http://localhost%s\n", addr)
			return http.ListenAndServe(addr, server.Routes())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to serve.addr from config)")
	return cmd
}
