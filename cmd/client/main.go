package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fernwick/relaychat/internal/client"
)

func main() {
	cmd := &cobra.Command{
		Use:          "relaychat-client",
		Short:        "Interactive relaychat terminal client",
		SilenceUsage: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			fmt.Println("relaychat client - /login <host> <port> <name> to begin, /quit to exit")
			session := client.NewSession(os.Stdout)
			return session.Run(os.Stdin)
		},
	}
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
