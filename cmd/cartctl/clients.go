package main

import (
	"fmt"

	"cart-service/internal/clientconfig"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var clientsFile string

var clientsCmd = &cobra.Command{
	Use:   "clients [id]",
	Short: "Print the client theme and feature table",
	Long: `Prints every known client, or the entry for one id. Unknown ids resolve
to the default client, the same way the HTTP API does.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		table, err := clientconfig.Load(clientsFile)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		defer enc.Close()

		if len(args) == 1 {
			return enc.Encode(table.Lookup(args[0]))
		}

		clients := make(map[string]clientconfig.Client, len(table.IDs()))
		for _, id := range table.IDs() {
			clients[id] = table.Lookup(id)
		}
		if err := enc.Encode(map[string]interface{}{"clients": clients}); err != nil {
			return fmt.Errorf("write clients: %w", err)
		}
		return nil
	},
}

func init() {
	clientsCmd.Flags().StringVarP(&clientsFile, "file", "f", "", "YAML file overriding the built-in clients")
}
