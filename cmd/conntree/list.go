package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"conntree/internal/app"
	"conntree/internal/domain"
	"conntree/internal/tree"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the connection tree",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _ := loadConfig(cmd)
		store, _, err := app.LoadTree(cfg.ConnectionsFile)
		if err != nil {
			return err
		}
		printTree(cmd.OutOrStdout(), store, store.Root(), 0)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func printTree(w io.Writer, store *tree.Store, node *domain.Node, depth int) {
	line := strings.Repeat("  ", depth) + node.Name
	if node.Kind.IsLeaf() && node.Hostname != "" {
		line += fmt.Sprintf("  %s %s", node.Protocol, node.Hostname)
		if node.Port > 0 {
			line += fmt.Sprintf(":%d", node.Port)
		}
	}
	fmt.Fprintln(w, line)
	for _, child := range store.Children(node.ID) {
		printTree(w, store, child, depth+1)
	}
}
