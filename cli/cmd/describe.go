package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/sflowg/randomnode/runtime"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var describeOutput string

var describeCmd = &cobra.Command{
	Use:   "describe",
	Short: "Print the registration metadata of the hosted nodes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		descriptions := make([]runtime.NodeDescription, 0)
		for _, node := range registeredNodes() {
			descriptions = append(descriptions, node.Description())
		}

		out := cmd.OutOrStdout()
		switch describeOutput {
		case "yaml":
			enc := yaml.NewEncoder(out)
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(descriptions)
		case "json":
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(descriptions)
		default:
			return fmt.Errorf("unsupported output format %q (use yaml or json)", describeOutput)
		}
	},
}

func init() {
	describeCmd.Flags().StringVarP(&describeOutput, "output", "o", "yaml", "Output format: yaml or json")
}
