package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Krimson/eda-forensics/internal/profile"
)

func profileCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or save the kernel profile",
	}

	var format string
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch format {
			case "yaml":
				enc := yaml.NewEncoder(out)
				enc.SetIndent(2)
				if err := enc.Encode(a.prof); err != nil {
					return fmt.Errorf("failed to encode profile: %w", err)
				}
				return enc.Close()
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(a.prof)
			default:
				return fmt.Errorf("unknown format %q, want yaml or json", format)
			}
		},
	}
	show.Flags().StringVar(&format, "format", "yaml", "yaml or json")

	save := &cobra.Command{
		Use:   "save <path>",
		Short: "Write the effective profile to a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := profile.Save(a.prof, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "profile written to %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(show, save)
	return cmd
}
