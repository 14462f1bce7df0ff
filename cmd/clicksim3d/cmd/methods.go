package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"clicksim3d/pkg/clicks"
)

func newMethodsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "methods",
		Short: "List the click sampling methods and the inputs they need",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "METHOD\tINPUTS\tCLICKS")
			for _, r := range clicks.Requirements() {
				inputs := "--pred"
				if r.Reference {
					inputs += " --ref"
				}
				if r.Intensity {
					inputs += " --image"
				}
				count := "one per entry"
				if r.MayOmit {
					count = "at most one per entry"
				}
				name := string(r.Method)
				if r.Method == clicks.DefaultMethod {
					name += " (default)"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", name, inputs, count)
			}
			return w.Flush()
		},
	}
}
