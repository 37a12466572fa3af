package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newEndpointsCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:     "endpoints [category]",
		Aliases: []string{"ls"},
		Short:   "List the endpoints of the registry",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fc, err := o.loadConfig()
			if err != nil {
				return err
			}
			reg := fc.Registry().Normalize()

			categories := reg.Categories()
			if len(args) == 1 {
				if _, ok := reg[args[0]]; !ok {
					return fmt.Errorf("category %q not found", args[0])
				}
				categories = []string{args[0]}
			}

			w := tabwriter.NewWriter(o.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "CATEGORY\tNAME\tMETHOD\tPATH\tKIND")
			for _, category := range categories {
				for _, ep := range reg[category] {
					kind := "mutation"
					if ep.Method.IsQuery() {
						kind = "query"
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", category, ep.Name, ep.Method, ep.Path, kind)
				}
			}
			return w.Flush()
		},
	}
}
