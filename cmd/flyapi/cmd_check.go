package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func newCheckCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fc, err := o.loadConfig()
			if err != nil {
				return err
			}
			if err := fc.Validate(); err != nil {
				return err
			}

			reg := fc.Registry().Normalize()
			log := o.logger()
			dups := reg.Duplicates()
			categories := make([]string, 0, len(dups))
			for category := range dups {
				categories = append(categories, category)
			}
			sort.Strings(categories)
			for _, category := range categories {
				for _, name := range dups[category] {
					log.WithField("category", category).WithField("name", name).Warn("duplicate endpoint name, last definition wins")
				}
			}

			total := 0
			for _, endpoints := range reg {
				total += len(endpoints)
			}
			fmt.Fprintf(o.out, "config OK: %d categories, %d endpoints, base URL %s\n", len(reg), total, fc.Network.BaseURL())
			return nil
		},
	}
}
