package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/sunlightlinux/svcengine/pkg/container"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Install the demo graph, wait for it to settle, and print each service's state",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := container.New(container.WithWorkers(flagWorkers), container.WithLogger(newLogger()))
		defer c.Shutdown()

		if err := buildDemoGraph(c); err != nil {
			return err
		}
		c.AwaitStability(flagStabilityTimeout)

		names := c.ValueNames()
		sort.Strings(names)
		for _, name := range names {
			ctl, ok := c.ControllerOfValue(name)
			if !ok {
				continue
			}
			line := fmt.Sprintf("%-16s state=%-14s mode=%-9s", ctl.Name(), ctl.State(), ctl.Mode())
			if missing := ctl.Missing(); len(missing) > 0 {
				line += fmt.Sprintf(" missing=%v", missing)
			}
			if reason := ctl.Reason(); reason != nil {
				line += fmt.Sprintf(" reason=%v", reason)
			}
			fmt.Println(line)
		}
		return nil
	},
}
