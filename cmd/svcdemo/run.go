package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/sunlightlinux/svcengine/pkg/container"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Install the demo graph, wait for it to settle, and print the resulting values",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := container.New(container.WithWorkers(flagWorkers), container.WithLogger(newLogger()))
		defer c.Shutdown()

		if err := buildDemoGraph(c); err != nil {
			return err
		}

		if !c.AwaitStability(flagStabilityTimeout) {
			return fmt.Errorf("graph did not settle within %s (%d services still unstable)",
				flagStabilityTimeout, c.UnstableCount())
		}

		names := c.ValueNames()
		sort.Strings(names)
		for _, name := range names {
			ctl, ok := c.ControllerOfValue(name)
			if !ok {
				continue
			}
			v, _ := ctl.Value(name)
			fmt.Printf("%-16s = %v\n", name, v)
		}
		return nil
	},
}
