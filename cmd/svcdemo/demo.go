package main

import (
	"fmt"

	"github.com/sunlightlinux/svcengine/pkg/container"
	"github.com/sunlightlinux/svcengine/pkg/controller"
	"github.com/sunlightlinux/svcengine/pkg/depend"
)

// demoService is a toy Service: it publishes a canned value under each
// name it provides and completes immediately.
type demoService struct {
	provides []string
}

func (s *demoService) Start(ctx *controller.StartContext) {
	for _, name := range s.provides {
		ctx.SetValue(name, name+"-value")
	}
	ctx.Complete()
}

func (s *demoService) Stop(ctx *controller.StopContext) {
	ctx.Complete()
}

// buildDemoGraph installs a small illustrative graph:
//
//	network (ACTIVE)  --> database (ACTIVE) --> cache (ON_DEMAND)
//	                                        \--> api (ACTIVE, optional cache)
func buildDemoGraph(c *container.Container) error {
	if _, err := c.NewBuilder().
		Named("network").
		Provides("net.link").
		Instance(&demoService{provides: []string{"net.link"}}).
		Mode(controller.Active).
		Install(); err != nil {
		return fmt.Errorf("install network: %w", err)
	}

	if _, err := c.NewBuilder().
		Named("database").
		Requires(depend.Direct, "net.link").
		Provides("db.conn").
		Instance(&demoService{provides: []string{"db.conn"}}).
		Mode(controller.Active).
		Install(); err != nil {
		return fmt.Errorf("install database: %w", err)
	}

	if _, err := c.NewBuilder().
		Named("cache").
		Requires(depend.Direct, "db.conn").
		Provides("cache.pool").
		Instance(&demoService{provides: []string{"cache.pool"}}).
		Mode(controller.OnDemand).
		Install(); err != nil {
		return fmt.Errorf("install cache: %w", err)
	}

	if _, err := c.NewBuilder().
		Named("api").
		Requires(depend.Direct, "db.conn").
		Requires(depend.Optional, "cache.pool").
		Provides("api.endpoint").
		Instance(&demoService{provides: []string{"api.endpoint"}}).
		Mode(controller.Active).
		Install(); err != nil {
		return fmt.Errorf("install api: %w", err)
	}

	return nil
}
