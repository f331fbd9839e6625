package container_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sunlightlinux/svcengine/pkg/container"
	"github.com/sunlightlinux/svcengine/pkg/controller"
	"github.com/sunlightlinux/svcengine/pkg/depend"
)

type publishService struct {
	values map[string]interface{}
}

func (s *publishService) Start(ctx *controller.StartContext) {
	for name, v := range s.values {
		ctx.SetValue(name, v)
	}
	ctx.Complete()
}

func (s *publishService) Stop(ctx *controller.StopContext) { ctx.Complete() }

func TestContainer_InstallAndAwaitStability(t *testing.T) {
	c := container.New(container.WithWorkers(2))
	defer c.Shutdown()

	_, err := c.NewBuilder().
		Named("network").
		Provides("net.link").
		Instance(&publishService{values: map[string]interface{}{"net.link": "up"}}).
		Mode(controller.Active).
		Install()
	require.NoError(t, err)

	require.True(t, c.AwaitStability(2*time.Second))

	ctl, ok := c.ControllerOfValue("net.link")
	require.True(t, ok)
	require.Equal(t, controller.Up, ctl.State())

	v, ok := ctl.Value("net.link")
	require.True(t, ok)
	require.Equal(t, "up", v)
}

func TestContainer_DependencyChainStartsInOrder(t *testing.T) {
	c := container.New(container.WithWorkers(4))
	defer c.Shutdown()

	_, err := c.NewBuilder().
		Named("network").
		Provides("net.link").
		Instance(&publishService{values: map[string]interface{}{"net.link": 1}}).
		Mode(controller.Active).
		Install()
	require.NoError(t, err)

	_, err = c.NewBuilder().
		Named("database").
		Requires(depend.Direct, "net.link").
		Provides("db.conn").
		Instance(&publishService{values: map[string]interface{}{"db.conn": 1}}).
		Mode(controller.Active).
		Install()
	require.NoError(t, err)

	require.True(t, c.AwaitStability(2*time.Second))

	db, ok := c.ControllerOfValue("db.conn")
	require.True(t, ok)
	require.Equal(t, controller.Up, db.State())
}

func TestContainer_DuplicateProviderRejected(t *testing.T) {
	c := container.New()
	defer c.Shutdown()

	_, err := c.NewBuilder().Provides("x").Instance(&publishService{}).Install()
	require.NoError(t, err)

	_, err = c.NewBuilder().Provides("x").Instance(&publishService{}).Install()
	require.Error(t, err)
}

func TestContainer_RequireAndProvideSameNameRejected(t *testing.T) {
	c := container.New()
	defer c.Shutdown()

	_, err := c.NewBuilder().
		Requires(depend.Direct, "x").
		Provides("x").
		Instance(&publishService{}).
		Install()
	require.Error(t, err)
}

func TestContainer_CycleRejected(t *testing.T) {
	c := container.New()
	defer c.Shutdown()

	_, err := c.NewBuilder().
		Named("a").
		Requires(depend.Direct, "b").
		Provides("a-out").
		Instance(&publishService{values: map[string]interface{}{"a-out": 1}}).
		Install()
	require.NoError(t, err)

	_, err = c.NewBuilder().
		Named("b").
		Requires(depend.Direct, "a-out").
		Provides("b").
		Instance(&publishService{values: map[string]interface{}{"b": 1}}).
		Install()
	require.Error(t, err, "installing b, which requires a-out while providing the name a itself requires, should be rejected as a cycle")
}

func TestContainer_MissingDependencyLeavesProblemState(t *testing.T) {
	c := container.New()
	defer c.Shutdown()

	_, err := c.NewBuilder().
		Named("api").
		Requires(depend.Direct, "db.conn").
		Provides("api.endpoint").
		Instance(&publishService{values: map[string]interface{}{"api.endpoint": 1}}).
		Mode(controller.Active).
		Install()
	require.NoError(t, err)

	ctl, ok := c.ControllerOfValue("api.endpoint")
	require.True(t, ok)
	require.Eventually(t, func() bool {
		return ctl.State() == controller.Problem
	}, time.Second, 10*time.Millisecond)
	require.Equal(t, []string{"db.conn"}, ctl.Missing())
}

func TestContainer_ShutdownDrainsToRemoved(t *testing.T) {
	c := container.New()

	ctl, err := c.NewBuilder().
		Named("network").
		Provides("net.link").
		Instance(&publishService{values: map[string]interface{}{"net.link": 1}}).
		Mode(controller.Active).
		Install()
	require.NoError(t, err)
	require.True(t, c.AwaitStability(time.Second))

	c.Shutdown()
	require.True(t, c.AwaitTermination(2*time.Second))
	require.Equal(t, controller.Removed, ctl.State())
	require.True(t, c.IsShutdownComplete())
}

func TestContainer_OnDemandStartsFromOptionalDependent(t *testing.T) {
	c := container.New()
	defer c.Shutdown()

	_, err := c.NewBuilder().
		Named("cache").
		Provides("cache.pool").
		Instance(&publishService{values: map[string]interface{}{"cache.pool": 1}}).
		Mode(controller.OnDemand).
		Install()
	require.NoError(t, err)

	cache, ok := c.ControllerOfValue("cache.pool")
	require.True(t, ok)
	require.Equal(t, controller.Down, cache.State())

	_, err = c.NewBuilder().
		Named("api").
		Requires(depend.Optional, "cache.pool").
		Provides("api.endpoint").
		Instance(&publishService{values: map[string]interface{}{"api.endpoint": 1}}).
		Mode(controller.Active).
		Install()
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return cache.State() == controller.Up
	}, time.Second, 10*time.Millisecond, "an active optional dependent should still drive demand on its target")
}
