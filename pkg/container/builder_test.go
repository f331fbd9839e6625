package container_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sunlightlinux/svcengine/pkg/container"
	"github.com/sunlightlinux/svcengine/pkg/errs"
)

func TestBuilder_ForeignThreadTouchIsRejected(t *testing.T) {
	c := container.New()
	defer c.Shutdown()

	b := c.NewBuilder()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		b.Provides("x")
	}()
	wg.Wait()

	_, err := b.Instance(&publishService{}).Install()
	require.Error(t, err)
	require.True(t, errors.Is(err, errs.ErrForeignThread))
}

func TestBuilder_SameGoroutineChainSucceeds(t *testing.T) {
	c := container.New()
	defer c.Shutdown()

	_, err := c.NewBuilder().
		Provides("y").
		Instance(&publishService{values: map[string]interface{}{"y": 1}}).
		Install()
	require.NoError(t, err)
}
