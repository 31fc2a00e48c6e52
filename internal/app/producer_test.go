package app

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sync/errgroup"
)

func TestWaitShutdown(t *testing.T) {
	t.Run("cancellation is a clean exit", func(t *testing.T) {
		var eg errgroup.Group
		eg.Go(func() error { return context.Canceled })
		assert.NoError(t, waitShutdown(&eg, "producer"))
	})

	t.Run("wrapped cancellation is a clean exit", func(t *testing.T) {
		var eg errgroup.Group
		eg.Go(func() error { return fmt.Errorf("drain loop: %w", context.Canceled) })
		assert.NoError(t, waitShutdown(&eg, "producer"))
	})

	t.Run("real errors are surfaced", func(t *testing.T) {
		var eg errgroup.Group
		readErr := fmt.Errorf("serial read: port gone")
		eg.Go(func() error { return readErr })
		assert.ErrorIs(t, waitShutdown(&eg, "producer"), readErr)
	})

	t.Run("no error passes through", func(t *testing.T) {
		var eg errgroup.Group
		eg.Go(func() error { return nil })
		assert.NoError(t, waitShutdown(&eg, "producer"))
	})
}
