package main

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"impact-backend/internal/mqtt"
	"impact-backend/internal/services"
)

func TestConnectionHooksBeforeWiring(t *testing.T) {
	hooks := &connectionHooks{}

	assert.NotPanics(t, func() {
		hooks.connectionLost(errors.New("lost"))
		hooks.reconnected()
	})
}

func TestConnectionHooksConcurrentWiring(t *testing.T) {
	hooks := &connectionHooks{}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			hooks.connectionLost(errors.New("lost"))
			hooks.reconnected()
		}
	}()

	hooks.transport.Store(mqtt.NewTransport(nil, mqtt.DefaultTopicConfig(), nil))
	hooks.monitor.Store(services.NewMonitorService(nil, nil, services.DefaultMonitorServiceConfig(), nil))
	wg.Wait()

	assert.NotNil(t, hooks.monitor.Load())
	assert.Zero(t, hooks.transport.Load().Subscriptions())
}
