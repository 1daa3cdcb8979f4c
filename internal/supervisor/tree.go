// BipolTracker - Campus Shuttle Telemetry and Geofence Tracking
// Copyright 2026 BipolTracker Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ifauzeee/BipolTracker

package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
)

// Layer names a child supervisor of the tree.
type Layer string

const (
	// LayerData holds services that own persistent or in-memory state:
	// the batch writer, the retention reaper and cache sweepers.
	LayerData Layer = "data-layer"

	// LayerMessaging holds fan-out and downstream delivery: the broadcast
	// hub, the zone refresher, the NATS publisher and the legacy forwarder.
	LayerMessaging Layer = "messaging-layer"

	// LayerAPI holds the network listeners: HTTP and UDP.
	LayerAPI Layer = "api-layer"
)

// TreeConfig holds supervisor tree configuration.
type TreeConfig struct {
	// FailureThreshold is the number of failures before entering backoff.
	FailureThreshold float64

	// FailureDecay is the rate at which failures decay, in seconds.
	FailureDecay float64

	// FailureBackoff is how long a layer waits once the threshold is hit.
	FailureBackoff time.Duration

	// ShutdownTimeout bounds how long each service gets to stop.
	ShutdownTimeout time.Duration
}

// DefaultTreeConfig returns suture's own defaults.
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5.0,
		FailureDecay:     30.0,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

func (c TreeConfig) withDefaults() TreeConfig {
	d := DefaultTreeConfig()
	if c.FailureThreshold == 0 {
		c.FailureThreshold = d.FailureThreshold
	}
	if c.FailureDecay == 0 {
		c.FailureDecay = d.FailureDecay
	}
	if c.FailureBackoff == 0 {
		c.FailureBackoff = d.FailureBackoff
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = d.ShutdownTimeout
	}
	return c
}

// SupervisorTree owns every long-running service of the tracker.
//
// A crashing zone refresher or NATS publisher restarts inside the messaging
// layer without taking the HTTP and UDP listeners down with it.
type SupervisorTree struct {
	root   *suture.Supervisor
	layers map[Layer]*suture.Supervisor
	config TreeConfig

	mu    sync.Mutex
	names map[Layer][]string
}

// NewSupervisorTree builds the root supervisor "bipoltracker" with its three
// layers. Events are logged through logger.
func NewSupervisorTree(logger *slog.Logger, config TreeConfig) (*SupervisorTree, error) {
	if logger == nil {
		return nil, fmt.Errorf("supervisor: logger is required")
	}
	config = config.withDefaults()

	// MustHook has a pointer receiver.
	hook := (&sutureslog.Handler{Logger: logger}).MustHook()

	root := suture.New("bipoltracker", suture.Spec{
		EventHook:        hook,
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	})

	// Child supervisors inherit the root's event hook once added.
	childSpec := suture.Spec{
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	}

	t := &SupervisorTree{
		root:   root,
		layers: make(map[Layer]*suture.Supervisor, 3),
		config: config,
		names:  make(map[Layer][]string, 3),
	}
	for _, l := range []Layer{LayerData, LayerMessaging, LayerAPI} {
		sup := suture.New(string(l), childSpec)
		root.Add(sup)
		t.layers[l] = sup
	}
	return t, nil
}

// Root returns the root supervisor.
func (t *SupervisorTree) Root() *suture.Supervisor {
	return t.root
}

// Add places svc under layer.
func (t *SupervisorTree) Add(layer Layer, svc suture.Service) (suture.ServiceToken, error) {
	sup, ok := t.layers[layer]
	if !ok {
		return suture.ServiceToken{}, fmt.Errorf("supervisor: unknown layer %q", layer)
	}
	t.mu.Lock()
	t.names[layer] = append(t.names[layer], fmt.Sprint(svc))
	t.mu.Unlock()
	return sup.Add(svc), nil
}

// AddDataService adds svc to the data layer.
func (t *SupervisorTree) AddDataService(svc suture.Service) suture.ServiceToken {
	tok, _ := t.Add(LayerData, svc)
	return tok
}

// AddMessagingService adds svc to the messaging layer.
func (t *SupervisorTree) AddMessagingService(svc suture.Service) suture.ServiceToken {
	tok, _ := t.Add(LayerMessaging, svc)
	return tok
}

// AddAPIService adds svc to the API layer.
func (t *SupervisorTree) AddAPIService(svc suture.Service) suture.ServiceToken {
	tok, _ := t.Add(LayerAPI, svc)
	return tok
}

// Services returns the names of the services added to layer, in order.
func (t *SupervisorTree) Services(layer Layer) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.names[layer]...)
}

// RemoveFromLayer stops and removes a service previously added to layer.
// Tokens are only valid on the supervisor that issued them.
func (t *SupervisorTree) RemoveFromLayer(layer Layer, token suture.ServiceToken) error {
	sup, ok := t.layers[layer]
	if !ok {
		return fmt.Errorf("supervisor: unknown layer %q", layer)
	}
	return sup.Remove(token)
}

// Serve runs the tree until ctx is canceled.
func (t *SupervisorTree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

// ServeBackground runs the tree in a goroutine. The channel receives the
// result once the root stops.
func (t *SupervisorTree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

// UnstoppedServiceReport lists services that outlived the shutdown timeout.
func (t *SupervisorTree) UnstoppedServiceReport() ([]suture.UnstoppedService, error) {
	return t.root.UnstoppedServiceReport()
}
