package plugin

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
)

type fakePlugin struct {
	info       Info
	mu         sync.Mutex
	calls      []string
	configured map[string]any
	resources  map[string]any
	failStart  bool
}

func (p *fakePlugin) Info() Info { return p.info }

func (p *fakePlugin) Configure(cfg map[string]any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.configured = cfg
	return nil
}

func (p *fakePlugin) Init(*ExecutionContext) error {
	p.record("init")
	return nil
}

func (p *fakePlugin) Start(ctx *ExecutionContext) error {
	if p.failStart {
		return errors.New("start exploded")
	}
	p.record("start")
	p.mu.Lock()
	p.resources = ctx.Resources
	p.mu.Unlock()
	return nil
}

func (p *fakePlugin) Stop(*ExecutionContext) error {
	p.record("stop")
	return nil
}

func (p *fakePlugin) record(call string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, call)
}

func newTestManager(t *testing.T, opts ...Option) *Manager {
	t.Helper()
	m, err := NewManager(ManagerConfig{}, opts...)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func TestManagerLifecycle(t *testing.T) {
	m := newTestManager(t)
	p := &fakePlugin{info: Info{Name: "events to stdout", Category: TypeObserver}}
	if err := m.Register("obs", p, nil, IsolationPolicy{}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if state, _ := m.State("obs"); state != StateRegistered {
		t.Fatalf("expected registered state, got %s", state)
	}

	ctx := context.Background()
	if err := m.StartAll(ctx); err != nil {
		t.Fatalf("start all: %v", err)
	}
	if state, _ := m.State("obs"); state != StateStarted {
		t.Fatalf("expected started state, got %s", state)
	}
	// starting an already started plugin must be a no-op
	if err := m.Start(ctx, "obs"); err != nil {
		t.Fatalf("second start: %v", err)
	}

	if err := m.StopAll(ctx); err != nil {
		t.Fatalf("stop all: %v", err)
	}
	if state, _ := m.State("obs"); state != StateStopped {
		t.Fatalf("expected stopped state, got %s", state)
	}
	if err := m.Stop(ctx, "obs"); err != nil {
		t.Fatalf("second stop: %v", err)
	}

	want := []string{"init", "start", "stop"}
	if len(p.calls) != len(want) {
		t.Fatalf("expected calls %v, got %v", want, p.calls)
	}
	for i, call := range want {
		if p.calls[i] != call {
			t.Fatalf("call %d: expected %s, got %s", i, call, p.calls[i])
		}
	}
	if p.configured == nil {
		t.Fatal("expected configure to receive a non-nil map")
	}
}

func TestManagerRegisterValidation(t *testing.T) {
	m := newTestManager(t)
	if err := m.Register("", &fakePlugin{}, nil, IsolationPolicy{}); err == nil {
		t.Fatal("expected error for empty id")
	}
	if err := m.Register("x", nil, nil, IsolationPolicy{}); err == nil {
		t.Fatal("expected error for nil plugin")
	}
	mismatched := &fakePlugin{info: Info{ID: "other"}}
	if err := m.Register("x", mismatched, nil, IsolationPolicy{}); err == nil {
		t.Fatal("expected error for id mismatch")
	}
	p := &fakePlugin{}
	if err := m.Register("x", p, nil, IsolationPolicy{}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := m.Register("x", &fakePlugin{}, nil, IsolationPolicy{}); err == nil {
		t.Fatal("expected error for duplicate id")
	}
	infos := m.Infos()
	if len(infos) != 1 || infos[0].ID != "x" {
		t.Fatalf("expected merged info with id x, got %+v", infos)
	}
}

func TestManagerCapabilityPolicy(t *testing.T) {
	m := newTestManager(t)
	greedy := &fakePlugin{info: Info{Capabilities: []Capability{CapabilityNetwork}}}

	if err := m.Register("bare", greedy, nil, IsolationPolicy{}); err == nil {
		t.Fatal("expected error when capabilities lack a policy")
	}
	denied := IsolationPolicy{DeniedCapabilities: []Capability{CapabilityNetwork}}
	if err := m.Register("denied", greedy, nil, denied); err == nil {
		t.Fatal("expected error for denied capability")
	}
	narrow := IsolationPolicy{AllowedCapabilities: []Capability{CapabilityFilesystem}}
	if err := m.Register("narrow", greedy, nil, narrow); err == nil {
		t.Fatal("expected error for unlisted capability")
	}
	open := IsolationPolicy{AllowedCapabilities: []Capability{CapabilityNetwork}}
	if err := m.Register("open", greedy, nil, open); err != nil {
		t.Fatalf("register with allowed capability: %v", err)
	}
}

func TestManagerSharesResources(t *testing.T) {
	feed := make(chan map[string]any)
	m := newTestManager(t, WithResource(ResourceEventFeed, feed))
	p := &fakePlugin{info: Info{Category: TypeObserver}}
	if err := m.Register("obs", p, nil, IsolationPolicy{}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := m.Start(context.Background(), "obs"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, ok := p.resources[ResourceEventFeed]; !ok {
		t.Fatalf("expected %s resource, got %+v", ResourceEventFeed, p.resources)
	}
}

func TestManagerStartFailureKeepsState(t *testing.T) {
	m := newTestManager(t)
	p := &fakePlugin{failStart: true}
	if err := m.Register("flaky", p, nil, IsolationPolicy{}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := m.StartAll(context.Background()); err == nil {
		t.Fatal("expected start failure to propagate")
	}
	state, err := m.State("flaky")
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if state != StateInitialised {
		t.Fatalf("expected initialised state after failed start, got %s", state)
	}
}

type fakeLoader struct {
	plugins map[string]Plugin
	paths   []string
}

func (l *fakeLoader) Load(path string) (Plugin, error) {
	l.paths = append(l.paths, path)
	p, ok := l.plugins[path]
	if !ok {
		return nil, fmt.Errorf("no plugin at %s", path)
	}
	return p, nil
}

func TestManagerLoadsConfiguredPlugins(t *testing.T) {
	dir := filepath.Join("testdata", "plugins")
	soPath := filepath.Join(dir, "observer.so")
	loader := &fakeLoader{plugins: map[string]Plugin{
		soPath: &fakePlugin{info: Info{Category: TypeObserver}},
	}}
	cfg := ManagerConfig{
		PluginDir: dir,
		Plugins: map[string]PluginConfig{
			"observer": {Enabled: true, Path: "observer.so", Config: map[string]any{"level": "info"}},
			"disabled": {Enabled: false, Path: "missing.so"},
		},
	}
	m, err := NewManager(cfg, WithLoader(loader))
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if len(loader.paths) != 1 || loader.paths[0] != soPath {
		t.Fatalf("expected loader called once with %s, got %v", soPath, loader.paths)
	}
	if state, err := m.State("observer"); err != nil || state != StateRegistered {
		t.Fatalf("expected observer registered, got state %s err %v", state, err)
	}
	if _, err := m.State("disabled"); err == nil {
		t.Fatal("expected disabled plugin to stay unregistered")
	}
}
