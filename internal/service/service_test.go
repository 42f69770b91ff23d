// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocgully/construct/internal/bbserr"
)

type fakeService struct {
	entered, exited bool
	onInput         func(Context, []byte) Action
}

func (f *fakeService) OnEnter(Context) ([]byte, error) {
	f.entered = true
	return []byte("welcome"), nil
}

func (f *fakeService) OnInput(ctx Context, input []byte) Action {
	if f.onInput != nil {
		return f.onInput(ctx, input)
	}
	return Action{Kind: Continue}
}

func (f *fakeService) OnExit(Context) { f.exited = true }

type failingService struct{}

func (failingService) OnEnter(Context) ([]byte, error) {
	return nil, errors.New("boom")
}
func (failingService) OnInput(Context, []byte) Action { return Action{Kind: Continue} }
func (failingService) OnExit(Context)                 {}

func TestRegistry_UnknownFactoryIsConfigurationError(t *testing.T) {
	_, err := NewRegistry([]Metadata{{ID: "games"}}, map[string]Factory{})
	require.Error(t, err)
	assert.True(t, bbserr.Is(err, bbserr.Configuration))
}

func TestRegistry_ListEnabledForLevelFiltersByLevelAndEnabled(t *testing.T) {
	entries := []Metadata{
		{ID: "a", MinLevel: 0, Enabled: true},
		{ID: "b", MinLevel: 10, Enabled: true},
		{ID: "c", MinLevel: 0, Enabled: false},
	}
	factories := map[string]Factory{
		"a": func() Service { return &fakeService{} },
		"b": func() Service { return &fakeService{} },
		"c": func() Service { return &fakeService{} },
	}
	r, err := NewRegistry(entries, factories)
	require.NoError(t, err)

	visible := r.ListEnabledForLevel(5)
	require.Len(t, visible, 1)
	assert.Equal(t, "a", visible[0].ID)
}

func TestDispatcher_SwitchCallsExitThenEnter(t *testing.T) {
	first := &fakeService{}
	second := &fakeService{}
	calls := 0
	factories := map[string]Factory{
		"first":  func() Service { calls++; return first },
		"second": func() Service { calls++; return second },
	}
	r, err := NewRegistry([]Metadata{{ID: "first"}, {ID: "second"}}, factories)
	require.NoError(t, err)

	d := NewDispatcher(r)
	render, err := d.Switch(Context{}, "first")
	require.NoError(t, err)
	assert.Equal(t, "welcome", string(render))
	assert.True(t, first.entered)
	assert.Equal(t, "first", d.ActiveID())

	_, err = d.Switch(Context{}, "second")
	require.NoError(t, err)
	assert.True(t, first.exited, "switching away must call OnExit on the outgoing service")
	assert.True(t, second.entered)
	assert.Equal(t, "second", d.ActiveID())
}

func TestDispatcher_SwitchOnEnterErrorFallsBack(t *testing.T) {
	factories := map[string]Factory{
		"bad": func() Service { return failingService{} },
	}
	r, err := NewRegistry([]Metadata{{ID: "bad"}}, factories)
	require.NoError(t, err)

	d := NewDispatcher(r)
	_, err = d.Switch(Context{}, "bad")
	assert.Error(t, err)
	assert.Empty(t, d.ActiveID(), "Dispatcher must have no active service after a failed OnEnter")
}

func TestDispatcher_DispatchRoutesToActiveService(t *testing.T) {
	svc := &fakeService{onInput: func(ctx Context, input []byte) Action {
		return Action{Kind: Continue, Render: input}
	}}
	factories := map[string]Factory{"x": func() Service { return svc }}
	r, err := NewRegistry([]Metadata{{ID: "x"}}, factories)
	require.NoError(t, err)

	d := NewDispatcher(r)
	_, err = d.Switch(Context{}, "x")
	require.NoError(t, err)

	action := d.Dispatch(Context{}, []byte("hi"))
	assert.Equal(t, []byte("hi"), action.Render)
}

func TestDispatcher_ExitActiveClearsService(t *testing.T) {
	svc := &fakeService{}
	factories := map[string]Factory{"x": func() Service { return svc }}
	r, err := NewRegistry([]Metadata{{ID: "x"}}, factories)
	require.NoError(t, err)

	d := NewDispatcher(r)
	_, _ = d.Switch(Context{}, "x")
	d.ExitActive(Context{})

	assert.True(t, svc.exited)
	assert.Empty(t, d.ActiveID())
}
