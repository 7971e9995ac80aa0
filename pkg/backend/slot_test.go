package backend

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysdig/attachment-virus-scanner/pkg/config"
)

type fakeBackend struct {
	name string
	opts config.Options
}

func (f *fakeBackend) Type() string           { return f.name }
func (f *fakeBackend) Config() config.Options { return f.opts }

func nullLogger() *logrus.Logger {
	logger, _ := test.NewNullLogger()
	return logger
}

// newTestSlot registers "alpha" and a failing "broken" type; built counts
// factory calls
func newTestSlot(built *int) *Slot[*fakeBackend] {
	registry := NewRegistry[*fakeBackend](KindStorage)
	registry.Register("alpha", func(opts config.Options, _ *logrus.Logger) (*fakeBackend, error) {
		*built++
		return &fakeBackend{name: "alpha", opts: opts}, nil
	})
	registry.Register("broken", func(config.Options, *logrus.Logger) (*fakeBackend, error) {
		return nil, errors.New("cannot connect")
	})
	return NewSlot(registry, nullLogger())
}

func TestRegistry(t *testing.T) {
	var built int
	slot := newTestSlot(&built)

	assert.Equal(t, []string{"alpha", "broken"}, slot.registry.Names())
	assert.Equal(t, KindStorage, slot.registry.Kind())

	_, err := slot.LookupType("gamma")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Panics(t, func() {
		slot.registry.Register("alpha", func(config.Options, *logrus.Logger) (*fakeBackend, error) { return nil, nil })
	})
	assert.Panics(t, func() { slot.registry.Register("", nil) })
}

func TestSlotSetForms(t *testing.T) {
	tests := []struct {
		name     string
		value    interface{}
		wantOpts config.Options
		wantErr  error
	}{
		{name: "type name", value: "alpha", wantOpts: config.Options{}},
		{name: "spec", value: Spec{Type: "alpha", Options: config.Options{"dir": "/tmp"}}, wantOpts: config.Options{"dir": "/tmp"}},
		{name: "spec pointer", value: &Spec{Type: "alpha"}, wantOpts: config.Options{}},
		{name: "tuple", value: []interface{}{"alpha", map[string]interface{}{"n": 1}}, wantOpts: config.Options{"n": 1}},
		{name: "tuple without options", value: []interface{}{"alpha"}, wantOpts: config.Options{}},
		{name: "unknown name", value: "gamma", wantErr: ErrNotFound},
		{name: "empty name", value: "", wantErr: ErrInvalidInput},
		{name: "nil spec pointer", value: (*Spec)(nil), wantErr: ErrInvalidInput},
		{name: "empty tuple", value: []interface{}{}, wantErr: ErrInvalidInput},
		{name: "tuple with bad name", value: []interface{}{42}, wantErr: ErrInvalidInput},
		{name: "tuple with bad options", value: []interface{}{"alpha", "opts"}, wantErr: ErrInvalidInput},
		{name: "unsupported value", value: 3.14, wantErr: ErrInvalidInput},
		{name: "nil instance", value: (*fakeBackend)(nil), wantErr: ErrInvalidInput},
		{name: "instance of unregistered type", value: &fakeBackend{name: "custom"}, wantErr: ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var built int
			slot := newTestSlot(&built)

			err := slot.Set(tt.value)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				var cfgErr *ConfigurationError
				assert.ErrorAs(t, err, &cfgErr)
				return
			}
			require.NoError(t, err)

			got, err := slot.Get()
			require.NoError(t, err)
			assert.Equal(t, "alpha", got.Type())
			assert.Equal(t, tt.wantOpts, got.Config())
		})
	}
}

func TestSlotLazyConstruction(t *testing.T) {
	var built int
	slot := newTestSlot(&built)

	_, err := slot.Get()
	assert.ErrorIs(t, err, ErrNotConfigured)

	require.NoError(t, slot.Set("alpha"))
	assert.Zero(t, built, "Set does not construct")

	first, err := slot.Get()
	require.NoError(t, err)
	second, err := slot.Get()
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, built)

	slot.Destroy()
	third, err := slot.Get()
	require.NoError(t, err)
	assert.NotSame(t, first, third)
	assert.Equal(t, 2, built)

	def, ok := slot.Definition()
	require.True(t, ok)
	assert.Equal(t, "alpha", def.Type)
}

func TestSlotAdoptsInstance(t *testing.T) {
	var built int
	slot := newTestSlot(&built)

	instance := &fakeBackend{name: "alpha", opts: config.Options{"k": "v"}}
	require.NoError(t, slot.Set(instance))

	got, err := slot.Get()
	require.NoError(t, err)
	assert.Same(t, instance, got)
	assert.Zero(t, built)

	def, ok := slot.Definition()
	require.True(t, ok)
	assert.Equal(t, config.Options{"k": "v"}, def.Options)

	// Definitions are copies
	def.Options["k"] = "changed"
	again, _ := slot.Definition()
	assert.Equal(t, "v", again.Options["k"])
}

func TestSlotFactoryError(t *testing.T) {
	var built int
	slot := newTestSlot(&built)

	require.NoError(t, slot.Set("broken"))
	_, err := slot.Get()
	assert.EqualError(t, err, "cannot connect")

	// A failed replacement keeps the previous definition
	require.NoError(t, slot.Set("alpha"))
	_, err = slot.Get()
	require.NoError(t, err)
	assert.ErrorIs(t, slot.Set("gamma"), ErrNotFound)
	def, _ := slot.Definition()
	assert.Equal(t, "alpha", def.Type)
}

func TestSlotRebuildsAdoptedInstance(t *testing.T) {
	var built int
	slot := newTestSlot(&built)

	instance := &fakeBackend{name: "alpha", opts: config.Options{"dir": "/srv"}}
	require.NoError(t, slot.Set(instance))

	slot.Destroy()
	rebuilt, err := slot.Get()
	require.NoError(t, err)

	assert.NotSame(t, instance, rebuilt)
	assert.Equal(t, "alpha", rebuilt.Type())
	assert.Equal(t, config.Options{"dir": "/srv"}, rebuilt.Config())
	assert.Equal(t, 1, built)
}

func TestSlotRejectedInstanceKeepsState(t *testing.T) {
	var built int
	slot := newTestSlot(&built)
	require.NoError(t, slot.Set("alpha"))
	current, err := slot.Get()
	require.NoError(t, err)

	assert.ErrorIs(t, slot.Set(&fakeBackend{name: "custom"}), ErrNotFound)
	assert.ErrorIs(t, slot.Set((*fakeBackend)(nil)), ErrInvalidInput)

	got, err := slot.Get()
	require.NoError(t, err)
	assert.Same(t, current, got)
}
