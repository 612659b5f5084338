package settings

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_Chain(t *testing.T) {
	remote := func(s string) *string { return &s }

	tests := []struct {
		name       string
		remote     *string
		configured string
		wantRaw    string
		wantOrigin Origin
	}{
		{"remote wins over config", remote("remote-id"), "config-id", "remote-id", OriginRemote},
		{"missing remote falls to config", nil, "config-id", "config-id", OriginConfig},
		{"blank remote falls to config", remote("   "), "config-id", "config-id", OriginConfig},
		{"nothing set means disabled", nil, "", "", OriginDisabled},
		{"blank config means disabled", nil, "  ", "", OriginDisabled},
		{"remote value is trimmed", remote(" id-77 "), "", "id-77", OriginRemote},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Resolve(tt.remote, tt.configured)
			assert.Equal(t, tt.wantRaw, v.Raw)
			assert.Equal(t, tt.wantOrigin, v.Origin)
		})
	}
}

func TestValue_Enabled(t *testing.T) {
	tests := []struct {
		name     string
		value    Value
		expected bool
	}{
		{"remote true", Value{Raw: "true", Origin: OriginRemote}, true},
		{"remote 1", Value{Raw: "1", Origin: OriginRemote}, true},
		{"remote false", Value{Raw: "false", Origin: OriginRemote}, false},
		{"config true", Value{Raw: "true", Origin: OriginConfig}, true},
		{"disabled origin always off", Value{Raw: "true", Origin: OriginDisabled}, false},
		{"garbage is off", Value{Raw: "yes please", Origin: OriginRemote}, false},
		{"empty is off", Value{Origin: OriginConfig}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.value.Enabled())
		})
	}
}

type sourceFunc func(ctx context.Context, key string) (string, bool, error)

func (f sourceFunc) Get(ctx context.Context, key string) (string, bool, error) {
	return f(ctx, key)
}

func TestResolver_RemoteValue(t *testing.T) {
	source := sourceFunc(func(_ context.Context, key string) (string, bool, error) {
		if key == KeyAdClientID {
			return "remote-client", true, nil
		}
		return "", false, nil
	})

	r := NewResolver(source, map[string]string{KeyAdClientID: "config-client"})

	v, err := r.Resolve(context.Background(), KeyAdClientID)
	require.NoError(t, err)
	assert.Equal(t, "remote-client", v.Raw)
	assert.Equal(t, OriginRemote, v.Origin)
}

func TestResolver_FallsBackToConfig(t *testing.T) {
	source := sourceFunc(func(_ context.Context, _ string) (string, bool, error) {
		return "", false, nil
	})

	r := NewResolver(source, map[string]string{KeyAdClientID: "config-client"})

	v, err := r.Resolve(context.Background(), KeyAdClientID)
	require.NoError(t, err)
	assert.Equal(t, "config-client", v.Raw)
	assert.Equal(t, OriginConfig, v.Origin)
}

func TestResolver_SourceFailureDegrades(t *testing.T) {
	source := sourceFunc(func(_ context.Context, _ string) (string, bool, error) {
		return "", false, errors.New("store down")
	})

	r := NewResolver(source, map[string]string{KeyWatchAdActive: "true"})

	v, err := r.Resolve(context.Background(), KeyWatchAdActive)
	assert.Error(t, err, "store failure is reported")
	assert.Equal(t, OriginConfig, v.Origin, "but the chain still resolves")
	assert.True(t, v.Enabled())
}

func TestResolver_NilSourceAndNoDefaults(t *testing.T) {
	r := NewResolver(nil, nil)

	v, err := r.Resolve(context.Background(), KeyWatchAdActive)
	require.NoError(t, err)
	assert.Equal(t, OriginDisabled, v.Origin)
	assert.False(t, r.WatchAdEnabled(context.Background()))
	assert.Empty(t, r.AdClientID(context.Background()))
}

func TestResolver_Helpers(t *testing.T) {
	source := sourceFunc(func(_ context.Context, key string) (string, bool, error) {
		switch key {
		case KeyWatchAdActive:
			return "true", true, nil
		case KeyAdClientID:
			return "net-123", true, nil
		}
		return "", false, nil
	})

	r := NewResolver(source, nil)

	assert.True(t, r.WatchAdEnabled(context.Background()))
	assert.Equal(t, "net-123", r.AdClientID(context.Background()))
}
