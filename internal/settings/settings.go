// Package settings resolves platform feature settings through the
// fallback chain remote value, configured default, disabled.
package settings

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// Well-known setting keys.
const (
	KeyAdClientID    = "ads.client_id"
	KeyWatchAdActive = "ads.watch_enabled"
)

// Origin says which link of the fallback chain produced a value.
type Origin string

const (
	OriginRemote   Origin = "remote"
	OriginConfig   Origin = "config"
	OriginDisabled Origin = "disabled"
)

// Value is a resolved setting.
type Value struct {
	Raw    string
	Origin Origin
}

// Enabled interprets the value as a feature switch. A disabled origin
// is always off; otherwise the raw value is parsed as a bool, with
// unparseable remote garbage treated as off.
func (v Value) Enabled() bool {
	if v.Origin == OriginDisabled {
		return false
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v.Raw))
	if err != nil {
		return false
	}
	return b
}

// Resolve applies the fallback chain to a single key. A present remote
// value wins; a non-empty configured default is next; otherwise the
// setting is disabled. Pure, so the chain itself is testable without a
// store.
func Resolve(remote *string, configured string) Value {
	if remote != nil && strings.TrimSpace(*remote) != "" {
		return Value{Raw: strings.TrimSpace(*remote), Origin: OriginRemote}
	}
	if strings.TrimSpace(configured) != "" {
		return Value{Raw: strings.TrimSpace(configured), Origin: OriginConfig}
	}
	return Value{Origin: OriginDisabled}
}

// Source looks up a remotely-managed setting. The second return value
// reports presence.
type Source interface {
	Get(ctx context.Context, key string) (string, bool, error)
}

// Resolver binds a remote source to configured defaults. Components
// receive a constructed Resolver instead of reaching into globals.
type Resolver struct {
	source   Source
	defaults map[string]string
}

// NewResolver creates a resolver over a remote source and the
// config-supplied defaults.
func NewResolver(source Source, defaults map[string]string) *Resolver {
	if defaults == nil {
		defaults = map[string]string{}
	}
	return &Resolver{source: source, defaults: defaults}
}

// Resolve fetches the remote value for key and applies the chain. A
// remote lookup failure is not a business error: the chain degrades to
// the configured default and the failure is logged.
func (r *Resolver) Resolve(ctx context.Context, key string) (Value, error) {
	var remote *string
	if r.source != nil {
		raw, ok, err := r.source.Get(ctx, key)
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Remote settings lookup failed, falling back")
			return Resolve(nil, r.defaults[key]), fmt.Errorf("failed to read remote setting %s: %w", key, err)
		}
		if ok {
			remote = &raw
		}
	}
	return Resolve(remote, r.defaults[key]), nil
}

// WatchAdEnabled resolves the watch-ad feature switch.
func (r *Resolver) WatchAdEnabled(ctx context.Context) bool {
	v, _ := r.Resolve(ctx, KeyWatchAdActive)
	return v.Enabled()
}

// AdClientID resolves the ad network client id. Empty means the ad
// integration is disabled.
func (r *Resolver) AdClientID(ctx context.Context) string {
	v, _ := r.Resolve(ctx, KeyAdClientID)
	if v.Origin == OriginDisabled {
		return ""
	}
	return v.Raw
}
