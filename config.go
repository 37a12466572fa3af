package flyapi

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables overriding file values,
// for example FLYAPI_NETWORK_DOMAIN.
const EnvPrefix = "FLYAPI"

// FileConfig is the on-disk form of a network config plus registry.
type FileConfig struct {
	Network NetworkConfig    `json:"network" yaml:"network" mapstructure:"network"`
	Apis    []CategoryConfig `json:"apis" yaml:"apis" mapstructure:"apis"`
}

// CategoryConfig lists the endpoints of one category. Categories are kept
// as a list so their names survive case-insensitive config keys.
type CategoryConfig struct {
	Category  string     `json:"category" yaml:"category" mapstructure:"category"`
	Endpoints []Endpoint `json:"endpoints" yaml:"endpoints" mapstructure:"endpoints"`
}

// Registry converts the category list into a Registry. Repeated categories
// are concatenated in file order.
func (fc *FileConfig) Registry() Registry {
	reg := make(Registry, len(fc.Apis))
	for _, c := range fc.Apis {
		reg[c.Category] = append(reg[c.Category], c.Endpoints...)
	}
	return reg
}

// Validate checks the network section and the registry.
func (fc *FileConfig) Validate() error {
	if err := fc.Network.Validate(); err != nil {
		return err
	}
	return fc.Registry().Normalize().Validate()
}

// LoadConfig reads a YAML, JSON or TOML file. Missing network values fall
// back to DefaultNetworkConfig and FLYAPI_* variables override the file.
func LoadConfig(path string) (*FileConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultNetworkConfig()
	v.SetDefault("network.ssl", defaults.SSL)
	v.SetDefault("network.domain", defaults.Domain)
	v.SetDefault("network.port", defaults.Port)
	v.SetDefault("network.wsport", 0)
	v.SetDefault("network.prefix", defaults.Prefix)
	v.SetDefault("network.timeout", defaults.Timeout)

	if err := v.ReadInConfig(); err != nil {
		return nil, newConfigurationError(fmt.Sprintf("failed to read config %s", path), err)
	}

	var fc FileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return nil, newConfigurationError(fmt.Sprintf("failed to decode config %s", path), err)
	}
	if fc.Network.Headers == nil {
		fc.Network.Headers = defaults.Headers
	}
	return &fc, nil
}

// ApplyConfig configures s from fc.
func (s *State) ApplyConfig(fc *FileConfig) error {
	return s.ConfigureApis(fc.Registry(), fc.Network)
}

// ConfigWatcher reloads a config file into a State when it changes.
type ConfigWatcher struct {
	path     string
	state    *State
	onReload func(*FileConfig, error)
	watcher  *fsnotify.Watcher
	debounce time.Duration

	closeOnce sync.Once
	done      chan struct{}
}

// WatchConfig applies path to state every time the file is written or
// replaced, until ctx ends or Close is called. onReload, if set, receives
// the outcome of every reload.
func WatchConfig(ctx context.Context, path string, state *State, onReload func(*FileConfig, error)) (*ConfigWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, newConfigurationError("invalid config path", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	// Watch the directory so editors that replace the file are seen.
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %q: %w", filepath.Dir(abs), err)
	}

	w := &ConfigWatcher{
		path:     abs,
		state:    state,
		onReload: onReload,
		watcher:  watcher,
		debounce: 100 * time.Millisecond,
		done:     make(chan struct{}),
	}
	go w.loop(ctx)
	return w, nil
}

// Close stops watching.
func (w *ConfigWatcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.watcher.Close()
	})
	return err
}

func (w *ConfigWatcher) loop(ctx context.Context) {
	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, w.reload)
			mu.Unlock()
		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
		case <-ctx.Done():
			w.Close()
			return
		case <-w.done:
			return
		}
	}
}

func (w *ConfigWatcher) reload() {
	select {
	case <-w.done:
		return
	default:
	}
	fc, err := LoadConfig(w.path)
	if err == nil {
		err = w.state.ApplyConfig(fc)
	}
	if err != nil {
		if client := w.state.Client(); client != nil {
			client.Logger().Warn("config reload failed", "path", w.path, "error", err)
		}
	}
	if w.onReload != nil {
		w.onReload(fc, err)
	}
}
