package manager

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Options configures a Manager. Start from DefaultOptions; zero values
// without a meaning of their own (paths, scale, interval, concurrency) fall
// back to the defaults.
type Options struct {
	// ManifestPath is a file path or an http(s) URL. URLs are read-only.
	ManifestPath     string `yaml:"manifest_path"`
	TemplateBasePath string `yaml:"template_base_path"`

	// Raycast picking ignores these names, case insensitive.
	ExcludedObjectNames NameList `yaml:"excluded_object_names"`
	// Scene objects with these names replace the camera as observers.
	ReferenceObjectNames NameList `yaml:"reference_object_names"`

	SpawnDistance         float32 `yaml:"spawn_distance"`
	DefaultRenderDistance float32 `yaml:"default_render_distance"`
	SpawnScale            float32 `yaml:"spawn_scale"`

	TickInterval           time.Duration `yaml:"tick_interval"`
	MaterializeConcurrency int           `yaml:"materialize_concurrency"`
	// GridCellSize enables the spatial grid when > 0.
	GridCellSize float32 `yaml:"grid_cell_size"`

	WatchManifest bool `yaml:"watch_manifest"`
	// RemoteObserverAddr starts the websocket observer feed when set.
	RemoteObserverAddr string `yaml:"remote_observer_addr"`
}

func DefaultOptions() Options {
	return Options{
		ManifestPath:           "prefab-manager.json",
		TemplateBasePath:       "prefabs",
		ExcludedObjectNames:    NameList{"ROGUE_INTERNAL_SKYBOX", "TerrainCollider"},
		ReferenceObjectNames:   NameList{},
		SpawnDistance:          10,
		DefaultRenderDistance:  10000,
		SpawnScale:             1,
		TickInterval:           100 * time.Millisecond,
		MaterializeConcurrency: 8,
	}
}

// LoadOptions reads a YAML options file. Keys missing from the file keep
// their defaults.
func LoadOptions(path string) (Options, error) {
	opts := DefaultOptions()
	data, err := os.ReadFile(path)
	if err != nil {
		return opts, fmt.Errorf("manager: load options %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return DefaultOptions(), fmt.Errorf("manager: unmarshal options %s: %w", path, err)
	}
	if err := opts.Validate(); err != nil {
		return DefaultOptions(), fmt.Errorf("manager: options %s: %w", path, err)
	}
	return opts.withDefaults(), nil
}

func (o Options) Validate() error {
	var errs []error
	if o.SpawnDistance < 0 {
		errs = append(errs, errors.New("spawn_distance must not be negative"))
	}
	if o.DefaultRenderDistance < 0 {
		errs = append(errs, errors.New("default_render_distance must not be negative"))
	}
	if o.SpawnScale < 0 {
		errs = append(errs, errors.New("spawn_scale must not be negative"))
	}
	if o.TickInterval < 0 {
		errs = append(errs, errors.New("tick_interval must not be negative"))
	}
	if o.MaterializeConcurrency < 0 {
		errs = append(errs, errors.New("materialize_concurrency must not be negative"))
	}
	if o.GridCellSize < 0 {
		errs = append(errs, errors.New("grid_cell_size must not be negative"))
	}
	return errors.Join(errs...)
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.ManifestPath == "" {
		o.ManifestPath = def.ManifestPath
	}
	if o.TemplateBasePath == "" {
		o.TemplateBasePath = def.TemplateBasePath
	}
	if o.SpawnScale == 0 {
		o.SpawnScale = def.SpawnScale
	}
	if o.TickInterval == 0 {
		o.TickInterval = def.TickInterval
	}
	if o.MaterializeConcurrency == 0 {
		o.MaterializeConcurrency = def.MaterializeConcurrency
	}
	return o
}

// NameList decodes from either a YAML sequence or a comma separated string.
type NameList []string

func (n *NameList) UnmarshalYAML(value *yaml.Node) error {
	var raw []string
	switch value.Kind {
	case yaml.ScalarNode:
		raw = strings.Split(value.Value, ",")
	case yaml.SequenceNode:
		if err := value.Decode(&raw); err != nil {
			return err
		}
	default:
		return fmt.Errorf("names must be a list or a comma separated string")
	}

	names := make(NameList, 0, len(raw))
	for _, name := range raw {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	*n = names
	return nil
}
