package world

import (
	"errors"
	"fmt"
	"image/color"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	"prefabeditor/internal/components"
	"prefabeditor/internal/engine"

	"github.com/go-gl/mathgl/mgl32"
	"gopkg.in/yaml.v3"
)

var ErrUnknownTemplate = errors.New("world: unknown template")

// --- YAML types ---

type TemplateSpec struct {
	Name     string         `yaml:"name"`
	Tags     []string       `yaml:"tags,omitempty"`
	Position []float32      `yaml:"position,omitempty"`
	Rotation []float32      `yaml:"rotation,omitempty"`
	Scale    []float32      `yaml:"scale,omitempty"`
	Parts    []PartSpec     `yaml:"parts,omitempty"`
	Children []TemplateSpec `yaml:"children,omitempty"`
}

type PartSpec struct {
	Mesh   string    `yaml:"mesh"`
	Size   []float32 `yaml:"size"`
	Offset []float32 `yaml:"offset,omitempty"`
	Color  *Color    `yaml:"color,omitempty"`
}

// --- Color mapping ---

var colorByName = map[string]color.NRGBA{
	"Red":       {R: 230, G: 41, B: 55, A: 255},
	"Blue":      {R: 0, G: 121, B: 241, A: 255},
	"Green":     {R: 0, G: 228, B: 48, A: 255},
	"Purple":    {R: 200, G: 122, B: 255, A: 255},
	"Orange":    {R: 255, G: 161, B: 0, A: 255},
	"Yellow":    {R: 253, G: 249, B: 0, A: 255},
	"Pink":      {R: 255, G: 109, B: 194, A: 255},
	"SkyBlue":   {R: 102, G: 191, B: 255, A: 255},
	"Lime":      {R: 0, G: 158, B: 47, A: 255},
	"Magenta":   {R: 255, G: 0, B: 255, A: 255},
	"White":     {R: 255, G: 255, B: 255, A: 255},
	"LightGray": {R: 200, G: 200, B: 200, A: 255},
	"Gray":      {R: 130, G: 130, B: 130, A: 255},
	"DarkGray":  {R: 80, G: 80, B: 80, A: 255},
	"Black":     {R: 0, G: 0, B: 0, A: 255},
	"Brown":     {R: 127, G: 106, B: 79, A: 255},
	"Beige":     {R: 211, G: 176, B: 131, A: 255},
	"Maroon":    {R: 190, G: 33, B: 55, A: 255},
	"Gold":      {R: 255, G: 203, B: 0, A: 255},
}

var defaultPartColor = colorByName["LightGray"]

// Color accepts either a named color ("SkyBlue") or hex ("#rrggbb", "#rrggbbaa").
type Color struct {
	color.NRGBA
}

func (c *Color) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("color must be a string")
	}
	if named, ok := colorByName[value.Value]; ok {
		c.NRGBA = named
		return nil
	}

	s := strings.TrimPrefix(value.Value, "#")
	if len(s) != 6 && len(s) != 8 {
		return fmt.Errorf("invalid color format: %s", value.Value)
	}

	parse := func(start int) (uint8, error) {
		v, err := strconv.ParseUint(s[start:start+2], 16, 8)
		return uint8(v), err
	}

	var rgba [4]uint8
	rgba[3] = 255
	for i := 0; i < len(s)/2; i++ {
		v, err := parse(i * 2)
		if err != nil {
			return fmt.Errorf("invalid color format: %s", value.Value)
		}
		rgba[i] = v
	}
	c.NRGBA = color.NRGBA{R: rgba[0], G: rgba[1], B: rgba[2], A: rgba[3]}
	return nil
}

func (c Color) MarshalYAML() (any, error) {
	return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A), nil
}

// --- Registry ---

// Templates resolves template paths to specs, reading <base>/<path>.yaml on
// first use and caching the result until Invalidate.
type Templates struct {
	basePath string

	mu    sync.RWMutex
	cache map[string]*TemplateSpec
}

func NewTemplates(basePath string) *Templates {
	return &Templates{
		basePath: basePath,
		cache:    make(map[string]*TemplateSpec),
	}
}

func (t *Templates) BasePath() string {
	return t.basePath
}

// Register adds an in-memory template that shadows any file of the same path.
func (t *Templates) Register(templatePath string, spec TemplateSpec) {
	key := TemplateKey(templatePath)
	t.mu.Lock()
	t.cache[key] = &spec
	t.mu.Unlock()
}

func (t *Templates) Load(templatePath string) (*TemplateSpec, error) {
	key := TemplateKey(templatePath)
	if key == "" {
		return nil, fmt.Errorf("%w: empty path", ErrUnknownTemplate)
	}

	t.mu.RLock()
	spec, ok := t.cache[key]
	t.mu.RUnlock()
	if ok {
		return spec, nil
	}

	data, err := t.read(key)
	if err != nil {
		return nil, err
	}

	var parsed TemplateSpec
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("world: unmarshal template %s: %w", key, err)
	}
	if parsed.Name == "" {
		parsed.Name = path.Base(key)
	}

	t.mu.Lock()
	t.cache[key] = &parsed
	t.mu.Unlock()
	return &parsed, nil
}

func (t *Templates) read(key string) ([]byte, error) {
	for _, ext := range []string{".yaml", ".yml"} {
		data, err := os.ReadFile(filepath.Join(t.basePath, filepath.FromSlash(key)+ext))
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("world: read template %s: %w", key, err)
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownTemplate, key)
}

// Invalidate drops a cached template so the next Load rereads the file.
// Registered templates are dropped too.
func (t *Templates) Invalidate(templatePath string) {
	key := TemplateKey(templatePath)
	t.mu.Lock()
	delete(t.cache, key)
	t.mu.Unlock()
}

// Names lists the registered templates plus every YAML file under the base
// path, sorted.
func (t *Templates) Names() []string {
	seen := make(map[string]struct{})

	t.mu.RLock()
	for key := range t.cache {
		seen[key] = struct{}{}
	}
	t.mu.RUnlock()

	if t.basePath != "" {
		_ = filepath.WalkDir(t.basePath, func(p string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil
			}
			ext := filepath.Ext(p)
			if ext != ".yaml" && ext != ".yml" {
				return nil
			}
			rel, err := filepath.Rel(t.basePath, p)
			if err != nil {
				return nil
			}
			seen[TemplateKey(filepath.ToSlash(rel))] = struct{}{}
			return nil
		})
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// TemplateKey maps "./trees/Oak.yaml", "trees/Oak" and "trees\Oak.yml" to
// the same registry key.
func TemplateKey(p string) string {
	p = strings.TrimSpace(strings.ReplaceAll(p, "\\", "/"))
	if p == "" {
		return ""
	}
	p = strings.TrimSuffix(strings.TrimSuffix(p, ".yaml"), ".yml")
	p = strings.TrimPrefix(path.Clean("/"+p), "/")
	if p == "." {
		return ""
	}
	return p
}

// --- Building ---

// Build creates a fresh node tree for the spec. Each call returns new
// objects with new UIDs.
func (s *TemplateSpec) Build() (*engine.GameObject, error) {
	g := engine.NewGameObject(s.Name)
	for _, tag := range s.Tags {
		g.AddTag(tag)
	}

	var err error
	if g.Transform.Position, err = vec3(s.Position, mgl32.Vec3{}); err != nil {
		return nil, fmt.Errorf("%s: position: %w", s.Name, err)
	}
	if g.Transform.Rotation, err = vec3(s.Rotation, mgl32.Vec3{}); err != nil {
		return nil, fmt.Errorf("%s: rotation: %w", s.Name, err)
	}
	if g.Transform.Scale, err = vec3(s.Scale, mgl32.Vec3{1, 1, 1}); err != nil {
		return nil, fmt.Errorf("%s: scale: %w", s.Name, err)
	}

	for i, part := range s.Parts {
		mesh, err := part.build()
		if err != nil {
			return nil, fmt.Errorf("%s: part %d: %w", s.Name, i, err)
		}
		g.AddComponent(mesh)
	}

	for i := range s.Children {
		child, err := s.Children[i].Build()
		if err != nil {
			return nil, err
		}
		g.AddChild(child)
	}
	return g, nil
}

func (p PartSpec) build() (*components.MeshRenderer, error) {
	meshType, ok := components.ParseMeshType(p.Mesh)
	if !ok {
		return nil, fmt.Errorf("unknown mesh %q", p.Mesh)
	}

	var size mgl32.Vec3
	switch {
	case meshType == components.MeshSphere && len(p.Size) == 1:
		size = mgl32.Vec3{p.Size[0], 0, 0}
	case meshType == components.MeshPlane && len(p.Size) == 2:
		size = mgl32.Vec3{p.Size[0], 0, p.Size[1]}
	default:
		var err error
		if size, err = vec3(p.Size, mgl32.Vec3{1, 1, 1}); err != nil {
			return nil, fmt.Errorf("size: %w", err)
		}
	}

	c := defaultPartColor
	if p.Color != nil {
		c = p.Color.NRGBA
	}
	mesh := components.NewMeshRenderer(meshType, c, size)

	offset, err := vec3(p.Offset, mgl32.Vec3{})
	if err != nil {
		return nil, fmt.Errorf("offset: %w", err)
	}
	mesh.Offset = offset
	return mesh, nil
}

func vec3(v []float32, def mgl32.Vec3) (mgl32.Vec3, error) {
	switch len(v) {
	case 0:
		return def, nil
	case 3:
		return mgl32.Vec3{v[0], v[1], v[2]}, nil
	}
	return mgl32.Vec3{}, fmt.Errorf("expected 3 numbers, got %d", len(v))
}
