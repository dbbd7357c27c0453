// Package manifest reads and writes the JSON document listing placed prefab
// instances. Key names and order follow the legacy editor's format so
// existing manifests stay loadable. Rotations are radians on disk and
// degrees in memory.
package manifest

import (
	"encoding/json"
	"fmt"
	"iter"

	"prefabeditor/internal/prefab"

	"github.com/go-gl/mathgl/mgl32"
)

// --- JSON types ---

type Transforms struct {
	Position [3]float32 `json:"position"`
	Rotation [3]float32 `json:"rotation"`
	Scale    [3]float32 `json:"scale"`
}

// Entry is one saved instance. isDeleted is accepted on load but never written.
type Entry struct {
	PathPrefab     string     `json:"pathPrefab"`
	Transforms     Transforms `json:"transforms"`
	RenderDistance float32    `json:"renderDistance"`
	IsHidden       bool       `json:"isHidden"`
}

type inputTransforms struct {
	Position []float32 `json:"position"`
	Rotation []float32 `json:"rotation"`
	Scale    []float32 `json:"scale"`
}

type inputEntry struct {
	PathPrefab     *string          `json:"pathPrefab"`
	Transforms     *inputTransforms `json:"transforms"`
	RenderDistance *float32         `json:"renderDistance"`
	IsHidden       *bool            `json:"isHidden"`
	IsDeleted      *bool            `json:"isDeleted"`
}

// ParseError reports a malformed manifest. A single bad entry fails the
// whole document.
type ParseError struct {
	Index int // entry index, -1 for document-level errors
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("manifest: %v", e.Err)
	}
	return fmt.Sprintf("manifest: entry %d: %s: %v", e.Index, e.Field, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// --- Saving ---

// Serialize encodes every non-deleted record. Deleted records are dropped,
// not written with a tombstone.
func Serialize(records iter.Seq[prefab.Record]) ([]byte, error) {
	entries := make([]Entry, 0)
	for rec := range records {
		if rec.Deleted {
			continue
		}
		entries = append(entries, Entry{
			PathPrefab: rec.TemplatePath,
			Transforms: Transforms{
				Position: rec.Position,
				Rotation: degToRad(rec.Rotation),
				Scale:    rec.Scale,
			},
			RenderDistance: rec.RenderDistance,
			IsHidden:       rec.Hidden,
		})
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	return data, nil
}

// --- Loading ---

// Deserialize decodes a manifest into records with empty ids; identity is
// assigned when the record is materialized. Entries flagged isDeleted are
// skipped without validation.
func Deserialize(data []byte) ([]prefab.Record, error) {
	var raw []inputEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &ParseError{Index: -1, Err: err}
	}

	records := make([]prefab.Record, 0, len(raw))
	for i, in := range raw {
		if in.IsDeleted != nil && *in.IsDeleted {
			continue
		}
		rec, err := decodeEntry(i, in)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func decodeEntry(i int, in inputEntry) (prefab.Record, error) {
	if in.PathPrefab == nil || *in.PathPrefab == "" {
		return prefab.Record{}, &ParseError{Index: i, Field: "pathPrefab", Err: errMissing}
	}
	if in.Transforms == nil {
		return prefab.Record{}, &ParseError{Index: i, Field: "transforms", Err: errMissing}
	}

	rec := prefab.Record{TemplatePath: *in.PathPrefab}

	var err error
	if rec.Position, err = vec3(i, "transforms.position", in.Transforms.Position); err != nil {
		return prefab.Record{}, err
	}
	rot, err := vec3(i, "transforms.rotation", in.Transforms.Rotation)
	if err != nil {
		return prefab.Record{}, err
	}
	rec.Rotation = radToDeg(rot)
	if rec.Scale, err = vec3(i, "transforms.scale", in.Transforms.Scale); err != nil {
		return prefab.Record{}, err
	}

	if in.RenderDistance != nil {
		if *in.RenderDistance < 0 {
			return prefab.Record{}, &ParseError{Index: i, Field: "renderDistance", Err: errNegative}
		}
		rec.RenderDistance = *in.RenderDistance
	}
	if in.IsHidden != nil {
		rec.Hidden = *in.IsHidden
	}
	return rec, nil
}

func vec3(i int, field string, v []float32) (mgl32.Vec3, error) {
	if v == nil {
		return mgl32.Vec3{}, &ParseError{Index: i, Field: field, Err: errMissing}
	}
	if len(v) != 3 {
		return mgl32.Vec3{}, &ParseError{Index: i, Field: field, Err: fmt.Errorf("want 3 components, got %d", len(v))}
	}
	return mgl32.Vec3{v[0], v[1], v[2]}, nil
}

func degToRad(v mgl32.Vec3) [3]float32 {
	return [3]float32{mgl32.DegToRad(v[0]), mgl32.DegToRad(v[1]), mgl32.DegToRad(v[2])}
}

func radToDeg(v mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{mgl32.RadToDeg(v[0]), mgl32.RadToDeg(v[1]), mgl32.RadToDeg(v[2])}
}
