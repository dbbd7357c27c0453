package viewer

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-gl/mathgl/mgl32"
)

// Prefs is the viewer state kept between sessions.
type Prefs struct {
	CameraPosition  [3]float32 `json:"cameraPosition"`
	CameraYaw       float32    `json:"cameraYaw"`
	CameraPitch     float32    `json:"cameraPitch"`
	CameraMoveSpeed float32    `json:"cameraMoveSpeed"`
	Selected        string     `json:"selected,omitempty"`
}

const DefaultPrefsFile = ".prefab_viewer.json"

// LoadPrefs reads the prefs file. A missing or broken file is reported as
// an error and callers keep their defaults.
func LoadPrefs(path string) (Prefs, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Prefs{}, err
	}
	var p Prefs
	if err := json.Unmarshal(data, &p); err != nil {
		return Prefs{}, fmt.Errorf("viewer: parse prefs %s: %w", path, err)
	}
	return p, nil
}

func SavePrefs(path string, p Prefs) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Capture records the camera pose and selection.
func Capture(c *FlyCamera, selected string) Prefs {
	return Prefs{
		CameraPosition:  [3]float32(c.Position),
		CameraYaw:       c.Yaw,
		CameraPitch:     c.Pitch,
		CameraMoveSpeed: c.MoveSpeed,
		Selected:        selected,
	}
}

// Apply restores the camera pose.
func (p Prefs) Apply(c *FlyCamera) {
	c.Position = mgl32.Vec3(p.CameraPosition)
	c.Yaw = p.CameraYaw
	c.Pitch = mgl32.Clamp(p.CameraPitch, -89, 89)
	if p.CameraMoveSpeed > 0 {
		c.MoveSpeed = p.CameraMoveSpeed
	}
}
