package viewer

import (
	"math"

	rl "github.com/gen2brain/raylib-go/raylib"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	fovy     float32 = 45
	nearClip float32 = 0.1
	farClip  float32 = 5000
)

// FlyCamera is a free-flying editor camera. Right mouse drag looks around,
// WASD/QE fly while the button is held.
type FlyCamera struct {
	Position  mgl32.Vec3
	Yaw       float32
	Pitch     float32
	MoveSpeed float32
	LookSpeed float32
}

func NewFlyCamera(pos mgl32.Vec3) *FlyCamera {
	return &FlyCamera{
		Position:  pos,
		Yaw:       -90,
		Pitch:     -15,
		MoveSpeed: 20,
		LookSpeed: 0.1,
	}
}

// Forward is the unit viewing direction.
func (c *FlyCamera) Forward() mgl32.Vec3 {
	yaw := float64(mgl32.DegToRad(c.Yaw))
	pitch := float64(mgl32.DegToRad(c.Pitch))
	return mgl32.Vec3{
		float32(math.Cos(yaw) * math.Cos(pitch)),
		float32(math.Sin(pitch)),
		float32(math.Sin(yaw) * math.Cos(pitch)),
	}
}

// Right is the horizontal unit vector to the right of Forward.
func (c *FlyCamera) Right() mgl32.Vec3 {
	yaw := float64(mgl32.DegToRad(c.Yaw))
	return mgl32.Vec3{float32(-math.Sin(yaw)), 0, float32(math.Cos(yaw))}
}

// Look turns the camera by a mouse delta in pixels.
func (c *FlyCamera) Look(dx, dy float32) {
	c.Yaw += dx * c.LookSpeed
	c.Pitch = mgl32.Clamp(c.Pitch-dy*c.LookSpeed, -89, 89)
}

// Fly moves along the camera axes. move is (right, up, forward) in the
// range -1..1.
func (c *FlyCamera) Fly(move mgl32.Vec3, deltaTime float32) {
	step := c.MoveSpeed * deltaTime
	c.Position = c.Position.
		Add(c.Right().Mul(move.X() * step)).
		Add(mgl32.Vec3{0, move.Y() * step, 0}).
		Add(c.Forward().Mul(move.Z() * step))
}

// FocusOn moves the camera so target sits in front of it at three times
// radius, keeping the current yaw and pitch.
func (c *FlyCamera) FocusOn(target mgl32.Vec3, radius float32) {
	distance := max(radius*3, 3)
	c.Position = target.Sub(c.Forward().Mul(distance))
}

// AdjustSpeed changes the fly speed by scroll steps.
func (c *FlyCamera) AdjustSpeed(scroll float32) {
	c.MoveSpeed = mgl32.Clamp(c.MoveSpeed+scroll*2, 1, 200)
}

// Update reads mouse and keyboard input for one frame.
func (c *FlyCamera) Update(deltaTime float32) {
	if scroll := rl.GetMouseWheelMove(); scroll != 0 && (rl.IsKeyDown(rl.KeyLeftShift) || rl.IsKeyDown(rl.KeyRightShift)) {
		c.AdjustSpeed(scroll)
	}
	if !rl.IsMouseButtonDown(rl.MouseRightButton) {
		return
	}

	delta := rl.GetMouseDelta()
	c.Look(delta.X, delta.Y)

	var move mgl32.Vec3
	if rl.IsKeyDown(rl.KeyW) {
		move[2]++
	}
	if rl.IsKeyDown(rl.KeyS) {
		move[2]--
	}
	if rl.IsKeyDown(rl.KeyD) {
		move[0]++
	}
	if rl.IsKeyDown(rl.KeyA) {
		move[0]--
	}
	if rl.IsKeyDown(rl.KeyE) {
		move[1]++
	}
	if rl.IsKeyDown(rl.KeyQ) {
		move[1]--
	}
	c.Fly(move, deltaTime)
}

// ViewProjection returns projection * view for the given aspect ratio.
func (c *FlyCamera) ViewProjection(aspect float32) mgl32.Mat4 {
	proj := mgl32.Perspective(mgl32.DegToRad(fovy), aspect, nearClip, farClip)
	view := mgl32.LookAtV(c.Position, c.Position.Add(c.Forward()), mgl32.Vec3{0, 1, 0})
	return proj.Mul4(view)
}

func (c *FlyCamera) Raylib() rl.Camera3D {
	return rl.Camera3D{
		Position:   toRL(c.Position),
		Target:     toRL(c.Position.Add(c.Forward())),
		Up:         rl.Vector3{X: 0, Y: 1, Z: 0},
		Fovy:       fovy,
		Projection: rl.CameraPerspective,
	}
}

func toRL(v mgl32.Vec3) rl.Vector3 {
	return rl.Vector3{X: v.X(), Y: v.Y(), Z: v.Z()}
}

func fromRL(v rl.Vector3) mgl32.Vec3 {
	return mgl32.Vec3{v.X, v.Y, v.Z}
}
