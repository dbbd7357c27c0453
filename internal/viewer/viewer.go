// Package viewer is the raylib front end: a fly camera, picking, template
// and placed-prefab lists and an inspector for the selected prefab.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"strings"
	"sync"
	"time"

	"prefabeditor/internal/manager"
	"prefabeditor/internal/prefab"

	gui "github.com/gen2brain/raylib-go/raygui"
	rl "github.com/gen2brain/raylib-go/raylib"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	topBarHeight   = 36
	templatesWidth = 220
	inspectorWidth = 300
	rowHeight      = 26
	statusDuration = 3 * time.Second
	maxRingRadius  = 2000
)

type Viewer struct {
	mgr       *manager.Manager
	camera    *FlyCamera
	renderer  *Renderer
	prefsPath string

	templates      []string
	templateScroll int
	showPlaced     bool
	placedScroll   int

	fields floatField
	edit   transformEdit

	// Render distance slider value while the mouse is held.
	pendingRange   float32
	editingRange   bool
	editingRangeID string

	statusMu   sync.Mutex
	status     string
	statusTime time.Time
}

func New(mgr *manager.Manager, prefsPath string) *Viewer {
	v := &Viewer{
		mgr:       mgr,
		camera:    NewFlyCamera(mgl32.Vec3{0, 20, 40}),
		renderer:  NewRenderer(),
		prefsPath: prefsPath,
	}
	mgr.OnStatus.AddListener(v.setStatus)
	return v
}

func (v *Viewer) setStatus(msg string) {
	v.statusMu.Lock()
	v.status = msg
	v.statusTime = time.Now()
	v.statusMu.Unlock()
}

func (v *Viewer) currentStatus() (string, bool) {
	v.statusMu.Lock()
	defer v.statusMu.Unlock()
	if v.status == "" || time.Since(v.statusTime) > statusDuration {
		return "", false
	}
	return v.status, true
}

// Restore applies saved prefs. Call before the manager starts so the
// first scheduling pass sees the restored camera.
func (v *Viewer) Restore() {
	prefs, err := LoadPrefs(v.prefsPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Printf("viewer: %v", err)
		}
	} else {
		prefs.Apply(v.camera)
	}
	v.syncCamera()
}

func (v *Viewer) syncCamera() {
	v.mgr.World().SetCamera(v.camera.Position, v.camera.Forward())
}

// Run opens the window and blocks until it is closed or ctx is done.
func (v *Viewer) Run(ctx context.Context) {
	rl.SetConfigFlags(rl.FlagWindowHighdpi | rl.FlagWindowResizable)
	rl.InitWindow(1280, 720, "Prefab Editor")
	defer rl.CloseWindow()
	rl.SetTargetFPS(120)
	initStyle()

	v.refreshTemplates()
	if prefs, err := LoadPrefs(v.prefsPath); err == nil && prefs.Selected != "" {
		v.mgr.Select(prefs.Selected)
	}

	for !rl.WindowShouldClose() && ctx.Err() == nil {
		v.update(ctx, rl.GetFrameTime())
		v.draw()
	}

	rec, _ := v.mgr.Selected()
	if err := SavePrefs(v.prefsPath, Capture(v.camera, rec.ID)); err != nil {
		log.Printf("viewer: save prefs: %v", err)
	}
}

func (v *Viewer) refreshTemplates() {
	v.templates = v.mgr.World().Templates.Names()
	v.templateScroll = 0
}

func (v *Viewer) update(ctx context.Context, deltaTime float32) {
	v.camera.Update(deltaTime)
	v.syncCamera()

	ctrl := rl.IsKeyDown(rl.KeyLeftControl) || rl.IsKeyDown(rl.KeyLeftSuper)
	switch {
	case ctrl && rl.IsKeyPressed(rl.KeyS):
		_ = v.mgr.Save()
	case ctrl && rl.IsKeyPressed(rl.KeyZ):
		if !v.mgr.Undo() {
			v.setStatus("Nothing to undo")
		}
	case ctrl && rl.IsKeyPressed(rl.KeyR):
		_ = v.mgr.Reload(ctx)
		v.refreshTemplates()
	}

	rec, selected := v.mgr.Selected()
	flying := rl.IsMouseButtonDown(rl.MouseRightButton)
	if selected && !flying && !v.fields.editing() {
		if rl.IsKeyPressed(rl.KeyDelete) || (ctrl && rl.IsKeyPressed(rl.KeyBackspace)) {
			v.mgr.Delete(rec.ID)
		}
		if rl.IsKeyPressed(rl.KeyH) {
			v.mgr.SetHidden(rec.ID, !rec.Hidden)
		}
		v.nudge(rec.ID, rec.Position)
	}

	if rl.IsMouseButtonPressed(rl.MouseLeftButton) && !v.mouseInPanel(selected) {
		ray := rl.GetScreenToWorldRay(rl.GetMousePosition(), v.camera.Raylib())
		if _, ok := v.mgr.Pick(fromRL(ray.Position), fromRL(ray.Direction)); !ok {
			v.mgr.Select("")
		}
	}
}

// nudge moves the selection with the arrow keys along the ground plane,
// PageUp/PageDown move it vertically.
func (v *Viewer) nudge(id string, pos mgl32.Vec3) {
	step := float32(1)
	if rl.IsKeyDown(rl.KeyLeftShift) {
		step = 10
	}
	var d mgl32.Vec3
	if rl.IsKeyPressed(rl.KeyLeft) {
		d[0] -= step
	}
	if rl.IsKeyPressed(rl.KeyRight) {
		d[0] += step
	}
	if rl.IsKeyPressed(rl.KeyUp) {
		d[2] -= step
	}
	if rl.IsKeyPressed(rl.KeyDown) {
		d[2] += step
	}
	if rl.IsKeyPressed(rl.KeyPageUp) {
		d[1] += step
	}
	if rl.IsKeyPressed(rl.KeyPageDown) {
		d[1] -= step
	}
	if d != (mgl32.Vec3{}) {
		v.mgr.Move(id, pos.Add(d))
	}
}

func (v *Viewer) mouseInPanel(inspectorOpen bool) bool {
	m := rl.GetMousePosition()
	if m.Y <= topBarHeight || m.X <= templatesWidth {
		return true
	}
	return inspectorOpen && m.X >= float32(rl.GetScreenWidth()-inspectorWidth)
}

func (v *Viewer) draw() {
	rl.BeginDrawing()
	rl.ClearBackground(rl.NewColor(30, 30, 38, 255))

	aspect := float32(rl.GetScreenWidth()) / float32(max(rl.GetScreenHeight(), 1))
	frustum := ExtractFrustum(v.camera.ViewProjection(aspect))

	rec, selected := v.mgr.Selected()

	rl.BeginMode3D(v.camera.Raylib())
	node, _ := v.mgr.Scheduler().Node(rec.ID)
	if !selected || !v.mgr.Scheduler().Loaded(rec.ID) {
		node = nil
	}
	v.renderer.Draw(v.mgr.World(), frustum, node)
	if selected && rec.RenderDistance < maxRingRadius {
		DrawRange(rec.Position, rec.RenderDistance)
	}
	rl.EndMode3D()

	v.drawTopBar()
	v.drawTemplates()
	if selected {
		v.drawInspector()
	}
	rl.EndDrawing()
}

func (v *Viewer) drawTopBar() {
	w := int32(rl.GetScreenWidth())
	rl.DrawRectangle(0, 0, w, topBarHeight, colorBgDark)
	rl.DrawRectangle(0, topBarHeight-1, w, 1, colorBorder)
	drawText("PREFABS", 12, 8, 20, colorAccent)
	drawText("Ctrl+S: Save  |  Ctrl+Z: Undo  |  Ctrl+R: Reload  |  Del: Delete  |  H: Hide", 120, 10, 15, colorTextMuted)
	drawText(fmt.Sprintf("Speed: %.0f", v.camera.MoveSpeed), w-110, 10, 15, colorTextMuted)

	if msg, ok := v.currentStatus(); ok {
		c := colorOK
		lower := strings.ToLower(msg)
		if strings.Contains(lower, "fail") || strings.Contains(lower, "error") || strings.Contains(lower, "cannot") {
			c = colorError
		}
		drawText(msg, templatesWidth+12, topBarHeight+8, 16, c)
	}
}

func (v *Viewer) drawTemplates() {
	h := int32(rl.GetScreenHeight())
	rl.DrawRectangle(0, topBarHeight, templatesWidth, h-topBarHeight, colorBgPanel)
	if button(rl.Rectangle{X: 8, Y: topBarHeight + 6, Width: 84, Height: 22}, "Templates", !v.showPlaced) {
		v.showPlaced = false
	}
	if button(rl.Rectangle{X: 96, Y: topBarHeight + 6, Width: 64, Height: 22}, "Placed", v.showPlaced) {
		v.showPlaced = true
	}
	if v.showPlaced {
		v.drawPlaced()
		return
	}

	if button(rl.Rectangle{X: templatesWidth - 54, Y: topBarHeight + 6, Width: 46, Height: 22}, "Scan", false) {
		v.refreshTemplates()
	}

	listTop := int32(topBarHeight + 36)
	visible := int((h - listTop) / rowHeight)

	m := rl.GetMousePosition()
	if m.X <= templatesWidth && m.Y > float32(listTop) {
		v.templateScroll -= int(rl.GetMouseWheelMove())
	}
	v.templateScroll = max(0, min(v.templateScroll, len(v.templates)-visible))

	if len(v.templates) == 0 {
		drawText("No templates found", 12, listTop+4, 15, colorTextMuted)
		return
	}

	for i := v.templateScroll; i < len(v.templates) && i-v.templateScroll < visible; i++ {
		y := float32(listTop + int32(i-v.templateScroll)*rowHeight)
		bounds := rl.Rectangle{X: 8, Y: y, Width: templatesWidth - 16, Height: rowHeight - 4}
		if button(bounds, v.templates[i], false) {
			if _, err := v.mgr.Place(context.Background(), v.templates[i]); err != nil {
				log.Printf("viewer: place %s: %v", v.templates[i], err)
			}
		}
	}
}

// drawPlaced lists every live record. Clicking one selects it and moves
// the camera to it.
func (v *Viewer) drawPlaced() {
	h := int32(rl.GetScreenHeight())
	listTop := int32(topBarHeight + 36)
	visible := int((h - listTop) / rowHeight)

	recs := v.mgr.Records()
	m := rl.GetMousePosition()
	if m.X <= templatesWidth && m.Y > float32(listTop) {
		v.placedScroll -= int(rl.GetMouseWheelMove())
	}
	v.placedScroll = max(0, min(v.placedScroll, len(recs)-visible))

	if len(recs) == 0 {
		drawText("Nothing placed yet", 12, listTop+4, 15, colorTextMuted)
		return
	}

	selected, _ := v.mgr.Selected()
	for i := v.placedScroll; i < len(recs) && i-v.placedScroll < visible; i++ {
		rec := recs[i]
		label := rec.TemplatePath
		if rec.Hidden {
			label += " (hidden)"
		}
		y := float32(listTop + int32(i-v.placedScroll)*rowHeight)
		bounds := rl.Rectangle{X: 8, Y: y, Width: templatesWidth - 16, Height: rowHeight - 4}
		if button(bounds, label, rec.ID == selected.ID) {
			v.mgr.Select(rec.ID)
			v.camera.FocusOn(rec.Position, rec.Scale.Len())
			v.syncCamera()
		}
	}
}

func (v *Viewer) drawInspector() {
	rec, ok := v.mgr.Selected()
	if !ok {
		return
	}

	sw, sh := int32(rl.GetScreenWidth()), int32(rl.GetScreenHeight())
	x := sw - inspectorWidth
	rl.DrawRectangle(x, topBarHeight, inspectorWidth, sh-topBarHeight, colorBgPanel)

	px := x + 12
	y := int32(topBarHeight + 8)
	line := func(label, value string) {
		drawText(label, px, y, 15, colorTextMuted)
		drawText(value, px+95, y, 15, colorTextSecondary)
		y += 22
	}

	drawText(rec.ID, px, y, 18, colorAccentLight)
	y += 28
	line("Template", rec.TemplatePath)
	y = v.drawTransform(rec, px, y)

	state, _ := v.mgr.Scheduler().State(rec.ID)
	line("State", state.String())
	y += 6

	// Render distance applies on release so a drag is a single undo step.
	if !v.editingRange || v.editingRangeID != rec.ID {
		v.pendingRange = rec.RenderDistance
		v.editingRange = false
		v.editingRangeID = rec.ID
	}
	drawText("Render distance", px, y, 15, colorTextMuted)
	y += 20
	sliderMax := max(float32(maxRingRadius), rec.RenderDistance)
	value := gui.Slider(rl.Rectangle{X: float32(px), Y: float32(y), Width: inspectorWidth - 80, Height: 18},
		"", fmt.Sprintf("%.0f", v.pendingRange), v.pendingRange, 0, sliderMax)
	if value != v.pendingRange {
		v.pendingRange = value
		v.editingRange = true
	}
	if v.editingRange && !rl.IsMouseButtonDown(rl.MouseLeftButton) {
		v.mgr.SetRenderDistance(rec.ID, v.pendingRange)
		v.editingRange = false
	}
	y += 30

	hidden := gui.CheckBox(rl.Rectangle{X: float32(px), Y: float32(y), Width: 18, Height: 18}, "Hidden", rec.Hidden)
	if hidden != rec.Hidden {
		v.mgr.SetHidden(rec.ID, hidden)
	}
	y += 32

	if button(rl.Rectangle{X: float32(px), Y: float32(y), Width: 80, Height: 24}, "Delete", false) {
		v.mgr.Delete(rec.ID)
	}
	if button(rl.Rectangle{X: float32(px + 90), Y: float32(y), Width: 80, Height: 24}, "Deselect", false) {
		v.mgr.Select("")
	}
	y += 40

	v.drawStats(px, y)
}

// drawTransform draws editable position, rotation and scale rows and
// applies them once the edited field is released.
func (v *Viewer) drawTransform(rec prefab.Record, x, y int32) int32 {
	if v.edit.id != rec.ID {
		v.fields.reset()
	}
	v.edit.sync(rec)

	const labelW = 60
	fieldW := int32(inspectorWidth-24-labelW-4) / 3
	rows := [3]string{"Position", "Rotation", "Scale"}
	for row, label := range rows {
		drawText(label, x, y+4, 15, colorTextMuted)
		for axis := 0; axis < 3; axis++ {
			id := fmt.Sprintf("%d.%d", row, axis)
			fx := x + labelW + int32(axis)*(fieldW+2)
			v.edit.set(row, axis, v.fields.draw(fx, y, fieldW, 22, id, v.edit.values[row][axis]))
		}
		y += 26
	}

	if pos, rot, scale, ok := v.edit.take(v.fields.editing()); ok {
		v.mgr.SetTransform(rec.ID, pos, rot, scale)
	}
	return y + 4
}

func (v *Viewer) drawStats(x, y int32) {
	st := v.mgr.Scheduler().Stats()
	rows := []string{
		fmt.Sprintf("Tracked %d  Loaded %d", st.Tracked, st.Loaded),
		fmt.Sprintf("Passes %d", st.Passes),
		fmt.Sprintf("Drawn %d  Culled %d", v.renderer.Drawn, v.renderer.Culled),
	}
	if addr := v.mgr.RemoteAddr(); addr != "" {
		rows = append(rows, fmt.Sprintf("Observers: ws://%s/ws (%d)", addr, v.mgr.Hub().ClientCount()))
	}
	for _, row := range rows {
		drawText(row, x, y, 14, colorTextMuted)
		y += 18
	}
}
