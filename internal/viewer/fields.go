package viewer

import (
	"strconv"

	"prefabeditor/internal/prefab"

	rl "github.com/gen2brain/raylib-go/raylib"
	"github.com/go-gl/mathgl/mgl32"
)

// transformEdit buffers inspector edits of one record's transform until
// the field being edited is released, so a drag is a single undo step.
type transformEdit struct {
	id     string
	values [3]mgl32.Vec3 // position, rotation, scale
	dirty  bool
}

// sync reloads the buffer from rec unless it holds pending edits for it.
func (e *transformEdit) sync(rec prefab.Record) {
	if e.id == rec.ID && e.dirty {
		return
	}
	e.id = rec.ID
	e.values = [3]mgl32.Vec3{rec.Position, rec.Rotation, rec.Scale}
	e.dirty = false
}

func (e *transformEdit) set(row, axis int, value float32) {
	if e.values[row][axis] != value {
		e.values[row][axis] = value
		e.dirty = true
	}
}

// take returns the buffered transform once no field is being edited.
func (e *transformEdit) take(editing bool) (position, rotation, scale mgl32.Vec3, ok bool) {
	if !e.dirty || editing {
		return
	}
	e.dirty = false
	return e.values[0], e.values[1], e.values[2], true
}

// floatField is the state shared by the inspector's number fields. At
// most one field is typed into or scrubbed at a time.
type floatField struct {
	activeID  string
	text      string
	dragID    string
	dragX     float32
	dragStart float32
}

func (f *floatField) editing() bool {
	return f.activeID != "" || f.dragID != ""
}

func (f *floatField) reset() {
	*f = floatField{}
}

// draw renders an editable number. Dragging scrubs the value, a click
// enters text mode, Enter or a click elsewhere confirms.
func (f *floatField) draw(x, y, w, h int32, id string, value float32) float32 {
	mousePos := rl.GetMousePosition()
	bounds := rl.Rectangle{X: float32(x), Y: float32(y), Width: float32(w), Height: float32(h)}
	hovered := rl.CheckCollisionPointRec(mousePos, bounds)

	editMode := f.activeID == id
	dragging := f.dragID == id

	bg := colorBgElement
	if editMode {
		bg = colorBgActive
	} else if hovered || dragging {
		bg = colorBgHover
	}
	rl.DrawRectangleRounded(bounds, 0.2, 4, bg)
	if editMode {
		rl.DrawRectangleRoundedLinesEx(bounds, 0.2, 4, 1, colorAccent)
	}

	if !editMode {
		if hovered && f.dragID == "" && rl.IsMouseButtonPressed(rl.MouseLeftButton) {
			f.dragID = id
			f.dragX = mousePos.X
			f.dragStart = value
		}
		if dragging {
			if rl.IsMouseButtonDown(rl.MouseLeftButton) {
				sensitivity := float32(0.05)
				if rl.IsKeyDown(rl.KeyLeftShift) {
					sensitivity = 0.005
				}
				value = f.dragStart + (mousePos.X-f.dragX)*sensitivity
			} else {
				if d := mousePos.X - f.dragX; d > -2 && d < 2 {
					f.activeID = id
					f.text = strconv.FormatFloat(float64(value), 'f', 2, 32)
				}
				f.dragID = ""
			}
		}
		drawText(strconv.FormatFloat(float64(value), 'f', 2, 32), x+6, y+4, 15, colorTextSecondary)
		return value
	}

	drawText(f.text+"_", x+6, y+4, 15, colorTextPrimary)
	for key := rl.GetCharPressed(); key != 0; key = rl.GetCharPressed() {
		if ch := rune(key); (ch >= '0' && ch <= '9') || ch == '-' || ch == '.' {
			f.text += string(ch)
		}
	}
	if rl.IsKeyPressed(rl.KeyBackspace) && len(f.text) > 0 {
		f.text = f.text[:len(f.text)-1]
	}

	clickedOutside := rl.IsMouseButtonPressed(rl.MouseLeftButton) && !hovered
	if rl.IsKeyPressed(rl.KeyEnter) || rl.IsKeyPressed(rl.KeyKpEnter) || rl.IsKeyPressed(rl.KeyTab) || clickedOutside {
		if parsed, err := strconv.ParseFloat(f.text, 32); err == nil {
			value = float32(parsed)
		}
		f.activeID = ""
		f.text = ""
	}
	return value
}
