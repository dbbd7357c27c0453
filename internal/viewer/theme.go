package viewer

import (
	"log"

	gui "github.com/gen2brain/raylib-go/raygui"
	rl "github.com/gen2brain/raylib-go/raylib"
)

var (
	uiFont       rl.Font
	uiFontLoaded bool
)

var (
	colorBgDark    = rl.NewColor(10, 10, 15, 255)
	colorBgPanel   = rl.NewColor(18, 18, 24, 245)
	colorBgElement = rl.NewColor(28, 28, 38, 255)
	colorBgHover   = rl.NewColor(38, 38, 52, 255)
	colorBgActive  = rl.NewColor(48, 48, 65, 255)

	colorAccent      = rl.NewColor(108, 99, 255, 255)
	colorAccentLight = rl.NewColor(167, 139, 250, 255)

	colorTextPrimary   = rl.NewColor(255, 255, 255, 255)
	colorTextSecondary = rl.NewColor(200, 200, 208, 255)
	colorTextMuted     = rl.NewColor(119, 119, 119, 255)

	colorBorder    = rl.NewColor(255, 255, 255, 13)
	colorSelection = rl.NewColor(167, 139, 250, 255)
	colorError     = rl.NewColor(255, 120, 120, 255)
	colorOK        = rl.NewColor(100, 220, 100, 255)
)

// initStyle sets the dark raygui theme. Call after the window exists.
func initStyle() {
	if !uiFontLoaded {
		uiFontLoaded = true
		uiFont = rl.LoadFontEx("assets/fonts/Outfit-Regular.ttf", 48, nil)
		if uiFont.Texture.ID > 0 {
			rl.SetTextureFilter(uiFont.Texture, rl.FilterBilinear)
			gui.SetFont(uiFont)
		} else {
			log.Println("viewer: UI font not found, using the default font")
		}
	}

	gui.SetStyle(gui.DEFAULT, gui.BACKGROUND_COLOR, gui.NewColorPropertyValue(colorBgDark))
	gui.SetStyle(gui.DEFAULT, gui.BASE_COLOR_NORMAL, gui.NewColorPropertyValue(colorBgElement))
	gui.SetStyle(gui.DEFAULT, gui.BASE_COLOR_FOCUSED, gui.NewColorPropertyValue(colorBgHover))
	gui.SetStyle(gui.DEFAULT, gui.BASE_COLOR_PRESSED, gui.NewColorPropertyValue(colorAccent))
	gui.SetStyle(gui.DEFAULT, gui.TEXT_COLOR_NORMAL, gui.NewColorPropertyValue(colorTextSecondary))
	gui.SetStyle(gui.DEFAULT, gui.TEXT_COLOR_FOCUSED, gui.NewColorPropertyValue(colorTextPrimary))
	gui.SetStyle(gui.DEFAULT, gui.TEXT_COLOR_PRESSED, gui.NewColorPropertyValue(colorTextPrimary))
	gui.SetStyle(gui.DEFAULT, gui.BORDER_COLOR_NORMAL, gui.NewColorPropertyValue(rl.NewColor(50, 50, 65, 255)))
	gui.SetStyle(gui.DEFAULT, gui.BORDER_COLOR_FOCUSED, gui.NewColorPropertyValue(colorAccent))
	gui.SetStyle(gui.DEFAULT, gui.TEXT_SIZE, 15)
}

func drawText(text string, x, y int32, size float32, c rl.Color) {
	if uiFont.Texture.ID > 0 {
		rl.DrawTextEx(uiFont, text, rl.Vector2{X: float32(x), Y: float32(y)}, size, 0, c)
	} else {
		rl.DrawText(text, x, y, int32(size), c)
	}
}

// button draws a flat button and reports whether it was clicked this frame.
func button(bounds rl.Rectangle, text string, active bool) bool {
	hovered := rl.CheckCollisionPointRec(rl.GetMousePosition(), bounds)
	bg, fg := colorBgElement, colorTextSecondary
	switch {
	case active:
		bg, fg = colorAccent, colorTextPrimary
	case hovered:
		bg, fg = colorBgHover, colorTextPrimary
	}
	rl.DrawRectangleRounded(bounds, 0.3, 6, bg)
	drawText(text, int32(bounds.X)+8, int32(bounds.Y)+int32(bounds.Height-15)/2, 15, fg)
	return hovered && rl.IsMouseButtonPressed(rl.MouseLeftButton)
}
