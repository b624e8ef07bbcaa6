// Package app wires an AnimatedImage and a playback Engine to an SDL2
// window, the same way the teacher's main.go wires its Game to a window
// and renderer: a fallback-driver SDL2 init, a fixed-rate render loop,
// and per-frame texture upload (§4.D "TickSource", §4.F).
package app

import (
	"fmt"
	"image"
	"log"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/veandco/go-sdl2/sdl"
	xdraw "golang.org/x/image/draw"

	animimage "animaframe/internal/image"
	"animaframe/internal/perf"
	"animaframe/internal/playback"
)

// fallback video drivers tried in order when SDL_VIDEODRIVER is unset or
// fails, mirroring main.go's initializeSDL2 cascade in miniature.
var fallbackDrivers = []string{"x11", "cocoa", "wayland", "software", "dummy"}

// Verbose enables the periodic host-memory snapshot log line in Run.
var Verbose bool

// Runtime owns the SDL2 window/renderer/texture and the playback engine
// driving one AnimatedImage.
type Runtime struct {
	window   *sdl.Window
	renderer *sdl.Renderer
	texture  *sdl.Texture

	img     *animimage.AnimatedImage
	engine  *playback.Engine
	tick    *sdlTickSource
	scratch *image.RGBA
	scaled  *image.RGBA
	scaler  xdraw.Scaler

	targetFPS  int
	texW, texH int32
}

// New creates the SDL2 window sized to img and a playback engine bound
// to it through an internal TickSource driven by Run's own loop.
func New(img *animimage.AnimatedImage, title string, targetFPS int) (*Runtime, error) {
	if err := initSDL(); err != nil {
		return nil, err
	}

	bounds := img.Size()
	w, h := int32(bounds.Dx()), int32(bounds.Dy())
	if w <= 0 {
		w = 1
	}
	if h <= 0 {
		h = 1
	}

	window, err := sdl.CreateWindow(title, sdl.WINDOWPOS_CENTERED, sdl.WINDOWPOS_CENTERED, w, h, sdl.WINDOW_SHOWN|sdl.WINDOW_RESIZABLE)
	if err != nil {
		return nil, fmt.Errorf("create window: %w", err)
	}

	renderer, err := sdl.CreateRenderer(window, -1, sdl.RENDERER_ACCELERATED|sdl.RENDERER_PRESENTVSYNC)
	if err != nil {
		renderer, err = sdl.CreateRenderer(window, -1, sdl.RENDERER_SOFTWARE)
		if err != nil {
			window.Destroy()
			return nil, fmt.Errorf("create renderer: %w", err)
		}
	}

	texture, err := renderer.CreateTexture(uint32(sdl.PIXELFORMAT_RGBA32), sdl.TEXTUREACCESS_STREAMING, w, h)
	if err != nil {
		renderer.Destroy()
		window.Destroy()
		return nil, fmt.Errorf("create texture: %w", err)
	}

	tick := &sdlTickSource{}

	r := &Runtime{
		window:    window,
		renderer:  renderer,
		texture:   texture,
		img:       img,
		engine:    playback.New(img, tick),
		tick:      tick,
		scratch:   image.NewRGBA(bounds),
		scaled:    image.NewRGBA(bounds),
		scaler:    xdraw.CatmullRom,
		targetFPS: targetFPS,
		texW:      w,
		texH:      h,
	}
	return r, nil
}

// SetScaler chooses the interpolation used when the window is resized
// away from the image's native dimensions. The default is CatmullRom;
// NearestNeighbor is cheaper for pixel art or very large frame counts.
func (r *Runtime) SetScaler(s xdraw.Scaler) {
	if s != nil {
		r.scaler = s
	}
}

// ParseScaler maps a CLI flag value to an [xdraw.Scaler], defaulting to
// NearestNeighbor for unrecognized names.
func ParseScaler(name string) xdraw.Scaler {
	switch strings.ToLower(name) {
	case "catmullrom":
		return xdraw.CatmullRom
	case "bilinear":
		return xdraw.BiLinear
	case "approxbilinear":
		return xdraw.ApproxBiLinear
	default:
		return xdraw.NearestNeighbor
	}
}

func initSDL() error {
	if envDriver := os.Getenv("SDL_VIDEODRIVER"); envDriver != "" {
		if err := sdl.Init(sdl.INIT_VIDEO); err == nil {
			return nil
		}
	}
	var lastErr error
	for _, driver := range fallbackDrivers {
		os.Setenv("SDL_VIDEODRIVER", driver)
		if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
			lastErr = err
			sdl.Quit()
			continue
		}
		return nil
	}
	return fmt.Errorf("all SDL2 video drivers failed, last error: %v", lastErr)
}

// Run starts playback and drives the render loop until the window is
// closed or ctx-equivalent quit event arrives, pacing at targetFPS the
// same way main.go's runGameLoop does. Every 120 frames it also samples
// host memory pressure and downgrades the cache when the host is under
// real pressure, the same cadence the GC and the verbose snapshot log
// already run on; the engine's own loop-boundary ResetPressure call is
// what lets the cache recover once the pressure passes.
func (r *Runtime) Run() error {
	r.engine.Play()
	defer r.engine.Pause()

	frameTime := time.Second / time.Duration(r.targetFPS)
	lastFrame := time.Now()
	frameCount := 0

	running := true
	for running {
		for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
			switch event.(type) {
			case *sdl.QuitEvent:
				running = false
			}
		}

		now := time.Now()
		r.tick.pump(now)

		if err := r.draw(); err != nil {
			return err
		}

		frameCount++
		if frameCount%120 == 0 {
			runtime.GC()
			if perf.CurrentPressure() >= perf.PressureHigh {
				r.img.OnMemoryPressure()
			}
			if Verbose {
				perf.LogSnapshot()
			}
		}

		elapsed := time.Since(lastFrame)
		if elapsed < frameTime {
			time.Sleep(frameTime - elapsed)
		}
		lastFrame = time.Now()
	}
	return nil
}

func (r *Runtime) draw() error {
	frame := r.engine.CurrentFrame()
	if frame == nil {
		return nil
	}

	xdraw.Draw(r.scratch, r.scratch.Bounds(), frame, frame.Bounds().Min, xdraw.Src)

	winW, winH := r.window.GetSize()
	if winW != r.texW || winH != r.texH {
		if err := r.resizeTexture(winW, winH); err != nil {
			return err
		}
	}

	dst := r.scratch
	if int(winW) != r.scratch.Bounds().Dx() || int(winH) != r.scratch.Bounds().Dy() {
		r.scaler.Scale(r.scaled, r.scaled.Bounds(), r.scratch, r.scratch.Bounds(), xdraw.Src, nil)
		dst = r.scaled
	}

	if err := r.texture.Update(nil, dst.Pix, dst.Stride); err != nil {
		return fmt.Errorf("update texture: %w", err)
	}

	r.renderer.Clear()
	if err := r.renderer.Copy(r.texture, nil, nil); err != nil {
		return fmt.Errorf("copy texture: %w", err)
	}
	r.renderer.Present()
	return nil
}

// resizeTexture recreates the streaming texture and the scaled-frame
// buffer to match the window's current size, so a resize doesn't leave
// frames letterboxed at the original dimensions.
func (r *Runtime) resizeTexture(w, h int32) error {
	if w <= 0 {
		w = 1
	}
	if h <= 0 {
		h = 1
	}
	texture, err := r.renderer.CreateTexture(uint32(sdl.PIXELFORMAT_RGBA32), sdl.TEXTUREACCESS_STREAMING, w, h)
	if err != nil {
		return fmt.Errorf("resize texture: %w", err)
	}
	r.texture.Destroy()
	r.texture = texture
	r.scaled = image.NewRGBA(image.Rect(0, 0, int(w), int(h)))
	r.texW, r.texH = w, h
	return nil
}

// SetPlaybackRate scales the engine's playback speed; non-positive
// rates are ignored (§4.D.1).
func (r *Runtime) SetPlaybackRate(rate float64) {
	r.engine.SetPlaybackRate(rate)
}

// Close releases the SDL2 window/renderer/texture and the underlying
// AnimatedImage's decode worker.
func (r *Runtime) Close() error {
	r.engine.Close()
	if r.texture != nil {
		r.texture.Destroy()
	}
	if r.renderer != nil {
		r.renderer.Destroy()
	}
	if r.window != nil {
		r.window.Destroy()
	}
	if err := r.img.Close(); err != nil {
		log.Printf("app: closing image: %v", err)
	}
	sdl.Quit()
	return nil
}
