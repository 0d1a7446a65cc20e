package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/Everpoint/sGis-sub002/compositor"
	"github.com/Everpoint/sGis-sub002/config"
	"github.com/Everpoint/sGis-sub002/layer"
	"github.com/Everpoint/sGis-sub002/logger"
	"github.com/Everpoint/sGis-sub002/resource"
	"github.com/Everpoint/sGis-sub002/symbol"
	"github.com/Everpoint/sGis-sub002/viewport"
)

var errScriptDone = errors.New("script done")

func renderCommand() *cli.Command {
	return &cli.Command{
		Name:  "render",
		Usage: "play the configured script and write one PNG per frame",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    OUTPUT,
				Aliases: []string{"o"},
				Usage:   "frame `directory`, overrides output.directory",
			},
		},
		Action: func(c *cli.Context) error {
			e, err := setup(c)
			if err != nil {
				return err
			}
			defer e.Close()

			dir := c.String(OUTPUT)
			if dir == "" {
				dir = e.cfg.Output.Directory
			}
			start := time.Now()
			n, err := render(c.Context, e, dir)
			if err != nil {
				return err
			}
			logger.L().Infof("%d frames written to %s in %.3fs", n, dir, time.Since(start).Seconds())
			return nil
		},
	}
}

func render(ctx context.Context, e *env, dir string) (int, error) {
	m, err := buildMap(e.cfg, e.loader)
	if err != nil {
		return 0, err
	}
	cc := e.cfg.Compositor
	bg, err := symbol.ParseColor(cc.Background)
	if err != nil {
		return 0, err
	}
	comp := compositor.New(m, compositor.Options{
		Drift:       cc.Drift,
		Margin:      cc.Margin,
		MaxPixels:   cc.MaxPixels,
		Background:  bg,
		Dispatchers: []resource.Dispatcher{e.loader},
	})
	defer comp.Close()

	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return 0, err
	}
	p := newPlayer(m, e.cfg.Script, func() bool { return idle(e.loader, m) })
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var werr error
	err = comp.Run(ctx, cc.Interval, func(frame *image.RGBA) {
		name := filepath.Join(dir, fmt.Sprintf("%s_%04d.png", e.id, p.frames))
		if werr = writePNG(name, frame); werr != nil {
			cancel(werr)
			return
		}
		if !p.step() {
			cancel(errScriptDone)
		}
	})
	if cause := context.Cause(ctx); errors.Is(cause, errScriptDone) {
		return p.frames, nil
	} else if werr != nil {
		return p.frames, werr
	}
	return p.frames, err
}

// idle reports whether every load has settled and no tile is fading in.
func idle(loader *resource.HTTPLoader, m *viewport.Map) bool {
	if loader.Pending() > 0 {
		return false
	}
	for _, l := range m.Layers() {
		if tl, ok := l.(*layer.TileLayer); ok && tl.Pyramid().Animating() {
			return false
		}
	}
	return true
}

func writePNG(name string, img image.Image) error {
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", name, err)
	}
	return f.Close()
}

// player applies one script action per frame, then waits for the map to
// settle.
type player struct {
	m       *viewport.Map
	actions []func()
	idle    func() bool
	settle  time.Duration

	frames   int
	deadline time.Time
	quiet    bool
}

func newPlayer(m *viewport.Map, s config.Script, idle func() bool) *player {
	p := &player{m: m, idle: idle, settle: s.Settle}
	for _, st := range s.Steps {
		for r := 0; r < st.Repeat; r++ {
			p.actions = append(p.actions, p.action(st, r == 0, r == st.Repeat-1))
		}
	}
	return p
}

func (p *player) action(st config.Step, first, last bool) func() {
	return func() {
		if st.Gesture && first {
			p.m.SuspendUpdates()
		}
		res := p.m.Resolution()
		// screen y grows downwards
		p.m.Move(st.Pan[0]*res, -st.Pan[1]*res)
		if st.Zoom != 1 {
			p.m.ChangeResolution(res*st.Zoom, p.m.Center())
		}
		if st.Gesture && last {
			p.m.ResumeUpdates()
		}
	}
}

// step is called once a frame was written. It returns false when the script
// is over and a frame was drawn after the map settled, or the settle time ran
// out.
func (p *player) step() bool {
	p.frames++
	if p.frames <= len(p.actions) {
		p.actions[p.frames-1]()
		return true
	}
	if p.deadline.IsZero() {
		p.deadline = time.Now().Add(p.settle)
	}
	idle := p.idle()
	if idle && p.quiet {
		return false
	}
	p.quiet = idle
	return time.Now().Before(p.deadline)
}
