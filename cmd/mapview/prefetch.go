package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	pb "gopkg.in/cheggaaa/pb.v1"

	"github.com/Everpoint/sGis-sub002/layer"
	"github.com/Everpoint/sGis-sub002/logger"
	"github.com/Everpoint/sGis-sub002/resource"
	"github.com/Everpoint/sGis-sub002/tile"
)

func prefetchCommand() *cli.Command {
	return &cli.Command{
		Name:  "prefetch",
		Usage: "request every tile touching the configured prefetch regions",
		Action: func(c *cli.Context) error {
			e, err := setup(c)
			if err != nil {
				return err
			}
			defer e.Close()

			start := time.Now()
			total, failed, err := prefetch(e)
			if err != nil {
				return err
			}
			logger.L().Infof("%d tiles, %d failed, %.3fs finished...", total, failed, time.Since(start).Seconds())
			return nil
		},
	}
}

func prefetch(e *env) (total, failed int, err error) {
	layers := buildTiles(e.cfg, e.loader)
	if len(layers) == 0 {
		return 0, 0, errors.New("no tile layers configured")
	}
	for _, r := range e.cfg.Prefetch {
		collection, err := regions(r.GeoJSON)
		if err != nil {
			return total, failed, err
		}
		for _, l := range layers {
			for z := r.Min; z <= r.Max; z++ {
				keys, err := l.Pyramid().Scheme().Cover(collection, z)
				if errors.Is(err, tile.ErrNoLevel) {
					logger.L().Warnf("layer %s has no zoom %d, skipped", l.Name(), z)
					continue
				}
				if err != nil {
					return total, failed, err
				}
				failed += fetchZoom(e, l, z, keys)
				total += len(keys)
			}
		}
	}
	return total, failed, nil
}

// fetchZoom requests keys on l and waits for them. It returns the number of
// tiles that failed.
func fetchZoom(e *env, l *layer.TileLayer, z int, keys []tile.Key) int {
	p := l.Pyramid()
	if len(keys) > p.Cache().Capacity() {
		logger.L().Warnf("layer %s zoom %d: %d tiles exceed the cache size %d", l.Name(), z, len(keys), p.Cache().Capacity())
	}
	logger.L().WithFields(logrus.Fields{"layer": l.Name(), "zoom": z, "tiles": len(keys)}).Info("task layer starting")

	bar := pb.New(len(keys)).Prefix(fmt.Sprintf("%s zoom %d : ", l.Name(), z)).Postfix("\n")
	bar.SetRefreshRate(time.Second)
	bar.Start()
	p.PrefetchKeys(keys, func(done, _ int) { bar.Set(done) })
	drain(e.loader)
	bar.FinishPrint(fmt.Sprintf("Task %s %s zoom %d finished ~", e.id, l.Name(), z))

	failed := 0
	for _, k := range keys {
		if t, ok := p.Cache().Get(k); ok && t.State() == tile.Error {
			failed++
		}
	}
	return failed
}

// drain settles loads until none is pending.
func drain(loader *resource.HTTPLoader) {
	for loader.Pending() > 0 {
		loader.Wait()
		loader.Dispatch()
	}
}
