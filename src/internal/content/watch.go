package content

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rjeczalik/notify"
)

// Run implements the library update loop: file system changes below the music
// directories are collected via inotify and, driven by a ticker, folded into
// a rescan. Change callbacks fire after a rescan that mutated the library
func (me *FSLibrary) Run(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	log.Trace("running library updater ...")

	chgs := make(chan notify.EventInfo, 16)
	for _, dir := range me.cfg.Cnt.MusicDirs {
		if err := notify.Watch(filepath.Join(dir, "..."), chgs, notify.All); err != nil {
			err = errors.Wrapf(err, "cannot add inotify watcher for '%s'", dir)
			log.Error(err)
		}
	}

	ticker := time.NewTicker(me.cfg.Cnt.UpdateInterval * time.Second)

	// semaphore to ensure that only one rescan runs at any time
	sema := make(chan struct{}, 1)

	var dirty bool
	var mutDirty sync.Mutex

	defer func() {
		notify.Stop(chgs)
		ticker.Stop()
		log.Trace("library updater stopped")
	}()

	for {
		select {
		case chg := <-chgs:
			log.Tracef("%s :: %s", chg.Event().String(), chg.Path())
			mutDirty.Lock()
			dirty = true
			mutDirty.Unlock()

		case <-ticker.C:
			mutDirty.Lock()
			pending := dirty
			dirty = false
			mutDirty.Unlock()
			if !pending {
				continue
			}

			select {
			case sema <- struct{}{}:
			default:
				// a rescan is still running; the next tick picks the
				// changes up
				mutDirty.Lock()
				dirty = true
				mutDirty.Unlock()
				continue
			}
			go func() {
				defer func() { <-sema }()
				changed, err := me.Rescan()
				if err != nil {
					log.Error(errors.Wrap(err, "library rescan failed"))
					return
				}
				if changed {
					me.notifyChange()
				}
			}()

		case <-ctx.Done():
			return
		}
	}
}
