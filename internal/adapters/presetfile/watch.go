package presetfile

import (
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/atvirokodosprendimai/chorerules/internal/core/usecase"
	"github.com/atvirokodosprendimai/chorerules/internal/debounce"
	"github.com/fsnotify/fsnotify"
)

const defaultSettle = 250 * time.Millisecond

// Watcher reloads the catalog when the file changes on disk. Bursts of write
// events from editors are collapsed into one reload.
type Watcher struct {
	path     string
	dec      Decoder
	onChange func([]usecase.PresetDocument)
	settle   time.Duration

	watcher   *fsnotify.Watcher
	debouncer *debounce.Debouncer
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// Watch starts watching path. onChange receives every catalog that parses;
// a file that fails to parse is logged and skipped.
func Watch(path string, dec Decoder, settle time.Duration, onChange func([]usecase.PresetDocument)) (*Watcher, error) {
	if settle <= 0 {
		settle = defaultSettle
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create preset watcher: %w", err)
	}
	// Watch the directory: editors often replace the file by rename.
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch preset catalog dir: %w", err)
	}

	w := &Watcher{
		path:      filepath.Clean(path),
		dec:       dec,
		onChange:  onChange,
		settle:    settle,
		watcher:   fw,
		debouncer: debounce.New(debounce.AfterFunc),
		done:      make(chan struct{}),
	}
	w.wg.Add(1)
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				w.debouncer.Trigger(w.path, w.settle, w.reload)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("preset catalog watch path=%s: %v", w.path, err)
		}
	}
}

func (w *Watcher) reload() {
	docs, err := Load(w.path, w.dec)
	if err != nil {
		log.Printf("preset catalog reload path=%s: %v", w.path, err)
		return
	}
	w.onChange(docs)
}

func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		w.debouncer.Stop()
		err = w.watcher.Close()
		w.wg.Wait()
	})
	return err
}
