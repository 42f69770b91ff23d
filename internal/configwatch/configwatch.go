// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package configwatch watches the running config file for changes and
// logs a reminder to restart, adapted from the teacher's
// internal/watcher.BinaryWatcher — generalized from "restart the
// service whose binary changed" down to "this process does not hot
// reload configuration, so just tell the operator".
package configwatch

import (
	"log"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches a single config file path for writes.
type Watcher struct {
	fsw     *fsnotify.Watcher
	closeCh chan struct{}
	wg      sync.WaitGroup
}

// Start begins watching path. The caller must call Close to stop it.
func Start(path string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(path); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{fsw: fsw, closeCh: make(chan struct{})}
	w.wg.Add(1)
	go w.run(path)
	return w, nil
}

func (w *Watcher) run(path string) {
	defer w.wg.Done()
	for {
		select {
		case <-w.closeCh:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				log.Printf("configwatch: %s changed on disk; restart the process to pick up the new settings", path)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Printf("configwatch: %v", err)
		}
	}
}

// Close stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Close() {
	select {
	case <-w.closeCh:
	default:
		close(w.closeCh)
	}
	w.fsw.Close()
	w.wg.Wait()
}
