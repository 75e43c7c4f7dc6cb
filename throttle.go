// Copyright (C) The TCGA-Codeletion Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package codeletion

import "sync"

// A throttle limits the number of concurrent workers and remembers
// the first error any of them reports. Acquire before starting a
// worker, Release when it finishes, Wait for all of them.
type throttle struct {
	Max       int
	wg        sync.WaitGroup
	setupOnce sync.Once
	ch        chan bool
	mtx       sync.Mutex
	err       error
}

func (t *throttle) Acquire() {
	t.setupOnce.Do(func() {
		if t.Max < 1 {
			t.Max = 1
		}
		t.ch = make(chan bool, t.Max)
	})
	t.wg.Add(1)
	t.ch <- true
}

func (t *throttle) Release() {
	t.wg.Done()
	<-t.ch
}

// Report records err as the throttle's error, unless an earlier error
// is already recorded. Report(nil) is a no-op.
func (t *throttle) Report(err error) {
	if err == nil {
		return
	}
	t.mtx.Lock()
	defer t.mtx.Unlock()
	if t.err == nil {
		t.err = err
	}
}

func (t *throttle) Err() error {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	return t.err
}

// Wait blocks until all acquired workers have released, then returns
// the first reported error, if any.
func (t *throttle) Wait() error {
	t.wg.Wait()
	return t.Err()
}
