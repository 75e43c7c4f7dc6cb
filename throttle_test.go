// Copyright (C) The TCGA-Codeletion Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package codeletion

import (
	"errors"
	"sync"
	"time"

	"gopkg.in/check.v1"
)

type throttleSuite struct{}

var _ = check.Suite(&throttleSuite{})

func (s *throttleSuite) TestConcurrencyLimit(c *check.C) {
	th := throttle{Max: 3}
	var mtx sync.Mutex
	var current, peak, done int
	for i := 0; i < 20; i++ {
		th.Acquire()
		go func() {
			defer th.Release()
			mtx.Lock()
			current++
			if current > peak {
				peak = current
			}
			mtx.Unlock()
			time.Sleep(time.Millisecond)
			mtx.Lock()
			current--
			done++
			mtx.Unlock()
		}()
	}
	th.Wait()
	c.Check(done, check.Equals, 20)
	c.Check(peak <= 3, check.Equals, true, check.Commentf("peak %d", peak))
	c.Check(th.Err(), check.IsNil)
}

func (s *throttleSuite) TestZeroMaxIsSerial(c *check.C) {
	var th throttle
	var mtx sync.Mutex
	var current, peak int
	for i := 0; i < 5; i++ {
		th.Acquire()
		go func() {
			defer th.Release()
			mtx.Lock()
			current++
			if current > peak {
				peak = current
			}
			current--
			mtx.Unlock()
		}()
	}
	th.Wait()
	c.Check(peak, check.Equals, 1)
}

func (s *throttleSuite) TestReportKeepsFirstError(c *check.C) {
	var th throttle
	th.Report(nil)
	c.Check(th.Err(), check.IsNil)
	err1 := errors.New("first failure")
	th.Report(err1)
	th.Report(errors.New("second failure"))
	c.Check(th.Err(), check.Equals, err1)
	th.Report(nil)
	c.Check(th.Err(), check.Equals, err1)
}
