/* SPDX-License-Identifier: GPL-3.0-or-later
 *
 * dashcam-core
 * Copyright (C) 2026 e1z0 <e1z0@icloud.com>
 *
 * This file is part of dashcam-core.
 *
 * dashcam-core is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * dashcam-core is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with dashcam-core.  If not, see <https://www.gnu.org/licenses/>.
 */
package codec

import "time"

// Backoff is an exponential retry schedule starting at 1s and capping
// at 30s, doubling on every failure. Lifted from QAnotherRTSP's
// camera.go setReconnectSoon, which doubles an RTSP reconnect delay on
// the same schedule; here it paces retries against a storage backend
// collaborator (spec.md §6) that can stall transiently on removable
// media rather than against a flaky network socket.
type Backoff struct {
	current time.Duration
	max     time.Duration
}

// NewBackoff returns a Backoff starting at 1s with a 30s ceiling.
func NewBackoff() *Backoff {
	return &Backoff{current: time.Second, max: 30 * time.Second}
}

// Next returns the delay to wait before the next retry and advances
// the schedule.
func (b *Backoff) Next() time.Duration {
	if b.current <= 0 {
		b.current = time.Second
	}
	d := b.current
	if d > b.max {
		d = b.max
	}
	b.current *= 2
	if b.current > b.max {
		b.current = b.max
	}
	return d
}

// Reset returns the schedule to its initial 1s delay.
func (b *Backoff) Reset() {
	b.current = time.Second
}

// OpenWithRetry calls open(locator) up to attempts times, sleeping on
// Backoff's schedule between failures. Returns the last error if every
// attempt fails.
func OpenWithRetry(open OpenFunc, locator string, attempts int) (Adapter, error) {
	if attempts <= 0 {
		attempts = 1
	}
	bo := NewBackoff()
	var lastErr error
	for i := 0; i < attempts; i++ {
		a, err := open(locator)
		if err == nil {
			return a, nil
		}
		lastErr = err
		if i < attempts-1 {
			time.Sleep(bo.Next())
		}
	}
	return nil, lastErr
}
