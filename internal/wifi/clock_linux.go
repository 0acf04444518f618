// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package wifi

import (
	"time"

	"golang.org/x/sys/unix"
)

// setSystemClock steps the system clock. Requires CAP_SYS_TIME; callers
// fall back to offset correction when this fails.
func setSystemClock(t time.Time) error {
	tv := unix.NsecToTimeval(t.UnixNano())
	return unix.Settimeofday(&tv)
}
