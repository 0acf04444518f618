// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

//go:build !linux

package wifi

import (
	"errors"
	"time"
)

func setSystemClock(time.Time) error {
	return errors.New("setting the system clock is not supported on this platform")
}
