// -*- Mode: Go; indent-tabs-mode: t -*-
//
// SPDX-License-Identifier: Apache-2.0

package common

import "time"

// UpdateTimeout folds candidate into the caller's running aggregate
// timeout, per section 4.10: "the shared timeout out-parameter
// must end as the minimum of [...] A zero-valued input is treated as
// unset for the purpose of min." Both internal/device's expect/delay
// stalls and internal/eventloop's backoff deadlines feed this.
func UpdateTimeout(cur, candidate time.Duration) time.Duration {
	if candidate <= 0 {
		return cur
	}
	if cur <= 0 || candidate < cur {
		return candidate
	}
	return cur
}
