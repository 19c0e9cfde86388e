// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import "time"

func unixToTime(ts int32) time.Time {
	return time.Unix(int64(ts), 0).UTC()
}
