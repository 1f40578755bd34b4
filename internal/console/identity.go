// SPDX-License-Identifier: MPL-2.0

package console

import "time"

// buildDateLayout is how the firmware build timestamp is shown by "version".
const buildDateLayout = "2006-01-02 15:04:05"

// Identity holds the static product strings shown in the banner and by the
// version built-in.
type Identity struct {
	ProductName     string
	Copyright       string
	BoardVersion    string
	FirmwareVersion string
	BuildTime       time.Time
}

// BuildDate renders BuildTime for humans, or "unknown" when it is unset.
func (id Identity) BuildDate() string {
	if id.BuildTime.IsZero() {
		return "unknown"
	}
	return id.BuildTime.UTC().Format(buildDateLayout)
}
