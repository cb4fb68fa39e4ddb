//go:build !amd64

package status

import (
	"context"
	"os/exec"
	"time"
)

// Reset reboots the device, the service comes back up after boot.
func (s *Status) Reset() {
	logger.Criticalf("rebooting device")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, "systemctl", "reboot").CombinedOutput()
	if err != nil {
		logger.Errorf("systemctl reboot failed: %v, output was: %s", err, out)
	}
}
