package wifi

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// commandTimeout bounds a single nmcli invocation, association can be slow
var commandTimeout = 30 * time.Second

// nmcli output hinting at a wrong key, retrying those is pointless
var badCredentialHints = []string{
	"Secrets were required, but not provided",
	"802-11-wireless-security.psk: property is invalid",
	"802-11-wireless-security.key-mgmt: property is missing",
}

// NMCli drives a wireless interface through NetworkManager.
type NMCli struct {
	Interface string

	run func(ctx context.Context, args ...string) ([]byte, error)
}

func NewNMCli(iface string) *NMCli {
	return &NMCli{
		Interface: iface,
		run:       runNMCli,
	}
}

func runNMCli(ctx context.Context, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	return exec.CommandContext(ctx, "nmcli", args...).CombinedOutput()
}

// Connected reports whether the interface is in the connected state.
func (n *NMCli) Connected(ctx context.Context) (bool, error) {
	// nmcli -t -c no --fields DEVICE,STATE device
	out, err := n.run(ctx, "-t", "-c", "no", "--fields", "DEVICE,STATE", "device")
	if err != nil {
		return false, fmt.Errorf("nmcli device failed: %v, output was: %s", err, out)
	}

	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		dev, state, ok := strings.Cut(sc.Text(), ":")
		if ok && dev == n.Interface {
			return state == "connected", nil
		}
	}
	return false, sc.Err()
}

// Associate connects to ssid, replacing any stale profile with the same name.
func (n *NMCli) Associate(ctx context.Context, ssid, key string) error {
	if err := n.forget(ctx, ssid); err != nil {
		logger.Warningf("removing old profile for %q failed: %v", ssid, err)
	}

	// nmcli device wifi connect <ssid> password <key> ifname <iface>
	args := []string{"device", "wifi", "connect", ssid}
	if key != "" {
		args = append(args, "password", key)
	}
	args = append(args, "ifname", n.Interface)

	out, err := n.run(ctx, args...)
	if err == nil {
		logger.Debugf("nmcli device wifi connect %q; output was: %s", ssid, out)
		return nil
	}

	for _, hint := range badCredentialHints {
		if bytes.Contains(out, []byte(hint)) {
			return fmt.Errorf("%w: %s", ErrBadCredentials, bytes.TrimSpace(out))
		}
	}
	return fmt.Errorf("nmcli device wifi connect %q failed: %v, output was: %s", ssid, err, bytes.TrimSpace(out))
}

// forget deletes saved connection profiles named ssid
func (n *NMCli) forget(ctx context.Context, ssid string) error {
	// nmcli -t -c no --fields NAME con show
	out, err := n.run(ctx, "-t", "-c", "no", "--fields", "NAME", "con", "show")
	if err != nil {
		return fmt.Errorf("nmcli con show failed: %v, output was: %s", err, out)
	}

	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		if sc.Text() != ssid {
			continue
		}

		logger.Debugf("deleting connection: %v", ssid)
		out, err := n.run(ctx, "con", "delete", ssid)
		if err != nil {
			return fmt.Errorf("nmcli con delete %q failed: %v, output was: %s", ssid, err, out)
		}
	}
	return sc.Err()
}

// SetEnabled switches the wifi radio on or off.
func (n *NMCli) SetEnabled(ctx context.Context, on bool) error {
	state := "off"
	if on {
		state = "on"
	}

	out, err := n.run(ctx, "radio", "wifi", state)
	if err != nil {
		return fmt.Errorf("nmcli radio wifi %v failed: %v, output was: %s", state, err, out)
	}
	return nil
}

// ApplyStatic switches the ssid profile to a manual ipv4 configuration and reactivates it.
func (n *NMCli) ApplyStatic(ctx context.Context, ssid string, s Static) error {
	prefix, err := prefixLen(s.Mask)
	if err != nil {
		return err
	}
	if net.ParseIP(s.IP) == nil {
		return fmt.Errorf("invalid ip address: %q", s.IP)
	}

	args := []string{
		"con", "modify", ssid,
		"ipv4.method", "manual",
		"ipv4.addresses", s.IP + "/" + strconv.Itoa(prefix),
	}
	if s.Gateway != "" {
		args = append(args, "ipv4.gateway", s.Gateway)
	}
	if s.DNS != "" {
		args = append(args, "ipv4.dns", s.DNS)
	}

	if out, err := n.run(ctx, args...); err != nil {
		return fmt.Errorf("nmcli con modify %q failed: %v, output was: %s", ssid, err, out)
	}
	if out, err := n.run(ctx, "con", "up", ssid); err != nil {
		return fmt.Errorf("nmcli con up %q failed: %v, output was: %s", ssid, err, out)
	}
	return nil
}

// prefixLen converts a dotted subnet mask like 255.255.255.0 to 24
func prefixLen(mask string) (int, error) {
	ip := net.ParseIP(mask).To4()
	if ip == nil {
		return 0, fmt.Errorf("invalid subnet mask: %q", mask)
	}

	ones, bits := net.IPMask(ip).Size()
	if bits == 0 {
		return 0, fmt.Errorf("non-contiguous subnet mask: %q", mask)
	}
	return ones, nil
}
