// status implements monitoring of system status
// checks for system temperature, uptime, load and available memory
// and logs them periodically
package status

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/juju/loggo"
)

var logger = loggo.GetLogger("main.status")

// CheckDurr is the time between two health reports
var CheckDurr = 5 * time.Minute

type Status struct {
	ctx context.Context
	// root is prepended to the /proc and /sys paths
	root string
}

// Report is a snapshot of the system health, zero values mean unknown.
type Report struct {
	Temperature  float64 // celsius
	Uptime       time.Duration
	Loads        [3]float64
	MemAvailable uint64 // bytes
}

func (r Report) String() string {
	now := time.Now()
	return fmt.Sprintf("temp: %.1fC, up: %v, load: %.2f %.2f %.2f, mem available: %v",
		r.Temperature,
		strings.TrimSpace(humanize.RelTime(now.Add(-r.Uptime), now, "", "")),
		r.Loads[0], r.Loads[1], r.Loads[2],
		humanize.IBytes(r.MemAvailable),
	)
}

func New(ctx context.Context) *Status {
	return &Status{
		ctx:  ctx,
		root: "/",
	}
}

// Run logs a Report every CheckDurr until the context is cancelled.
func (s *Status) Run() error {
	t := time.NewTicker(CheckDurr)
	defer t.Stop()

	logger.Infof("status: %v", s.Check())
	for {
		select {
		case <-s.ctx.Done():
			return nil
		case <-t.C:
			r := s.Check()
			if r.Temperature >= 80 {
				logger.Warningf("status: running hot, %v", r)
				continue
			}
			logger.Infof("status: %v", r)
		}
	}
}

// Check collects a Report, unreadable values are logged and left zero.
func (s *Status) Check() Report {
	var r Report
	var err error

	if r.Temperature, err = s.temperature(); err != nil {
		logger.Debugf("reading temperature failed: %v", err)
	}
	if r.Uptime, err = s.uptime(); err != nil {
		logger.Debugf("reading uptime failed: %v", err)
	}
	if r.Loads, err = s.loads(); err != nil {
		logger.Debugf("reading load average failed: %v", err)
	}
	if r.MemAvailable, err = s.memAvailable(); err != nil {
		logger.Debugf("reading meminfo failed: %v", err)
	}

	return r
}

func (s *Status) read(path string) ([]byte, error) {
	b, err := os.ReadFile(filepath.Join(s.root, path))
	return bytes.TrimSpace(b), err
}

// temperature reads the SoC temperature, 43802 -> 43.802C
func (s *Status) temperature() (float64, error) {
	b, err := s.read("sys/class/thermal/thermal_zone0/temp")
	if err != nil {
		return 0, err
	}

	mc, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return 0, err
	}
	return float64(mc) / 1000, nil
}

// uptime reads the first field of /proc/uptime, seconds with fractions
func (s *Status) uptime() (time.Duration, error) {
	b, err := s.read("proc/uptime")
	if err != nil {
		return 0, err
	}

	f := strings.Fields(string(b))
	if len(f) == 0 {
		return 0, fmt.Errorf("unexpected uptime: %q", b)
	}

	secs, err := strconv.ParseFloat(f[0], 64)
	if err != nil {
		return 0, err
	}
	return time.Duration(secs * float64(time.Second)), nil
}

func (s *Status) loads() ([3]float64, error) {
	var loads [3]float64

	b, err := s.read("proc/loadavg")
	if err != nil {
		return loads, err
	}

	f := strings.Fields(string(b))
	if len(f) < 3 {
		return loads, fmt.Errorf("unexpected loadavg: %q", b)
	}

	for i := range loads {
		loads[i], err = strconv.ParseFloat(f[i], 64)
		if err != nil {
			return loads, err
		}
	}
	return loads, nil
}

func (s *Status) memAvailable() (uint64, error) {
	b, err := s.read("proc/meminfo")
	if err != nil {
		return 0, err
	}

	// MemAvailable:    1234567 kB
	sc := bufio.NewScanner(bytes.NewReader(b))
	for sc.Scan() {
		f := strings.Fields(sc.Text())
		if len(f) < 2 || f[0] != "MemAvailable:" {
			continue
		}

		kb, err := strconv.ParseUint(f[1], 10, 64)
		if err != nil {
			return 0, err
		}
		return kb * 1024, nil
	}
	if err := sc.Err(); err != nil {
		return 0, err
	}
	return 0, fmt.Errorf("no MemAvailable in meminfo")
}
