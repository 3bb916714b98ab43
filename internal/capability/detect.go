// Package capability inspects the host environment once at startup to
// decide whether real screen captures are possible or placeholders must be
// synthesized, and which polling cadence suits the environment.
package capability

import (
	"log"
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/host"
)

// Capabilities describes the detected host environment. Computed once at
// process start; re-detection requires a restart.
type Capabilities struct {
	Headless       bool   `json:"headless"`
	Hostname       string `json:"hostname"`
	Platform       string `json:"platform"`
	Virtualization string `json:"virtualization"`
	Reason         string `json:"reason"`
}

// CanCaptureScreen reports whether this host can produce real screenshots.
func (c Capabilities) CanCaptureScreen() bool { return !c.Headless }

// Environment markers checked in order; the first hit decides.
var (
	ciMarkers = []string{
		"CI",
		"GITHUB_ACTIONS",
		"GITLAB_CI",
		"JENKINS_URL",
		"BUILDKITE",
	}
	cloudMarkers = []string{
		"KUBERNETES_SERVICE_HOST",
		"ECS_CONTAINER_METADATA_URI",
		"ECS_CONTAINER_METADATA_URI_V4",
		"AWS_EXECUTION_ENV",
		"DYNO",
		"FLY_APP_NAME",
		"RAILWAY_ENVIRONMENT",
	}
)

// Detect inspects environment signals and host metadata. gopsutil failures
// degrade to an empty platform description, never to a detection error.
func Detect() Capabilities {
	caps := Capabilities{}

	if info, err := host.Info(); err != nil {
		log.Printf("capability: host info unavailable: %v", err)
	} else {
		caps.Hostname = info.Hostname
		caps.Platform = info.Platform
		caps.Virtualization = info.VirtualizationSystem
	}

	if marker := firstSet(ciMarkers); marker != "" {
		caps.Headless = true
		caps.Reason = "ci environment (" + marker + ")"
		return caps
	}
	if marker := firstSet(cloudMarkers); marker != "" {
		caps.Headless = true
		caps.Reason = "cloud host (" + marker + ")"
		return caps
	}
	if os.Getenv("DISPLAY") == "" && os.Getenv("WAYLAND_DISPLAY") == "" {
		caps.Headless = true
		caps.Reason = "no display server"
		return caps
	}

	caps.Reason = "display server present"
	return caps
}

func firstSet(keys []string) string {
	for _, k := range keys {
		if os.Getenv(k) != "" {
			return k
		}
	}
	return ""
}

// CaptureInterval picks the scheduled capture cadence. Headless hosts only
// produce placeholders, so a longer interval keeps the overhead down.
func CaptureInterval(caps Capabilities, normal, degraded time.Duration) time.Duration {
	if caps.Headless {
		return degraded
	}
	return normal
}
