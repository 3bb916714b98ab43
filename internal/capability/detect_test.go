package capability

import (
	"testing"
	"time"
)

// clearMarkers blanks every marker Detect inspects so each test starts from
// a clean environment.
func clearMarkers(t *testing.T) {
	t.Helper()
	for _, k := range append(append([]string{}, ciMarkers...), cloudMarkers...) {
		t.Setenv(k, "")
	}
	t.Setenv("DISPLAY", "")
	t.Setenv("WAYLAND_DISPLAY", "")
}

func TestDetectHeadlessWithoutDisplay(t *testing.T) {
	clearMarkers(t)

	caps := Detect()
	if !caps.Headless {
		t.Fatal("expected headless without a display server")
	}
	if caps.Reason != "no display server" {
		t.Fatalf("reason = %q", caps.Reason)
	}
	if caps.CanCaptureScreen() {
		t.Fatal("headless host must not report capture capability")
	}
}

func TestDetectWithDisplay(t *testing.T) {
	clearMarkers(t)
	t.Setenv("DISPLAY", ":0")

	caps := Detect()
	if caps.Headless {
		t.Fatalf("expected capture-capable host, got reason %q", caps.Reason)
	}
	if !caps.CanCaptureScreen() {
		t.Fatal("display present must report capture capability")
	}
}

func TestDetectCIMarkerWinsOverDisplay(t *testing.T) {
	clearMarkers(t)
	t.Setenv("DISPLAY", ":0")
	t.Setenv("GITHUB_ACTIONS", "true")

	caps := Detect()
	if !caps.Headless {
		t.Fatal("CI marker must force headless")
	}
	if caps.Reason != "ci environment (GITHUB_ACTIONS)" {
		t.Fatalf("reason = %q", caps.Reason)
	}
}

func TestDetectCloudMarker(t *testing.T) {
	clearMarkers(t)
	t.Setenv("DISPLAY", ":0")
	t.Setenv("KUBERNETES_SERVICE_HOST", "10.0.0.1")

	caps := Detect()
	if !caps.Headless {
		t.Fatal("cloud marker must force headless")
	}
	if caps.Reason != "cloud host (KUBERNETES_SERVICE_HOST)" {
		t.Fatalf("reason = %q", caps.Reason)
	}
}

func TestCaptureInterval(t *testing.T) {
	normal := 5 * time.Minute
	degraded := 30 * time.Minute

	if got := CaptureInterval(Capabilities{Headless: false}, normal, degraded); got != normal {
		t.Fatalf("capture-capable interval = %v", got)
	}
	if got := CaptureInterval(Capabilities{Headless: true}, normal, degraded); got != degraded {
		t.Fatalf("headless interval = %v", got)
	}
}
