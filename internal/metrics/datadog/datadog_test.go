package datadog

import (
	"net"
	"strings"
	"testing"
	"time"

	"rowexport/internal/metrics"
)

func TestNewBackend_RequiresAddr(t *testing.T) {
	t.Parallel()

	if _, err := NewBackend(Config{}); err == nil {
		t.Fatal("NewBackend(empty) error = nil, want error")
	}
}

func TestLabelsToTags(t *testing.T) {
	t.Parallel()

	if got := labelsToTags(nil); got != nil {
		t.Fatalf("labelsToTags(nil) = %v, want nil", got)
	}
	got := labelsToTags(metrics.Labels{"step": "export", "job": "people"})
	want := []string{"job:people", "step:export"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("labelsToTags = %v, want %v", got, want)
	}
}

func TestBackend_SendsOverUDP(t *testing.T) {
	t.Parallel()

	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("udp listen unavailable: %v", err)
	}
	defer conn.Close()

	b, err := NewBackend(Config{Addr: conn.LocalAddr().String(), Namespace: "rowexport."})
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	b.IncCounter(metrics.RecordsTotal, 4, metrics.Labels{"kind": "created"})
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 2048)
	n, _, err := conn.ReadFrom(buf)
	if err != nil {
		t.Fatalf("read datagram: %v", err)
	}
	payload := string(buf[:n])
	if !strings.Contains(payload, "rowexport."+metrics.RecordsTotal+":4|c") {
		t.Errorf("payload = %q, want counter line", payload)
	}
	if !strings.Contains(payload, "kind:created") {
		t.Errorf("payload = %q, want kind tag", payload)
	}
}
