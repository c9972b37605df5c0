package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/urfave/cli/v2"

	qerrors "github.com/pzverkov/sshkex/internal/errors"
	"github.com/pzverkov/sshkex/pkg/destination"
	"github.com/pzverkov/sshkex/pkg/metrics"
	"github.com/pzverkov/sshkex/pkg/probe"
	"github.com/pzverkov/sshkex/pkg/protocol"
)

// startServer answers every connection with a banner and a KEXINIT.
func startServer(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				conn.Write([]byte("SSH-2.0-OpenSSH_9.6\r\n"))
				if _, err := bufio.NewReader(conn).ReadString('\n'); err != nil {
					return
				}
				codec := protocol.NewCodec()
				payload, err := codec.EncodeKexInit(protocol.ClientPreferences())
				if err != nil {
					return
				}
				codec.WritePacket(conn, payload)
			}()
		}
	}()
	return ln.Addr().String()
}

func runApp(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	previous := metrics.GetLogger()
	t.Cleanup(func() { metrics.SetLogger(previous) })

	var stdout, stderr bytes.Buffer
	app := newApp()
	app.Writer = &stdout
	app.ErrWriter = &stderr
	app.ExitErrHandler = func(*cli.Context, error) {}

	err := app.Run(append([]string{"sshkex", "--log-level", "silent"}, args...))
	return stdout.String(), stderr.String(), err
}

func TestRunJSON(t *testing.T) {
	addr := startServer(t)

	out, stderr, err := runApp(t, "--json", "--metrics", "git@"+addr)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	var res map[string]interface{}
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode output %q: %v", out, err)
	}
	if res["target"] != "git@"+addr {
		t.Errorf("target = %v", res["target"])
	}
	if res["hassh_server"] == "" || res["algorithms"] == nil {
		t.Errorf("missing fingerprint or algorithms: %s", out)
	}
	if _, ok := res["error"]; ok {
		t.Errorf("unexpected error field: %s", out)
	}
	if !strings.Contains(stderr, "sshkex_handshakes_succeeded_total") {
		t.Errorf("expected metrics on stderr, got %q", stderr)
	}
}

func TestRunText(t *testing.T) {
	addr := startServer(t)

	out, _, err := runApp(t, "--tracing", "simple", "git@"+addr)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, want := range []string{"SSH-2.0-OpenSSH_9.6", "hassh server", "kex_algorithms", "negotiated kex"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRunFailureExitCode(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	out, _, err := runApp(t, "--json", "git@"+addr)
	var exit cli.ExitCoder
	if !errors.As(err, &exit) || exit.ExitCode() != 1 {
		t.Fatalf("expected exit code 1, got %v", err)
	}
	if !strings.Contains(out, `"error_kind":"connection"`) {
		t.Errorf("expected connection error in output: %s", out)
	}
}

func TestRunConfigFile(t *testing.T) {
	addr := startServer(t)
	path := filepath.Join(t.TempDir(), "sshkex.yaml")
	data := "version: \"1\"\nconcurrency: 2\ndestinations:\n  - git@" + addr + "\n  - deploy@" + addr + "\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	out, _, err := runApp(t, "--json", "--config", path)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if lines := strings.Count(strings.TrimSpace(out), "\n") + 1; lines != 2 {
		t.Errorf("expected 2 results, got %d:\n%s", lines, out)
	}
}

func TestRunArgumentErrors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr error
	}{
		{"bad destination", []string{"example.com"}, qerrors.ErrInvalidDestination},
		{"bad proxy version", []string{"--proxy-protocol", "5", "git@example.com"}, qerrors.ErrInvalidConfig},
		{"proxy version wraps a byte", []string{"--proxy-protocol", "257", "git@example.com"}, qerrors.ErrInvalidConfig},
		{"bad tracing", []string{"--tracing", "zipkin", "git@example.com"}, qerrors.ErrInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := runApp(t, tt.args...)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	_, _, err := runApp(t)
	var exit cli.ExitCoder
	if !errors.As(err, &exit) || exit.ExitCode() != 2 {
		t.Errorf("expected usage exit code 2 without destinations, got %v", err)
	}
}

func TestVersionCommand(t *testing.T) {
	out, _, err := runApp(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "sshkex v") {
		t.Errorf("version output = %q", out)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    metrics.Level
		wantErr bool
	}{
		{"debug", metrics.LevelDebug, false},
		{"INFO", metrics.LevelInfo, false},
		{"warning", metrics.LevelWarn, false},
		{"error", metrics.LevelError, false},
		{"silent", metrics.LevelSilent, false},
		{"loud", metrics.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := parseLogLevel(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, %v", tt.in, got, err)
		}
	}

	if _, err := parseLogFormat("xml"); err == nil {
		t.Error("expected error for unknown format")
	}
	if f, _ := parseLogFormat("JSON"); f != metrics.FormatJSON {
		t.Error("expected JSON format")
	}
}

func TestWriteTextFailure(t *testing.T) {
	var buf bytes.Buffer
	results := []*probe.Result{{
		Destination:  destination.Destination{Login: "git", Host: "example.com", Port: 22},
		Target:       "git@example.com",
		ServerBanner: &protocol.Banner{Raw: "SSH-2.0-Test"},
		Err:          qerrors.NewProtocolError("kexinit", qerrors.NewDecodeError("cookie", qerrors.ErrTruncated)),
	}}
	if err := writeText(&buf, results); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"git@example.com", "truncated", "SSH-2.0-Test"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("output missing %q:\n%s", want, buf.String())
		}
	}
}
