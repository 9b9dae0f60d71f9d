package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// resetFlags restores every package flag variable, since rootCmd is shared
// between runs.
func resetFlags() {
	verbose = false
	configPath = ""
	timeout = 0
	metricsAddr = ""
	simModels = nil
	noScan = false
	useGeneric = false

	listRefresh = false
	listIdentify = false
	discoverAll = false
	discoverRefresh = false
	captureChannel = 1
	captureTimebase = 0
	captureVdiv = 0
	captureCoupling = ""
	captureOutput = ""
	snapTable = "timebase"
	snapFamily = "ds1000z"
	snapList = false
	commandsCategory = ""
	supplyOutput = 1
	supplyVoltage = -1
	supplyCurrent = -1
	supplyOn = false
	supplyOff = false
	watchChannel = 1
	watchInterval = time.Second
	watchCount = 0
}

// run executes the root command with args and returns what it printed.
func run(t *testing.T, args []string) (string, error) {
	t.Helper()

	// Capture stdout
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	var buf bytes.Buffer
	done := make(chan struct{})
	go func() {
		buf.ReadFrom(r)
		close(done)
	}()

	resetFlags()
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()

	w.Close()
	os.Stdout = old
	<-done
	return buf.String(), err
}

func TestCommandsE2E(t *testing.T) {
	const scope = "SIM::DS1054Z::INSTR"

	tests := []struct {
		name        string
		args        []string
		wantErr     bool
		wantContain []string
	}{
		{
			name: "list simulated",
			args: []string{"list", "--no-scan", "--sim", "DS1054Z", "--sim", "DP832"},
			wantContain: []string{
				"Found 2 resource(s)",
				"SIM::DS1054Z::INSTR",
				"Simulator DP832",
			},
		},
		{
			name: "list with identities",
			args: []string{"list", "--no-scan", "--identify", "--sim", "DS1054Z", "--sim", "34461A"},
			wantContain: []string{
				"RIGOL TECHNOLOGIES DS1054Z",
				"[rigol-ds1000z]",
				"[keysight-truevolt]",
			},
		},
		{
			name:    "list unknown simulator",
			args:    []string{"list", "--no-scan", "--sim", "HP3478A"},
			wantErr: true,
		},
		{
			name: "identify scope",
			args: []string{"identify", scope},
			wantContain: []string{
				"Model:        DS1054Z",
				"Serial:       DS1ZA000000001",
				"Vendor:       Rigol Technologies",
				"Driver:       rigol-ds1000z",
				"Categories:   scope",
				"Capabilities: horizontal, vertical, trigger, display",
			},
		},
		{
			name: "identify meter",
			args: []string{"identify", "SIM::34461A::INSTR"},
			wantContain: []string{
				"Driver:       keysight-truevolt",
				"Capabilities: meter",
			},
		},
		{
			name:    "identify bad locator",
			args:    []string{"identify", "GPIB0::1::INSTR"},
			wantErr: true,
		},
		{
			name: "discover all scopes",
			args: []string{"discover", "scope", "--all", "--no-scan", "--sim", "DP832", "--sim", "DS1054Z", "--sim", "DSOX2024A"},
			wantContain: []string{
				"Found 2 scope instrument(s)",
				"[0] RIGOL TECHNOLOGIES DS1054Z",
				"[1] KEYSIGHT TECHNOLOGIES DSO-X 2024A",
				"keysight-infiniivision",
			},
		},
		{
			name: "discover first supply",
			args: []string{"discover", "SUPPLY", "--no-scan", "--sim", "DS1054Z", "--sim", "DP832"},
			wantContain: []string{
				"Found 1 supply instrument(s)",
				"DP832",
				"Capabilities: source",
			},
		},
		{
			name:    "discover nothing",
			args:    []string{"discover", "generator", "--no-scan", "--sim", "DS1054Z"},
			wantErr: true,
		},
		{
			name:    "discover unknown category",
			args:    []string{"discover", "spectrum"},
			wantErr: true,
		},
		{
			name: "capture snaps settings",
			args: []string{"capture", scope, "--channel", "1", "--timebase", "3e-4", "--vdiv", "0.3", "--coupling", "ac"},
			wantContain: []string{
				"Timebase:  0.0005 s/div",
				"Scale:     0.5 V/div",
				"Captured 1200 samples from CH1 (DS1054Z)",
				"Pk-Pk:",
			},
		},
		{
			name: "capture keysight",
			args: []string{"capture", "SIM::DSOX2024A::INSTR", "--channel", "2"},
			wantContain: []string{
				"Captured 1000 samples from CH2 (DSO-X 2024A)",
			},
		},
		{
			name:    "capture missing channel",
			args:    []string{"capture", scope, "--channel", "9"},
			wantErr: true,
		},
		{
			name:    "capture from supply",
			args:    []string{"capture", "SIM::DP832::INSTR"},
			wantErr: true,
		},
		{
			name:    "capture invalid coupling",
			args:    []string{"capture", scope, "--coupling", "HF"},
			wantErr: true,
		},
		{
			name:        "snap timebase",
			args:        []string{"snap", "3e-4"},
			wantContain: []string{"0.0005"},
		},
		{
			name:        "snap rounds up between entries",
			args:        []string{"snap", "1.2e-3", "--table", "vdiv"},
			wantContain: []string{"0.002"},
		},
		{
			name:        "snap infiniivision vdiv ceiling",
			args:        []string{"snap", "20", "--table", "vdiv", "--family", "infiniivision"},
			wantContain: []string{"5\n"},
		},
		{
			name:        "snap list",
			args:        []string{"snap", "--list", "--table", "vdiv"},
			wantContain: []string{"0.001\n", "10\n"},
		},
		{
			name:    "snap needs a value",
			args:    []string{"snap"},
			wantErr: true,
		},
		{
			name:    "snap unknown family",
			args:    []string{"snap", "1", "--family", "tds2000"},
			wantErr: true,
		},
		{
			name:        "commands families",
			args:        []string{"commands"},
			wantContain: []string{"dp800", "ds1000z", "infiniivision", "truevolt"},
		},
		{
			name:        "commands by category",
			args:        []string{"commands", "ds1000z", "--category", "trigger"},
			wantContain: []string{"trigger.edge.slope", "RFALl"},
		},
		{
			name:    "commands unknown family",
			args:    []string{"commands", "tds2000"},
			wantErr: true,
		},
		{
			name: "supply on",
			args: []string{"supply", "SIM::DP832::INSTR", "--output", "1", "--voltage", "3.3", "--current", "0.5", "--on"},
			wantContain: []string{
				"CH1 voltage: 3.3 V",
				"CH1 current: 0.5 A",
				"CH1 output:  ON",
				"CH1 reading: 3.3 V, 0 A",
			},
		},
		{
			name:        "supply clamps to rating",
			args:        []string{"supply", "SIM::DP832::INSTR", "--output", "3", "--voltage", "12"},
			wantContain: []string{"CH3 voltage: 5 V"},
		},
		{
			name:    "supply on and off",
			args:    []string{"supply", "SIM::DP832::INSTR", "--on", "--off"},
			wantErr: true,
		},
		{
			name:        "measure dc volts",
			args:        []string{"measure", "SIM::34461A::INSTR", "voltage:dc"},
			wantContain: []string{"voltage:dc: 1.23456789"},
		},
		{
			name:        "measure lists functions",
			args:        []string{"measure", "SIM::34461A::INSTR"},
			wantContain: []string{"voltage:dc", "resistance"},
		},
		{
			name:    "measure on a scope",
			args:    []string{"measure", scope, "voltage:dc"},
			wantErr: true,
		},
		{
			name:        "raw query",
			args:        []string{"query", scope, "*IDN?"},
			wantContain: []string{"RIGOL TECHNOLOGIES,DS1054Z,"},
		},
		{
			name: "raw write",
			args: []string{"query", scope, ":CHAN1:SCAL 0.5"},
		},
		{
			name:    "raw write rejected",
			args:    []string{"query", scope, ":NOSUCH:THING 1"},
			wantErr: true,
		},
		{
			name: "watch",
			args: []string{"watch", scope, "--count", "2", "--interval", "10ms"},
			wantContain: []string{
				"   1  ",
				"   2  ",
				"CH1  n=1200",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output, err := run(t, tt.args)

			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got nil\nOutput:\n%s", output)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v\nOutput:\n%s", err, output)
			}
			for _, want := range tt.wantContain {
				if !strings.Contains(output, want) {
					t.Errorf("output missing %q\nOutput:\n%s", want, output)
				}
			}
		})
	}
}

func TestConfigFileE2E(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bench.yaml")
	body := `
resources:
  usb:
    enabled: false
  simulated: [DSOX2024A]
transport:
  timeout: 2s
log:
  level: warn
  output: file
  file_path: ` + filepath.Join(dir, "bench.log") + `
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	output, err := run(t, []string{"discover", "scope", "--config", path})
	if err != nil {
		t.Fatalf("discover: %v\nOutput:\n%s", err, output)
	}
	if !strings.Contains(output, "DSO-X 2024A") {
		t.Fatalf("output missing configured simulator:\n%s", output)
	}

	if _, err := run(t, []string{"list", "--config", filepath.Join(dir, "missing.yaml")}); err == nil {
		t.Fatalf("missing config file accepted")
	}
}
