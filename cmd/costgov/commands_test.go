package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/finops-kit/costgov/internal/models"
	"github.com/finops-kit/costgov/internal/store"
)

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := newRootCmd()
	want := []string{"run", "analyze", "anomalies", "scan", "tags", "cleanup", "budget", "report", "doctor", "version"}
	have := make(map[string]bool)
	for _, c := range root.Commands() {
		have[c.Name()] = true
	}
	for _, name := range want {
		if !have[name] {
			t.Errorf("missing subcommand %q", name)
		}
	}
}

func TestVersionCommandOutput(t *testing.T) {
	var buf bytes.Buffer
	cmd := newVersionCmd()
	cmd.SetOut(&buf)
	cmd.Run(cmd, nil)

	if !strings.Contains(buf.String(), "costgov version") {
		t.Errorf("unexpected version output: %q", buf.String())
	}
}

func TestLatestPerResource(t *testing.T) {
	day := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	verdicts := []models.IdleVerdict{
		{ResourceID: "i-1", ScanDate: day, Idle: true},
		{ResourceID: "i-2", ScanDate: day, Idle: false},
		{ResourceID: "i-1", ScanDate: day.AddDate(0, 0, -1), Idle: false},
	}

	got := latestPerResource(verdicts)
	if len(got) != 2 {
		t.Fatalf("got %d verdicts, want 2", len(got))
	}
	if got[0].ResourceID != "i-1" || !got[0].Idle {
		t.Errorf("first occurrence should win: %+v", got[0])
	}
}

func TestAnomalyStatusCommands(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "costgov.db")
	cfgPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("store_path: "+dbPath+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	now := time.Now().UTC()
	seed, err := store.Open(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	anomalyID := "2026-08-31#AmazonEC2"
	if err := seed.PutAnomaly(ctx, models.CostAnomaly{
		AnomalyID:      anomalyID,
		DetectedDate:   now,
		Service:        "AmazonEC2",
		ObservedAmount: 30,
		BaselineAmount: 10,
		DeviationPct:   200,
		Severity:       models.SeverityHigh,
		Status:         models.AnomalyOpen,
		DetectedAt:     now,
		Expiry:         now.Add(30 * 24 * time.Hour),
	}); err != nil {
		t.Fatal(err)
	}
	seed.Close()

	status := func() models.AnomalyStatus {
		st, err := store.Open(dbPath)
		if err != nil {
			t.Fatal(err)
		}
		defer st.Close()
		anomalies, err := st.AnomaliesSince(ctx, time.Time{})
		if err != nil || len(anomalies) != 1 {
			t.Fatalf("read back: %v (%d anomalies)", err, len(anomalies))
		}
		return anomalies[0].Status
	}

	t.Run("ack requires an anomaly id", func(t *testing.T) {
		cmd := newAnomalyStatusCmd("ack", models.AnomalyAcknowledged)
		if err := cmd.Args(cmd, nil); err == nil {
			t.Error("expected an argument-count error")
		}
	})

	t.Run("ack advances OPEN to ACKNOWLEDGED", func(t *testing.T) {
		cmd := newAnomalyStatusCmd("ack", models.AnomalyAcknowledged)
		cmd.SetArgs([]string{anomalyID, "--config", cfgPath})
		var buf bytes.Buffer
		cmd.SetOut(&buf)
		if err := cmd.Execute(); err != nil {
			t.Fatalf("Execute: %v", err)
		}
		if got := status(); got != models.AnomalyAcknowledged {
			t.Errorf("status = %s, want ACKNOWLEDGED", got)
		}
		if !strings.Contains(buf.String(), "ACKNOWLEDGED") {
			t.Errorf("missing confirmation: %q", buf.String())
		}
	})

	t.Run("resolve advances ACKNOWLEDGED to RESOLVED", func(t *testing.T) {
		cmd := newAnomalyStatusCmd("resolve", models.AnomalyResolved)
		cmd.SetArgs([]string{anomalyID, "--config", cfgPath})
		cmd.SetOut(new(bytes.Buffer))
		if err := cmd.Execute(); err != nil {
			t.Fatalf("Execute: %v", err)
		}
		if got := status(); got != models.AnomalyResolved {
			t.Errorf("status = %s, want RESOLVED", got)
		}
	})

	t.Run("list renders the recorded anomaly", func(t *testing.T) {
		cmd := newAnomaliesListCmd()
		cmd.SetArgs([]string{"--config", cfgPath})
		var buf bytes.Buffer
		cmd.SetOut(&buf)
		if err := cmd.Execute(); err != nil {
			t.Fatalf("Execute: %v", err)
		}
		if !strings.Contains(buf.String(), "AmazonEC2") {
			t.Errorf("missing anomaly row:\n%s", buf.String())
		}
	})
}

func TestWriteJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.json")
	if err := writeJSONFile(path, map[string]int{"executed": 3}); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]int
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if got["executed"] != 3 {
		t.Errorf("round trip mismatch: %v", got)
	}
}
