package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func Test_Parse_Flags(t *testing.T) {
	req := require.New(t)

	f, err := parseFlags([]string{"--env-file", "x.env", "--log-level", "debug", "--addr", "127.0.0.1:9000"})
	req.NoError(err)
	req.Equal(flags{envFile: "x.env", logLevel: "debug", addr: "127.0.0.1:9000"}, f)

	_, err = parseFlags([]string{"--help"})
	req.True(errors.Is(err, pflag.ErrHelp))
	_, err = parseFlags([]string{"--bogus"})
	req.Error(err)
}

func Test_Load_Config_Applies_Overrides(t *testing.T) {
	req := require.New(t)
	t.Chdir(t.TempDir())
	t.Setenv("SUPPLYWATCH_STORAGE_DRIVER", "memory")

	cfg, err := loadConfig(flags{logLevel: "warn", addr: "127.0.0.1:8088"})

	req.NoError(err)
	req.Equal("WARN", cfg.LogLevel)
	req.Equal("127.0.0.1:8088", cfg.Addr())

	_, err = loadConfig(flags{addr: "nonsense"})
	req.Error(err)
	_, err = loadConfig(flags{logLevel: "loud"})
	req.Error(err)
}

func Test_Run_Starts_And_Stops(t *testing.T) {
	req := require.New(t)
	t.Chdir(t.TempDir())
	t.Setenv("SUPPLYWATCH_STORAGE_DRIVER", "memory")
	t.Setenv("SUPPLYWATCH_LOG_LEVEL", "ERROR")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, []string{"--addr", "127.0.0.1:0"}) }()
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		req.NoError(err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}

func Test_Run_Aborts_When_Snapshot_Unreadable(t *testing.T) {
	req := require.New(t)
	dir := t.TempDir()
	t.Chdir(dir)
	dataFile := filepath.Join(dir, "rooms_data.json")
	req.NoError(os.WriteFile(dataFile, []byte("{not json"), 0o600))
	t.Setenv("SUPPLYWATCH_STORAGE_DRIVER", "file")
	t.Setenv("SUPPLYWATCH_DATA_FILE", dataFile)
	t.Setenv("SUPPLYWATCH_LOG_LEVEL", "ERROR")

	err := run(context.Background(), []string{"--addr", "127.0.0.1:0"})

	req.ErrorContains(err, "load rooms")
	raw, readErr := os.ReadFile(dataFile)
	req.NoError(readErr)
	req.Equal("{not json", string(raw))
}
