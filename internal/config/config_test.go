package config

import (
	"errors"
	"flag"
	"io"
	"testing"
	"time"

	"nickchat/internal/protocol"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{EnvMaxFrame, EnvSendBuffer, EnvWriteTimeout, EnvIdleTimeout, EnvStatusAddr} {
		t.Setenv(k, "")
	}
}

func TestLoadServer_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadServer([]string{"2001"}, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 2001 || cfg.MaxFrameSize != protocol.DefaultMaxFrameSize || cfg.SendBuffer != 256 ||
		cfg.WriteTimeout != 10*time.Second || cfg.IdleTimeout != 0 || cfg.StatusAddr != "" {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if cfg.ListenAddr() != ":2001" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr())
	}
}

func TestLoadServer_EnvThenFlags(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvMaxFrame, "512")
	t.Setenv(EnvIdleTimeout, "2m")
	t.Setenv(EnvStatusAddr, ":9000")

	cfg, err := LoadServer([]string{"-max-frame", "1024", "-send-buffer", "8", "3000"}, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.MaxFrameSize != 1024 {
		t.Errorf("flag should override env, got %d", cfg.MaxFrameSize)
	}
	if cfg.IdleTimeout != 2*time.Minute || cfg.StatusAddr != ":9000" || cfg.SendBuffer != 8 {
		t.Errorf("unexpected config %+v", cfg)
	}
}

func TestLoadServer_Errors(t *testing.T) {
	clearEnv(t)
	cases := map[string][]string{
		"no port":        {},
		"two ports":      {"1", "2"},
		"port not int":   {"abc"},
		"port too large": {"70000"},
		"port zero":      {"0"},
		"tiny frame":     {"-max-frame", "10", "2001"},
		"no buffer":      {"-send-buffer", "0", "2001"},
		"no write limit": {"-write-timeout", "0", "2001"},
		"negative idle":  {"-idle-timeout", "-1s", "2001"},
		"bad flag":       {"-nope", "2001"},
	}
	for name, args := range cases {
		if _, err := LoadServer(args, io.Discard); !errors.Is(err, ErrUsage) {
			t.Errorf("%s: expected ErrUsage, got %v", name, err)
		}
	}

	t.Setenv(EnvWriteTimeout, "soon")
	if _, err := LoadServer([]string{"2001"}, io.Discard); !errors.Is(err, ErrUsage) {
		t.Errorf("bad env duration: got %v", err)
	}
}

func TestLoadServer_Help(t *testing.T) {
	clearEnv(t)
	if _, err := LoadServer([]string{"-h"}, io.Discard); !errors.Is(err, flag.ErrHelp) {
		t.Errorf("expected flag.ErrHelp, got %v", err)
	}
}

func TestLoadClient(t *testing.T) {
	cfg, err := LoadClient([]string{"127.0.0.1", "2001"}, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Addr() != "127.0.0.1:2001" {
		t.Errorf("Addr = %q", cfg.Addr())
	}

	for _, args := range [][]string{{}, {"host"}, {"host", "x"}, {"host", "1", "extra"}, {"", "1"}} {
		if _, err := LoadClient(args, io.Discard); !errors.Is(err, ErrUsage) {
			t.Errorf("%q: expected ErrUsage, got %v", args, err)
		}
	}
}
