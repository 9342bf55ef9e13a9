// Package config loads runtime settings for the chat server and client.
//
// Defaults can be overridden by NICKCHAT_* environment variables, which are
// optionally read from a .env file in the working directory, and flags
// override the environment.  The port (and, for the client, the host) are
// positional arguments.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"nickchat/internal/protocol"
)

// Environment variables consulted by LoadServer.
const (
	EnvMaxFrame     = "NICKCHAT_MAX_FRAME"
	EnvSendBuffer   = "NICKCHAT_SEND_BUFFER"
	EnvWriteTimeout = "NICKCHAT_WRITE_TIMEOUT"
	EnvIdleTimeout  = "NICKCHAT_IDLE_TIMEOUT"
	EnvStatusAddr   = "NICKCHAT_STATUS_ADDR"
)

// ErrUsage is wrapped by every argument error.
var ErrUsage = errors.New("usage")

// Server holds the chat server settings.
type Server struct {
	Port         int           // TCP port to listen on
	MaxFrameSize int           // longest relayed line body in bytes
	SendBuffer   int           // per-client outbound queue length
	WriteTimeout time.Duration // deadline for each write to a client
	IdleTimeout  time.Duration // 0 disables the read deadline
	StatusAddr   string        // HTTP status listener, empty to disable
}

// Defaults returns the built-in server settings.
func Defaults() *Server {
	return &Server{
		MaxFrameSize: protocol.DefaultMaxFrameSize,
		SendBuffer:   256,
		WriteTimeout: 10 * time.Second,
	}
}

// ListenAddr is the TCP address the server binds.
func (c *Server) ListenAddr() string {
	return net.JoinHostPort("", strconv.Itoa(c.Port))
}

// Validate reports the first invalid setting.
func (c *Server) Validate() error {
	if err := validPort(c.Port); err != nil {
		return err
	}
	if c.MaxFrameSize <= protocol.MaxNameLength {
		return fmt.Errorf("%w: max frame size must exceed %d bytes", ErrUsage, protocol.MaxNameLength)
	}
	if c.SendBuffer < 1 {
		return fmt.Errorf("%w: send buffer must be at least 1", ErrUsage)
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("%w: write timeout must be positive", ErrUsage)
	}
	if c.IdleTimeout < 0 {
		return fmt.Errorf("%w: idle timeout must not be negative", ErrUsage)
	}
	return nil
}

// LoadServer builds the server settings from defaults, the environment and
// args (without the program name).  Diagnostics go to out.  flag.ErrHelp is
// returned unchanged when -h was given.
func LoadServer(args []string, out io.Writer) (*Server, error) {
	// A missing .env file is normal.
	_ = godotenv.Load()

	cfg := Defaults()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	fs := flag.NewFlagSet("nickchat-server", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.Usage = func() {
		fmt.Fprintf(out, "Relay text chat over TCP\n\n\tnickchat-server [options] <port>\n\nOptions:\n\n")
		fs.PrintDefaults()
	}
	fs.IntVar(&cfg.MaxFrameSize, "max-frame", cfg.MaxFrameSize, "longest message in bytes before it is truncated")
	fs.IntVar(&cfg.SendBuffer, "send-buffer", cfg.SendBuffer, "outbound frames queued per client")
	fs.DurationVar(&cfg.WriteTimeout, "write-timeout", cfg.WriteTimeout, "deadline for each write to a client")
	fs.DurationVar(&cfg.IdleTimeout, "idle-timeout", cfg.IdleTimeout, "disconnect clients silent this long (0 = never)")
	fs.StringVar(&cfg.StatusAddr, "status", cfg.StatusAddr, "HTTP status address, e.g. :8081 (empty = off)")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrUsage, err)
	}

	if fs.NArg() != 1 {
		return nil, fmt.Errorf("%w: nickchat-server [options] <port>", ErrUsage)
	}
	port, err := parsePort(fs.Arg(0))
	if err != nil {
		return nil, err
	}
	cfg.Port = port

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Server) applyEnv() error {
	if v := os.Getenv(EnvMaxFrame); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrUsage, EnvMaxFrame, err)
		}
		c.MaxFrameSize = n
	}
	if v := os.Getenv(EnvSendBuffer); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrUsage, EnvSendBuffer, err)
		}
		c.SendBuffer = n
	}
	if v := os.Getenv(EnvWriteTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrUsage, EnvWriteTimeout, err)
		}
		c.WriteTimeout = d
	}
	if v := os.Getenv(EnvIdleTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrUsage, EnvIdleTimeout, err)
		}
		c.IdleTimeout = d
	}
	if v := os.Getenv(EnvStatusAddr); v != "" {
		c.StatusAddr = v
	}
	return nil
}

// Client holds the terminal client settings.
type Client struct {
	Host string
	Port int
}

// Addr is the host:port the client dials.
func (c *Client) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// LoadClient parses "<host> <port>".
func LoadClient(args []string, out io.Writer) (*Client, error) {
	fs := flag.NewFlagSet("nickchat-client", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.Usage = func() {
		fmt.Fprintf(out, "Join a nickchat server\n\n\tnickchat-client <host> <port>\n")
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if fs.NArg() != 2 || fs.Arg(0) == "" {
		return nil, fmt.Errorf("%w: nickchat-client <host> <port>", ErrUsage)
	}
	port, err := parsePort(fs.Arg(1))
	if err != nil {
		return nil, err
	}
	return &Client{Host: fs.Arg(0), Port: port}, nil
}

func parsePort(s string) (int, error) {
	port, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid port %q", ErrUsage, s)
	}
	return port, validPort(port)
}

func validPort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%w: port %d out of range 1-65535", ErrUsage, port)
	}
	return nil
}
