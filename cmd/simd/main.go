package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/simctl/internal/backend"
	"github.com/danmuck/simctl/internal/config"
	"github.com/danmuck/simctl/internal/observability"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "simd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to simd toml config")
	tcpAddr := flag.String("tcp", "", "tcp listen address override")
	udpAddr := flag.String("udp", "", "udp listen address override")
	flag.Parse()

	observability.InitLogger("simd")

	cfg := config.DefaultDaemonConfig()
	if *configPath != "" {
		loaded, err := config.LoadDaemonConfig(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if *tcpAddr != "" {
		cfg.TCPAddr = *tcpAddr
	}
	if *udpAddr != "" {
		cfg.UDPAddr = *udpAddr
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	core := backend.NewSimCore()
	errs := make(chan error, 2)

	if cfg.TCPAddr != "" {
		ln, err := net.Listen("tcp", cfg.TCPAddr)
		if err != nil {
			return err
		}
		log.Info().Str("addr", ln.Addr().String()).Msg("simd tcp listening")
		go func() { errs <- backend.Serve(ctx, ln, core) }()
	}
	if cfg.UDPAddr != "" {
		pc, err := net.ListenPacket("udp", cfg.UDPAddr)
		if err != nil {
			return err
		}
		log.Info().Str("addr", pc.LocalAddr().String()).Msg("simd udp listening")
		go func() { errs <- backend.ServePacket(ctx, pc, core) }()
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case s := <-sig:
		log.Info().Str("signal", s.String()).Msg("simd shutting down")
		cancel()
		return nil
	case err := <-errs:
		return err
	}
}
