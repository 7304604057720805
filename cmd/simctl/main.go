package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/simctl/internal/command"
	"github.com/danmuck/simctl/internal/config"
	"github.com/danmuck/simctl/internal/lifecycle"
	"github.com/danmuck/simctl/internal/observability"
	"github.com/danmuck/simctl/internal/registry"
	"github.com/danmuck/simctl/internal/transport"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "simctl: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to simctl toml config")
	methodName := flag.String("method", "", "connection method override")
	address := flag.String("addr", "", "server address override")
	modelPath := flag.String("load", "", "model path to load before stepping")
	steps := flag.Int("steps", 240, "number of simulation steps to run")
	flag.Parse()

	observability.InitLogger("simctl")

	cfg := config.DefaultClientConfig()
	if *configPath != "" {
		loaded, err := config.LoadClientConfig(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if *methodName != "" {
		m, err := transport.ParseMethod(*methodName)
		if err != nil {
			return err
		}
		cfg.Method = m
	}
	if *address != "" {
		cfg.Address = *address
	}
	if cfg.Method == transport.DirectLocal {
		// No server configured: run against the built-in core.
		cfg.Method = transport.InProcessDefault
	}

	reg := registry.New()
	drain := lifecycle.NewDrainer(reg)
	defer drain.Drain()
	stop := drain.OnSignal(func() { os.Exit(1) })
	defer stop()

	id, err := reg.Allocate(cfg.Method, cfg.Params())
	if err != nil {
		return err
	}
	sess, err := reg.Lookup(id)
	if err != nil {
		return err
	}

	if *modelPath != "" {
		st, err := sess.Submit(command.Command{Kind: command.LoadModel, ModelPath: *modelPath})
		if err != nil {
			return err
		}
		payload, err := command.Extract(st, command.LoadCompleted)
		if err != nil {
			return err
		}
		log.Info().Uint32("body_id", payload.BodyID).Str("name", payload.BodyName).Msg("model loaded")
	}

	start := time.Now()
	var last command.Payload
	for i := 0; i < *steps; i++ {
		st, err := sess.Submit(command.Command{Kind: command.StepSimulation, NumSteps: 1})
		if err != nil {
			return err
		}
		last, err = command.Extract(st, command.StepCompleted)
		if err != nil {
			return err
		}
	}
	elapsed := time.Since(start)

	fmt.Printf("method=%s steps=%d sim_time=%s wall=%s\n",
		cfg.Method, last.StepCount,
		time.Duration(last.SimTimeUS)*time.Microsecond, elapsed.Round(time.Millisecond))

	reg.Release(id)
	return nil
}
