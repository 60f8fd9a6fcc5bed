package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/vx220/vxdash"
	"github.com/vx220/vxdash/control"
	"github.com/vx220/vxdash/forwarder"
	"github.com/vx220/vxdash/telemetry"
)

var configPath = flag.String("config", "vxdash.toml", "configuration file")
var testMode = flag.Bool("testmode", false, "generate test data")
var printTelemetry = flag.Bool("print-telemetry", false, "print telemetry to stdout")
var logLevel = flag.String("log-level", "info", "log level")

type printer struct{}

func (printer) Forward(cur *telemetry.Snapshot, _ *telemetry.Snapshot) error {
	return printSnapshot(os.Stdout, cur)
}

func printSnapshot(w io.Writer, snap *telemetry.Snapshot) error {
	b, err := json.Marshal(snap)
	if err != nil {
		return errors.Wrap(err, "marshal snapshot")
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

func main() {
	flag.Parse()
	level, err := log.ParseLevel(*logLevel)
	if err != nil {
		log.Fatal("invalid log level: ", err)
	}
	log.SetLevel(level)

	cfg, err := vxdash.LoadConfig(*configPath)
	if err != nil {
		log.Fatal("unable to load configuration: ", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dash := vxdash.New(cfg)
	dash.SetTestMode(*testMode)

	if cfg.UDP.Server != "" {
		fwder, err := forwarder.NewUDPForwarder(cfg.UDP)
		if err != nil {
			log.Fatal("unable to load UDP forwarder: ", err)
		}
		defer fwder.Close()
		go fwder.Start(ctx)
		dash.AddForwarder(fwder)
	}
	if cfg.MQTT.Broker != "" {
		fwder := forwarder.NewMQTTForwarder(cfg.MQTT)
		go fwder.Start(ctx)
		dash.AddForwarder(fwder)
	}
	if *printTelemetry {
		dash.AddForwarder(printer{})
	}

	if cfg.Control.Address != "" {
		srv, err := control.Listen(cfg.Control.Network, cfg.Control.Address, dash.Store())
		if err != nil {
			log.Fatal("unable to open control socket: ", err)
		}
		go func() {
			if err := srv.Serve(ctx); err != nil && ctx.Err() == nil {
				log.WithField("err", err).Error("control socket stopped")
			}
		}()
	}

	if err := dash.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal(err)
	}
	log.Info("shutting down")
}
