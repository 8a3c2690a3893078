package main

/*
 * Peripheral simulates a Palmki beacon: it advertises the marker inside
 * manufacturer data and notifies the payload characteristic as a
 * sequence of chunked frames.
 */

import (
	"flag"
	"io/ioutil"
	golog "log"
	"os"
	"sync/atomic"
	"time"

	"github.com/paypal/gatt"
	"github.com/paypal/gatt/examples/option"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/BiekeSurfOrg/palm-BLE-GATT-scanner/palmki"
)

const companyID uint16 = 0xFFFF // reserved test identifier

var (
	deviceName *string
	payload    *string
	chunkSize  *int
	version    *uint
	level      *string
	consoleLog *bool

	counter   uint32
	poweredOn bool
)

func init() {
	golog.SetOutput(ioutil.Discard)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	deviceName = flag.String("name", "palmki-sim", "Device name to advertise")
	payload = flag.String("payload", "hello from the beacon", "Payload served over the chunked characteristic")
	chunkSize = flag.Int("chunk", 2, "Payload bytes per frame")
	version = flag.Uint("version", 1, "Beacon version byte")
	level = flag.String("level", "info", "Logging level, eg: panic, fatal, error, warn, info, debug, trace")
	consoleLog = flag.Bool("console-log", true, "Pass true to enable colorized console logging, false for JSON style logging")
}

// frames slices the payload into chunked notification frames.
func frames(payload []byte, chunk int) []palmki.Frame {
	if chunk <= 0 {
		chunk = 1
	}
	total := (len(payload) + chunk - 1) / chunk
	out := make([]palmki.Frame, 0, total)
	for i := 0; i < total; i++ {
		end := (i + 1) * chunk
		if end > len(payload) {
			end = len(payload)
		}
		out = append(out, palmki.Frame{
			Seq:     uint16(i),
			Total:   uint16(total),
			Payload: payload[i*chunk : end],
		})
	}
	return out
}

func newPayloadService() *gatt.Service {
	s := gatt.NewService(gatt.MustParseUUID(palmki.PayloadServiceID))

	c := s.AddCharacteristic(gatt.MustParseUUID(palmki.PayloadCharacteristicID))
	c.HandleReadFunc(
		func(rsp gatt.ResponseWriter, req *gatt.ReadRequest) {
			if _, err := rsp.Write([]byte(*payload)); err != nil {
				log.Err(err).Str("op", "read").Msg("payload read")
			}
		})
	c.HandleNotifyFunc(
		func(r gatt.Request, n gatt.Notifier) {
			ff := frames([]byte(*payload), *chunkSize)
			log.Info().Int("frames", len(ff)).Int("bytes", len(*payload)).Msg("notifying payload")
			for _, f := range ff {
				if n.Done() {
					return
				}
				if _, err := n.Write(f.Encode()); err != nil {
					log.Err(err).Uint16("seq", f.Seq).Msg("notify frame")
					return
				}
				time.Sleep(20 * time.Millisecond)
			}
		})

	return s
}

func advertisePeriodically(d gatt.Device, svc gatt.UUID) {
	log.Info().Msg("start advertising")
	for poweredOn {
		beacon := palmki.BeaconID{
			Version: uint8(*version),
			Tag:     palmki.Marker,
			Counter: uint16(atomic.AddUint32(&counter, 1)),
		}
		adv := &gatt.AdvPacket{}
		adv.AppendFlags(0x06) // general discoverable, BR/EDR unsupported
		adv.AppendUUIDFit([]gatt.UUID{svc})
		adv.AppendManufacturerData(companyID, beacon.Encode())
		if err := d.Advertise(adv); err != nil {
			log.Err(err).Msg("advertise")
		}
		time.Sleep(100 * time.Millisecond)
	}
	log.Info().Msg("stop advertising")
}

func main() {
	flag.Parse()

	if *consoleLog {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	lvl, err := zerolog.ParseLevel(*level)
	if err != nil {
		log.Fatal().Str("level", *level).Msg("invalid log level")
	}
	zerolog.SetGlobalLevel(lvl)

	log.Info().Str("device_name", *deviceName).Str("marker", palmki.Marker).Msg("creating")

	d, err := gatt.NewDevice(option.DefaultServerOptions...)
	if err != nil {
		log.Fatal().Err(err).Msg("open device")
	}

	d.Handle(
		gatt.CentralConnected(func(c gatt.Central) {
			log.Info().Str("central_id", c.ID()).Msg("central connected")
		}),
		gatt.CentralDisconnected(func(c gatt.Central) {
			log.Info().Str("central_id", c.ID()).Msg("central disconnected")
		}),
	)

	onStateChanged := func(d gatt.Device, s gatt.State) {
		log.Info().Str("state", s.String()).Msg("state changed")
		switch s {
		case gatt.StatePoweredOn:
			poweredOn = true
			svc := newPayloadService()
			d.AddService(svc)
			go advertisePeriodically(d, svc.UUID())
		default:
			poweredOn = false
		}
	}

	d.Init(onStateChanged)
	select {}
}
