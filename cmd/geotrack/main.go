package main

import (
	"context"
	"flag"
	"log"

	lib "github.com/theoremus-urban-solutions/geotrack"
	"github.com/theoremus-urban-solutions/geotrack/config"
	"github.com/theoremus-urban-solutions/geotrack/ingest"
)

func main() {
	configPath := flag.String("config", "config.yml", "path to config file")
	flag.Parse()

	lib.InitLogging()
	if err := config.LoadAppConfigFrom(*configPath); err != nil {
		log.Fatalf("config: %v", err)
	}

	engine, err := lib.NewEngine(config.Config)
	if err != nil {
		log.Fatalf("engine: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	engine.Start(ctx)

	if config.Config.MQTT.BrokerURL != "" {
		consumer := ingest.NewMQTTConsumer(config.Config.MQTT, engine.Router)
		if err := consumer.Start(); err != nil {
			log.Fatalf("mqtt: %v", err)
		}
		defer consumer.Stop()
	}
	if poller := ingest.NewGTFSRTPoller(config.Config.GTFSRT, engine.Router); poller != nil {
		go poller.Run(ctx)
	}

	lib.StartServer(engine)
	lib.HandleGracefulShutdown()
}
