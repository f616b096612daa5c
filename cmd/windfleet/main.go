package main

import (
	"context"
	"database/sql"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"
	_ "modernc.org/sqlite"

	"github.com/galeops/windfleet/internal/api"
	"github.com/galeops/windfleet/internal/assistant"
	"github.com/galeops/windfleet/internal/config"
	"github.com/galeops/windfleet/internal/fleet"
	"github.com/galeops/windfleet/internal/ingest"
	"github.com/galeops/windfleet/internal/store"
)

type CLI struct {
	DB       string        `help:"Path to SQLite database." default:"data/windfleet.db"`
	Port     string        `help:"HTTP server port." default:"8080"`
	Farms    string        `help:"Path to farms YAML config. Built-in fleet when empty." type:"existingfile" optional:""`
	Interval time.Duration `help:"Telemetry collection interval." default:"5m"`
	Seed     int64         `help:"Fleet simulator seed." default:"42"`
	NoSim    bool          `help:"Disable simulated telemetry (server only)."`
	Once     bool          `help:"Collect one round of telemetry and exit."`

	MQTTBroker   string `help:"MQTT broker host for live telemetry." env:"WINDFLEET_MQTT_BROKER"`
	MQTTPort     int    `help:"MQTT broker port." default:"1883" env:"WINDFLEET_MQTT_PORT"`
	MQTTUsername string `help:"MQTT username." env:"WINDFLEET_MQTT_USERNAME"`
	MQTTPassword string `help:"MQTT password." env:"WINDFLEET_MQTT_PASSWORD"`

	DatabricksHost  string `help:"Databricks workspace host." env:"DATABRICKS_HOST"`
	DatabricksToken string `help:"Databricks API token." env:"DATABRICKS_TOKEN"`
	GenieSpaceID    string `help:"Genie space id for the fleet assistant." env:"GENIE_SPACE_ID"`
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("windfleet"),
		kong.Description("Wind turbine fleet dashboard backend."),
		kong.Configuration(kongdotenv.ENVFileReader, ".env", ".env.local"),
	)
	kctx.FatalIfErrorf(run(cli))
}

func run(cli CLI) error {
	cfg := config.Default()
	if cli.Farms != "" {
		loaded, err := config.Load(cli.Farms)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	farms := cfg.WindFarms()

	db, err := sql.Open("sqlite", cli.DB)
	if err != nil {
		return err
	}
	defer db.Close()

	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")

	st := store.New(db)
	if err := st.Migrate(); err != nil {
		return err
	}
	log.Println("database migrated")

	sim := fleet.NewSimulator(farms, cli.Seed)
	turbines := sim.Turbines()

	for _, f := range farms {
		if err := st.UpsertFarm(f); err != nil {
			return err
		}
	}
	for _, t := range turbines {
		if err := st.UpsertTurbine(t); err != nil {
			return err
		}
	}
	log.Printf("seeded %d farms, %d turbines", len(farms), len(turbines))

	genie := assistant.NewClient(cli.DatabricksHost, cli.DatabricksToken, cli.GenieSpaceID)
	if !genie.Configured() {
		log.Println("assistant: Genie not configured, chat endpoints will return errors")
	}

	schedSim := sim
	if cli.NoSim {
		schedSim = nil
	}
	scheduler := ingest.NewScheduler(st, schedSim, turbines, cli.Interval)

	if cli.MQTTBroker != "" {
		scheduler.SetMQTTSource(ingest.NewMQTTSource(ingest.MQTTConfig{
			Broker:   cli.MQTTBroker,
			Port:     cli.MQTTPort,
			Username: cli.MQTTUsername,
			Password: cli.MQTTPassword,
		}, st))
	}

	if cli.Once {
		log.Println("running single collection")
		return scheduler.IngestOnce()
	}

	server := api.NewServer(st, cli.Port, farms, genie)
	server.SetChatHealth(genie.Health)

	if gen, err := assistant.NewSummaryGenerator(); err != nil {
		log.Printf("assistant summary generation disabled: %v", err)
	} else {
		server.SetSummaryGenerator(gen)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go scheduler.Run(ctx)

	log.Printf("starting server on :%s", cli.Port)
	return server.Run(ctx)
}
