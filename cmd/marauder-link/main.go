package main

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/ExclusiveAccount/marauder-link/pkg/api"
	"github.com/ExclusiveAccount/marauder-link/pkg/config"
	"github.com/ExclusiveAccount/marauder-link/pkg/engine"
	"github.com/ExclusiveAccount/marauder-link/pkg/export"
	"github.com/ExclusiveAccount/marauder-link/pkg/protocol"
	"github.com/ExclusiveAccount/marauder-link/pkg/serial"
)

const (
	appName    = "marauder-link"
	appVersion = "1.0.0"
)

var log = logrus.New()

func main() {
	app := &cli.App{
		Name:    appName,
		Usage:   "Serial console for ESP32 Marauder pentest firmware",
		Version: appVersion,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE`",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"MARAUDER_LINK_LOG_LEVEL"},
			},
		},
		Before: func(c *cli.Context) error {
			level, err := logrus.ParseLevel(c.String("log-level"))
			if err != nil {
				level = logrus.InfoLevel
			}
			log.SetLevel(level)
			log.SetFormatter(&logrus.TextFormatter{
				FullTimestamp:   true,
				TimestampFormat: "2006-01-02 15:04:05",
			})
			return nil
		},
		Commands: []*cli.Command{
			commandRun(),
			commandPorts(),
			commandSessions(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func loadConfig(c *cli.Context) config.Config {
	cfg := config.DefaultConfig()
	if path := c.String("config"); path != "" {
		loaded, err := config.LoadConfigFromFile(path)
		if err != nil {
			log.Warnf("Failed to load config file, using defaults: %v", err)
		} else {
			cfg = loaded
		}
	}
	if c.String("port") != "" {
		cfg.Port = c.String("port")
	}
	if c.Int("baud") != 0 {
		cfg.BaudRate = c.Int("baud")
	}
	if c.Bool("dashboard") {
		cfg.EnableDashboard = true
	}
	if c.String("dashboard-port") != "" {
		cfg.DashboardPort = c.String("dashboard-port")
	}
	return cfg
}

func commandRun() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Connect to the device and open the interactive console",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "port", Aliases: []string{"p"}, Usage: "Serial port path (auto-detected when empty)"},
			&cli.IntFlag{Name: "baud", Aliases: []string{"b"}, Usage: "Serial baud rate"},
			&cli.BoolFlag{Name: "dashboard", Aliases: []string{"d"}, Usage: "Start the web dashboard"},
			&cli.StringFlag{Name: "dashboard-port", Usage: "Port for the web dashboard"},
			&cli.BoolFlag{Name: "record", Aliases: []string{"r"}, Usage: "Start session recording immediately"},
		},
		Action: runConsole,
	}
}

func runConsole(c *cli.Context) error {
	cfg := loadConfig(c)
	displayBanner()

	portPath := cfg.Port
	if portPath == "" {
		detected, err := serial.DetectPort(cfg.PortGlobs)
		if err != nil {
			return fmt.Errorf("no serial port specified and auto-detection found nothing")
		}
		log.Infof("Auto-detected serial port: %s", detected)
		portPath = detected
	}

	port, err := serial.Open(portPath, cfg.BaudRate, log)
	if err != nil {
		return err
	}
	defer port.Close()

	eng := engine.NewEngine(cfg, log)

	// Bridge engine notifications to the foreground feed through a
	// buffered channel; the reader goroutine never prints directly.
	feed := make(chan engine.Notification, 256)
	eng.RegisterObserver(func(n engine.Notification) {
		select {
		case feed <- n:
		default:
		}
	})
	go drainFeed(feed)

	reader := protocol.NewReader(port, eng.HandleEvent, log)
	eng.AttachTransport(port)
	if err := reader.Start(); err != nil {
		return err
	}

	if c.Bool("record") {
		path, err := eng.StartRecording()
		if err != nil {
			return err
		}
		color.Green("Recording session to %s", path)
	}

	if cfg.EnableDashboard {
		server := api.NewServer(cfg, eng, reader.RawHistory, log)
		go func() {
			if err := server.Start(); err != nil {
				log.Errorf("Dashboard server error: %v", err)
			}
		}()
		color.Green("Web dashboard running at http://localhost:%s", cfg.DashboardPort)
	}

	runREPL(eng, reader)

	if err := eng.StopRecording(); err != nil {
		log.Warnf("Failed to close session file: %v", err)
	}
	return nil
}

// drainFeed prints the activity feed on the foreground side of the
// notification channel.
func drainFeed(feed <-chan engine.Notification) {
	for n := range feed {
		if n.Kind != "event" || n.Record == nil {
			continue
		}
		rec := n.Record
		switch {
		case rec.Vendor != "":
			color.Cyan("  %-12s %s (%s) %ddBm", rec.Category, rec.DisplayName(), rec.Vendor, rec.RSSI)
		default:
			color.Cyan("  %-12s %s %ddBm", rec.Category, rec.DisplayName(), rec.RSSI)
		}
	}
}

// runREPL reads console commands from stdin until quit, EOF or SIGINT.
func runREPL(eng *engine.Engine, reader *protocol.Reader) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	printHelp()
	for {
		select {
		case <-sigCh:
			color.Yellow("Shutting down...")
			return
		case <-reader.Done():
			color.Red("Serial link lost. Restart to reconnect.")
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if quit := handleCommand(eng, strings.Fields(line)); quit {
				return
			}
		}
	}
}

func handleCommand(eng *engine.Engine, args []string) bool {
	if len(args) == 0 {
		return false
	}

	var err error
	switch args[0] {
	case "quit", "exit":
		return true
	case "help":
		printHelp()
	case "scan":
		if len(args) < 2 {
			color.Red("Usage: scan ap|sta|ble")
			return false
		}
		switch args[1] {
		case "ap":
			err = eng.Dispatch(engine.ActionScanWiFiAP, nil)
		case "sta":
			err = eng.Dispatch(engine.ActionScanStations, nil)
		case "ble":
			err = eng.Dispatch(engine.ActionScanBLE, nil)
		default:
			color.Red("Unknown scan type %q", args[1])
		}
	case "stop":
		err = eng.Dispatch(engine.ActionStopScan, nil)
	case "deauth":
		if len(args) < 2 {
			color.Red("Usage: deauth <bssid>")
			return false
		}
		err = eng.Dispatch(engine.ActionAttackDeauth, engine.Params{"target": args[1]})
	case "beacon":
		err = eng.Dispatch(engine.ActionAttackBeacon, nil)
	case "rickroll":
		err = eng.Dispatch(engine.ActionAttackRickroll, nil)
	case "blespam":
		if len(args) < 2 {
			color.Red("Usage: blespam apple|samsung|google|windows|flipper|all")
			return false
		}
		err = eng.Dispatch(engine.ActionBLESpam, engine.Params{"target": args[1]})
	case "record":
		var path string
		path, err = eng.StartRecording()
		if err == nil {
			color.Green("Recording session to %s", path)
		}
	case "stoprecord":
		err = eng.StopRecording()
	case "clear":
		eng.ClearResults()
	case "list":
		printInventories(eng)
	default:
		color.Red("Unknown command %q (try: help)", args[0])
	}

	if err != nil {
		color.Red("Error: %v", err)
	}
	return false
}

func printInventories(eng *engine.Engine) {
	aps := eng.APs()
	fmt.Printf("\nAccess points (%d):\n", len(aps))
	for i, ap := range aps {
		fmt.Printf("  [%d] %-24s ch%-3d %4ddBm  %s  %s\n", i, ap.DisplayName(), ap.Channel, ap.RSSI, ap.Address, ap.Vendor)
	}
	stations := eng.Stations()
	fmt.Printf("Stations (%d):\n", len(stations))
	for _, sta := range stations {
		fmt.Printf("  %s %4ddBm -> %s\n", sta.Address, sta.RSSI, sta.Associated)
	}
	ble := eng.BLEDevices()
	fmt.Printf("BLE devices (%d):\n", len(ble))
	for _, dev := range ble {
		fmt.Printf("  %-32s %4ddBm  %s\n", dev.DisplayName(), dev.RSSI, dev.Vendor)
	}
	fmt.Println()
}

func printHelp() {
	fmt.Println(`Commands:
  scan ap|sta|ble     start a scan
  stop                stop the running scan
  deauth <bssid>      deauth attack against an AP from the inventory
  beacon              random beacon flood
  rickroll            rickroll beacon attack
  blespam <target>    BLE spam (apple|samsung|google|windows|flipper|all)
  record / stoprecord session recording
  list                print inventories
  clear               clear results
  quit`)
}

func commandPorts() *cli.Command {
	return &cli.Command{
		Name:  "ports",
		Usage: "List candidate serial ports",
		Action: func(c *cli.Context) error {
			cfg := loadConfig(c)
			ports := serial.ListPorts(cfg.PortGlobs)
			if len(ports) == 0 {
				color.Yellow("No serial ports found")
				return nil
			}
			for _, p := range ports {
				fmt.Println(p)
			}
			return nil
		},
	}
}

func commandSessions() *cli.Command {
	return &cli.Command{
		Name:  "sessions",
		Usage: "Manage recorded sessions",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List recorded session files, newest first",
				Action: func(c *cli.Context) error {
					cfg := loadConfig(c)
					sessions, err := engine.ListSessions(cfg.SessionsDir)
					if err != nil {
						return err
					}
					for _, s := range sessions {
						fmt.Println(s)
					}
					return nil
				},
			},
			{
				Name:      "export",
				Usage:     "Convert a session JSONL file to CSV",
				ArgsUsage: "<session.jsonl>",
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return fmt.Errorf("expected exactly one session file argument")
					}
					csvPath, err := export.ExportSessionFile(c.Args().First())
					if err != nil {
						return err
					}
					color.Green("Wrote %s", csvPath)
					return nil
				},
			},
		},
	}
}

func displayBanner() {
	banner := `
╔══════════════════════════════════════════════════╗
║                                                  ║
║                 Marauder  Link                   ║
║                                                  ║
║        Scan - Record - Attack over serial        ║
║                                                  ║
╚══════════════════════════════════════════════════╝
`
	fmt.Println(banner)
}
