package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"netpanel/internal/config"
	"netpanel/internal/devices"
	"netpanel/internal/monitor"
	"netpanel/internal/netscan"
	"netpanel/internal/pihole"
	"netpanel/internal/system"
)

const usage = `netpanel - home network scanner and Pi-hole companion

Usage:
  netpanel scan [-deep] [-json]        Run a discovery cycle
  netpanel devices [-all] [-json]      List devices (online by default)
  netpanel stats                       Registry statistics
  netpanel name <mac> <name>           Name a device and mark it trusted
  netpanel trust <mac> <true|false>    Set the trust flag
  netpanel settype <mac> <type>        Manual device type override
  netpanel forget <mac>                Drop a device from scan history
  netpanel ping                        Connectivity check against gateway and DNS
  netpanel dns <name> [server]         DNS lookup
  netpanel trace <host>                Traceroute
  netpanel port <host> <port>          Single TCP port check
  netpanel ports <ip>                  Fast port scan of one device
  netpanel system                      Host health metrics
  netpanel pihole <stats|status|enable|disable [secs]|block <domain>|allow <domain>|top>
  netpanel monitor                     Run the background watch loop

Flags:
  -config <file>   Config file (default /etc/netpanel.conf)
  -debug           Verbose logging
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := flag.NewFlagSet("netpanel", flag.ExitOnError)
	configFile := flags.String("config", "/etc/netpanel.conf", "config file")
	debug := flags.Bool("debug", false, "verbose logging")
	if err := flags.Parse(args); err != nil {
		return err
	}
	args = flags.Args()

	if len(args) == 0 {
		fmt.Print(usage)
		return nil
	}

	level := zerolog.InfoLevel
	if *debug {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		Level(level).With().Timestamp().Logger()

	cfg := config.New(*configFile)

	switch args[0] {
	case "help", "--help", "-h":
		fmt.Print(usage)
		return nil
	case "scan":
		return cmdScan(cfg, log, args[1:])
	case "devices":
		return cmdDevices(cfg, log, args[1:])
	case "stats":
		return cmdStats(cfg, log)
	case "name":
		return cmdName(cfg, log, args[1:])
	case "trust":
		return cmdTrust(cfg, log, args[1:])
	case "settype":
		return cmdSetType(cfg, log, args[1:])
	case "forget":
		return cmdForget(cfg, log, args[1:])
	case "ping":
		return cmdPing(cfg)
	case "dns":
		return cmdDNS(args[1:])
	case "trace":
		return cmdTrace(args[1:])
	case "port":
		return cmdPort(args[1:])
	case "ports":
		return cmdPorts(cfg, log, args[1:])
	case "system":
		return cmdSystem()
	case "pihole":
		return cmdPihole(cfg, args[1:])
	case "monitor":
		return cmdMonitor(cfg, log)
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func newScanner(cfg *config.Config, log zerolog.Logger) *netscan.Service {
	return netscan.New(netscan.Options{
		Subnet:       cfg.Subnet,
		LeaseFile:    cfg.LeaseFile,
		LeaseCommand: cfg.LeaseCommandArgs(),
		WatchLeases:  cfg.WatchLeases,
		FTLDatabase:  cfg.FTLDatabase,
		HistoryFile:  cfg.HistoryPath(),
		NmapBinary:   cfg.Nmap,
		ProbeTimeout: cfg.ProbeTimeout,
		DeepTimeout:  cfg.DeepTimeout,
		CacheWindow:  cfg.CacheWindow,
	}, log)
}

func cmdScan(cfg *config.Config, log zerolog.Logger, args []string) error {
	flags := flag.NewFlagSet("scan", flag.ExitOnError)
	deep := flags.Bool("deep", false, "include the nmap OS-detection pass")
	asJSON := flags.Bool("json", false, "JSON output")
	if err := flags.Parse(args); err != nil {
		return err
	}

	s := newScanner(cfg, log)
	defer s.Close()

	online := s.Scan(context.Background(), *deep, false)
	if *asJSON {
		return printJSON(online)
	}
	printDevices(cfg, online)
	fmt.Printf("\n%d devices online\n", len(online))
	return nil
}

func cmdDevices(cfg *config.Config, log zerolog.Logger, args []string) error {
	flags := flag.NewFlagSet("devices", flag.ExitOnError)
	all := flags.Bool("all", false, "include offline devices")
	asJSON := flags.Bool("json", false, "JSON output")
	if err := flags.Parse(args); err != nil {
		return err
	}

	s := newScanner(cfg, log)
	defer s.Close()

	list := s.OnlineDevices()
	if *all {
		list = s.AllDevices()
	}
	if *asJSON {
		return printJSON(list)
	}
	printDevices(cfg, list)
	return nil
}

func printDevices(cfg *config.Config, list []netscan.Device) {
	reg, _ := devices.Load(cfg.DevicesPath(), zerolog.Nop())
	for i := range list {
		d := &list[i]
		_, icon := netscan.Classify(d)
		name := netscan.DisplayName(d)
		if reg != nil {
			if custom := reg.Name(d.MAC); custom != "" {
				name = custom
			}
		}
		status := " "
		if d.Online {
			status = "*"
		}
		fmt.Printf("%s %s %-15s %-17s %s\n", status, icon, d.IP, d.MAC, name)
	}
}

func cmdStats(cfg *config.Config, log zerolog.Logger) error {
	s := newScanner(cfg, log)
	defer s.Close()
	return printJSON(s.Stats())
}

func cmdName(cfg *config.Config, log zerolog.Logger, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: netpanel name <mac> <name>")
	}
	reg, err := devices.Load(cfg.DevicesPath(), log)
	if err != nil {
		return err
	}
	return reg.Add(args[0], strings.Join(args[1:], " "), true)
}

func cmdTrust(cfg *config.Config, log zerolog.Logger, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: netpanel trust <mac> <true|false>")
	}
	trusted, err := strconv.ParseBool(args[1])
	if err != nil {
		return fmt.Errorf("invalid trust value %q", args[1])
	}
	reg, err := devices.Load(cfg.DevicesPath(), log)
	if err != nil {
		return err
	}
	return reg.SetTrusted(args[0], trusted)
}

func cmdSetType(cfg *config.Config, log zerolog.Logger, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: netpanel settype <mac> <type>")
	}
	s := newScanner(cfg, log)
	defer s.Close()
	return s.SetDeviceType(args[0], args[1])
}

func cmdForget(cfg *config.Config, log zerolog.Logger, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: netpanel forget <mac>")
	}
	s := newScanner(cfg, log)
	defer s.Close()
	return s.ForgetDevice(args[0])
}

func cmdPing(cfg *config.Config) error {
	report := netscan.CheckConnectivity(context.Background(), cfg.Gateway)
	for _, check := range report.Checks {
		state := "unreachable"
		if check.Reachable {
			state = fmt.Sprintf("%.1f ms", float64(check.AvgLatency.Microseconds())/1000)
		}
		fmt.Printf("%-20s %s\n", check.Target, state)
	}
	if !report.OK {
		return fmt.Errorf("connectivity degraded")
	}
	return nil
}

func cmdDNS(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: netpanel dns <name> [server]")
	}
	server := ""
	if len(args) > 1 {
		server = args[1]
	}
	records, err := netscan.DNSLookup(context.Background(), args[0], server)
	if err != nil {
		return err
	}
	for _, r := range records {
		fmt.Printf("%-6s %-6d %s\n", r.Type, r.TTL, r.Value)
	}
	return nil
}

func cmdTrace(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: netpanel trace <host>")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	hops, err := netscan.Traceroute(ctx, args[0])
	if err != nil {
		return err
	}
	for _, hop := range hops {
		if hop.Address == "" {
			fmt.Printf("%2d  *\n", hop.Number)
			continue
		}
		fmt.Printf("%2d  %-15s %s\n", hop.Number, hop.Address, hop.RTT)
	}
	return nil
}

func cmdPort(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: netpanel port <host> <port>")
	}
	port, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid port %q", args[1])
	}
	status := netscan.CheckPort(args[0], port, 3*time.Second)
	if !status.Open {
		fmt.Printf("%s:%d closed\n", args[0], port)
		return nil
	}
	fmt.Printf("%s:%d open (%s, %v)\n", args[0], port, status.Service, status.Latency.Round(time.Millisecond))
	return nil
}

func cmdPorts(cfg *config.Config, log zerolog.Logger, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: netpanel ports <ip>")
	}
	s := newScanner(cfg, log)
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DeepTimeout)
	defer cancel()
	ports, err := s.ScanDevicePorts(ctx, args[0])
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Println("no open ports found")
		return nil
	}
	for _, p := range ports {
		fmt.Printf("%5d/tcp  %s\n", p.Port, p.Service)
	}
	return nil
}

func cmdSystem() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return printJSON(system.Read(ctx))
}

func cmdPihole(cfg *config.Config, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: netpanel pihole <stats|status|enable|disable|block|allow|top>")
	}
	client := pihole.NewClient(cfg.PiholeURL, cfg.PiholePass)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch args[0] {
	case "stats":
		summary, err := client.Stats(ctx)
		if err != nil {
			return err
		}
		return printJSON(summary)
	case "status":
		enabled, err := client.Status(ctx)
		if err != nil {
			return err
		}
		if enabled {
			fmt.Println("blocking enabled")
		} else {
			fmt.Println("blocking disabled")
		}
		return nil
	case "enable":
		return client.Enable(ctx)
	case "disable":
		seconds := 0
		if len(args) > 1 {
			var err error
			if seconds, err = strconv.Atoi(args[1]); err != nil {
				return fmt.Errorf("invalid duration %q", args[1])
			}
		}
		return client.Disable(ctx, seconds)
	case "block":
		if len(args) != 2 {
			return fmt.Errorf("usage: netpanel pihole block <domain>")
		}
		return client.BlockDomain(ctx, args[1])
	case "allow":
		if len(args) != 2 {
			return fmt.Errorf("usage: netpanel pihole allow <domain>")
		}
		return client.AllowDomain(ctx, args[1])
	case "top":
		blocked, err := client.TopBlocked(ctx, 10)
		if err != nil {
			return err
		}
		permitted, err := client.TopPermitted(ctx, 10)
		if err != nil {
			return err
		}
		fmt.Println("top blocked:")
		for _, d := range blocked {
			fmt.Printf("  %6d  %s\n", d.Count, d.Domain)
		}
		fmt.Println("top permitted:")
		for _, d := range permitted {
			fmt.Printf("  %6d  %s\n", d.Count, d.Domain)
		}
		return nil
	default:
		return fmt.Errorf("unknown pihole subcommand %q", args[0])
	}
}

func cmdMonitor(cfg *config.Config, log zerolog.Logger) error {
	s := newScanner(cfg, log)
	defer s.Close()

	reg, err := devices.Load(cfg.DevicesPath(), log)
	if err != nil {
		return err
	}

	m := monitor.New(monitor.Options{
		Interval:      cfg.ScanInterval,
		InitialDelay:  cfg.InitialDelay,
		TempThreshold: cfg.TempThreshold,
		Notify: func(a monitor.Alert) {
			switch a.Kind {
			case "new_device":
				fmt.Printf("%s new device: %s (%s, %s)\n", a.Icon, a.Name, a.IP, a.MAC)
			case "temperature":
				fmt.Printf("temperature warning: %.1f C\n", a.Celsius)
			}
		},
	}, s, reg, log)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Info().Dur("interval", cfg.ScanInterval).Msg("monitor started")
	go func() {
		<-ctx.Done()
		m.Stop()
	}()
	m.Run(ctx)
	log.Info().Msg("monitor stopped")
	return nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
