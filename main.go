package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
)

const usage = `
feeaugur [-c CONFIGFILE] [-d DATADIR] COMMAND [-h | -help] [args...]

Commands:
	start       (start the daemon: poll the mempool and serve fee estimates)
	version     (show app version)
	status      (check whether the daemon is reachable)
	estimatefee (fee rate (sat/vB) required for confirmation in N blocks)
	config      (show loaded config settings)

`

const version = "0.1.0"

func main() {
	var configFile, dataDir string
	flag.CommandLine.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.CommandLine.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\n")
	}
	flag.StringVar(&configFile, "c", "",
		fmt.Sprintf("Path to config file (alternatively, use %s env var).", configFileEnv))
	flag.StringVar(&dataDir, "d", "",
		fmt.Sprintf("Path to data directory (alternatively, use %s env var).", dataDirEnv))
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.CommandLine.Usage()
		os.Exit(1)
	}

	cfg, err := loadConfig(configFile, dataDir)
	if err != nil {
		log.Fatal(err)
	}

	client := newAPIClient(cfg)

	switch args[0] {
	case "start":
		runDaemon(args, cfg)
	case "version":
		fmt.Println(version)
	case "status":
		status(args, client)
	case "estimatefee":
		estimateFee(args, client)
	case "config":
		appConfig(args, cfg)
	default:
		log.Fatalf("Invalid command '%s'", args[0])
	}
}

func runDaemon(args []string, cfg config) {
	const usage = `
feeaugur start

Start the daemon. It begins collecting mempool snapshots through
getrawmempool polling, and begins serving fee estimates once there is
sufficient data (at least one snapshot).

Use feeaugur status to check whether the daemon is reachable.
`
	f := flag.NewFlagSet(args[0], flag.ExitOnError)
	f.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		f.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\n")
	}
	if err := f.Parse(args[1:]); err != nil {
		log.Fatal(err)
	}

	logFileMode := os.O_WRONLY | os.O_CREATE | os.O_APPEND
	logFile, err := os.OpenFile(cfg.LogFile, logFileMode, 0666)
	if err != nil {
		log.Fatal(fmt.Errorf("opening logfile: %v", err))
	}
	dLog := NewDebugLog(logFile, "", log.LstdFlags)
	dLog.SetDebug(true)

	app, err := NewApp(cfg, dLog.Logger)
	if err != nil {
		log.Fatal(fmt.Errorf("NewApp: %v", err))
	}

	errc := make(chan error, 1)
	go func() { errc <- app.Run() }()

	sigc := make(chan os.Signal, 3)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		<-sigc
		app.Stop()
	}()

	err = <-errc
	app.Stop()
	if err != nil {
		dLog.Logger.Fatal(err)
	}
}
