package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/tooniverse/groupworld/engine/binutil"
	"github.com/tooniverse/groupworld/engine/config"
	"github.com/tooniverse/groupworld/engine/gwlog"
)

var (
	args struct {
		coordid         int
		configFile      string
		logLevel        string
		runInDaemonMode bool
	}
	coordServer *CoordinatorServer
)

func parseArgs() {
	flag.IntVar(&args.coordid, "coordid", 0, "set coordinator id")
	flag.StringVar(&args.configFile, "configfile", "", "set config file path")
	flag.StringVar(&args.logLevel, "log", "", "override config log level")
	flag.BoolVar(&args.runInDaemonMode, "d", false, "run in daemon mode")
	flag.Parse()
}

func main() {
	parseArgs()

	if args.runInDaemonMode {
		daemonCtx := binutil.Daemonize()
		defer daemonCtx.Release()
	}

	if args.configFile != "" {
		config.SetConfigFile(args.configFile)
	}

	if args.coordid <= 0 {
		gwlog.Errorf("coordid %d is not valid, should be positive", args.coordid)
		os.Exit(1)
	}

	coordConfig := config.GetCoordinator(uint16(args.coordid))
	if coordConfig == nil {
		gwlog.Errorf("coordinator%d not found in config file", args.coordid)
		os.Exit(1)
	}
	gwlog.Infof("coordinator%d config: \n%s", args.coordid, config.DumpPretty(coordConfig))
	if coordConfig.GoMaxProcs > 0 {
		gwlog.Infof("SET GOMAXPROCS = %d", coordConfig.GoMaxProcs)
		runtime.GOMAXPROCS(coordConfig.GoMaxProcs)
	}

	logLevel := args.logLevel
	if logLevel == "" {
		logLevel = coordConfig.LogLevel
	}
	binutil.SetupGWLog(fmt.Sprintf("coordinator%d", args.coordid), logLevel, coordConfig.LogFile, coordConfig.LogStderr)
	binutil.SetupHTTPServer(coordConfig.HTTPIp, coordConfig.HTTPPort, nil)

	coordServer = newCoordinatorServer(coordConfig)
	setupSignals()
	coordServer.run()
}

func setupSignals() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		for sig := range sigChan {
			if sig == syscall.SIGINT || sig == syscall.SIGTERM {
				gwlog.Infof("coordinator%d terminating on signal %v ...", args.coordid, sig)
				os.Exit(0)
			} else {
				gwlog.Warnf("unexpected signal: %v", sig)
			}
		}
	}()
}
