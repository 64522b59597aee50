package main

import (
	"flag"
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
		configFile      string
		logLevel        string
		runInDaemonMode bool
	}
	storeServer *StoreServer
)

func parseArgs() {
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

	storeConfig := config.GetGroupStore()
	gwlog.Infof("groupstore config: \n%s", config.DumpPretty(storeConfig))
	if storeConfig.GoMaxProcs > 0 {
		gwlog.Infof("SET GOMAXPROCS = %d", storeConfig.GoMaxProcs)
		runtime.GOMAXPROCS(storeConfig.GoMaxProcs)
	}

	logLevel := args.logLevel
	if logLevel == "" {
		logLevel = storeConfig.LogLevel
	}
	binutil.SetupGWLog("groupstore", logLevel, storeConfig.LogFile, storeConfig.LogStderr)
	binutil.SetupHTTPServer(storeConfig.HTTPIp, storeConfig.HTTPPort, nil)

	storeServer = newStoreServer(storeConfig)
	setupSignals()
	storeServer.run()
}

func setupSignals() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		for sig := range sigChan {
			if sig == syscall.SIGINT || sig == syscall.SIGTERM {
				gwlog.Infof("groupstore terminating on signal %v ...", sig)
				os.Exit(0)
			} else {
				gwlog.Warnf("unexpected signal: %v", sig)
			}
		}
	}()
}
