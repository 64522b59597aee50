package config

import (
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-ini/ini"
	"github.com/pkg/errors"

	"github.com/tooniverse/groupworld/engine/common"
	"github.com/tooniverse/groupworld/engine/gwlog"
)

const (
	_DEFAULT_CONFIG_FILE        = "groupworld.ini"
	_DEFAULT_LOCALHOST_IP       = "127.0.0.1"
	_DEFAULT_HTTP_IP            = "127.0.0.1"
	_DEFAULT_LOG_LEVEL          = "debug"
	_DEFAULT_BROADCAST_INTERVAL = time.Second * 15
	_DEFAULT_OFFLINE_GRACE      = time.Second * 30
)

var (
	configFilePath   = _DEFAULT_CONFIG_FILE
	groupworldConfig *GroupworldConfig
	configLock       sync.Mutex
)

// GroupStoreConfig defines fields of the group store (UD) config
type GroupStoreConfig struct {
	BindIp            string
	BindPort          int
	Ip                string
	Port              int
	LogFile           string
	LogStderr         bool
	HTTPIp            string
	HTTPPort          int
	LogLevel          string
	GoMaxProcs        int
	BroadcastInterval time.Duration
	OfflineGrace      time.Duration
}

// CoordinatorConfig defines fields of a district coordinator (AI) config
type CoordinatorConfig struct {
	DistrictId         common.DistrictID
	DistrictName       string
	Ip                 string
	Port               int
	LogFile            string
	LogStderr          bool
	HTTPIp             string
	HTTPPort           int
	LogLevel           string
	GoMaxProcs         int
	CompressConnection bool
	ServeKCP           bool
	StrongRateMax      int
	StrongRatePeriod   time.Duration
	RateMax            int
	RatePeriod         time.Duration
	DistrictPopCap     int
}

// GroupworldConfig defines the total groupworld config file structure
type GroupworldConfig struct {
	GroupStore        GroupStoreConfig
	CoordinatorCommon CoordinatorConfig
	Coordinators      map[int]*CoordinatorConfig
}

// SetConfigFile sets the config file path (groupworld.ini by default)
func SetConfigFile(f string) {
	configFilePath = f
}

// GetConfigDir returns the directory of groupworld.ini
func GetConfigDir() string {
	dir, _ := path.Split(configFilePath)
	return dir
}

// GetConfigFilePath returns the config file path
func GetConfigFilePath() string {
	return configFilePath
}

// Get returns the total groupworld config
func Get() *GroupworldConfig {
	configLock.Lock()
	defer configLock.Unlock() // protect concurrent access from multiple components
	if groupworldConfig == nil {
		groupworldConfig = readGroupworldConfig()
	}
	return groupworldConfig
}

// Reload forces groupworld to reload the whole config
func Reload() *GroupworldConfig {
	configLock.Lock()
	groupworldConfig = nil
	configLock.Unlock()

	return Get()
}

// GetGroupStore gets the group store config
func GetGroupStore() *GroupStoreConfig {
	return &Get().GroupStore
}

// GetCoordinator gets the coordinator config of specified coordinator ID
func GetCoordinator(coordid uint16) *CoordinatorConfig {
	return Get().Coordinators[int(coordid)]
}

// GetCoordinatorIDs returns all coordinator IDs
func GetCoordinatorIDs() []uint16 {
	cfg := Get()
	ids := make([]int, 0, len(cfg.Coordinators))
	for id := range cfg.Coordinators {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	res := make([]uint16, len(ids))
	for i, id := range ids {
		res[i] = uint16(id)
	}
	return res
}

// DumpPretty formats config to string in pretty format
func DumpPretty(cfg interface{}) string {
	s, err := json.MarshalIndent(cfg, "", "    ")
	if err != nil {
		return err.Error()
	}
	return string(s)
}

func readGroupworldConfig() *GroupworldConfig {
	config := GroupworldConfig{
		Coordinators: map[int]*CoordinatorConfig{},
	}
	gwlog.Infof("Using config file: %s", configFilePath)
	iniFile, err := ini.Load(configFilePath)
	checkConfigError(err, "")

	readGroupStoreConfig(iniFile.Section("groupstore"), &config.GroupStore)
	readCoordinatorCommonConfig(iniFile.Section("coordinator_common"), &config.CoordinatorCommon)

	for _, sec := range iniFile.Sections() {
		secName := strings.ToLower(sec.Name())
		if secName == "default" || secName == "groupstore" || secName == "coordinator_common" {
			continue
		}

		if len(secName) > 11 && secName[:11] == "coordinator" {
			id, err := strconv.Atoi(secName[11:])
			checkConfigError(err, fmt.Sprintf("invalid coordinator name: %s", secName))
			config.Coordinators[id] = readCoordinatorConfig(sec, &config.CoordinatorCommon)
		} else {
			gwlog.Errorf("unknown section: %s", secName)
		}
	}

	validateConfig(&config)
	return &config
}

func readGroupStoreConfig(sec *ini.Section, sc *GroupStoreConfig) {
	sc.BindIp = "0.0.0.0"
	sc.Ip = _DEFAULT_LOCALHOST_IP
	sc.LogFile = "groupstore.log"
	sc.LogStderr = true
	sc.LogLevel = _DEFAULT_LOG_LEVEL
	sc.HTTPIp = _DEFAULT_HTTP_IP
	sc.HTTPPort = 0 // pprof not enabled by default
	sc.GoMaxProcs = 0
	sc.BroadcastInterval = _DEFAULT_BROADCAST_INTERVAL
	sc.OfflineGrace = _DEFAULT_OFFLINE_GRACE

	for _, key := range sec.Keys() {
		name := strings.ToLower(key.Name())
		if name == "bind_ip" {
			sc.BindIp = key.MustString(sc.BindIp)
		} else if name == "bind_port" {
			sc.BindPort = key.MustInt(sc.BindPort)
		} else if name == "ip" {
			sc.Ip = key.MustString(sc.Ip)
		} else if name == "port" {
			sc.Port = key.MustInt(sc.Port)
		} else if name == "log_file" {
			sc.LogFile = key.MustString(sc.LogFile)
		} else if name == "log_stderr" {
			sc.LogStderr = key.MustBool(sc.LogStderr)
		} else if name == "http_ip" {
			sc.HTTPIp = key.MustString(sc.HTTPIp)
		} else if name == "http_port" {
			sc.HTTPPort = key.MustInt(sc.HTTPPort)
		} else if name == "log_level" {
			sc.LogLevel = key.MustString(sc.LogLevel)
		} else if name == "gomaxprocs" {
			sc.GoMaxProcs = key.MustInt(sc.GoMaxProcs)
		} else if name == "broadcast_interval" {
			sc.BroadcastInterval = time.Second * time.Duration(key.MustInt(int(sc.BroadcastInterval/time.Second)))
		} else if name == "offline_grace" {
			sc.OfflineGrace = time.Second * time.Duration(key.MustInt(int(sc.OfflineGrace/time.Second)))
		} else {
			gwlog.Panicf("section %s has unknown key: %s", sec.Name(), key.Name())
		}
	}

	if sc.BindPort == 0 {
		sc.BindPort = sc.Port
	}
}

func readCoordinatorCommonConfig(sec *ini.Section, cc *CoordinatorConfig) {
	cc.Ip = "0.0.0.0"
	cc.LogFile = "coordinator.log"
	cc.LogStderr = true
	cc.LogLevel = _DEFAULT_LOG_LEVEL
	cc.HTTPIp = _DEFAULT_HTTP_IP
	cc.HTTPPort = 0 // pprof not enabled by default
	cc.GoMaxProcs = 0
	cc.ServeKCP = true
	cc.StrongRateMax = 4
	cc.StrongRatePeriod = time.Second * 10
	cc.RateMax = 8
	cc.RatePeriod = time.Second * 5
	cc.DistrictPopCap = 0 // no cap by default

	_readCoordinatorConfig(sec, cc)
}

func readCoordinatorConfig(sec *ini.Section, commonConfig *CoordinatorConfig) *CoordinatorConfig {
	var cc CoordinatorConfig = *commonConfig // copy from coordinator_common
	_readCoordinatorConfig(sec, &cc)
	if cc.DistrictId == 0 {
		gwlog.Fatalf("Coordinator %s: district_id is not set", sec.Name())
	}
	return &cc
}

func _readCoordinatorConfig(sec *ini.Section, cc *CoordinatorConfig) {
	for _, key := range sec.Keys() {
		name := strings.ToLower(key.Name())
		if name == "district_id" {
			cc.DistrictId = common.DistrictID(key.MustUint(uint(cc.DistrictId)))
		} else if name == "district_name" {
			cc.DistrictName = key.MustString(cc.DistrictName)
		} else if name == "ip" {
			cc.Ip = key.MustString(cc.Ip)
		} else if name == "port" {
			cc.Port = key.MustInt(cc.Port)
		} else if name == "log_file" {
			cc.LogFile = key.MustString(cc.LogFile)
		} else if name == "log_stderr" {
			cc.LogStderr = key.MustBool(cc.LogStderr)
		} else if name == "http_ip" {
			cc.HTTPIp = key.MustString(cc.HTTPIp)
		} else if name == "http_port" {
			cc.HTTPPort = key.MustInt(cc.HTTPPort)
		} else if name == "log_level" {
			cc.LogLevel = key.MustString(cc.LogLevel)
		} else if name == "gomaxprocs" {
			cc.GoMaxProcs = key.MustInt(cc.GoMaxProcs)
		} else if name == "compress_connection" {
			cc.CompressConnection = key.MustBool(cc.CompressConnection)
		} else if name == "serve_kcp" {
			cc.ServeKCP = key.MustBool(cc.ServeKCP)
		} else if name == "strong_rate_max" {
			cc.StrongRateMax = key.MustInt(cc.StrongRateMax)
		} else if name == "strong_rate_period" {
			cc.StrongRatePeriod = time.Second * time.Duration(key.MustInt(int(cc.StrongRatePeriod/time.Second)))
		} else if name == "rate_max" {
			cc.RateMax = key.MustInt(cc.RateMax)
		} else if name == "rate_period" {
			cc.RatePeriod = time.Second * time.Duration(key.MustInt(int(cc.RatePeriod/time.Second)))
		} else if name == "district_pop_cap" {
			cc.DistrictPopCap = key.MustInt(cc.DistrictPopCap)
		} else {
			gwlog.Panicf("section %s has unknown key: %s", sec.Name(), key.Name())
		}
	}
}

func validateConfig(config *GroupworldConfig) {
	if config.GroupStore.Port == 0 {
		gwlog.Fatalf("groupstore port is not set")
	}

	seenDistricts := map[common.DistrictID]string{}
	for id, cc := range config.Coordinators {
		if cc.Port == 0 {
			gwlog.Fatalf("coordinator%d: port is not set", id)
		}
		if prev, ok := seenDistricts[cc.DistrictId]; ok {
			gwlog.Fatalf("coordinator%d: district %d already used by %s", id, cc.DistrictId, prev)
		}
		seenDistricts[cc.DistrictId] = fmt.Sprintf("coordinator%d", id)
	}
}

func checkConfigError(err error, msg string) {
	if err != nil {
		if msg == "" {
			msg = err.Error()
		}
		gwlog.Panic(errors.Wrap(err, msg))
	}
}
