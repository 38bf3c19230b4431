package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ark-network/markstr/common"
	"github.com/ark-network/markstr/internal/core/application"
	"github.com/ark-network/markstr/internal/core/domain"
	"github.com/ark-network/markstr/internal/core/ports"
	"github.com/ark-network/markstr/internal/infrastructure/db"
	inmemorylivestore "github.com/ark-network/markstr/internal/infrastructure/live-store/inmemory"
	redislivestore "github.com/ark-network/markstr/internal/infrastructure/live-store/redis"
	scheduler "github.com/ark-network/markstr/internal/infrastructure/scheduler/gocron"
	txbuilder "github.com/ark-network/markstr/internal/infrastructure/tx-builder/covenant"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

var (
	supportedEventDbs = supportedType{
		"badger": {},
	}
	supportedDbs = supportedType{
		"badger": {},
	}
	supportedSchedulers = supportedType{
		"gocron": {},
	}
	supportedTxBuilders = supportedType{
		"covenant": {},
	}
	supportedLiveStores = supportedType{
		"inmemory": {},
		"redis":    {},
	}
)

type Config struct {
	Datadir  string
	LogLevel int
	Network  string

	DbType              string
	EventDbType         string
	DbDir               string
	EventDbDir          string
	SchedulerType       string
	TxBuilderType       string
	LiveStoreType       string
	RedisUrl            string
	EscapeCheckInterval time.Duration

	WithdrawTimeout      uint32
	FeePerDepositOutput  uint64
	FeePerWithdrawOutput uint64
	AdminFee             uint64
	AdminAddress         string

	repo      ports.RepoManager
	svc       application.Service
	txBuilder ports.TxBuilder
	scheduler ports.SchedulerService
	liveStore ports.LiveStore
	network   *common.Network
}

func (c *Config) String() string {
	json, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Sprintf("error while marshalling config JSON: %s", err)
	}
	return string(json)
}

var (
	Datadir              = "DATADIR"
	LogLevel             = "LOG_LEVEL"
	Network              = "NETWORK"
	EventDbType          = "EVENT_DB_TYPE"
	DbType               = "DB_TYPE"
	SchedulerType        = "SCHEDULER_TYPE"
	TxBuilderType        = "TX_BUILDER_TYPE"
	LiveStoreType        = "LIVE_STORE_TYPE"
	RedisUrl             = "REDIS_URL"
	EscapeCheckInterval  = "ESCAPE_CHECK_INTERVAL"
	WithdrawTimeout      = "WITHDRAW_TIMEOUT"
	FeePerDepositOutput  = "FEE_PER_DEPOSIT_OUTPUT"
	FeePerWithdrawOutput = "FEE_PER_WITHDRAW_OUTPUT"
	AdminFee             = "ADMIN_FEE"
	AdminAddress         = "ADMIN_ADDRESS"

	defaultDatadir              = btcutil.AppDataDir("markstr", false)
	defaultLogLevel             = 4
	defaultNetwork              = common.BitcoinRegTest.Name
	defaultDbType               = "badger"
	defaultEventDbType          = "badger"
	defaultSchedulerType        = "gocron"
	defaultTxBuilderType        = "covenant"
	defaultLiveStoreType        = "inmemory"
	defaultEscapeCheckInterval  = time.Minute
	defaultWithdrawTimeout      = domain.DefaultWithdrawTimeout
	defaultFeePerDepositOutput  = domain.DefaultFeePerDepositOutput
	defaultFeePerWithdrawOutput = domain.DefaultFeePerWithdrawOutput
	defaultAdminFee             = 0
)

func LoadConfig() (*Config, error) {
	viper.SetEnvPrefix("MARKSTR")
	viper.AutomaticEnv()

	viper.SetDefault(Datadir, defaultDatadir)
	viper.SetDefault(LogLevel, defaultLogLevel)
	viper.SetDefault(Network, defaultNetwork)
	viper.SetDefault(DbType, defaultDbType)
	viper.SetDefault(EventDbType, defaultEventDbType)
	viper.SetDefault(SchedulerType, defaultSchedulerType)
	viper.SetDefault(TxBuilderType, defaultTxBuilderType)
	viper.SetDefault(LiveStoreType, defaultLiveStoreType)
	viper.SetDefault(EscapeCheckInterval, defaultEscapeCheckInterval)
	viper.SetDefault(WithdrawTimeout, defaultWithdrawTimeout)
	viper.SetDefault(FeePerDepositOutput, defaultFeePerDepositOutput)
	viper.SetDefault(FeePerWithdrawOutput, defaultFeePerWithdrawOutput)
	viper.SetDefault(AdminFee, defaultAdminFee)

	if err := initDatadir(); err != nil {
		return nil, fmt.Errorf("error while creating datadir: %s", err)
	}

	dbPath := filepath.Join(viper.GetString(Datadir), "db")

	var redisUrl string
	if viper.GetString(LiveStoreType) == "redis" {
		redisUrl = viper.GetString(RedisUrl)
		if redisUrl == "" {
			return nil, fmt.Errorf("REDIS_URL not provided")
		}
	}

	return &Config{
		Datadir:              viper.GetString(Datadir),
		LogLevel:             viper.GetInt(LogLevel),
		Network:              viper.GetString(Network),
		DbType:               viper.GetString(DbType),
		EventDbType:          viper.GetString(EventDbType),
		DbDir:                dbPath,
		EventDbDir:           dbPath,
		SchedulerType:        viper.GetString(SchedulerType),
		TxBuilderType:        viper.GetString(TxBuilderType),
		LiveStoreType:        viper.GetString(LiveStoreType),
		RedisUrl:             redisUrl,
		EscapeCheckInterval:  viper.GetDuration(EscapeCheckInterval),
		WithdrawTimeout:      viper.GetUint32(WithdrawTimeout),
		FeePerDepositOutput:  viper.GetUint64(FeePerDepositOutput),
		FeePerWithdrawOutput: viper.GetUint64(FeePerWithdrawOutput),
		AdminFee:             viper.GetUint64(AdminFee),
		AdminAddress:         viper.GetString(AdminAddress),
	}, nil
}

func initDatadir() error {
	datadir := viper.GetString(Datadir)
	return makeDirectoryIfNotExists(datadir)
}

func makeDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, os.ModeDir|0755)
	}
	return nil
}

func (c *Config) Validate() error {
	if !supportedEventDbs.supports(c.EventDbType) {
		return fmt.Errorf("event db type not supported, please select one of: %s", supportedEventDbs)
	}
	if !supportedDbs.supports(c.DbType) {
		return fmt.Errorf("db type not supported, please select one of: %s", supportedDbs)
	}
	if !supportedSchedulers.supports(c.SchedulerType) {
		return fmt.Errorf("scheduler type not supported, please select one of: %s", supportedSchedulers)
	}
	if !supportedTxBuilders.supports(c.TxBuilderType) {
		return fmt.Errorf("tx builder type not supported, please select one of: %s", supportedTxBuilders)
	}
	if !supportedLiveStores.supports(c.LiveStoreType) {
		return fmt.Errorf("live store type not supported, please select one of: %s", supportedLiveStores)
	}
	if c.EscapeCheckInterval < time.Second {
		return fmt.Errorf("invalid escape check interval, must be at least 1 second")
	}
	if c.WithdrawTimeout == 0 {
		return fmt.Errorf("invalid withdraw timeout, must be greater than 0")
	}

	net, err := common.NetworkFromString(c.Network)
	if err != nil {
		return err
	}
	c.network = &net

	if len(c.AdminAddress) > 0 {
		if err := common.ValidateAddress(c.AdminAddress, net); err != nil {
			return fmt.Errorf("invalid admin address: %s", err)
		}
	} else if c.AdminFee > 0 {
		log.Warnf("admin fee of %d sats ignored, admin address not set", c.AdminFee)
	}

	if err := c.repoManager(); err != nil {
		return err
	}
	if err := c.txBuilderService(); err != nil {
		return err
	}
	if err := c.liveStoreService(); err != nil {
		return err
	}
	if err := c.schedulerService(); err != nil {
		return err
	}
	return nil
}

func (c *Config) AppService() (application.Service, error) {
	if c.svc == nil {
		if err := c.appService(); err != nil {
			return nil, err
		}
	}
	return c.svc, nil
}

func (c *Config) TxBuilder() ports.TxBuilder {
	return c.txBuilder
}

func (c *Config) GetNetwork() common.Network {
	if c.network == nil {
		return common.BitcoinRegTest
	}
	return *c.network
}

func (c *Config) repoManager() error {
	var svc ports.RepoManager
	var err error
	var eventStoreConfig []interface{}
	var dataStoreConfig []interface{}
	logger := log.New()
	logger.SetLevel(log.Level(c.LogLevel))

	switch c.EventDbType {
	case "badger":
		eventStoreConfig = []interface{}{c.EventDbDir, logger}
	default:
		return fmt.Errorf("unknown event db type")
	}

	switch c.DbType {
	case "badger":
		dataStoreConfig = []interface{}{c.DbDir, logger}
	default:
		return fmt.Errorf("unknown db type")
	}

	svc, err = db.NewService(db.ServiceConfig{
		EventStoreType:   c.EventDbType,
		DataStoreType:    c.DbType,
		EventStoreConfig: eventStoreConfig,
		DataStoreConfig:  dataStoreConfig,
	})
	if err != nil {
		return err
	}

	c.repo = svc
	return nil
}

func (c *Config) txBuilderService() error {
	var svc ports.TxBuilder
	var err error
	switch c.TxBuilderType {
	case "covenant":
		svc = txbuilder.NewTxBuilder()
	default:
		err = fmt.Errorf("unknown tx builder type")
	}
	if err != nil {
		return err
	}

	c.txBuilder = svc
	return nil
}

func (c *Config) liveStoreService() error {
	var liveStoreSvc ports.LiveStore
	var err error
	switch c.LiveStoreType {
	case "inmemory":
		liveStoreSvc = inmemorylivestore.NewLiveStore()
	case "redis":
		redisOpts, perr := redis.ParseURL(c.RedisUrl)
		if perr != nil {
			err = fmt.Errorf("invalid REDIS_URL: %s", perr)
			break
		}
		liveStoreSvc = redislivestore.NewLiveStore(redis.NewClient(redisOpts))
	default:
		err = fmt.Errorf("unknown liveStore type")
	}
	if err != nil {
		return err
	}

	c.liveStore = liveStoreSvc
	return nil
}

func (c *Config) schedulerService() error {
	var svc ports.SchedulerService
	var err error
	switch c.SchedulerType {
	case "gocron":
		svc = scheduler.NewScheduler()
	default:
		err = fmt.Errorf("unknown scheduler type")
	}
	if err != nil {
		return err
	}

	c.scheduler = svc
	return nil
}

func (c *Config) appService() error {
	if c.repo == nil || c.txBuilder == nil || c.liveStore == nil {
		return fmt.Errorf("config not validated")
	}

	svc, err := application.NewService(
		application.ServiceConfig{
			Network:         *c.network,
			WithdrawTimeout: c.WithdrawTimeout,
			Fees: domain.MarketFees{
				FeePerDepositOutput:  c.FeePerDepositOutput,
				FeePerWithdrawOutput: c.FeePerWithdrawOutput,
				AdministratorFee:     c.AdminFee,
				AdministratorAddress: c.AdminAddress,
			},
			EscapeCheckInterval: c.EscapeCheckInterval,
		},
		c.scheduler, c.repo, c.txBuilder, c.liveStore,
	)
	if err != nil {
		return err
	}

	c.svc = svc
	return nil
}

type supportedType map[string]struct{}

func (t supportedType) String() string {
	types := make([]string, 0, len(t))
	for tt := range t {
		types = append(types, tt)
	}
	return strings.Join(types, " | ")
}

func (t supportedType) supports(typeStr string) bool {
	_, ok := t[typeStr]
	return ok
}
