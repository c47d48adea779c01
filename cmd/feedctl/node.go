package main

import (
	"fmt"
	"os"

	"github.com/geode-social/social-contract/config"
	"github.com/geode-social/social-contract/host"
	"github.com/geode-social/social-contract/metrics"
	"github.com/geode-social/social-contract/social"
	"github.com/nspcc-dev/neo-go/pkg/core/storage"
	"github.com/nspcc-dev/neo-go/pkg/core/storage/dbconfig"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/urfave/cli"
	"go.uber.org/zap"
)

// node is a local host of the contract: the contract, the bank holding
// balances and the storage they share.
type node struct {
	log   *zap.Logger
	db    storage.Store
	base  *storage.MemCachedStore
	bank  *host.Bank
	reg   *prometheus.Registry
	jrnl  *host.Journal
	clock *host.SystemClock
	addr  util.Uint160
	owner util.Uint160
	cfg   config.Config

	contract *social.Contract
}

func newNode(c *cli.Context) (*node, error) {
	var (
		n   node
		err error
	)

	n.log, err = newLogger(c.GlobalBool("debug"))
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	n.cfg = config.Default()
	if p := c.GlobalString("config"); p != "" {
		n.cfg, err = config.Load(p)
		if err != nil {
			return nil, err
		}
	}

	n.addr, err = parseAccount(c.GlobalString("contract"))
	if err != nil {
		return nil, fmt.Errorf("contract address: %w", err)
	}

	n.owner = n.addr
	if s := c.GlobalString("owner"); s != "" {
		n.owner, err = parseAccount(s)
		if err != nil {
			return nil, fmt.Errorf("owner address: %w", err)
		}
	}

	n.db, err = openDB(c.GlobalString("db-type"), c.GlobalString("db"))
	if err != nil {
		return nil, err
	}

	// every command either commits as a whole or leaves the database intact
	n.base = storage.NewMemCachedStore(n.db)
	n.bank = host.NewBank(n.base)
	n.reg = prometheus.NewRegistry()
	n.jrnl = new(host.Journal)
	n.clock = new(host.SystemClock)

	col, err := metrics.New(n.reg)
	if err != nil {
		n.db.Close()
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	n.contract, err = social.New(social.Prm{
		Store:    n.base,
		Address:  n.addr,
		Owner:    n.owner,
		Treasury: n.bank.Treasury(n.addr),
		Clock:    n.clock,
		Hasher:   host.SHA256{},
		Events:   host.MultiSink{host.NewLogSink(n.log), n.jrnl},
		Config:   n.cfg,
		Logger:   n.log,
		Metrics:  col,
	})
	if err != nil {
		n.db.Close()
		return nil, fmt.Errorf("init contract: %w", err)
	}

	return &n, nil
}

// close commits changes made by the command if it succeeded and releases
// the database.
func (n *node) close(commit bool) error {
	defer func() { _ = n.log.Sync() }()

	if commit {
		if _, err := n.base.Persist(); err != nil {
			_ = n.db.Close()
			return fmt.Errorf("persist changes: %w", err)
		}
	}

	if err := n.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// printMetrics writes metrics collected by the command in the text
// exposition format.
func (n *node) printMetrics() error {
	mfs, err := n.reg.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}

	for _, mf := range mfs {
		if _, err := expfmt.MetricFamilyToText(os.Stdout, mf); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	return nil
}

func openDB(typ, path string) (storage.Store, error) {
	var cfg dbconfig.DBConfiguration

	switch typ {
	case dbconfig.BoltDB:
		cfg.Type = dbconfig.BoltDB
		cfg.BoltDBOptions.FilePath = path
	case dbconfig.LevelDB:
		cfg.Type = dbconfig.LevelDB
		cfg.LevelDBOptions.DataDirectoryPath = path
	case dbconfig.InMemoryDB:
		cfg.Type = dbconfig.InMemoryDB
	default:
		return nil, fmt.Errorf("unsupported database type '%s'", typ)
	}

	s, err := storage.NewStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", typ, err)
	}
	return s, nil
}

func newLogger(debug bool) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.OutputPaths = []string{"stderr"}
	if !debug {
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	return cfg.Build()
}
