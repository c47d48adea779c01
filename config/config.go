package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Interest policies supported by the payout engine.
const (
	SubstringPolicy = "substring"
	TagSetPolicy    = "tagset"
)

type (
	// Config groups all contract settings.
	Config struct {
		Capacities Capacities `yaml:"capacities"`
		Limits     Limits     `yaml:"limits"`
		Payout     Payout     `yaml:"payout"`
		Rewards    Rewards    `yaml:"rewards"`
		Feed       Feed       `yaml:"feed"`
		// Minimum time between two settings updates of the same account.
		SettingsCooldown time.Duration `yaml:"settings_cooldown"`
	}

	// Capacities of the bounded ledgers. Every per-key list of the contract
	// is bounded by one of these values.
	Capacities struct {
		// Messages and replies sent by an account.
		SentMessages int `yaml:"sent_messages"`
		// Paid messages sent by an account; also the capacity of every topic.
		PaidMessages int `yaml:"paid_messages"`
		// Replies kept per top-level message.
		Replies int `yaml:"replies"`
		// Endorsers kept per free message.
		Endorsers int `yaml:"endorsers"`
		// Free and paid messages endorsed by an account (each list).
		Endorsed int `yaml:"endorsed"`
		// Accounts followed by an account.
		Following int `yaml:"following"`
		// Followers of an account.
		Followers int `yaml:"followers"`
		// Accounts blocked by an account.
		Blocked int `yaml:"blocked"`
	}

	// Limits are byte limits of the input fields.
	Limits struct {
		Content   int `yaml:"content"`
		Media     int `yaml:"media"`
		Link      int `yaml:"link"`
		Tag       int `yaml:"tag"`
		Username  int `yaml:"username"`
		Interests int `yaml:"interests"`
		// Upper bound of paid endorsements a single message may offer.
		MaxPaidEndorsers uint64 `yaml:"max_paid_endorsers"`
	}

	// Payout configures the payout engine.
	Payout struct {
		// Minimum contract balance that must remain after any payout.
		ReserveFloor uint64 `yaml:"reserve_floor"`
		// Interest matching policy: "substring" or "tagset".
		InterestPolicy string `yaml:"interest_policy"`
	}

	// Rewards is the initial posting reward configuration. It can be
	// changed later by the contract owner.
	Rewards struct {
		Enabled  bool   `yaml:"enabled"`
		Interval uint64 `yaml:"interval"`
		Amount   uint64 `yaml:"amount"`
	}

	// Feed bounds feed sizes requested by accounts.
	Feed struct {
		Default uint64 `yaml:"default"`
		Max     uint64 `yaml:"max"`
	}
)

// Default returns configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Capacities: Capacities{
			SentMessages: 490,
			PaidMessages: 100,
			Replies:      400,
			Endorsers:    400,
			Endorsed:     490,
			Following:    499,
			Followers:    499,
			Blocked:      499,
		},
		Limits: Limits{
			Content:          600,
			Media:            300,
			Link:             300,
			Tag:              100,
			Username:         100,
			Interests:        600,
			MaxPaidEndorsers: 400,
		},
		Payout: Payout{
			ReserveFloor:   10,
			InterestPolicy: SubstringPolicy,
		},
		Rewards: Rewards{
			Interval: 100,
		},
		Feed: Feed{
			Default: 100,
			Max:     500,
		},
		SettingsCooldown: 24 * time.Hour,
	}
}

// Load reads YAML configuration file. Missing values are taken from
// Default.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("decode config file: %w", err)
	}

	return cfg, cfg.Validate()
}

// Validate checks configuration consistency.
func (c Config) Validate() error {
	caps := []struct {
		name string
		v    int
	}{
		{"sent_messages", c.Capacities.SentMessages},
		{"paid_messages", c.Capacities.PaidMessages},
		{"replies", c.Capacities.Replies},
		{"endorsers", c.Capacities.Endorsers},
		{"endorsed", c.Capacities.Endorsed},
		{"following", c.Capacities.Following},
		{"followers", c.Capacities.Followers},
		{"blocked", c.Capacities.Blocked},
	}
	for _, x := range caps {
		if x.v <= 0 {
			return fmt.Errorf("capacity %s must be positive, got %d", x.name, x.v)
		}
	}

	switch {
	case c.Limits.Content <= 0, c.Limits.Tag <= 0, c.Limits.Username <= 0, c.Limits.Interests <= 0:
		return errors.New("content, tag, username and interests limits must be positive")
	case c.Limits.Media < 0, c.Limits.Link < 0:
		return errors.New("media and link limits must not be negative")
	case c.Limits.MaxPaidEndorsers == 0:
		return errors.New("max_paid_endorsers must be positive")
	case c.Rewards.Interval == 0:
		return errors.New("reward interval must be positive")
	case c.Feed.Default == 0 || c.Feed.Default > c.Feed.Max:
		return fmt.Errorf("default feed size %d must be in (0, %d]", c.Feed.Default, c.Feed.Max)
	case c.SettingsCooldown < 0:
		return errors.New("settings cooldown must not be negative")
	}

	switch c.Payout.InterestPolicy {
	case SubstringPolicy, TagSetPolicy:
	default:
		return fmt.Errorf("unknown interest policy '%s'", c.Payout.InterestPolicy)
	}

	return nil
}
