package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/geode-social/social-contract/dump"
	"github.com/geode-social/social-contract/message"
	"github.com/geode-social/social-contract/social"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/urfave/cli"
)

func commands() []cli.Command {
	contentFlags := []cli.Flag{
		fromFlag(),
		cli.StringFlag{Name: "media", Usage: "Media reference"},
		cli.StringFlag{Name: "link", Usage: "External link"},
	}

	return []cli.Command{
		{
			Name:      "account",
			Usage:     "Print address of the account",
			ArgsUsage: "<address or @name>",
			Action: func(c *cli.Context) error {
				s, err := arg(c, "account")
				if err != nil {
					return err
				}
				acc, err := parseAccount(s)
				if err != nil {
					return err
				}
				fmt.Println(formatAccount(acc), acc.StringLE())
				return nil
			},
		},
		{
			Name:      "faucet",
			Usage:     "Mint funds to the account",
			ArgsUsage: "<amount>",
			Flags:     []cli.Flag{cli.StringFlag{Name: "to", Usage: "Receiver address or @name"}},
			Action: action(func(c *cli.Context, n *node) error {
				to, err := parseAccount(c.String("to"))
				if err != nil {
					return err
				}
				amount, err := amountArg(c)
				if err != nil {
					return err
				}
				if err := n.bank.Deposit(to, amount); err != nil {
					return err
				}
				fmt.Println("balance:", n.bank.BalanceOf(to))
				return nil
			}),
		},
		{
			Name:      "balance",
			Usage:     "Print balance of the account",
			ArgsUsage: "<address or @name>",
			Action: action(func(c *cli.Context, n *node) error {
				s, err := arg(c, "account")
				if err != nil {
					return err
				}
				acc, err := parseAccount(s)
				if err != nil {
					return err
				}
				fmt.Println(n.bank.BalanceOf(acc))
				return nil
			}),
		},
		{
			Name:      "post",
			Usage:     "Send free message",
			ArgsUsage: "<content>",
			Flags:     contentFlags,
			Action: action(func(c *cli.Context, n *node) error {
				from, content, err := callerAndContent(c)
				if err != nil {
					return err
				}
				id, err := n.contract.SendMessage(from, content, c.String("media"), c.String("link"))
				if err != nil {
					return err
				}
				fmt.Println("message:", formatID(id))
				return nil
			}),
		},
		{
			Name:      "reply",
			Usage:     "Reply to free message",
			ArgsUsage: "<content>",
			Flags:     append(contentFlags, cli.StringFlag{Name: "parent", Usage: "Message to reply to"}),
			Action: action(func(c *cli.Context, n *node) error {
				from, content, err := callerAndContent(c)
				if err != nil {
					return err
				}
				parent, err := parseID(c.String("parent"))
				if err != nil {
					return err
				}
				id, err := n.contract.SendReply(from, parent, content, c.String("media"), c.String("link"))
				if err != nil {
					return err
				}
				fmt.Println("reply:", formatID(id))
				return nil
			}),
		},
		{
			Name:      "paid",
			Usage:     "Send paid message staking caller's funds",
			ArgsUsage: "<content>",
			Flags: append(contentFlags,
				cli.StringFlag{Name: "tag", Usage: "Interest tag of the topic"},
				cli.Uint64Flag{Name: "stake", Usage: "Funds paid out to endorsers"},
				cli.Uint64Flag{Name: "max", Value: 1, Usage: "Number of paid endorsements"},
			),
			Action: action(func(c *cli.Context, n *node) error {
				from, content, err := callerAndContent(c)
				if err != nil {
					return err
				}

				var id util.Uint256
				stake := c.Uint64("stake")

				err = n.bank.Attach(from, n.addr, stake, func() error {
					var err error
					id, err = n.contract.SendPaidMessage(from, social.PaidPost{
						Content:      content,
						Media:        c.String("media"),
						Link:         c.String("link"),
						Tag:          c.String("tag"),
						Stake:        stake,
						MaxEndorsers: c.Uint64("max"),
					})
					return err
				})
				if err != nil {
					return err
				}
				fmt.Println("paid message:", formatID(id))
				return nil
			}),
		},
		{
			Name:      "endorse",
			Usage:     "Endorse free message",
			ArgsUsage: "<message ID>",
			Flags:     []cli.Flag{fromFlag()},
			Action: action(func(c *cli.Context, n *node) error {
				from, id, err := callerAndID(c)
				if err != nil {
					return err
				}
				return n.contract.ElevateMessage(from, id)
			}),
		},
		{
			Name:      "elevate",
			Usage:     "Endorse paid message and get paid, author reclaims the stake",
			ArgsUsage: "<message ID>",
			Flags:     []cli.Flag{fromFlag()},
			Action: action(func(c *cli.Context, n *node) error {
				from, id, err := callerAndID(c)
				if err != nil {
					return err
				}
				amount, err := n.contract.ElevatePaidMessage(from, id)
				if err != nil {
					return err
				}
				fmt.Println("paid:", amount)
				return nil
			}),
		},
		{
			Name:  "settings",
			Usage: "Update account settings or print them",
			Flags: []cli.Flag{
				fromFlag(),
				cli.BoolFlag{Name: "update", Usage: "Replace settings"},
				cli.StringFlag{Name: "username", Usage: "Unique username"},
				cli.StringFlag{Name: "interests", Usage: "Interests matched against topic tags"},
				cli.Uint64Flag{Name: "feed", Usage: "Public feed size, 0 for default"},
				cli.Uint64Flag{Name: "paid-feed", Usage: "Paid feed size, 0 for default"},
			},
			Action: action(func(c *cli.Context, n *node) error {
				from, err := caller(c)
				if err != nil {
					return err
				}

				if c.Bool("update") {
					err = n.contract.UpdateSettings(from, c.String("username"), c.String("interests"),
						c.Uint64("feed"), c.Uint64("paid-feed"))
					if err != nil {
						return err
					}
				}

				s, err := n.contract.Settings(from)
				if err != nil {
					return err
				}
				fmt.Printf("username: %s\ninterests: %s\nfeed: %d\npaid feed: %d\nupdated: %d\n",
					s.Username, s.Interests, s.MaxFeed, s.MaxPaidFeed, s.LastUpdate)
				return nil
			}),
		},
		relationCommand("follow", "Follow the account", (*social.Contract).Follow),
		relationCommand("unfollow", "Stop following the account", (*social.Contract).Unfollow),
		relationCommand("block", "Hide messages of the account from the feed", (*social.Contract).Block),
		relationCommand("unblock", "Unblock the account", (*social.Contract).Unblock),
		{
			Name:      "show",
			Usage:     "Print free or paid message",
			ArgsUsage: "<message ID>",
			Action: action(func(c *cli.Context, n *node) error {
				s, err := arg(c, "message ID")
				if err != nil {
					return err
				}
				id, err := parseID(s)
				if err != nil {
					return err
				}
				return showMessage(n, id)
			}),
		},
		{
			Name:  "feed",
			Usage: "Print public or paid feed of the account",
			Flags: []cli.Flag{fromFlag(), cli.BoolFlag{Name: "paid", Usage: "Print paid feed"}},
			Action: action(func(c *cli.Context, n *node) error {
				from, err := caller(c)
				if err != nil {
					return err
				}

				if c.Bool("paid") {
					ms, err := n.contract.PaidFeed(from)
					if err != nil {
						return err
					}
					for i := range ms {
						printPaid(ms[i])
					}
					return nil
				}

				ms, err := n.contract.PublicFeed(from)
				if err != nil {
					return err
				}
				for i := range ms {
					printFree(ms[i])
				}
				return nil
			}),
		},
		{
			Name:      "topics",
			Usage:     "Print topics or paid messages of the topic",
			ArgsUsage: "[tag]",
			Action: action(func(c *cli.Context, n *node) error {
				if c.NArg() == 0 {
					for _, tag := range n.contract.Topics() {
						fmt.Println(tag)
					}
					return nil
				}

				tag := c.Args().First()
				ids, err := n.contract.Topic(tag)
				if err != nil {
					return err
				}
				for i := range ids {
					fmt.Println(formatID(ids[i]))
				}

				floor, full, err := n.contract.TopicFloor(tag)
				if err != nil {
					return err
				}
				if full {
					fmt.Println("floor:", floor)
				}
				return nil
			}),
		},
		{
			Name:  "rewards",
			Usage: "Manage posting rewards or print their state",
			Flags: []cli.Flag{
				fromFlag(),
				cli.Uint64Flag{Name: "fund", Usage: "Add caller's funds to the reward pool"},
				cli.BoolFlag{Name: "configure", Usage: "Replace reward parameters"},
				cli.BoolFlag{Name: "enabled", Usage: "Enable rewards"},
				cli.Uint64Flag{Name: "interval", Usage: "Reward every N-th post"},
				cli.Uint64Flag{Name: "amount", Usage: "Reward amount"},
			},
			Action: action(func(c *cli.Context, n *node) error {
				if c.Bool("configure") || c.Uint64("fund") != 0 {
					from, err := caller(c)
					if err != nil {
						return err
					}

					if c.Bool("configure") {
						err = n.contract.ConfigureRewards(from, c.Bool("enabled"), c.Uint64("interval"), c.Uint64("amount"))
						if err != nil {
							return err
						}
					}

					if amount := c.Uint64("fund"); amount != 0 {
						err = n.bank.Attach(from, n.addr, amount, func() error {
							return n.contract.FundRewards(from, amount)
						})
						if err != nil {
							return err
						}
					}
				}

				st, err := n.contract.Rewards()
				if err != nil {
					return err
				}
				fmt.Printf("enabled: %t\ninterval: %d\namount: %d\npool: %d\npaid: %d\nposts: %d\n",
					st.Enabled, st.Interval, st.Amount, st.Pool, st.Paid, st.Counter)
				return nil
			}),
		},
		{
			Name:  "dump",
			Usage: "Dump the database to the directory",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "dir", Value: "dumps", Usage: "Output directory"},
				cli.StringFlag{Name: "label", Value: "local", Usage: "Label of the dump"},
				cli.Uint64Flag{Name: "seq", Usage: "Sequence number of the dump"},
			},
			Action: action(func(c *cli.Context, n *node) error {
				id := dump.ID{Label: c.String("label"), Seq: c.Uint64("seq")}

				d, err := dump.NewCreator(c.String("dir"), id)
				if err != nil {
					return fmt.Errorf("init dumper: %w", err)
				}
				defer d.Close()

				if err := d.AddStore(n.addr, n.clock.Now(), n.base); err != nil {
					return err
				}
				if err := d.Flush(); err != nil {
					return fmt.Errorf("flush dump: %w", err)
				}

				fmt.Printf("dumped to '%s/' as %s\n", c.String("dir"), id)
				return nil
			}),
		},
		{
			Name:  "restore",
			Usage: "Load the dump into the database",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "dir", Value: "dumps", Usage: "Dump directory"},
				cli.StringFlag{Name: "label", Value: "local", Usage: "Label of the dump"},
				cli.Uint64Flag{Name: "seq", Usage: "Sequence number of the dump"},
			},
			Action: action(func(c *cli.Context, n *node) error {
				want := dump.ID{Label: c.String("label"), Seq: c.Uint64("seq")}

				var (
					found bool
					rErr  error
				)
				err := dump.IterateDumps(c.String("dir"), func(id dump.ID, r *dump.Reader) {
					if id != want || found {
						return
					}
					found = true
					rErr = r.Restore(n.base)
				})
				switch {
				case err != nil:
					return err
				case !found:
					return fmt.Errorf("dump %s not found", want)
				case rErr != nil:
					return rErr
				}

				fmt.Println("restored", want)
				return nil
			}),
		},
	}
}

func relationCommand(name, usage string, f func(*social.Contract, util.Uint160, util.Uint160) error) cli.Command {
	return cli.Command{
		Name:      name,
		Usage:     usage,
		ArgsUsage: "<address or @name>",
		Flags:     []cli.Flag{fromFlag()},
		Action: action(func(c *cli.Context, n *node) error {
			from, err := caller(c)
			if err != nil {
				return err
			}
			s, err := arg(c, "account")
			if err != nil {
				return err
			}
			target, err := parseAccount(s)
			if err != nil {
				return err
			}
			return f(n.contract, from, target)
		}),
	}
}

func callerAndContent(c *cli.Context) (util.Uint160, string, error) {
	from, err := caller(c)
	if err != nil {
		return from, "", err
	}
	content, err := arg(c, "content")
	return from, content, err
}

func callerAndID(c *cli.Context) (util.Uint160, util.Uint256, error) {
	from, err := caller(c)
	if err != nil {
		return from, util.Uint256{}, err
	}
	s, err := arg(c, "message ID")
	if err != nil {
		return from, util.Uint256{}, err
	}
	id, err := parseID(s)
	return from, id, err
}

func amountArg(c *cli.Context) (uint64, error) {
	s, err := arg(c, "amount")
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount '%s': %w", s, err)
	}
	return v, nil
}

func showMessage(n *node, id util.Uint256) error {
	m, err := n.contract.Message(id)
	if err != nil {
		return err
	}
	if m.ID.Equals(id) {
		printFree(m)

		replies, err := n.contract.Replies(id)
		if err != nil {
			return err
		}
		for i := range replies {
			fmt.Println("  reply:", formatID(replies[i]))
		}
		return nil
	}

	p, err := n.contract.PaidMessage(id)
	if err != nil {
		return err
	}
	if !p.ID.Equals(id) {
		return errors.New("message not found")
	}

	printPaid(p)

	endorsers, err := n.contract.PaidEndorsers(id)
	if err != nil {
		return err
	}
	for i := range endorsers {
		fmt.Println("  endorser:", formatAccount(endorsers[i]))
	}
	return nil
}

func printFree(m message.FreeMessage) {
	fmt.Printf("%s by %s at %d: %q endorsers=%d replies=%d\n",
		formatID(m.ID), formatAccount(m.Author), m.CreatedAt, m.Content, m.EndorserCount, m.ReplyCount)
	if m.IsReply() {
		fmt.Println("  in reply to:", formatID(m.ParentID))
	}
}

func printPaid(m message.PaidMessage) {
	fmt.Printf("%s by %s at %d [%s]: %q endorsers=%d/%d per-endorser=%d staked=%d/%d\n",
		formatID(m.ID), formatAccount(m.Author), m.CreatedAt, m.TargetTag, m.Content,
		m.EndorserCount, m.MaxEndorsers, m.PaymentPerEndorser, m.StakedBalance, m.TotalStaked)
}
