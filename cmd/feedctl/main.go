package main

import (
	"fmt"
	"os"

	"github.com/geode-social/social-contract/common"
	"github.com/nspcc-dev/neo-go/pkg/core/storage/dbconfig"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/urfave/cli"
)

func main() {
	app := cli.NewApp()
	app.Name = "feedctl"
	app.Usage = "Run social feed contract over the local database"
	app.Version = fmt.Sprintf("%d", common.Version)
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "db", Value: "feed.db", Usage: "Path to the database"},
		cli.StringFlag{Name: "db-type", Value: dbconfig.BoltDB, Usage: "Database type (boltdb, leveldb, inmemory)"},
		cli.StringFlag{Name: "config", Usage: "Path to the YAML contract configuration"},
		cli.StringFlag{Name: "contract", Value: "@social", Usage: "Contract address"},
		cli.StringFlag{Name: "owner", Usage: "Owner address (contract itself by default)"},
		cli.BoolFlag{Name: "debug", Usage: "Enable debug logging"},
		cli.BoolFlag{Name: "metrics", Usage: "Print metrics collected by the command"},
	}
	app.Commands = commands()

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// action runs f over the node opened from global flags. Changes are
// committed only if f succeeds.
func action(f func(*cli.Context, *node) error) func(*cli.Context) error {
	return func(c *cli.Context) error {
		n, err := newNode(c)
		if err != nil {
			return err
		}

		err = f(c, n)
		if cErr := n.close(err == nil); cErr != nil && err == nil {
			err = cErr
		}

		for _, e := range n.jrnl.Entries() {
			fmt.Println("event:", e.String())
		}

		if c.GlobalBool("metrics") {
			if mErr := n.printMetrics(); mErr != nil && err == nil {
				err = mErr
			}
		}

		if err != nil {
			return cli.NewExitError(fmt.Sprintf("%v (%s)", err, common.KindOf(err)), 1)
		}
		return nil
	}
}

func fromFlag() cli.Flag {
	return cli.StringFlag{Name: "from", Usage: "Caller address or @name"}
}

func caller(c *cli.Context) (util.Uint160, error) {
	s := c.String("from")
	if s == "" {
		return util.Uint160{}, fmt.Errorf("missing caller, use --from")
	}
	return parseAccount(s)
}

func arg(c *cli.Context, name string) (string, error) {
	if c.NArg() < 1 {
		return "", fmt.Errorf("missing %s argument", name)
	}
	return c.Args().First(), nil
}
