// Command replay is the "consumer path" named informally for a witness
// parcel: it takes a witness file and the account deltas a block's EVM
// execution produced, replays them against the parcel's multiproofs, and
// prints the resulting post-state root, without ever holding a full copy
// of the state trie.
package main

import (
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "replay",
		Usage: "replay a block's account deltas against a witness parcel",
		Flags: []cli.Flag{
			witnessFileFlag,
			deltasFileFlag,
			oracleFileFlag,
			nodeCacheDirFlag,
			archiveDirFlag,
			verbosityFlag,
		},
		Action: replay,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		log.Error("replay failed", "err", err)
		os.Exit(1)
	}
}
