package main

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/mattlabs/triewitness/internal/xlog"
	"github.com/mattlabs/triewitness/state"
	"github.com/mattlabs/triewitness/triedb"
	"github.com/mattlabs/triewitness/witness"
)

var witnessFileFlag = &cli.StringFlag{
	Name:     "witness",
	Usage:    "Path to the RLP-encoded witness parcel for this block",
	Required: true,
}

var deltasFileFlag = &cli.StringFlag{
	Name:     "deltas",
	Usage:    "Path to the JSON account-delta trace produced by the block's execution",
	Required: true,
}

var oracleFileFlag = &cli.StringFlag{
	Name:  "oracle",
	Usage: "Path to a JSON oracle-entries file (overrides any oracle entries embedded in the deltas file)",
}

var nodeCacheDirFlag = &cli.StringFlag{
	Name:  "node-cache-dir",
	Usage: "Directory for an optional on-disk LevelDB node cache (default: in-memory only)",
}

var archiveDirFlag = &cli.StringFlag{
	Name:  "archive-dir",
	Usage: "Directory for an optional append-only archive of every replayed witness parcel",
}

var verbosityFlag = &cli.IntFlag{
	Name:  "verbosity",
	Usage: "Log verbosity: 0=silent 1=error 2=warn 3=info 4=debug 5=trace",
	Value: 3,
}

func replay(ctx *cli.Context) error {
	setupLogging(ctx.Int(verbosityFlag.Name))

	witnessPath := ctx.String(witnessFileFlag.Name)
	raw, err := os.ReadFile(witnessPath)
	if err != nil {
		return fmt.Errorf("reading witness parcel: %w", err)
	}
	parcel, err := witness.Decode(raw)
	if err != nil {
		return fmt.Errorf("decoding witness parcel: %w", err)
	}
	log.Info("Loaded witness parcel", "path", witnessPath, "accounts", len(parcel.Accounts), "contracts", len(parcel.Contracts))

	deltas, embeddedOracle, err := loadTrace(ctx.String(deltasFileFlag.Name))
	if err != nil {
		return fmt.Errorf("reading account-delta trace: %w", err)
	}
	oracle := embeddedOracle
	if p := ctx.String(oracleFileFlag.Name); p != "" {
		_, fileOracle, err := loadTrace(p)
		if err != nil {
			return fmt.Errorf("reading oracle file: %w", err)
		}
		if fileOracle != nil {
			oracle = fileOracle
		}
	}

	adapter := state.NewAdapter(oracle)
	adapter.SetLogger(xlog.Default())

	if dir := ctx.String(nodeCacheDirFlag.Name); dir != "" {
		cache, err := triedb.OpenLevelDBStore(dir)
		if err != nil {
			return fmt.Errorf("opening node cache: %w", err)
		}
		defer cache.Close()
		adapter.SetBackend(cache)
		log.Info("Node cache enabled", "dir", dir)
	}

	if dir := ctx.String(archiveDirFlag.Name); dir != "" {
		archive, err := witness.OpenArchive(dir, "replayed-parcels")
		if err != nil {
			return fmt.Errorf("opening parcel archive: %w", err)
		}
		defer archive.Close()
		if err := archive.Append(parcel); err != nil {
			return fmt.Errorf("archiving witness parcel: %w", err)
		}
		log.Info("Archived witness parcel", "dir", dir, "position", archive.Len()-1)
	}

	log.Info("Loading proofs into multiproof stores", "accounts", len(parcel.Accounts))
	if err := adapter.LoadFromParcel(parcel); err != nil {
		return fmt.Errorf("loading witness parcel into adapter: %w", err)
	}

	start := time.Now()
	root, err := adapter.ApplyChanges(deltas)
	if err != nil {
		return fmt.Errorf("applying account deltas: %w", err)
	}
	log.Info("Replay complete", "accounts", len(deltas), "elapsed", time.Since(start), "root", root)

	fmt.Println(root.Hex())
	return nil
}

func setupLogging(verbosity int) {
	var lvl slog.Level
	switch {
	case verbosity <= 0:
		lvl = slog.Level(math.MaxInt)
	case verbosity == 1:
		lvl = slog.LevelError
	case verbosity == 2:
		lvl = slog.LevelWarn
	case verbosity == 3:
		lvl = slog.LevelInfo
	case verbosity == 4:
		lvl = slog.LevelDebug
	default:
		lvl = log.LevelTrace
	}
	log.SetDefault(log.NewLogger(log.NewTerminalHandlerWithLevel(os.Stderr, lvl, true)))
}
