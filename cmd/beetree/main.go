// Command beetree is a small CLI over a disk-backed hyperbee-style index:
// put/get/del single keys, scan a key range, or replay the append history.
//
// Usage:
//
//	beetree [-config beetree.toml] <put|get|del|scan|history> [args...]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"beetree"
	"beetree/internal/filelog"
	"beetree/iterator"
)

func main() {
	configPath := flag.String("config", "", "path to a beetree.toml config file")
	flag.Parse()
	args := flag.Args()
	if len(args) < 1 {
		usage()
		os.Exit(2)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "beetree: loading config: %v\n", err)
		os.Exit(1)
	}

	log, err := filelog.Open(cfg.LogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "beetree: opening log %s: %v\n", cfg.LogPath, err)
		os.Exit(1)
	}
	defer log.Close()

	tr := beetree.New(log, beetree.Options{CacheSize: cfg.CacheSize})
	ctx := context.Background()
	if err := tr.Ready(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "beetree: %v\n", err)
		os.Exit(1)
	}

	if err := dispatch(ctx, tr, args[0], args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "beetree: %v\n", err)
		os.Exit(1)
	}
}

func dispatch(ctx context.Context, tr *beetree.Tree, cmd string, args []string) error {
	switch cmd {
	case "put":
		if len(args) != 2 {
			return fmt.Errorf("usage: put <key> <value>")
		}
		return tr.Put(ctx, []byte(args[0]), []byte(args[1]))

	case "get":
		if len(args) != 1 {
			return fmt.Errorf("usage: get <key>")
		}
		v, ok, err := tr.Get(ctx, []byte(args[0]))
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("not found: %s", args[0])
		}
		fmt.Println(string(v))
		return nil

	case "del":
		if len(args) != 1 {
			return fmt.Errorf("usage: del <key>")
		}
		return tr.Del(ctx, []byte(args[0]))

	case "scan":
		it, err := tr.CreateReadStream(ctx, iterator.RangeOptions{})
		if err != nil {
			return err
		}
		defer it.Close()
		for {
			k, v, ok, err := it.Next(ctx)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			fmt.Printf("%s\t%s\n", k, v)
		}

	case "history":
		it, err := tr.CreateHistoryStream(ctx, iterator.HistoryOptions{})
		if err != nil {
			return err
		}
		defer it.Close()
		for {
			k, v, ok, err := it.Next(ctx)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			if v == nil {
				fmt.Printf("del\t%s\n", k)
			} else {
				fmt.Printf("put\t%s\t%s\n", k, v)
			}
		}

	default:
		usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: beetree [-config beetree.toml] <put|get|del|scan|history> [args...]")
}
