// Entry point

package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"racearena/internal/client"
	"racearena/internal/conf"
	"racearena/internal/game"
	"racearena/internal/logging"
	"racearena/internal/proto"
)

// defconf is the file name for the configuration file consulted when
// -conf is not given.
const defconf = "server.toml"

func main() {
	c := conf.Default()

	var (
		confFile    = flag.String("conf", defconf, "Name of configuration file")
		dumpConf    = flag.Bool("dump-config", false, "Dump resolved configuration and exit")
		debug       = flag.Bool("debug", c.Debug, "Enable debug output")
		listen      = flag.String("listen", c.Listen, "Address to listen for TCP connections on")
		maxPlayers  = flag.Uint("max-players", c.MaxPlayers, "Maximum number of players in a match")
		raceLength  = flag.Uint("race-length", c.RaceLength, "Position a player must reach to win")
		answerTime  = flag.Uint("answer-time", c.AnswerTime, "Seconds allotted to answer a question")
		prepareTime = flag.Uint("prepare-time", c.PrepareTime, "Seconds between rounds")
	)
	flag.Parse()

	if flag.NArg() != 0 {
		fmt.Fprintf(flag.CommandLine.Output(),
			"Too many arguments passed to %s.\nUsage:\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	loaded, err := conf.Open(*confFile)
	if err == nil {
		c = loaded
	} else if !os.IsNotExist(err) || *confFile != defconf {
		logging.Log.Fatalf("loading %s: %s", *confFile, err)
	}

	applyFlagOverrides(&c, map[string]func(){
		"debug":        func() { c.Debug = *debug },
		"listen":       func() { c.Listen = *listen },
		"max-players":  func() { c.MaxPlayers = *maxPlayers },
		"race-length":  func() { c.RaceLength = *raceLength },
		"answer-time":  func() { c.AnswerTime = *answerTime },
		"prepare-time": func() { c.PrepareTime = *prepareTime },
	})

	logging.SetDebug(c.Debug)

	if *dumpConf {
		if err := c.Dump(os.Stdout); err != nil {
			logging.Log.Fatal("failed to dump configuration:", err)
		}
		os.Exit(0)
	}

	if err := run(c); err != nil {
		logging.Log.Fatal(err)
	}
}

// applyFlagOverrides runs the setter for every flag the user
// explicitly passed on the command line, so a flag's zero value never
// stomps a value that came from the configuration file.
func applyFlagOverrides(c *conf.Conf, setters map[string]func()) {
	flag.Visit(func(f *flag.Flag) {
		if set, ok := setters[f.Name]; ok {
			set()
		}
	})
}

func run(c conf.Conf) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	clients := client.NewRegistry()
	g := game.New(game.Config{
		MaxPlayers:  int(c.MaxPlayers),
		RaceLength:  int(c.RaceLength),
		AnswerTime:  time.Duration(c.AnswerTime) * time.Second,
		PrepareTime: time.Duration(c.PrepareTime) * time.Second,
		OperandMin:  c.OperandMin,
		OperandMax:  c.OperandMax,
	}, clients, rand.New(rand.NewSource(time.Now().UnixNano())))

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		return proto.Listen(egCtx, c.Listen, g, clients)
	})

	eg.Go(func() error {
		select {
		case s := <-sig:
			logging.Log.Printf("received %s, shutting down", s)
			cancel()
		case <-egCtx.Done():
		}
		return nil
	})

	return eg.Wait()
}
