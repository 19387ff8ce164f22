// Command corvid is the engine's entrypoint: it wires the tree, the
// quantised networks, the PUCT engine, the searcher, and the UCI
// front-end together and runs the protocol loop on stdin/stdout,
// following the teacher's cmd/infer flag-driven main style.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/corvidchess/corvid/internal/mcts"
	"github.com/corvidchess/corvid/internal/nn"
	"github.com/corvidchess/corvid/internal/params"
	"github.com/corvidchess/corvid/internal/search"
	"github.com/corvidchess/corvid/internal/tree"
	"github.com/corvidchess/corvid/internal/uci"
	"github.com/corvidchess/corvid/internal/xlog"
)

var (
	networkPath = flag.String("network", "", "path to the combined policy+value network file")
	hashMB      = flag.Int("hash", 64, "total tree+TT budget in megabytes")
	threads     = flag.Int("threads", 1, "worker thread count")
	debug       = flag.Bool("debug", false, "enable debug-level logging")
)

const bytesPerNode = 64 // rough sizeof(node.Node) for sizing the halves

func main() {
	flag.Parse()

	level := xlog.LevelInfo
	if *debug {
		level = xlog.LevelDebug
	}
	log := xlog.New(os.Stderr, level)

	budget := *hashMB * 1024 * 1024
	halfBudget := budget / 2
	ttBudget := budget / 16
	capacity := halfBudget / bytesPerNode

	t := tree.New(capacity, ttBudget/4, *threads)
	p := params.Default()

	var nets *nn.Networks
	if *networkPath != "" {
		log.Infof("loading network from %s", *networkPath)
		var err error
		nets, err = nn.Load(*networkPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "corvid: fatal: %v\n", err)
			os.Exit(1)
		}
	} else {
		log.Infof("no network file given, running with zero-valued (untrained) weights")
		nets = &nn.Networks{Policy: &nn.PolicyNetwork{}, Value: &nn.ValueNetwork{}}
	}

	engine := mcts.New(t, nets, p)
	searcher := search.New(t, engine, p, log)

	uciEngine := uci.NewEngine("corvid", "corvidchess", t, engine, searcher, p, nets, log)

	if err := uciEngine.Run(os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "corvid: %v\n", err)
		os.Exit(1)
	}
}
