package main

import (
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/tos-network/tos/config"
	"github.com/tos-network/tos/consensus"
)

// node is a wrapper around the consensus core and its event consumer,
// mirroring the teacher's own kaspad struct: a started/shutdown guard plus
// start/stop methods, generalized from a P2P+RPC+mining wrapper to one
// around the embedded consensus core and its event stream.
type node struct {
	cfg       *config.Config
	consensus consensus.Consensus

	started, shutdown int32
}

func newNode(cfg *config.Config) (*node, error) {
	c, err := consensus.NewFactory().NewConsensus(cfg.Params, cfg.ChainStoreDir())
	if err != nil {
		return nil, fmt.Errorf("opening consensus: %w", err)
	}
	return &node{cfg: cfg, consensus: c}, nil
}

// start launches the node's background event consumer.
func (n *node) start() {
	if atomic.AddInt32(&n.started, 1) != 1 {
		return
	}
	log.Infof("starting tosd on %s", n.cfg.Params.Name)
	spawn(n.logEvents)
}

// logEvents drains the consensus core's event stream for the lifetime of the
// node, logging each notification. The channel is never closed, so it runs
// until the process exits.
func (n *node) logEvents() {
	for event := range n.consensus.Events() {
		switch e := event.(type) {
		case consensus.BlockAdded:
			log.Infof("block %s added at topoheight %d", e.Hash, e.TopoHeight)
		case consensus.BlockOrphaned:
			log.Warnf("block %s orphaned: %s", e.Hash, e.Reason)
		case consensus.TipChanged:
			log.Debugf("tip set changed: %d tip(s)", len(e.Tips))
		case consensus.TransactionExecuted:
			log.Debugf("transaction executed in block %s", e.BlockHash)
		}
	}
}

// stop gracefully shuts the node down, closing the underlying consensus
// core exactly once.
func (n *node) stop() error {
	if atomic.AddInt32(&n.shutdown, 1) != 1 {
		log.Infof("tosd is already in the process of shutting down")
		return nil
	}
	log.Warnf("tosd shutting down")
	return n.consensus.Close()
}

func main() {
	cfg, err := config.Parse("tosd", os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "error parsing command-line arguments: %s\n", err)
		os.Exit(1)
	}

	n, err := newNode(cfg)
	if err != nil {
		log.Errorf("%s", err)
		os.Exit(1)
	}
	n.start()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	<-interrupt

	if err := n.stop(); err != nil {
		log.Errorf("error during shutdown: %s", err)
		os.Exit(1)
	}
}
