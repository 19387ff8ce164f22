// Package uci implements the controller protocol front-end spec.md §6
// describes: a line-oriented command/response loop over stdin/stdout.
// This package has no design weight beyond the interface it wires
// (spec.md §1: "the text protocol front-end... has no design weight
// beyond their interfaces"); it is a thin adapter from protocol lines to
// Engine calls.
package uci

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/corvidchess/corvid/internal/mcts"
	"github.com/corvidchess/corvid/internal/nn"
	"github.com/corvidchess/corvid/internal/params"
	"github.com/corvidchess/corvid/internal/position"
	"github.com/corvidchess/corvid/internal/search"
	"github.com/corvidchess/corvid/internal/tablebase"
	"github.com/corvidchess/corvid/internal/tree"
	"github.com/corvidchess/corvid/internal/xlog"
)

// Options holds the engine-wide options a controller can set with
// `setoption`, the minimum set spec.md §6 mandates.
type Options struct {
	HashMB       int
	Threads      int
	MoveOverhead time.Duration
	MultiPV      int
	Chess960     bool
	SyzygyPath   string
	Contempt     float64
}

// DefaultOptions returns the engine's out-of-the-box option values.
func DefaultOptions() Options {
	return Options{HashMB: 64, Threads: 1, MoveOverhead: 10 * time.Millisecond, MultiPV: 1}
}

// Engine bundles everything a running UCI session needs: the shared
// tree, the PUCT engine, the searcher, and current options.
type Engine struct {
	Name, Author string

	Tree     *tree.Tree
	MctsEng  *mcts.Engine
	Searcher *search.Searcher
	Params   *params.Params
	Nets     *nn.Networks
	TB       tablebase.Probe
	Log      *xlog.Logger

	Options Options

	pos *position.Position
}

// NewEngine wires up a ready-to-run Engine.
func NewEngine(name, author string, t *tree.Tree, e *mcts.Engine, s *search.Searcher, p *params.Params, nets *nn.Networks, log *xlog.Logger) *Engine {
	if log == nil {
		log = xlog.Default()
	}
	return &Engine{
		Name: name, Author: author,
		Tree: t, MctsEng: e, Searcher: s, Params: p, Nets: nets,
		TB:      tablebase.NoOp{},
		Log:     log,
		Options: DefaultOptions(),
		pos:     position.NewGame(),
	}
}

// Run drives the protocol loop, reading commands from r and writing
// responses to w, until `quit` or r reaches EOF (spec.md §6).
func (e *Engine) Run(r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !e.dispatch(line, w) {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, "uci: read command")
	}
	return nil
}

// dispatch handles one command line, returning false when the session
// should end (`quit`).
func (e *Engine) dispatch(line string, w io.Writer) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return true
	}
	switch fields[0] {
	case "init", "uci":
		e.handleInit(w)
	case "isready":
		fmt.Fprintln(w, "readyok")
	case "newgame", "ucinewgame":
		e.Tree.Clear()
		e.pos = position.NewGame()
	case "setoption":
		e.handleSetOption(fields[1:], w)
	case "position":
		e.handlePosition(fields[1:], w)
	case "go":
		e.handleGo(fields[1:], w)
	case "stop":
		e.Searcher.Stop()
	case "quit":
		return false
	default:
		fmt.Fprintf(w, "info string unknown command %q\n", fields[0])
	}
	return true
}

func (e *Engine) handleInit(w io.Writer) {
	fmt.Fprintf(w, "id name %s\n", e.Name)
	fmt.Fprintf(w, "id author %s\n", e.Author)
	fmt.Fprintln(w, "option name Hash type spin default 64 min 1 max 65536")
	fmt.Fprintln(w, "option name Threads type spin default 1 min 1 max 512")
	fmt.Fprintln(w, "option name MoveOverhead type spin default 10 min 0 max 5000")
	fmt.Fprintln(w, "option name MultiPV type spin default 1 min 1 max 256")
	fmt.Fprintln(w, "option name UCI_Chess960 type check default false")
	fmt.Fprintln(w, "option name SyzygyPath type string default <empty>")
	fmt.Fprintln(w, "option name Contempt type spin default 0 min -100 max 100")
	for _, name := range params.Names() {
		meta, _ := params.Metadata(name)
		fmt.Fprintf(w, "option name %s type spin default %d min %d max %d\n",
			name, int(meta.Default*1000), int(meta.Min*1000), int(meta.Max*1000))
	}
	fmt.Fprintln(w, "uciok")
}

func (e *Engine) handleSetOption(fields []string, w io.Writer) {
	name, value, ok := parseSetOption(fields)
	if !ok {
		fmt.Fprintln(w, "info string malformed setoption command")
		return
	}
	switch name {
	case "Hash":
		if mb, err := strconv.Atoi(value); err == nil {
			e.Options.HashMB = mb
		}
	case "Threads":
		if n, err := strconv.Atoi(value); err == nil {
			e.Options.Threads = n
		}
	case "MoveOverhead":
		if ms, err := strconv.Atoi(value); err == nil {
			e.Options.MoveOverhead = time.Duration(ms) * time.Millisecond
		}
	case "MultiPV":
		if n, err := strconv.Atoi(value); err == nil {
			e.Options.MultiPV = n
		}
	case "UCI_Chess960":
		e.Options.Chess960 = value == "true"
	case "SyzygyPath":
		e.Options.SyzygyPath = value
	case "Contempt":
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			e.Params.SetScaled("Contempt", n*1000)
		}
	default:
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			if !e.Params.SetScaled(name, n) {
				fmt.Fprintf(w, "info string unknown option %q\n", name)
			}
		}
	}
}

func parseSetOption(fields []string) (name, value string, ok bool) {
	var nameParts, valueParts []string
	mode := ""
	for _, f := range fields {
		switch f {
		case "name":
			mode = "name"
			continue
		case "value":
			mode = "value"
			continue
		}
		switch mode {
		case "name":
			nameParts = append(nameParts, f)
		case "value":
			valueParts = append(valueParts, f)
		}
	}
	if len(nameParts) == 0 {
		return "", "", false
	}
	return strings.Join(nameParts, " "), strings.Join(valueParts, " "), true
}

func (e *Engine) handlePosition(fields []string, w io.Writer) {
	if len(fields) == 0 {
		return
	}
	idx := 0
	var pos *position.Position
	var err error
	switch fields[0] {
	case "startpos":
		pos = position.NewGame()
		idx = 1
	case "fen":
		fenFields := []string{}
		idx = 1
		for idx < len(fields) && fields[idx] != "moves" {
			fenFields = append(fenFields, fields[idx])
			idx++
		}
		pos, err = position.FromFEN(strings.Join(fenFields, " "))
		if err != nil {
			fmt.Fprintf(w, "info string %v\n", err)
			return
		}
	default:
		fmt.Fprintln(w, "info string malformed position command")
		return
	}

	applied := 0
	if idx < len(fields) && fields[idx] == "moves" {
		for _, mv := range fields[idx+1:] {
			if err := pos.MakeMove(mv); err != nil {
				fmt.Fprintf(w, "info string illegal move %q: %v\n", mv, err)
				return
			}
			applied++
		}
	}

	e.pos = pos
	e.Tree.SetRootPosition(pos.FEN(), recentPlayedMoves(pos, applied)...)
}

// recentPlayedMoves converts up to the last two of the applied moves
// into the packed representation SetRootPosition descends with, so the
// tree can reuse a subtree across both the engine's own move and the
// opponent's reply — the standard UCI position-update cycle (spec.md
// §3, §4.3: "descend from old root matching up to two plies played").
func recentPlayedMoves(pos *position.Position, applied int) []position.Move {
	if applied == 0 {
		return nil
	}
	n := applied
	if n > 2 {
		n = 2
	}
	recent := pos.RecentMoves(n)
	out := make([]position.Move, len(recent))
	for i, m := range recent {
		out[i] = position.FromChessMove(m)
	}
	return out
}

func (e *Engine) handleGo(fields []string, w io.Writer) {
	limits := parseGoFields(fields)
	limits.Overhead = e.Options.MoveOverhead
	result := e.Searcher.Search(e.pos, limits, e.Options.Threads, func(p search.Progress) {
		e.writeInfo(w, p)
	})
	e.writeInfo(w, result.Progress)
	if !result.HasMove {
		fmt.Fprintln(w, "bestmove 0000")
		return
	}
	fmt.Fprintf(w, "bestmove %s\n", result.BestMove.UCI())
}

func (e *Engine) writeInfo(w io.Writer, p search.Progress) {
	scoreField := fmt.Sprintf("cp %d", p.ScoreCP)
	if p.Mate {
		scoreField = fmt.Sprintf("mate %d", p.MateIn)
	}
	pv := make([]string, len(p.PV))
	for i, m := range p.PV {
		pv[i] = m.UCI()
	}
	fmt.Fprintf(w, "info depth %d seldepth %d nodes %d nps %d time %d score %s pv %s\n",
		p.Depth, p.SelDepth, p.Nodes, p.NPS, p.Elapsed.Milliseconds(), scoreField, strings.Join(pv, " "))
}

func parseGoFields(fields []string) search.Limits {
	var l search.Limits
	for i := 0; i < len(fields); i++ {
		switch fields[i] {
		case "nodes":
			if i+1 < len(fields) {
				i++
				if n, err := strconv.ParseUint(fields[i], 10, 64); err == nil {
					l.Nodes = n
				}
			}
		case "movetime":
			if i+1 < len(fields) {
				i++
				if ms, err := strconv.Atoi(fields[i]); err == nil {
					l.MoveTime = time.Duration(ms) * time.Millisecond
				}
			}
		case "wtime":
			if i+1 < len(fields) {
				i++
				if ms, err := strconv.Atoi(fields[i]); err == nil {
					l.WTime = time.Duration(ms) * time.Millisecond
				}
			}
		case "btime":
			if i+1 < len(fields) {
				i++
				if ms, err := strconv.Atoi(fields[i]); err == nil {
					l.BTime = time.Duration(ms) * time.Millisecond
				}
			}
		case "winc":
			if i+1 < len(fields) {
				i++
				if ms, err := strconv.Atoi(fields[i]); err == nil {
					l.WInc = time.Duration(ms) * time.Millisecond
				}
			}
		case "binc":
			if i+1 < len(fields) {
				i++
				if ms, err := strconv.Atoi(fields[i]); err == nil {
					l.BInc = time.Duration(ms) * time.Millisecond
				}
			}
		case "movestogo":
			if i+1 < len(fields) {
				i++
				if n, err := strconv.Atoi(fields[i]); err == nil {
					l.MovesToGo = n
				}
			}
		case "infinite":
			l.Infinite = true
		}
	}
	return l
}
