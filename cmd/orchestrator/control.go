package main

// control.go gives a separate `orchestrator cancel`/`orchestrator decide`
// invocation a way to reach the process currently running `orchestrator run`
// or `orchestrator autobuild`, the way ormasoftchile-gert's `serve` command
// exposes a stdio JSON-RPC channel to its VS Code extension — simplified
// here to newline-delimited commands over a Unix domain socket scoped to one
// runs root, since the orchestrator has no long-lived frontend to speak
// JSON-RPC to.

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"orchestrator/internal/decision"
)

func controlSocketPath(runsRoot string) string {
	return filepath.Join(runsRoot, "control.sock")
}

// serveControl listens on the runs root's control socket for the lifetime of
// one run/autobuild invocation. A stale socket left behind by a crashed
// previous invocation is removed before listening.
func serveControl(a *app) (closeFn func(), err error) {
	path := controlSocketPath(a.Config.RunsRoot)
	os.Remove(path)

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen control socket: %w", err)
	}

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go handleControlConn(a, conn)
		}
	}()

	return func() {
		ln.Close()
		os.Remove(path)
	}, nil
}

func handleControlConn(a *app, conn net.Conn) {
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		return
	}
	fields := strings.Fields(scanner.Text())
	if len(fields) == 0 {
		return
	}

	reply := dispatchControl(a, fields)
	fmt.Fprintln(conn, reply)
}

func dispatchControl(a *app, fields []string) string {
	switch fields[0] {
	case "cancel-run":
		if len(fields) < 2 {
			return "error: cancel-run requires a run id"
		}
		return fmt.Sprintf("%v", a.Executor.Cancel(fields[1]))
	case "cancel-autobuild":
		a.Controller.CancelAutobuild()
		return "true"
	case "decide":
		if len(fields) < 3 {
			return "error: decide requires a run id and a result"
		}
		var result decision.Result
		switch fields[2] {
		case "approved":
			result = decision.Approved
		case "rejected":
			result = decision.Rejected
		default:
			return fmt.Sprintf("error: unknown result %q", fields[2])
		}
		return fmt.Sprintf("%v", a.Executor.SubmitDecision(fields[1], result))
	default:
		return fmt.Sprintf("error: unknown command %q", fields[0])
	}
}

// dialControl sends a single command line to the control socket of an
// already-running run/autobuild invocation and returns its one-line reply.
func dialControl(runsRoot, line string) (string, error) {
	conn, err := net.Dial("unix", controlSocketPath(runsRoot))
	if err != nil {
		return "", fmt.Errorf("connect to running orchestrator: %w", err)
	}
	defer conn.Close()

	fmt.Fprintln(conn, line)
	scanner := bufio.NewScanner(conn)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	return "", scanner.Err()
}
