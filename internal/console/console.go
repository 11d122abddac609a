// Copyright 2023 N4-Networks.com
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package console is an optional interactive shell for operating a single
// simulator instance during manual testing (SPEC_FULL.md sec 4.11),
// grounded on internal/cli/cli.go's abiosoft/ishell setup (ishell.New,
// SetPrompt, SetHistoryPath, shell.Run). Unlike the teacher's CLI, which
// talks to a remote REST API over HTTP, this console holds the
// *simulator.Simulator directly and calls it in-process -- there is only
// ever one device per process (spec.md sec 1 Non-goals), so a network
// hop back to itself would be pure overhead.
package console

import (
	"sort"
	"strings"

	"github.com/abiosoft/ishell"

	"github.com/n4-networks/cwmpsim/internal/simulator"
)

// Console wraps one ishell.Shell bound to one Simulator.
type Console struct {
	sim     *simulator.Simulator
	shell   *ishell.Shell
	history string
}

// New builds a Console for sim. histFile is the readline history path
// ("" disables history persistence).
func New(sim *simulator.Simulator, histFile string) *Console {
	c := &Console{sim: sim, shell: ishell.New(), history: histFile}
	c.shell.SetPrompt("cwmpsim>> ")
	if histFile != "" {
		c.shell.SetHistoryPath(histFile)
	}
	c.registerCommands()
	return c
}

// Run blocks, serving the interactive shell on stdin/stdout.
func (c *Console) Run() {
	c.shell.Println("**************************************************************")
	c.shell.Println("                     cwmpsim console")
	c.shell.Println("**************************************************************")
	c.shell.Run()
}

// Process runs a single command line non-interactively, for scripting.
func (c *Console) Process(args ...string) {
	c.shell.Process(args...)
}

// Stop ends the Run loop.
func (c *Console) Stop() {
	c.shell.Close()
}

func (c *Console) registerCommands() {
	c.shell.AddCmd(&ishell.Cmd{
		Name: "state",
		Help: "state - print the session state machine",
		Func: c.showState,
	})
	c.shell.AddCmd(&ishell.Cmd{
		Name: "params",
		Help: "params <prefix> - list parameter names and values under prefix",
		Func: c.showParams,
	})
	c.shell.AddCmd(&ishell.Cmd{
		Name: "transfers",
		Help: "transfers - list queued, not-yet-delivered TransferComplete records",
		Func: c.showTransfers,
	})
	c.shell.AddCmd(&ishell.Cmd{
		Name: "inform",
		Help: "inform [event] - start a session now with the given event (default \"6 CONNECTION REQUEST\")",
		Func: c.triggerInform,
	})
	c.shell.AddCmd(&ishell.Cmd{
		Name: "connection-request",
		Help: "connection-request - simulate an inbound ACS connection request",
		Func: c.triggerConnectionRequest,
	})
}

func (c *Console) showState(ctx *ishell.Context) {
	st := c.sim.Snapshot()
	ctx.Printf("sessionActive:      %v\n", st.SessionActive)
	ctx.Printf("acceptConnections:  %v\n", st.AcceptConnections)
	ctx.Printf("pendingInform:      %v\n", st.PendingInform)
	ctx.Printf("pendingReboot:      %v\n", st.PendingReboot)
	ctx.Printf("firmwareUpgrade:    %v\n", st.FirmwareUpgrade)
	ctx.Printf("downloadInProgress: %v\n", st.DownloadInProgress)
}

func (c *Console) showParams(ctx *ishell.Context) {
	prefix := "Device."
	if len(ctx.Args) > 0 {
		prefix = ctx.Args[0]
	}
	names := c.sim.Store().Names(prefix, false)
	sort.Slice(names, func(i, j int) bool { return names[i].Name < names[j].Name })
	for _, n := range names {
		p, ok := c.sim.Store().Get(n.Name)
		if !ok {
			continue
		}
		ctx.Printf("%s = %s (%s, writable=%v)\n", n.Name, p.Value, p.Type, n.Writable)
	}
}

func (c *Console) showTransfers(ctx *ishell.Context) {
	records := c.sim.PendingTransfers()
	if len(records) == 0 {
		ctx.Println("(none queued)")
		return
	}
	for _, r := range records {
		ctx.Printf("commandKey=%s start=%s fault=%s %s\n", r.CommandKey, r.StartTime.Format("15:04:05"), r.FaultCode, r.FaultString)
	}
}

// defaultTriggerEvent mirrors soap.EventConnectionReq (spec.md sec 6.1):
// a manual trigger looks, from the ACS's point of view, like a connection
// request the device answered.
const defaultTriggerEvent = "6 CONNECTION REQUEST"

func (c *Console) triggerInform(ctx *ishell.Context) {
	event := defaultTriggerEvent
	if len(ctx.Args) > 0 {
		event = strings.Join(ctx.Args, " ")
	}
	c.sim.TriggerInform(event)
	ctx.Printf("session started with event %q\n", event)
}

func (c *Console) triggerConnectionRequest(ctx *ishell.Context) {
	c.sim.OnConnectionRequest()
	ctx.Println("connection request delivered")
}
