package vex

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/vexlink/pkg/brain"
	"github.com/robotalks/vexlink/pkg/cli/sh"
	"github.com/robotalks/vexlink/pkg/l0/comm"
)

const defaultMaxWait = time.Second

// ParseCommand parses command id like 0xA0A0.
func ParseCommand(s string) (brain.CommandID, error) {
	val, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("Invalid CMD %q: %v", s, err)
	}
	return brain.CommandID(val), nil
}

func reply(c *ishell.Context, cmd brain.CommandID, data []byte, err error) {
	switch {
	case err == comm.ErrTimedOut:
		sh.Output(c, map[string]interface{}{"command": cmd.String(), "timed_out": true}, "TIMEOUT")
	case err != nil:
		c.Err(err)
	default:
		text := comm.DecodeText(data)
		sh.Output(c, map[string]interface{}{"command": cmd.String(), "reply": text}, text)
	}
}

var (
	// GetCmd sends a command and prints the reply.
	GetCmd = ishell.Cmd{
		Name:    "get",
		Aliases: []string{"g"},
		Help:    "CMD [MSG...]",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("CMD required"))
				return
			}
			cmd, err := ParseCommand(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			data, err := sh.ShellFrom(c).Client.Get(cmd, []byte(strings.Join(c.Args[1:], " ")))
			reply(c, cmd, data, err)
		},
	}

	// PostCmd sends a command without waiting.
	PostCmd = ishell.Cmd{
		Name:    "post",
		Aliases: []string{"p"},
		Help:    "CMD [MSG...]",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("CMD required"))
				return
			}
			cmd, err := ParseCommand(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			if err := sh.ShellFrom(c).Client.Post(cmd, []byte(strings.Join(c.Args[1:], " "))); err != nil {
				c.Err(err)
				return
			}
			sh.Output(c, map[string]string{"command": cmd.String()}, "OK")
		},
	}

	// DebugCmd sends a debug message echoed by the brain.
	DebugCmd = ishell.Cmd{
		Name:    "debug",
		Aliases: []string{"d"},
		Help:    "MSG...",
		Func: func(c *ishell.Context) {
			msg := strings.Join(c.Args, " ")
			if msg == "" {
				msg = "test message"
			}
			data, err := sh.ShellFrom(c).Client.Get(brain.CmdDebug, []byte(msg))
			reply(c, brain.CmdDebug, data, err)
		},
	}

	// MotorCmd reads motor telemetry.
	MotorCmd = ishell.Cmd{
		Name:    "motor",
		Aliases: []string{"m"},
		Help:    "[MOTOR] read telemetry of a motor, or list motors",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 1 {
				names := make(map[string]string)
				for _, num := range brain.MotorNumbers() {
					names[strconv.Itoa(num)] = brain.MotorNames[num]
					if !sh.ShellFrom(c).OutputJSON {
						c.Printf("%d %s\n", num, brain.MotorNames[num])
					}
				}
				if sh.ShellFrom(c).OutputJSON {
					sh.Output(c, names, "")
				}
				return
			}
			motor, err := strconv.Atoi(c.Args[0])
			if err != nil {
				c.Err(fmt.Errorf("Invalid MOTOR: %v", err))
				return
			}
			data, err := brain.ReadMotor(sh.ShellFrom(c).Env.Transport.Registry, motor, defaultMaxWait)
			if err != nil {
				c.Err(err)
				return
			}
			if sh.ShellFrom(c).OutputJSON {
				sh.Output(c, data, "")
				return
			}
			c.Printf("%d %s\n", motor, brain.MotorNames[motor])
			for _, field := range brain.MotorFields {
				val := "-"
				if v := data[field.Name]; v != nil {
					val = *v
				}
				c.Printf("  %-16s %s\n", field.Name, val)
			}
		},
	}

	// MultiCmd issues commands concurrently.
	MultiCmd = ishell.Cmd{
		Name: "multi",
		Help: "CMD[:MSG] ... send all commands at once",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("CMD required"))
				return
			}
			cmds := make([]brain.CommandID, len(c.Args))
			requests := make([][]byte, len(c.Args))
			for n, arg := range c.Args {
				parts := strings.SplitN(arg, ":", 2)
				cmd, err := ParseCommand(parts[0])
				if err != nil {
					c.Err(err)
					return
				}
				var msg []byte
				if len(parts) > 1 {
					msg = []byte(parts[1])
				}
				if requests[n], err = brain.Payload(cmd, msg); err != nil {
					c.Err(err)
					return
				}
				cmds[n] = cmd
			}
			results := sh.ShellFrom(c).Env.Transport.Registry.MultiRequest(requests, defaultMaxWait)
			for n, result := range results {
				reply(c, cmds[n], result.Data, result.Err)
			}
		},
	}

	// FloatCmd prints the wire encoding of numbers.
	FloatCmd = ishell.Cmd{
		Name: "float",
		Help: "NUMBER... show encoded bytes",
		Func: func(c *ishell.Context) {
			vals := make([]float64, len(c.Args))
			for n, arg := range c.Args {
				val, err := strconv.ParseFloat(arg, 64)
				if err != nil {
					c.Err(fmt.Errorf("Invalid NUMBER: %v", err))
					return
				}
				vals[n] = val
			}
			msg, err := brain.FloatMessage(vals...)
			if err != nil {
				c.Err(err)
				return
			}
			encoded := hex.EncodeToString(msg)
			sh.Output(c, map[string]string{"hex": encoded}, encoded)
		},
	}
)

func init() {
	sh.AddCmds(
		&GetCmd,
		&PostCmd,
		&DebugCmd,
		&MotorCmd,
		&MultiCmd,
		&FloatCmd,
	)
}
