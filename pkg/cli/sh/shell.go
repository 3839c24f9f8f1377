package sh

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/vexlink/pkg/brain"
	"github.com/robotalks/vexlink/pkg/env"
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool

	Shell  *ishell.Shell
	Config *env.Config
	Env    *env.Env
	Client *brain.Client

	cancel func()
	done   chan struct{}
}

const (
	shellKey = "$shell"
	prompt   = "vex > "
)

var (
	// flags

	evalOnly   bool
	outputJSON bool

	// commands
	commands = []*ishell.Cmd{
		&DevicesCmd,
		&StatusCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New(conf *env.Config) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,

		Shell:  ishell.New(),
		Config: conf,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(prompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// Start builds the link stack and runs the transport in background.
func (s *Shell) Start() error {
	e, err := s.Config.NewEnv()
	if err != nil {
		return err
	}
	client := brain.NewClient(brain.DefaultEndpointID)
	if err := e.Transport.Register(client.Endpoint); err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.Env, s.Client, s.cancel, s.done = e, client, cancel, make(chan struct{})
	go func() {
		defer close(s.done)
		e.Transport.Run(ctx)
	}()
	return nil
}

// Stop stops the transport.
func (s *Shell) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.Env.Close()
	s.cancel = nil
}

// WaitReady waits for the link up to timeout.
func (s *Shell) WaitReady(timeout time.Duration) bool {
	select {
	case <-s.Env.Transport.Ready():
		return true
	case <-time.After(timeout):
		return false
	}
}

// Output prints v as JSON in JSON mode, otherwise text.
func Output(c *ishell.Context, v interface{}, text string) {
	if !ShellFrom(c).OutputJSON {
		c.Println(text)
		return
	}
	out, err := json.Marshal(v)
	if err != nil {
		c.Err(err)
		return
	}
	c.Println(string(out))
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if err := s.Start(); err != nil {
		log.Fatalln(err)
	}
	defer s.Stop()

	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

var (
	// DevicesCmd lists device candidates.
	DevicesCmd = ishell.Cmd{
		Name:    "devices",
		Aliases: []string{"list", "l"},
		Help:    "list devices in the order they are tried",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			paths, err := s.Config.NewConnector().Candidates(context.TODO())
			if err != nil {
				c.Err(err)
				return
			}
			if len(paths) == 0 {
				Output(c, []string{}, "No devices found")
				return
			}
			if s.OutputJSON {
				Output(c, paths, "")
				return
			}
			for _, path := range paths {
				c.Println(path)
			}
		},
	}

	// StatusCmd prints the link state.
	StatusCmd = ishell.Cmd{
		Name:    "status",
		Aliases: []string{"st"},
		Help:    "[WAIT(s)] show link state, optionally waiting for connection",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			if len(c.Args) > 0 {
				var secs float64
				if _, err := fmt.Sscanf(c.Args[0], "%g", &secs); err != nil {
					c.Err(fmt.Errorf("Invalid WAIT: %v", err))
					return
				}
				s.WaitReady(time.Duration(secs * float64(time.Second)))
			}
			state := s.Env.Transport.State().String()
			Output(c, map[string]string{"state": state}, state)
		},
	}
)

// Main is a helper to provide a single call in main.
func Main(flags *env.Flags) {
	flag.Parse()
	conf, err := flags.Load()
	if err != nil {
		log.Fatalln(err)
	}
	New(conf).Run(flag.Args()...)
}
