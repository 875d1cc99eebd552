package main

import (
	"flag"
	"os"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/npillmayer/srceval/interp"
	"github.com/npillmayer/srceval/parser"
	"github.com/pterm/pterm"
	"golang.org/x/term"
)

/*
License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2021 Norbert Pillmayer <norbert@pillmayer.com>

*/

// main() starts an interactive CLI ("S.REPL"), where users may enter Source
// programs. S.REPL will evaluate the input and print out the result.
// Arguments on the command line are evaluated before going interactive.
func main() {
	tlevel := flag.String("trace", "Error", "Trace level [Debug|Info|Error]")
	chapter := flag.Int("chapter", parser.DefaultChapter(), "Source chapter [1…4]")
	lazy := flag.Bool("lazy", false, "Evaluate lazily")
	useVM := flag.Bool("vm", false, "Compile and run on the virtual machine")
	concurrent := flag.Bool("concurrent", false, "Enable concurrent_execute (implies -vm)")
	heap := flag.Int("heap", 0, "Heap size of the virtual machine in words")
	steps := flag.Int("steplimit", 0, "Maximum number of evaluation steps, 0 for unlimited")
	maxstack := flag.Int("maxstack", interp.DefaultMaxStack, "Maximum number of nested calls")
	initf := flag.String("init", "", "Initial load")
	flag.Parse()
	//
	// set up configuration and logging
	conf := flagConfig{
		"trace.root":         *tlevel,
		"srceval.chapter":    strconv.Itoa(*chapter),
		"srceval.lazy":       strconv.FormatBool(*lazy),
		"srceval.concurrent": strconv.FormatBool(*concurrent),
		"srceval.heapwords":  strconv.Itoa(*heap),
		"srceval.steplimit":  strconv.Itoa(*steps),
		"srceval.maxstack":   strconv.Itoa(*maxstack),
	}
	if err := setupConfiguration(conf); err != nil {
		pterm.Error.Println(err.Error())
		os.Exit(3)
	}
	initDisplay()
	pterm.Info.Println("Welcome to S.REPL") // colored welcome message
	tracer().Infof("Trace level is %s", *tlevel)
	//
	// set up the session
	session, err := newSession(os.Stdout, *useVM || *concurrent)
	if err != nil {
		pterm.Error.Println(err.Error())
		os.Exit(3)
	}
	if input := strings.TrimSpace(strings.Join(flag.Args(), " ")); input != "" {
		tracer().Infof("Input argument is \"%s\"", input)
		session.Eval(input)
	}
	repl, err := readline.New("srepl> ")
	if err != nil {
		tracer().Errorf(err.Error())
		os.Exit(3)
	}
	defer repl.Close()
	//
	// load an init file and start receiving commands / programs
	pterm.Info.Println("Quit with <ctrl>D or :quit") // inform user how to stop the CLI
	if *initf != "" {
		session.load(*initf)
	}
	REPL(repl, session)
}

// We use pterm for moderately fancy output. Output piped to another
// program stays plain.
func initDisplay() {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		pterm.DisableStyling()
		return
	}
	pterm.Info.Prefix = pterm.Prefix{
		Text:  "  >>",
		Style: pterm.NewStyle(pterm.BgCyan, pterm.FgBlack),
	}
	pterm.Error.Prefix = pterm.Prefix{
		Text:  "  Error",
		Style: pterm.NewStyle(pterm.BgRed, pterm.FgBlack),
	}
}

// REPL starts interactive mode.
func REPL(repl *readline.Instance, session *Session) {
	for {
		line, err := repl.Readline()
		if err != nil { // io.EOF or interrupt
			break
		}
		if line = strings.TrimSpace(line); line == "" {
			continue
		}
		if quit := session.Eval(line); quit {
			break
		}
	}
	println("Good bye!")
}
