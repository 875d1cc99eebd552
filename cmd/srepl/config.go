package main

import (
	"strconv"
	"strings"

	"github.com/npillmayer/schuko"
	"github.com/npillmayer/schuko/gconf"
	"github.com/npillmayer/schuko/tracing"
	"github.com/npillmayer/schuko/tracing/gologadapter"
	"github.com/npillmayer/schuko/tracing/trace2go"
)

// flagConfig is the application configuration of S.REPL, filled from
// command-line flags.
//
// Trace levels are looked up as "trace.<tracer key>". Keys of package
// tracers not set explicitly fall back to "trace.root".
type flagConfig map[string]string

var _ schuko.Configuration = flagConfig{}

// InitDefaults is called by gconf.Initialize. It selects the Go log adapter
// and silences the global tracers of package gtrace, which S.REPL does not
// use.
func (c flagConfig) InitDefaults() {
	if _, ok := c["tracing.adapter"]; !ok {
		c["tracing.adapter"] = "go"
	}
	for _, key := range []string{"tracinginterpreter", "tracingcommands", "tracingequations",
		"tracingsyntax", "tracinggraphics", "tracingscripting", "tracingcore", "tracingengine"} {
		c[key] = "Error"
	}
}

func (c flagConfig) IsSet(key string) bool {
	_, ok := c[key]
	return ok
}

func (c flagConfig) GetString(key string) string {
	if v, ok := c[key]; ok {
		return v
	}
	if strings.HasPrefix(key, "trace.srceval.") {
		return c["trace.root"]
	}
	return ""
}

func (c flagConfig) GetInt(key string) int {
	n, err := strconv.Atoi(c.GetString(key))
	if err != nil {
		return 0
	}
	return n
}

func (c flagConfig) GetBool(key string) bool {
	return strings.EqualFold(c.GetString(key), "true")
}

// IsInteractive is required by schuko.Configuration.
func (c flagConfig) IsInteractive() bool {
	return true
}

// setupConfiguration makes conf the global configuration and routes the
// package tracers through trace2go, configured from conf.
func setupConfiguration(conf flagConfig) error {
	tracing.RegisterTraceAdapter("go", gologadapter.GetAdapter(), false)
	gconf.Initialize(conf)
	if err := trace2go.ConfigureRoot(conf, "trace", trace2go.AdapterKey("tracing.adapter"),
		trace2go.ReplaceTracers(true)); err != nil {
		return err
	}
	tracing.SetTraceSelector(trace2go.Selector())
	return nil
}
