// Package main is the entry point for the scripthost runner.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/dshills/scripthost/internal/script"
	"github.com/dshills/scripthost/internal/script/watcher"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
)

// fileConfig is the scripthost.yaml layout.
type fileConfig struct {
	Root       string `yaml:"root"`
	Extension  string `yaml:"extension"`
	Watch      bool   `yaml:"watch"`
	DebounceMS int    `yaml:"debounce_ms"`
	LogLevel   string `yaml:"log_level"`
}

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath  string
		root        string
		watch       bool
		call        string
		logLevel    string
		showVersion bool
	)

	flag.StringVar(&configPath, "config", "scripthost.yaml", "Path to configuration file")
	flag.StringVar(&root, "root", "", "Script root directory (overrides config)")
	flag.BoolVar(&watch, "watch", false, "Watch the root and hot-reload on changes")
	flag.StringVar(&call, "call", "", "Fire one event, as script:event")
	flag.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "scripthost - embedded Lua script runner\n\n")
		fmt.Fprintf(os.Stderr, "Usage: scripthost [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  scripthost -root ./scripts                 Load and list scripts\n")
		fmt.Fprintf(os.Stderr, "  scripthost -root ./scripts -call foo:tick  Load, call foo's tick event\n")
		fmt.Fprintf(os.Stderr, "  scripthost -root ./scripts -watch          Keep running, hot-reload on change\n")
	}
	flag.Parse()

	if showVersion {
		fmt.Printf("scripthost %s (%s)\n", version, commit)
		return 0
	}

	cfg := loadConfig(configPath)
	if root != "" {
		cfg.Root = root
	}
	if watch {
		cfg.Watch = true
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if cfg.Root == "" {
		fmt.Fprintln(os.Stderr, "Error: no script root configured (use -root or scripthost.yaml)")
		return 1
	}

	log := logrus.New()
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	reg := script.NewRegistry(cfg.Root, script.Config{
		Extension: cfg.Extension,
		Logger:    log,
	})

	unsubscribe := reg.Subscribe(func(n script.Notification[*script.Instance]) {
		switch n.Type {
		case script.ScriptLoaded:
			color.Green("loaded   %s (%s)", n.Script.Name(), n.Script.SourcePath())
		case script.ScriptUnloaded:
			color.Yellow("unloaded %s", n.Script.Name())
		}
	})
	defer unsubscribe()

	reg.LoadScripts()
	fmt.Printf("%d scripts loaded from %s\n", reg.Len(), cfg.Root)

	if call != "" {
		if code := fireCall(reg, call); code != 0 {
			return code
		}
	}

	if !cfg.Watch {
		return 0
	}

	var opts []watcher.Option
	opts = append(opts, watcher.WithLogger(log))
	if cfg.Extension != "" {
		opts = append(opts, watcher.WithExtension(cfg.Extension))
	}
	if cfg.DebounceMS > 0 {
		opts = append(opts, watcher.WithDebounce(time.Duration(cfg.DebounceMS)*time.Millisecond))
	}

	w, err := watcher.New(reg, cfg.Root, opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to create watcher: %v\n", err)
		return 1
	}
	if err := w.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to start watcher: %v\n", err)
		return 1
	}
	defer w.Close()

	fmt.Println("watching for changes, Ctrl-C to stop")

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	<-signals
	return 0
}

// fireCall parses "script:event" and dispatches one event call.
func fireCall(reg *script.Registry[*script.Instance], call string) int {
	name, event, ok := strings.Cut(call, ":")
	if !ok || name == "" || event == "" {
		fmt.Fprintf(os.Stderr, "Error: -call wants script:event, got %q\n", call)
		return 2
	}

	out, ok := reg.TryCallEvent(name, event, nil)
	if !ok {
		color.Red("call %s:%s failed", name, event)
		return 1
	}
	color.Green("call %s:%s ok: %v", name, event, out)
	return 0
}

// loadConfig reads the YAML config; a missing file yields defaults.
func loadConfig(path string) fileConfig {
	cfg := fileConfig{LogLevel: "info"}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: bad config %s: %v\n", path, err)
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	return cfg
}
