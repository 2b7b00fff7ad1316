package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/matheus3301/fitmsg/internal/config"
	"github.com/matheus3301/fitmsg/internal/daemon"
	"github.com/matheus3301/fitmsg/internal/profile"
	"go.uber.org/fx"
)

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	quiet := flag.Bool("quiet", false, "log to the profile log file only")
	flag.Parse()

	paths := profile.DefaultPaths()
	cfg, err := config.LoadOrDefault(paths.ConfigPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	name := profile.Resolve(*profileFlag, cfg)
	if err := paths.Validate(name); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	app := fx.New(
		daemon.Module(daemon.Params{Profile: name, Paths: paths, Quiet: *quiet}),
	)

	app.Run()
}
