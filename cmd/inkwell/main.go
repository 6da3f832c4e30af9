package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/mkarlsen/inkwell/internal/server"
	"github.com/mkarlsen/inkwell/internal/site"
)

var CLI struct {
	Root    string `short:"r" help:"Site root directory" default:"." type:"path"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Build struct {
		Output  string `short:"o" help:"Output directory" default:"public"`
		Drafts  bool   `help:"Include draft pages"`
		NoExec  bool   `help:"Render executable code blocks without running them"`
		Sandbox string `help:"Directory bounding shortcode file access" type:"path"`
		BaseURL string `name:"base-url" help:"Base URL override"`
	} `cmd:"" help:"Build the site"`

	Preview struct {
		Port      int    `short:"p" help:"Port number" default:"1111"`
		Interface string `help:"Bind address" default:"127.0.0.1"`
		Drafts    bool   `help:"Include draft pages"`
		NoExec    bool   `help:"Render executable code blocks without running them"`
		Sandbox   string `help:"Directory bounding shortcode file access" type:"path"`
		Open      bool   `short:"O" help:"Open browser"`
	} `cmd:"" help:"Start the preview server with live reload"`

	Clean struct {
		Output string `short:"o" help:"Output directory to remove" default:"public"`
	} `cmd:"" help:"Remove the output directory"`

	Init struct {
		Name string `arg:"" optional:"" help:"Site directory name (defaults to the root)"`
	} `cmd:"" help:"Initialize a new site"`

	Check struct {
		Drafts bool `help:"Include draft pages"`
	} `cmd:"" help:"Check the site for errors without writing output"`
}

func main() {
	kctx := kong.Parse(&CLI,
		kong.Name("inkwell"),
		kong.Description("A static site generator with executable code blocks"))

	logLevel := slog.LevelInfo
	if CLI.Verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})))

	if err := run(kctx.Command()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(command string) error {
	root, err := filepath.Abs(CLI.Root)
	if err != nil {
		return err
	}

	switch command {
	case "build":
		output := resolveOutput(root, CLI.Build.Output)
		s, err := site.Load(root, output, CLI.Build.Drafts)
		if err != nil {
			return err
		}
		s.NoExec = CLI.Build.NoExec
		s.Sandbox = CLI.Build.Sandbox
		if CLI.Build.BaseURL != "" {
			s.SetBaseURL(CLI.Build.BaseURL)
		}
		if err := s.Build(context.Background()); err != nil {
			return err
		}
		fmt.Printf("Site built to %s\n", output)
		return nil

	case "preview":
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()
		return server.Run(ctx, server.Options{
			Root:      root,
			OutputDir: filepath.Join(root, "public"),
			Drafts:    CLI.Preview.Drafts,
			NoExec:    CLI.Preview.NoExec,
			Sandbox:   CLI.Preview.Sandbox,
			Interface: CLI.Preview.Interface,
			Port:      CLI.Preview.Port,
			Open:      CLI.Preview.Open,
		})

	case "clean":
		output := resolveOutput(root, CLI.Clean.Output)
		if _, err := os.Stat(output); err == nil {
			if err := os.RemoveAll(output); err != nil {
				return err
			}
			fmt.Printf("Removed %s\n", output)
		}
		return nil

	case "init", "init <name>":
		target := root
		if CLI.Init.Name != "" {
			target = filepath.Join(root, CLI.Init.Name)
		}
		if err := initSite(target); err != nil {
			return err
		}
		fmt.Printf("Initialized new site at %s\n", target)
		return nil

	case "check":
		s, err := site.Load(root, filepath.Join(root, "public"), CLI.Check.Drafts)
		if err != nil {
			return err
		}
		if err := s.Check(context.Background()); err != nil {
			return err
		}
		fmt.Println("Site check passed.")
		return nil

	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

func resolveOutput(root, output string) string {
	if filepath.IsAbs(output) {
		return output
	}
	return filepath.Join(root, output)
}
