package cmds

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/jdsd/practice-tool/pkg/config"
	"github.com/jdsd/practice-tool/pkg/logflags"
	"github.com/jdsd/practice-tool/pkg/overlay"
	"github.com/jdsd/practice-tool/pkg/pointers"
	"github.com/jdsd/practice-tool/pkg/proc"
	"github.com/jdsd/practice-tool/pkg/proc/native"
	"github.com/jdsd/practice-tool/pkg/terminal"
	"github.com/jdsd/practice-tool/pkg/version"
	"github.com/jdsd/practice-tool/service/session"
)

var (
	// log is whether to log debug statements.
	log bool
	// logOutput is a comma separated list of components that should produce debug output.
	logOutput string
	// logDest is the file path or file descriptor where logs should go.
	logDest string
	// configPath is the configuration file, the default one when empty.
	configPath string
	// gameVersion overrides the game version of the configuration.
	gameVersion string
	// moduleBase overrides the detected image base.
	moduleBase addrValue
	// initFile is the path to initialization file.
	initFile string
	// panelWidth is the width of the overlay panel in columns.
	panelWidth int

	conf *config.Config
)

const ptoolCommandLongDesc = `ptool is a practice tool for Sekiro.

It attaches to the running game, reads and writes the debug flags, the
player position and the in-game timer through pointer chains, and shows
a panel with the state of every feature. Each feature is toggled by a
hotkey, released on the frame after it was pressed.

Hotkeys and the game version are read from ~/.ptool/config.yml, which is
written with commented defaults on first run.`

// New returns an initialized command tree.
func New() *cobra.Command {
	rootCommand := &cobra.Command{
		Use:           "ptool",
		Short:         "ptool is a practice tool for Sekiro.",
		Long:          ptoolCommandLongDesc,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(); err != nil {
				return err
			}
			out := logOutput
			if out == "" && log {
				out = conf.LogLevel
			}
			return logflags.Setup(log, out, logDest)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logflags.Close()
		},
	}

	rootCommand.PersistentFlags().BoolVarP(&log, "log", "", false, "Enable logging.")
	rootCommand.PersistentFlags().StringVarP(&logOutput, "log-output", "", "", `Comma separated list of components that should produce debug output (see 'ptool help log')`)
	rootCommand.PersistentFlags().StringVarP(&logDest, "log-dest", "", "", "Writes logs to the specified file or file descriptor (see 'ptool help log').")
	rootCommand.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Configuration file, YAML or TOML. Defaults to ~/.ptool/config.yml.")
	rootCommand.PersistentFlags().StringVar(&gameVersion, "game-version", "", "Game version selecting the memory map, overrides the configuration.")
	rootCommand.PersistentFlags().Var(&moduleBase, "module-base", "Image base of the game, detected when omitted.")

	// 'attach' subcommand.
	attachCommand := &cobra.Command{
		Use:   "attach pid",
		Short: "Attach to the running game and show the overlay.",
		Long: `Attach to the running game and show the overlay in this terminal.

Frames are presented at the configured frame rate. Hotkeys typed in the
terminal are delivered to the practice commands. Press ctrl+c to quit.`,
		Args: pidArgs,
		RunE: attachCmd,
	}
	attachCommand.Flags().IntVar(&panelWidth, "width", 40, "Width of the overlay panel.")
	rootCommand.AddCommand(attachCommand)

	// 'console' subcommand.
	consoleCommand := &cobra.Command{
		Use:   "console pid",
		Short: "Attach to the running game and start a command console.",
		Long: `Attach to the running game and start a command console.

Every command presents the frames needed for it to take effect. Type
'help' in the console for the list of commands.`,
		Args: pidArgs,
		RunE: consoleCmd,
	}
	consoleCommand.Flags().StringVar(&initFile, "init", "", "Init file, executed by the console before the first prompt.")
	rootCommand.AddCommand(consoleCommand)

	// 'read' subcommand.
	readCommand := &cobra.Command{
		Use:   "read pid type base [offsets...]",
		Short: "Resolve a pointer chain once and print its value.",
		Long: `Resolve a pointer chain once and print its value.

The type is one of u8, i8, u16, i16, u32, i32, u64, i64, f32, f64, vec3
and vec4. Base and offsets are numbers in any Go notation, for example
0x143D7A1E0 0x88 -0x10.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) < 3 {
				return errors.New("you must provide a pid, a type and a base address")
			}
			return pidArgs(cmd, args[:1])
		},
		RunE: readCmd,
	}
	rootCommand.AddCommand(readCommand)

	// 'version' subcommand.
	var buildInfo bool
	versionCommand := &cobra.Command{
		Use:   "version",
		Short: "Prints version.",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("ptool\n%s\n", version.PtoolVersion)
			fmt.Printf("Game versions: %s\n", version.GameVersions())
			if buildInfo {
				fmt.Printf("%s\n", version.BuildInfo())
			}
		},
	}
	versionCommand.Flags().BoolVar(&buildInfo, "build-info", false, "Print build info")
	rootCommand.AddCommand(versionCommand)

	rootCommand.AddCommand(&cobra.Command{
		Use:   "log",
		Short: "Help about logging flags.",
		Long: `Logging can be enabled by specifying the --log flag and using the
--log-output flag to select which components should produce logs.

The argument of --log-output must be a comma separated list of component
names selected from this list:

	memory		Log pointer chains that fail to resolve and memory writes
	state		Log feature toggles and position changes
	command		Log command dispatch and rebinding
	gate		Log frame gate transitions and recovered panics (default)
	native		Log attaching to the game process
	terminal	Log console activity

When --log-output is omitted the log-level of the configuration is used.

Additionally --log-dest can be used to specify where the logs should be
written.
If the argument is a number it will be interpreted as a file descriptor,
otherwise as a file path.
`,
	})

	return rootCommand
}

func pidArgs(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return errors.New("you must provide a PID")
	}
	if _, err := strconv.Atoi(args[0]); err != nil {
		return fmt.Errorf("invalid pid: %s", args[0])
	}
	return nil
}

func loadConfig() error {
	if configPath == "" {
		conf = config.LoadConfig()
	} else {
		c, err := config.LoadFile(configPath)
		if err != nil {
			return err
		}
		conf = c
	}
	if gameVersion != "" {
		conf.GameVersion = gameVersion
	}
	return nil
}

// attachProcess opens the game process and resolves the image base.
func attachProcess(pidstr string) (*native.Process, uintptr, error) {
	pid, _ := strconv.Atoi(pidstr)
	p, err := native.Attach(pid)
	if err != nil {
		return nil, 0, err
	}
	return p, imageBase(p.ModuleBase), nil
}

// imageBase picks the image base: --module-base, then the configuration,
// then the mapped executable, then the preferred base of the game.
func imageBase(find func(name string) (uintptr, error)) uintptr {
	if base := uintptr(moduleBase); base != 0 {
		return base
	}
	if base := uintptr(conf.ModuleBase); base != 0 {
		return base
	}
	base, err := find("")
	if err != nil {
		logflags.NativeLogger().Warnf("using the preferred image base %#x: %v", pointers.DefaultImageBase, err)
		return pointers.DefaultImageBase
	}
	return base
}

func newSession(p *native.Process, base uintptr, host *overlay.Host, surface overlay.Surface) (*session.Session, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	v, err := conf.Version()
	if err != nil {
		return nil, err
	}
	return session.New(&session.Config{
		Memory:     p,
		Version:    v,
		ModuleBase: base,
		Overrides:  conf.Addresses.Bases(),
		Features:   conf.Flags,
		Nudge:      conf.Nudge,
		Bindings:   conf,
		Surface:    surface,
		Input:      host,
		Indicators: conf.Indicators,
	})
}

func attachCmd(cmd *cobra.Command, args []string) error {
	p, base, err := attachProcess(args[0])
	if err != nil {
		return err
	}
	defer p.Detach()

	surface := overlay.NewTextSurface(panelWidth)
	host := overlay.NewHost(surface, time.Second/time.Duration(conf.FrameRate))
	s, err := newSession(p, base, host, surface)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		select {
		case err := <-s.Install(host):
			return err
		case <-ctx.Done():
			return nil
		}
	})
	g.Go(func() error {
		return host.Run(ctx)
	})
	return g.Wait()
}

func consoleCmd(cmd *cobra.Command, args []string) error {
	p, base, err := attachProcess(args[0])
	if err != nil {
		return err
	}
	defer p.Detach()

	surface := overlay.NewTextSurface(40)
	host := overlay.NewHost(surface, 0)
	s, err := newSession(p, base, host, surface)
	if err != nil {
		return err
	}
	if err := <-s.Install(host); err != nil {
		return err
	}

	term := terminal.New(s, host, conf)
	term.InitFile = initFile
	term.ConfigPath = configPath
	status, err := term.Run()
	if err != nil {
		return err
	}
	if status != 0 {
		os.Exit(status)
	}
	return nil
}

func readCmd(cmd *cobra.Command, args []string) error {
	p, _, err := attachProcess(args[0])
	if err != nil {
		return err
	}
	defer p.Detach()
	return readChain(cmd, p, args[1:])
}

// readChain prints the value at the chain described by args: a type, a
// base address and offsets.
func readChain(cmd *cobra.Command, mem proc.MemoryReader, args []string) error {
	k, err := proc.ParseKind(args[0])
	if err != nil {
		return err
	}
	base, err := proc.ParseAddress(args[1])
	if err != nil {
		return err
	}
	offsets, err := proc.ParseOffsets(args[2:])
	if err != nil {
		return err
	}
	v, loc, ok := proc.ReadValue(mem, k, base, offsets...)
	if !ok {
		return fmt.Errorf("[%s] %s does not resolve", strings.Join(args[1:], ", "), k)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s = %v\n", loc, v)
	return nil
}

// addrValue is a pflag.Value for addresses written in any Go notation.
type addrValue uintptr

var _ pflag.Value = (*addrValue)(nil)

func (a *addrValue) String() string {
	if *a == 0 {
		return ""
	}
	return fmt.Sprintf("%#x", uintptr(*a))
}

func (a *addrValue) Set(s string) error {
	v, err := proc.ParseAddress(s)
	if err != nil {
		return err
	}
	*a = addrValue(v)
	return nil
}

func (a *addrValue) Type() string {
	return "address"
}
