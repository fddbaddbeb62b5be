// Package main provides the entry point for the studynotes CLI application.
package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/dgnsrekt/studynotes/internal/note"
	"github.com/dgnsrekt/studynotes/internal/voice"
	"github.com/dgnsrekt/studynotes/ui"
	"github.com/dgnsrekt/studynotes/utils"
)

const appName = "studynotes"

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile string
	style      string
	width      uint
	mouse      bool
	debug      bool

	rootCmd = &cobra.Command{
		Use:   "studynotes [FILE|-]",
		Short: "Practice Spanish study notes in the terminal",
		Long: paragraph(
			fmt.Sprintf("\nPractice bilingual study notes in the terminal and %s.", keyword("hear the Spanish aloud")),
		),
		Example:          paragraph("studynotes leccion-3.md\ncat leccion-3.md | studynotes"),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.MaximumNArgs(1),
		ValidArgsFunction: func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
			return nil, cobra.ShellCompDirectiveDefault
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateOptions(cmd)
		},
		RunE: execute,
	}
)

// validateStyle checks if the style is a default style, if not, checks that
// the custom style exists.
func validateStyle(style string) error {
	if style != styles.AutoStyle && styles.DefaultStyles[style] == nil {
		style = utils.ExpandPath(style)
		if _, err := os.Stat(style); errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("specified style does not exist: %s", style)
		} else if err != nil {
			return fmt.Errorf("unable to stat file: %w", err)
		}
	}
	return nil
}

func validateOptions(cmd *cobra.Command) error {
	// grab config values from Viper
	width = viper.GetUint("width")
	mouse = viper.GetBool("mouse")
	debug = viper.GetBool("debug")
	if debug {
		log.SetLevel(log.DebugLevel)
	}

	if err := validateTTSConfig(); err != nil {
		return fmt.Errorf("TTS config validation failed: %w", err)
	}

	// validate the glamour style
	style = viper.GetString("style")
	if err := validateStyle(style); err != nil {
		return err
	}

	isTerminal := term.IsTerminal(int(os.Stdout.Fd()))
	// We want to use a special no-TTY style, when stdout is not a terminal
	// and there was no specific style passed by arg
	if !isTerminal && !cmd.Flags().Changed("style") {
		style = styles.NoTTYStyle
	}

	// Detect terminal width
	if !cmd.Flags().Changed("width") { //nolint:nestif
		if isTerminal && width == 0 {
			w, _, err := term.GetSize(int(os.Stdout.Fd()))
			if err == nil {
				width = uint(w) //nolint:gosec
			}

			if width > 120 {
				width = 120
			}
		}
		if width == 0 {
			width = 80
		}
	}
	return nil
}

// validateTTSConfig validates TTS configuration values.
func validateTTSConfig() error {
	switch engine := viper.GetString("tts.engine"); engine {
	case "", "piper", "gtts":
	default:
		return fmt.Errorf("TTS engine must be piper, gtts or empty, got %q", engine)
	}

	maxCacheSize := viper.GetInt("tts.cache.max_size")
	if maxCacheSize < 0 || maxCacheSize > 10000 {
		return fmt.Errorf("TTS cache max_size must be between 0 and 10000 MB, got %d", maxCacheSize)
	}

	rate := viper.GetFloat64("tts.rate")
	if rate < 0.5 || rate > 2.0 {
		return fmt.Errorf("TTS rate must be between 0.5 and 2.0, got %.2f", rate)
	}

	rpm := viper.GetInt("tts.gtts.requests_per_minute")
	if rpm < 0 {
		return fmt.Errorf("TTS gtts requests_per_minute must not be negative, got %d", rpm)
	}

	if models := viper.GetString("tts.piper.models"); models != "" {
		models = utils.ExpandPath(models)
		if st, err := os.Stat(models); err != nil || !st.IsDir() {
			return fmt.Errorf("TTS piper models directory does not exist: %s", models)
		}
	}
	return nil
}

func stdinIsPipe() (bool, error) {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false, fmt.Errorf("unable to open file: %w", err)
	}
	if stat.Mode()&os.ModeCharDevice == 0 || stat.Size() > 0 {
		return true, nil
	}
	return false, nil
}

// readNote reads and parses the note named by args. "-" or a piped stdin
// reads standard input. It returns the path shown to the user, empty for
// stdin.
func readNote(args []string) ([]note.Block, string, error) {
	arg := ""
	if len(args) > 0 {
		arg = args[0]
	}

	if arg == "" {
		piped, err := stdinIsPipe()
		if err != nil {
			return nil, "", err
		}
		if !piped {
			return nil, "", errors.New("missing note: pass a file or pipe one on stdin")
		}
		arg = "-"
	}

	var (
		r    io.Reader
		path string
	)
	if arg == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(utils.ExpandPath(arg))
		if err != nil {
			return nil, "", fmt.Errorf("unable to open file: %w", err)
		}
		defer f.Close() //nolint:errcheck
		r = f
		if path, err = filepath.Abs(f.Name()); err != nil {
			return nil, "", fmt.Errorf("unable to get absolute path: %w", err)
		}
		if !utils.IsNoteFile(path) {
			log.Warn("File does not look like a note", "path", path)
		}
	}

	b, err := io.ReadAll(r)
	if err != nil {
		return nil, "", fmt.Errorf("unable to read from reader: %w", err)
	}
	blocks := note.Parse(string(utils.RemoveFrontmatter(b)))
	log.Debug("Parsed note", "path", path, "blocks", len(blocks))
	return blocks, path, nil
}

func execute(_ *cobra.Command, args []string) error {
	blocks, path, err := readNote(args)
	if err != nil {
		return err
	}
	fromStdin := path == ""
	return runPractice(blocks, path, fromStdin)
}

func runPractice(blocks []note.Block, path string, fromStdin bool) error {
	// Read environment to get debugging stuff
	cfg, err := env.ParseAs[ui.Config]()
	if err != nil {
		return fmt.Errorf("error parsing config: %v", err)
	}
	cfg.Path = path
	cfg.MaxWidth = width
	cfg.EnableMouse = mouse
	// stdin carried the note, so keys have to come from the terminal.
	cfg.InputTTY = fromStdin

	closeLog, err := logToFile()
	if err != nil {
		return err
	}
	defer closeLog() //nolint:errcheck

	states := make(chan voice.State, 1)
	sp, err := newSpeech(nil, voice.WithStateListener(ui.StateListener(states)))
	if err != nil {
		return err
	}
	defer sp.Close() //nolint:errcheck

	if _, err := ui.NewProgram(cfg, blocks, sp.selector, states).Run(); err != nil {
		return fmt.Errorf("unable to run tui program: %w", err)
	}
	return nil
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.PersistentFlags().StringVarP(&style, "style", "s", styles.AutoStyle, "style name or JSON path")
	rootCmd.PersistentFlags().UintVarP(&width, "width", "w", 0, "word-wrap at width (set to 0 to detect)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "write debug logs")
	rootCmd.PersistentFlags().String("engine", "", "speech engine: piper, gtts or empty to detect")
	rootCmd.PersistentFlags().Float64("rate", voice.DefaultRate, "speaking rate")
	rootCmd.PersistentFlags().Bool("no-persist", false, "don't save the chosen voice")
	rootCmd.Flags().BoolVarP(&mouse, "mouse", "m", false, "enable mouse wheel")
	_ = rootCmd.Flags().MarkHidden("mouse")

	// Config bindings
	_ = viper.BindPFlag("style", rootCmd.PersistentFlags().Lookup("style"))
	_ = viper.BindPFlag("width", rootCmd.PersistentFlags().Lookup("width"))
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("tts.engine", rootCmd.PersistentFlags().Lookup("engine"))
	_ = viper.BindPFlag("tts.rate", rootCmd.PersistentFlags().Lookup("rate"))
	_ = viper.BindPFlag("prefs.no_persist", rootCmd.PersistentFlags().Lookup("no-persist"))
	_ = viper.BindPFlag("mouse", rootCmd.Flags().Lookup("mouse"))

	viper.SetDefault("style", styles.AutoStyle)
	viper.SetDefault("width", 0)
	viper.SetDefault("debug", false)

	// TTS defaults
	viper.SetDefault("tts.engine", "")
	viper.SetDefault("tts.rate", voice.DefaultRate)
	viper.SetDefault("tts.piper.binary", "piper")
	viper.SetDefault("tts.piper.models", "")
	viper.SetDefault("tts.gtts.requests_per_minute", 50)
	viper.SetDefault("tts.cache.dir", "")
	viper.SetDefault("tts.cache.max_size", 100)
	viper.SetDefault("prefs.file", "")
	viper.SetDefault("prefs.no_persist", false)

	rootCmd.AddCommand(parseCmd, renderCmd, voicesCmd, sayCmd, configCmd, manCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, appName)
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, appName)}, dirs...)
	}

	if c := os.Getenv("STUDYNOTES_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName(appName)
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix(appName)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		return
	}

	if viper.ConfigFileUsed() == "" {
		configFile = filepath.Join(dirs[0], appName+".yml")
	}
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}
