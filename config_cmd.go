package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// PIPERVOICE_PIPER_VOICE sets piper.voice.
var envKeyReplacer = strings.NewReplacer(".", "_")

// defaultConfigFile is where the config command creates a file when none
// was found.
var defaultConfigFile string

const defaultConfig = `# voice locale, e.g. en-US or de-DE
language: "en-US"
# synthesis engine: piper or mock
engine: "piper"
# write debug logs
debug: false

piper:
  # default voice and speaker
  voice: "arctic"
  speaker: ""
  # where voices are downloaded (default: user data dir)
  # models_dir: "~/.local/share/pipervoice/piper"
  binary: "piper"
  length_scale: 1.0
  noise_scale: 0.667
  noise_w: 0.8
  # seconds of silence after each sentence
  sentence_silence: 0.2

# synthesized phrases are kept to avoid running piper again
cache:
  enabled: true
  # dir: "~/.cache/pipervoice/audio"
  memory_mb: 32
  disk_mb: 256
  ttl_days: 7
`

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the pipervoice config file",
	Long:    paragraph(fmt.Sprintf("\n%s the pipervoice config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example: paragraph("pipervoice config\npipervoice config --config path/to/config.yml"),
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		file, err := ensureConfigFile(configFile)
		if err != nil {
			return err
		}

		c, err := editor.Cmd("pipervoice", file)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Println("Wrote config file to:", file)
		return nil
	},
}

// ensureConfigFile returns the config file to edit, writing the default
// config there first if it doesn't exist.
func ensureConfigFile(file string) (string, error) {
	if file == "" {
		file = viper.GetViper().ConfigFileUsed()
	}
	if file == "" {
		file = defaultConfigFile
	}
	if file == "" {
		return "", errors.New("no config file location")
	}

	if ext := path.Ext(file); ext != ".yaml" && ext != ".yml" {
		return "", fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(file); errors.Is(err, fs.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(file), 0o700); err != nil {
			return "", fmt.Errorf("unable create directory: %w", err)
		}

		f, err := os.Create(file)
		if err != nil {
			return "", fmt.Errorf("unable to create config file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := f.WriteString(defaultConfig); err != nil {
			return "", fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil {
		return "", fmt.Errorf("unable to stat config file: %w", err)
	}
	return file, nil
}
