package commands

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dotcommander/keyward/internal/app"
	"github.com/dotcommander/keyward/internal/crash"
	"github.com/dotcommander/keyward/internal/output"
	"github.com/dotcommander/keyward/internal/store"
)

func NewDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check crash report locations and registry connectivity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := app.LoadSettings()
			if err != nil {
				return cmdErr(err)
			}

			dataDir, err := app.DataDir()
			if err != nil {
				return cmdErr(err)
			}
			_, statErr := os.Stat(dataDir)

			var logPath, crashPath, logErr string
			if dir, err := crash.NewFileSink().Dir(); err != nil {
				logErr = err.Error()
			} else {
				logPath = filepath.Join(dir, app.LogFileName)
				crashPath = filepath.Join(dir, app.CrashOutputFileName)
			}

			regPath, regSource, err := app.ResolveRegistryPathDetailed()
			if err != nil {
				return cmdErr(err)
			}

			var (
				regOK         bool
				regErr        string
				schemaCurrent int64
				schemaLatest  int64
				keys          []string
			)
			reg, err := store.OpenRegistry(regPath)
			if err != nil {
				regErr = err.Error()
			} else {
				defer reg.Close()
				if err := reg.Ping(cmd.Context()); err != nil {
					regErr = err.Error()
				} else {
					regOK = true
					schemaCurrent, schemaLatest, _ = reg.SchemaVersion()
					keys, _ = reg.Keys(cmd.Context(), crash.RegistryNamespace)
				}
			}

			type resp struct {
				DataDir          string   `json:"data_dir"`
				DataDirExists    bool     `json:"data_dir_exists"`
				LogPath          string   `json:"log_path,omitempty"`
				CrashOutputPath  string   `json:"crash_output_path,omitempty"`
				LogError         string   `json:"log_error,omitempty"`
				RegistryPath     string   `json:"registry_path"`
				RegistrySource   string   `json:"registry_source"`
				RegistryOK       bool     `json:"registry_ok"`
				RegistryErr      string   `json:"registry_error,omitempty"`
				SchemaVersion    int64    `json:"schema_version"`
				SchemaLatest     int64    `json:"schema_latest"`
				RegistryKeys     []string `json:"registry_keys"`
				Locale           string   `json:"locale"`
				CrashHandler     bool     `json:"crash_handler"`
				DebuggerAttached bool     `json:"debugger_attached"`
				Terminal         bool     `json:"terminal"`
				Hint             string   `json:"hint,omitempty"`
			}
			hint := ""
			if !regOK {
				hint = "If this is running in a sandboxed environment, set registry_path to a writable location."
			}
			return output.PrintSuccess(resp{
				DataDir:          dataDir,
				DataDirExists:    statErr == nil,
				LogPath:          logPath,
				CrashOutputPath:  crashPath,
				LogError:         logErr,
				RegistryPath:     regPath,
				RegistrySource:   regSource,
				RegistryOK:       regOK,
				RegistryErr:      regErr,
				SchemaVersion:    schemaCurrent,
				SchemaLatest:     schemaLatest,
				RegistryKeys:     keys,
				Locale:           settings.EffectiveLocale(),
				CrashHandler:     !settings.DisableCrashHandler,
				DebuggerAttached: app.DebuggerAttached(),
				Terminal:         term.IsTerminal(int(os.Stdout.Fd())),
				Hint:             hint,
			})
		},
	}

	return cmd
}
