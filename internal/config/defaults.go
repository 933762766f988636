package config

const (
	defaultDataDir            = "~/.local/share/lwectl"
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultLogRetentionDays   = 30
	defaultLogFileMaxKiB      = 1024
	defaultStopTimeoutSeconds = 5
	defaultServiceName        = "linux-wallpaperengine.service"
	defaultUnitDir            = "~/.config/systemd/user"
	defaultWatchDebounceMS    = 1500
	defaultWatchSubsystem     = "drm"
	defaultEngineScript       = "main.sh"
	flatpakEngineDir          = "/app/share/lwe-gui/source/core"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateFile: defaultStateFile(),
			DataDir:   defaultDataDir,
		},
		Engine: Engine{
			StopTimeoutSeconds: defaultStopTimeoutSeconds,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
			FileMaxKiB:    defaultLogFileMaxKiB,
			MirrorFile:    true,
		},
		Startup: Startup{
			ServiceName: defaultServiceName,
			UnitDir:     defaultUnitDir,
		},
		Watch: Watch{
			DebounceMS: defaultWatchDebounceMS,
			Subsystem:  defaultWatchSubsystem,
		},
	}
}
