package engine

type ApplicationConfig struct {
	// The application name, used as the log prefix.
	Name string
	// ConfigPath is the TOML file of the renderer settings. Empty uses the
	// defaults and disables hot reload.
	ConfigPath string
	// AssetsPath is the directory of model manifests, if any.
	AssetsPath string
}
