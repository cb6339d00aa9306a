package sinks

const (
	TypeMap  = "map"
	TypeFile = "file"
)

type SinkConfig struct {
	// Name of the sink map, or of the stage for a file sink.
	Name string `koanf:"name" json:"name"`
	// ConnectionType is "map" or "file".
	ConnectionType string `koanf:"type" json:"type"`
	// FilePath is only used by the file sink.
	FilePath string `koanf:"file_path" json:"file_path"`
}
