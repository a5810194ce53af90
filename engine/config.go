package engine

import "gopkg.in/yaml.v3"

// Config is the Engine's configuration record. An embedding host may
// decode one from YAML via ParseConfig without the engine itself taking
// on any file or CLI dependency.
type Config struct {
	MatrixDetection          bool   `yaml:"matrixDetection"`
	MatrixDetectionThreshold int    `yaml:"matrixDetectionThreshold"`
	CaseSensitive            bool   `yaml:"caseSensitive"`
	FunctionArgSeparator     string `yaml:"functionArgSeparator"`
	Language                 string `yaml:"language"`
	PrecisionRounding        int    `yaml:"precisionRounding"`
	SmartRounding            bool   `yaml:"smartRounding"`
}

func DefaultConfig() Config {
	return Config{
		MatrixDetection:          true,
		MatrixDetectionThreshold: 2,
		CaseSensitive:            false,
		FunctionArgSeparator:     ",",
		Language:                 "en",
		PrecisionRounding:        10,
		SmartRounding:            true,
	}
}

// ParseConfig decodes a YAML document over the defaults, so a host file
// only needs to name the options it changes.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, NewAppError(InvalidArgument, "invalid engine configuration: %v", err)
	}
	return cfg, nil
}
