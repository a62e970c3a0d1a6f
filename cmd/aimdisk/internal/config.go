package internal

import (
	"fmt"
	"strings"

	"github.com/aimdisk/aimdisk/internal/config"
	"github.com/aimdisk/aimdisk/store"
)

// LoadConfig reads the YAML config from configPath, or from the default
// location when configPath is empty.
func LoadConfig(configPath string) (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromFile(configPath)
	}
	return config.Load()
}

// ParseFormat maps a format name to a store layout. Both the layout names
// and the file extensions are accepted.
func ParseFormat(name string) (store.Format, error) {
	switch strings.ToLower(name) {
	case "sqlite", "aim":
		return store.FormatSQLite, nil
	case "bolt", "idz":
		return store.FormatBolt, nil
	default:
		return 0, fmt.Errorf("unknown disk format %q (want sqlite/aim or bolt/idz)", name)
	}
}
