package origin

import (
	"fmt"
	"os"

	"github.com/go-viper/mapstructure/v2"
	"github.com/goccy/go-yaml"
)

// LoadFile reads host configurations from a YAML file. The document is either
// a mapping of origin to redirect URI:
//
//	http://example.com: http://example.com/callback
//
// or a list of host configurations:
//
//	- origin: http://example.com
//	  redirectURI: http://example.com/callback
func LoadFile(path string) ([]HostConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading hosts file: %w", err)
	}

	return Parse(data)
}

// Parse decodes host configurations from YAML. See LoadFile for the accepted shapes.
func Parse(data []byte) ([]HostConfig, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshaling yaml: %w", err)
	}

	switch v := doc.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		var hosts map[string]string
		if err := mapstructure.Decode(v, &hosts); err != nil {
			return nil, fmt.Errorf("decoding host map: %w", err)
		}

		configs := make([]HostConfig, 0, len(hosts))
		for o, uri := range hosts {
			configs = append(configs, HostConfig{Origin: o, RedirectURI: uri})
		}

		return configs, nil
	case []any:
		var configs []HostConfig
		if err := mapstructure.Decode(v, &configs); err != nil {
			return nil, fmt.Errorf("decoding host list: %w", err)
		}

		return configs, nil
	default:
		return nil, fmt.Errorf("unsupported hosts document of type %T", doc)
	}
}
