package game

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Catalog is the set of draws loaded from YAML, used to seed the ticket store
type Catalog struct {
	Draws []Draw `mapstructure:"draws"`
}

// Draw returns the catalog entry with the given id
func (c *Catalog) Draw(id string) (*Draw, bool) {
	for i := range c.Draws {
		if c.Draws[i].ID == id {
			return &c.Draws[i], true
		}
	}
	return nil, false
}

// LoadCatalog loads draws from a YAML file or from every YAML file of a
// directory. Directory files are merged in alphabetical order, later files
// overriding earlier ones.
func LoadCatalog(path string) (*Catalog, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat catalog path: %w", err)
	}

	var catalog Catalog
	if info.IsDir() {
		err = LoadConfigFromDirInto(path, &catalog)
	} else {
		err = LoadConfigInto(path, &catalog)
	}
	if err != nil {
		return nil, err
	}

	for i := range catalog.Draws {
		d := &catalog.Draws[i]
		for j := range d.Tiers {
			d.Tiers[j].DrawID = d.ID
		}
		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("invalid catalog: %w", err)
		}
	}

	return &catalog, nil
}

// LoadConfigInto loads a YAML file into out (out must be a pointer)
func LoadConfigInto(configPath string, out interface{}) error {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	return decodeInto(v, out)
}

// LoadConfigFromDirInto merges every YAML file of configDir into out
func LoadConfigFromDirInto(configDir string, out interface{}) error {
	v := newViper()

	entries, err := os.ReadDir(configDir)
	if err != nil {
		return fmt.Errorf("failed to read config directory: %w", err)
	}

	var yamlFiles []string
	for _, entry := range entries {
		name := strings.ToLower(entry.Name())
		if !entry.IsDir() && (strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")) {
			yamlFiles = append(yamlFiles, entry.Name())
		}
	}
	if len(yamlFiles) == 0 {
		return fmt.Errorf("no YAML files found in config directory: %s", configDir)
	}
	sort.Strings(yamlFiles)

	for _, filename := range yamlFiles {
		v.SetConfigFile(filepath.Join(configDir, filename))
		if err := v.MergeInConfig(); err != nil {
			return fmt.Errorf("failed to merge config from %s: %w", filename, err)
		}
	}

	return decodeInto(v, out)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return v
}

func decodeInto(v *viper.Viper, out interface{}) error {
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		decimalDecodeHook,
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(out, hook); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return nil
}

var decimalType = reflect.TypeOf(decimal.Decimal{})

// decimalDecodeHook lets prize amounts be written as YAML numbers or strings
func decimalDecodeHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if to != decimalType {
		return data, nil
	}
	switch v := data.(type) {
	case string:
		return decimal.NewFromString(v)
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case float64:
		return decimal.NewFromFloat(v), nil
	case float32:
		return decimal.NewFromFloat32(v), nil
	case decimal.Decimal:
		return v, nil
	default:
		return nil, fmt.Errorf("cannot decode %T into decimal", data)
	}
}
