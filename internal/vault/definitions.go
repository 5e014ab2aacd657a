package vault

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Definitions models the structure of configs/assets.yaml.
type Definitions struct {
	Ledgers    map[string]LedgerDefinition   `yaml:"ledgers"`
	Registries map[string]RegistryDefinition `yaml:"registries"`
}

// LedgerDefinition describes a single capped fungible supply ledger.
type LedgerDefinition struct {
	Cap           uint64 `yaml:"cap"`
	InitialSupply uint64 `yaml:"initial_supply"`
	InitialHolder string `yaml:"initial_holder"`
	Description   string `yaml:"description"`
}

// RegistryDefinition describes a single pausable asset registry.
type RegistryDefinition struct {
	DisplayName string `yaml:"display_name"`
	URIPrefix   string `yaml:"uri_prefix"`
	URISuffix   string `yaml:"uri_suffix"`
	BaseID      uint64 `yaml:"base_id"`
	Description string `yaml:"description"`
}

// LoadDefinitions parses the YAML file containing asset definitions.
func LoadDefinitions(path string) (Definitions, error) {
	if strings.TrimSpace(path) == "" {
		return Definitions{Ledgers: map[string]LedgerDefinition{}, Registries: map[string]RegistryDefinition{}}, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return Definitions{}, fmt.Errorf("读取资产定义失败: %w", err)
	}

	var defs Definitions
	if err := yaml.Unmarshal(content, &defs); err != nil {
		return Definitions{}, fmt.Errorf("解析资产定义失败: %w", err)
	}
	if defs.Ledgers == nil {
		defs.Ledgers = map[string]LedgerDefinition{}
	}
	if defs.Registries == nil {
		defs.Registries = map[string]RegistryDefinition{}
	}
	return defs, nil
}
