package catalog

import (
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/okian/oralscan/internal/domain/model"
)

type fileEntry struct {
	Name        string `koanf:"name"`
	Description string `koanf:"description"`
	Treatment   string `koanf:"treatment"`
}

// LoadFile reads a YAML catalog keyed by label:
//
//	diseases:
//	  caries:
//	    description: ...
//	    treatment: ...
func LoadFile(path string) (*Memory, error) {
	// Labels such as tooth_discoloration never contain "/", so it is a safe key delimiter.
	k := koanf.New("/")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load catalog %s: %w", path, err)
	}

	var raw map[string]fileEntry
	if err := k.Unmarshal("diseases", &raw); err != nil {
		return nil, fmt.Errorf("decode catalog %s: %w", path, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("catalog %s: no diseases defined", path)
	}

	entries := make(map[model.ClassLabel]model.DiseaseInfo, len(raw))
	for label, e := range raw {
		entries[model.ClassLabel(label)] = model.DiseaseInfo{
			Name:        e.Name,
			Description: e.Description,
			Treatment:   e.Treatment,
		}
	}
	return NewMemory(entries), nil
}
