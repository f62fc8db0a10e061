package directory

import (
	"context"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/keeper/internal/errors"
)

// Entry is one name and phone pair in a seed file.
type Entry struct {
	Name  string `yaml:"name"`
	Phone string `yaml:"phone"`
}

// seedFile is the on-disk seed format:
//
//	entries:
//	  - name: Smith
//	    phone: 555-1111
type seedFile struct {
	Entries []Entry `yaml:"entries"`
}

// LoadSeedFile reads entries from a YAML seed file.
func LoadSeedFile(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read seed file")
	}

	var sf seedFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, errors.Wrapf(err, "parse seed file %s", path)
	}
	return sf.Entries, nil
}

// Seed upserts entries in order. It stops at the first failure.
func (d *Directory) Seed(ctx context.Context, entries []Entry) error {
	for _, e := range entries {
		if err := d.Upsert(ctx, e.Name, e.Phone); err != nil {
			return errors.Wrapf(err, "seed %q", e.Name)
		}
	}
	return nil
}

// DefaultSeed is the directory a fresh scenario starts from.
func DefaultSeed() []Entry {
	return []Entry{
		{Name: "Smith", Phone: "555-1111"},
		{Name: "Johnson", Phone: "555-2222"},
	}
}
