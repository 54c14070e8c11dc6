// Package file is a config.Source that reads a single TOML file from disk.
package file

import (
	"os"

	"github.com/nodewire/originserver/contrib/config"
)

var _ config.Source = (*fileSource)(nil)

type fileSource struct {
	path string
}

// NewSource builds a config.Source reading path.
func NewSource(path string) config.Source {
	return &fileSource{path: path}
}

func (f *fileSource) Load() ([]*config.KeyValue, error) {
	buf, err := os.ReadFile(f.path)
	if err != nil {
		return nil, err
	}
	return []*config.KeyValue{
		{Key: f.path, Value: buf, Format: "toml"},
	}, nil
}

func (f *fileSource) Watch() (config.Watcher, error) {
	panic("unimplemented: reload is driven by SIGHUP, see contrib/config.config.tick")
}
