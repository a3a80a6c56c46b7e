package mem

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lunixbochs/fvbommel-util/sortorder"
	"github.com/pkg/errors"
)

// ProgramStore resolves an exec path to an executable image.
type ProgramStore interface {
	Lookup(path string) ([]byte, error)
	List() ([]string, error)
}

// DirStore resolves path to "<Dir>/<path>.elf".
type DirStore struct {
	Dir string
}

func (d *DirStore) Lookup(path string) ([]byte, error) {
	name := filepath.Join(d.Dir, filepath.Clean("/"+path)+".elf")
	data, err := ioutil.ReadFile(name)
	if err != nil {
		return nil, errors.Wrapf(err, "loading program %q", path)
	}
	return data, nil
}

func (d *DirStore) List() ([]string, error) {
	infos, err := ioutil.ReadDir(d.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "listing programs")
	}
	var names []string
	for _, fi := range infos {
		if !fi.IsDir() && strings.HasSuffix(fi.Name(), ".elf") {
			names = append(names, strings.TrimSuffix(fi.Name(), ".elf"))
		}
	}
	sort.Slice(names, func(i, j int) bool { return sortorder.NaturalLess(names[i], names[j]) })
	return names, nil
}

// MapStore serves images from memory.
type MapStore map[string][]byte

func (m MapStore) Lookup(path string) ([]byte, error) {
	if data, ok := m[path]; ok {
		return data, nil
	}
	return nil, errors.Errorf("program %q not found", path)
}

func (m MapStore) List() ([]string, error) {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return sortorder.NaturalLess(names[i], names[j]) })
	return names, nil
}
