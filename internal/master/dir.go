package master

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueyaml "cuelang.org/go/encoding/yaml"
)

//go:embed schema.cue
var schemaCUE string

// Extensions recognised by DirSource, in lookup order.
var masterExtensions = []string{".cue", ".yaml", ".yml"}

// DirSource loads masters from a directory of files named {year}.cue,
// {year}.yaml or {year}.yml. Every file is unified with the embedded CUE
// schema before decoding, so a malformed master is rejected at load time
// instead of producing half-named change logs.
type DirSource struct {
	dir string
}

// NewDirSource creates a DirSource rooted at dir.
func NewDirSource(dir string) *DirSource {
	return &DirSource{dir: filepath.Clean(dir)}
}

// Load implements Source.
func (d *DirSource) Load(ctx context.Context, year int) (Master, error) {
	if err := ctx.Err(); err != nil {
		return Master{}, err
	}
	for _, ext := range masterExtensions {
		path := filepath.Join(d.dir, strconv.Itoa(year)+ext)
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return Master{}, fmt.Errorf("read master %s: %w", path, err)
		}
		m, err := DecodeFile(path, data)
		if err != nil {
			return Master{}, err
		}
		if m.Year != year {
			return Master{}, fmt.Errorf("master %s declares year %d, want %d", path, m.Year, year)
		}
		return m, nil
	}
	return Master{}, fmt.Errorf("%s in %s: %w", Partition(year), d.dir, ErrNotFound)
}

// Years lists the years that have a master file in the directory, ascending.
func (d *DirSource) Years() ([]int, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, fmt.Errorf("read master dir: %w", err)
	}
	seen := make(map[int]bool)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if !isMasterExtension(ext) {
			continue
		}
		y, err := strconv.Atoi(strings.TrimSuffix(e.Name(), ext))
		if err != nil {
			continue
		}
		seen[y] = true
	}
	years := make([]int, 0, len(seen))
	for y := range seen {
		years = append(years, y)
	}
	sort.Ints(years)
	return years, nil
}

func isMasterExtension(ext string) bool {
	for _, e := range masterExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

// DecodeFile validates a CUE or YAML master document against the schema and
// decodes it. The file name selects the format and is used in error positions.
func DecodeFile(filename string, data []byte) (Master, error) {
	cctx := cuecontext.New()

	schema := cctx.CompileString(schemaCUE, cue.Filename("master_schema.cue"))
	if err := schema.Err(); err != nil {
		return Master{}, fmt.Errorf("compile master schema: %w", err)
	}

	var doc cue.Value
	switch filepath.Ext(filename) {
	case ".yaml", ".yml":
		f, err := cueyaml.Extract(filename, data)
		if err != nil {
			return Master{}, fmt.Errorf("parse master %s: %w", filename, err)
		}
		doc = cctx.BuildFile(f)
	default:
		doc = cctx.CompileBytes(data, cue.Filename(filename))
	}
	if err := doc.Err(); err != nil {
		return Master{}, fmt.Errorf("parse master %s: %w", filename, err)
	}

	unified := schema.Unify(doc)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return Master{}, fmt.Errorf("validate master %s: %w", filename, err)
	}

	var m Master
	if err := unified.Decode(&m); err != nil {
		return Master{}, fmt.Errorf("decode master %s: %w", filename, err)
	}
	if m.Items == nil {
		m.Items = map[string]Item{}
	}
	return m, nil
}
