package directory

import (
	"errors"
	"fmt"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/okian/cupping/internal/domain/model"
)

const dateLayout = time.DateOnly

type seedFile struct {
	Groups []seedGroup `koanf:"groups"`
	Packs  []seedPack  `koanf:"packs"`
}

type seedGroup struct {
	ID      string   `koanf:"id"`
	Admins  []string `koanf:"admins"`
	Members []string `koanf:"members"`
}

type seedPack struct {
	ID         string `koanf:"id"`
	SampleID   string `koanf:"sample_id"`
	Name       string `koanf:"name"`
	Company    string `koanf:"company"`
	Origin     string `koanf:"origin"`
	Processing string `koanf:"processing"`
	RoastDate  string `koanf:"roast_date"`
	OpenDate   string `koanf:"open_date"`
	WeightG    int    `koanf:"weight_g"`
	Barcode    string `koanf:"barcode"`
	Archived   bool   `koanf:"archived"`
}

// Load builds a directory from a YAML seed file. Dates use YYYY-MM-DD.
func Load(path string) (*Memory, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrLoadDirectory, path, err)
	}
	var seed seedFile
	if err := k.UnmarshalWithConf("", &seed, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadDirectory, err)
	}

	m := New()
	for _, g := range seed.Groups {
		if g.ID == "" {
			return nil, fmt.Errorf("%w: group without id", ErrLoadDirectory)
		}
		m.PutGroup(g.ID, g.Admins, g.Members)
	}
	for _, p := range seed.Packs {
		pack, err := p.toModel()
		if err != nil {
			return nil, fmt.Errorf("%w: pack %q: %w", ErrLoadDirectory, p.ID, err)
		}
		m.PutPack(pack)
	}
	return m, nil
}

func (p seedPack) toModel() (model.Pack, error) {
	if p.ID == "" {
		return model.Pack{}, errors.New("missing id")
	}
	roast, err := parseDate(p.RoastDate)
	if err != nil {
		return model.Pack{}, fmt.Errorf("roast_date: %w", err)
	}
	opened, err := parseDate(p.OpenDate)
	if err != nil {
		return model.Pack{}, fmt.Errorf("open_date: %w", err)
	}
	return model.Pack{
		ID: p.ID,
		Sample: model.Sample{
			ID:          p.SampleID,
			Name:        p.Name,
			CompanyName: p.Company,
			Origin:      p.Origin,
			Processing:  p.Processing,
		},
		RoastDate: roast,
		OpenDate:  opened,
		WeightG:   p.WeightG,
		Barcode:   p.Barcode,
		Archived:  p.Archived,
	}, nil
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
