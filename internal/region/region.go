// Package region reads the GeoJSON feature collections that list the golf
// clubs of each region.
package region

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb/geojson"

	"github.com/pfrederiksen/club-websites/internal/logger"
)

// ErrMissingFile is returned when a configured region file does not exist.
var ErrMissingFile = errors.New("region file missing")

// ParseError reports a region file whose content is not a feature
// collection.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing region file %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Club is one feature of a region file.
type Club struct {
	Name    *string
	Website *string
	Region  string
}

// DisplayName returns the club name, or a placeholder for unnamed features.
func (c Club) DisplayName() string {
	if c.Name == nil || *c.Name == "" {
		return "(unnamed)"
	}
	return *c.Name
}

// Region is a loaded region file.
type Region struct {
	ID    string
	Path  string
	Clubs []Club
}

// Failure records a region file that exists but could not be read.
type Failure struct {
	ID  string
	Err error
}

// Set is the outcome of loading every configured region.
type Set struct {
	Regions []*Region
	Missing []string
	Failed  []Failure
}

// TotalClubs counts the clubs across all loaded regions.
func (s *Set) TotalClubs() int {
	total := 0
	for _, r := range s.Regions {
		total += len(r.Clubs)
	}
	return total
}

// Load reads the region file at path. Clubs are tagged with id and keep
// the order of the features in the file. Only content that is not JSON, or
// a features member that is not an array, fails the file; a feature that
// does not decode as GeoJSON still yields a club.
func Load(path, id string) (*Region, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrMissingFile, path)
		}
		return nil, fmt.Errorf("reading region file: %w", err)
	}

	var doc collectionDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	var features []json.RawMessage
	if len(doc.Features) > 0 && string(doc.Features) != "null" {
		if err := json.Unmarshal(doc.Features, &features); err != nil {
			return nil, &ParseError{Path: path, Err: fmt.Errorf("features is not an array: %w", err)}
		}
	}

	clubs := make([]Club, 0, len(features))
	for i, raw := range features {
		props := featureProperties(raw)
		if props == nil {
			logger.Debug("Feature without readable properties", logger.Fields{
				"region":  id,
				"feature": i,
			})
		}
		clubs = append(clubs, Club{
			Name:    stringProperty(props, "name"),
			Website: websiteProperty(props),
			Region:  id,
		})
	}

	return &Region{ID: id, Path: path, Clubs: clubs}, nil
}

// LoadAll loads every region id from dataDir in order. Missing and
// unreadable files are collected in the Set and never stop the load.
func LoadAll(dataDir string, ids []string) *Set {
	set := &Set{}
	for _, id := range ids {
		path := ResolvePath(dataDir, id)

		r, err := Load(path, id)
		switch {
		case err == nil:
			logger.Debug("Region loaded", logger.Fields{
				"region": id,
				"clubs":  len(r.Clubs),
			})
			set.Regions = append(set.Regions, r)
		case errors.Is(err, ErrMissingFile):
			logger.Warn("Region file missing", logger.Fields{"region": id, "path": path})
			set.Missing = append(set.Missing, id)
		default:
			logger.Error("Region file unreadable", logger.Fields{"region": id, "path": path}, err)
			set.Failed = append(set.Failed, Failure{ID: id, Err: err})
		}
	}
	return set
}

// ResolvePath joins a region id onto dataDir, expanding a leading ~/ in
// dataDir. Absolute ids are used as-is.
func ResolvePath(dataDir, id string) string {
	if filepath.IsAbs(id) {
		return id
	}
	if strings.HasPrefix(dataDir, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			dataDir = filepath.Join(home, dataDir[2:])
		}
	}
	return filepath.Join(dataDir, id)
}

// collectionDoc is the part of a feature collection the reader needs. The
// top-level type member is not checked.
type collectionDoc struct {
	Features json.RawMessage `json:"features"`
}

// featureProperties returns the properties of one feature. Features orb
// cannot decode, such as ones with a broken geometry or no type member, are
// read for their properties alone. Every feature yields a club, so the
// result may be nil.
func featureProperties(raw json.RawMessage) geojson.Properties {
	if f, err := geojson.UnmarshalFeature(raw); err == nil {
		return f.Properties
	}

	var bare struct {
		Properties map[string]interface{} `json:"properties"`
	}
	if err := json.Unmarshal(raw, &bare); err != nil {
		return nil
	}
	return geojson.Properties(bare.Properties)
}

func stringProperty(props geojson.Properties, key string) *string {
	if props == nil {
		return nil
	}
	s, ok := props[key].(string)
	if !ok {
		return nil
	}
	return &s
}

// websiteProperty treats a blank website like a missing one.
func websiteProperty(props geojson.Properties) *string {
	s := stringProperty(props, "website")
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
