package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/andreyvit/docdb"
	"github.com/andreyvit/docdb/sortable"
)

// Config describes a database file and the collections declared in it.
type Config struct {
	Path          string                      `yaml:"path"`
	CompressAbove int                         `yaml:"compress_above"`
	MmapSize      int                         `yaml:"mmap_size"`
	Collections   map[string]CollectionConfig `yaml:"collections"`
}

type CollectionConfig struct {
	CacheCapacity *int              `yaml:"cache_capacity"` // default: docdb.DefaultCacheCapacity
	Indexes       map[string]string `yaml:"indexes"`        // field: string, number, boolean, stringNum, object
}

// LoadConfig reads a YAML config. A relative database path is resolved
// against the directory of the config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if !filepath.IsAbs(cfg.Path) {
		cfg.Path = filepath.Join(filepath.Dir(path), cfg.Path)
	}
	return cfg, nil
}

func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("path is required")
	}
	if c.CompressAbove < 0 {
		return fmt.Errorf("compress_above must not be negative")
	}
	for name, cc := range c.Collections {
		if _, err := cc.indexes(); err != nil {
			return fmt.Errorf("collection %s: %w", name, err)
		}
		if cc.CacheCapacity != nil && *cc.CacheCapacity < 0 {
			return fmt.Errorf("collection %s: cache_capacity must not be negative", name)
		}
	}
	return nil
}

func (cc CollectionConfig) indexes() (docdb.Indexes, error) {
	idx := make(docdb.Indexes, len(cc.Indexes))
	for field, kindName := range cc.Indexes {
		kind, err := sortable.ParseKind(kindName)
		if err != nil {
			return nil, fmt.Errorf("index %s: %w", field, err)
		}
		idx[field] = kind
	}
	return idx, nil
}

// Open opens the database and declares every configured collection.
func (c *Config) Open(opt docdb.Options) (*docdb.DB, error) {
	opt.CompressAbove = c.CompressAbove
	opt.MmapSize = c.MmapSize
	db, err := docdb.Open(c.Path, opt)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(c.Collections))
	for name := range c.Collections {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		cc := c.Collections[name]
		idx, err := cc.indexes()
		if err != nil {
			db.Close()
			return nil, err
		}
		var opts []docdb.CollectionOption
		if cc.CacheCapacity != nil {
			opts = append(opts, docdb.WithCacheCapacity(*cc.CacheCapacity))
		}
		if _, err := db.Collection(name, idx, opts...); err != nil {
			db.Close()
			return nil, err
		}
		if opt.Logger != nil {
			opt.Logger.Debug("collection declared", slog.String("name", name), slog.Int("indexes", len(idx)))
		}
	}
	return db, nil
}
