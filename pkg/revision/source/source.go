// Package source abstracts where revision scripts are stored. Scripts
// are discovered by the <id>_<slug>.sql naming convention.
package source

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/finwise/finmig/pkg/revision"
	"github.com/finwise/finmig/pkg/revision/source/local"
	"github.com/finwise/finmig/pkg/revision/source/s3"
)

// Source lists, reads and writes revision scripts. Read-only backends
// return an error from Write.
type Source interface {
	List(ctx context.Context) ([]string, error)
	Read(ctx context.Context, name string) ([]byte, error)
	Write(ctx context.Context, name string, data []byte) error
}

// New creates a script source. Supported types are "local" (conn is a
// directory path) and "s3" (conn is key:secret@bucket.region, with an
// optional /prefix after the region).
func New(typ, conn string) (Source, error) {
	switch typ {
	case "local":
		return local.New(conn), nil
	case "s3":
		split := strings.Split(conn, "@")
		if len(split) != 2 {
			return nil, fmt.Errorf("source: invalid s3 connection string %q", conn)
		}
		auth := strings.Split(split[0], ":")
		if len(auth) != 2 {
			return nil, fmt.Errorf("source: invalid s3 auth string %q", conn)
		}
		key, secret := auth[0], auth[1]
		loc, prefix, _ := strings.Cut(split[1], "/")
		dot := strings.Split(loc, ".")
		if len(dot) != 2 {
			return nil, fmt.Errorf("source: invalid s3 location string %q", conn)
		}
		bucket, region := dot[0], dot[1]
		candidate, err := s3.New(key, secret, region, bucket, prefix)
		if err != nil {
			return nil, fmt.Errorf("source: %w", err)
		}
		return candidate, nil
	default:
		return nil, fmt.Errorf("source: unknown script source type %q", typ)
	}
}

// Load reads and parses every revision script in the source and builds
// the revision chain.
func Load(ctx context.Context, src Source) (*revision.Chain, error) {
	names, err := src.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("source: couldn't list scripts: %w", err)
	}
	sort.Strings(names)
	var revs []*revision.Revision
	for _, name := range names {
		if !strings.HasSuffix(name, ".sql") {
			continue
		}
		data, err := src.Read(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("source: couldn't read script %q: %w", name, err)
		}
		rev, err := revision.Parse(name, data)
		if err != nil {
			return nil, err
		}
		revs = append(revs, rev)
	}
	chain, err := revision.NewChain(revs)
	if err != nil {
		return nil, err
	}
	return chain, nil
}
