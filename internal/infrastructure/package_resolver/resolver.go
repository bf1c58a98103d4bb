package package_resolver

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/okieraised/perceptor-bringup/internal/cerrors"
	"github.com/okieraised/perceptor-bringup/internal/infrastructure/local_cache"
)

const (
	cacheKeyPrefix = "pkgshare:"
	cacheTTL       = 10 * time.Minute
	resourceIndex  = "share/ament_index/resource_index/packages"
)

// Resolver locates ROS package share directories the way ament_index does:
// prefixes are searched in order and the first one registering the package
// wins.
type Resolver struct {
	prefixes []string
	cache    *ristretto.Cache
}

type Option func(*Resolver)

// WithCache memoizes lookups in c.
func WithCache(c *ristretto.Cache) Option {
	return func(r *Resolver) {
		r.cache = c
	}
}

// NewResolver builds a resolver over a colon separated prefix list, usually
// the value of AMENT_PREFIX_PATH.
func NewResolver(amentPrefixPath string, opts ...Option) *Resolver {
	r := &Resolver{}
	for _, p := range strings.Split(amentPrefixPath, string(os.PathListSeparator)) {
		if p = strings.TrimSpace(p); p != "" {
			r.prefixes = append(r.prefixes, p)
		}
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Prefixes returns the search prefixes in lookup order.
func (r *Resolver) Prefixes() []string {
	return append([]string(nil), r.prefixes...)
}

// ShareDirectory returns <prefix>/share/<pkg> for the first prefix that
// provides pkg.
func (r *Resolver) ShareDirectory(pkg string) (string, error) {
	key := cacheKeyPrefix + pkg
	if dir, ok := local_cache.GetString(r.cache, key); ok {
		return dir, nil
	}
	for _, prefix := range r.prefixes {
		marker := filepath.Join(prefix, resourceIndex, pkg)
		dir := filepath.Join(prefix, "share", pkg)
		if fileExists(marker) || dirExists(dir) {
			local_cache.SetString(r.cache, key, dir, cacheTTL)
			return dir, nil
		}
	}
	return "", cerrors.ErrUnknownPackage.WithMessage("package %q not found in %d ament prefixes", pkg, len(r.prefixes))
}

// Path joins rel onto the share directory of pkg. The result is not
// required to exist.
func (r *Resolver) Path(pkg, rel string) (string, error) {
	dir, err := r.ShareDirectory(pkg)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, rel), nil
}

func fileExists(p string) bool {
	st, err := os.Stat(p)
	return err == nil && !st.IsDir()
}

func dirExists(p string) bool {
	st, err := os.Stat(p)
	return err == nil && st.IsDir()
}

var (
	globalResolver *Resolver
	globalOnce     sync.Once
)

// NewGlobal initializes the process-wide resolver once.
func NewGlobal(amentPrefixPath string, opts ...Option) {
	globalOnce.Do(func() {
		globalResolver = NewResolver(amentPrefixPath, opts...)
	})
}

// Global returns the process-wide resolver, falling back to the
// AMENT_PREFIX_PATH environment variable when NewGlobal was never called.
func Global() *Resolver {
	NewGlobal(os.Getenv("AMENT_PREFIX_PATH"), WithCache(local_cache.Cache()))
	return globalResolver
}
