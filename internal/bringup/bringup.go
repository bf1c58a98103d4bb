package bringup

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/okieraised/perceptor-bringup/internal/cerrors"
	"github.com/okieraised/perceptor-bringup/internal/constants"
	"github.com/okieraised/perceptor-bringup/internal/launch"
	"github.com/okieraised/perceptor-bringup/internal/utilities"
	"github.com/pkg/errors"
)

// PackageResolver locates files inside ROS package share directories.
type PackageResolver interface {
	Path(pkg, rel string) (string, error)
}

type generator func(b *Bringup, args *launch.Arguments) (launch.Actions, error)

var generators = map[string]generator{}

func register(entry string, g generator) {
	generators[entry] = g
}

// Entries returns every launch entry point name, sorted.
func Entries() []string {
	out := make([]string, 0, len(generators))
	for name := range generators {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// EntryFile is the launch file path of entry inside the package share.
func EntryFile(entry string) string {
	return "launch/" + entry + ".launch.py"
}

// Bringup generates launch graphs for the perceptor package.
type Bringup struct {
	resolver       PackageResolver
	isaacRosWS     string
	systemInfoPath string

	systemInfoOnce sync.Once
	systemInfo     *SystemInfo
	systemInfoErr  error
}

type Option func(*Bringup)

func WithResolver(r PackageResolver) Option {
	return func(b *Bringup) {
		b.resolver = r
	}
}

// WithIsaacRosWS sets the workspace root holding isaac_ros_assets.
func WithIsaacRosWS(ws string) Option {
	return func(b *Bringup) {
		b.isaacRosWS = ws
	}
}

func WithSystemInfoPath(path string) Option {
	return func(b *Bringup) {
		b.systemInfoPath = path
	}
}

// WithSystemInfo provides an already loaded sensor inventory.
func WithSystemInfo(info *SystemInfo) Option {
	return func(b *Bringup) {
		b.systemInfoOnce.Do(func() {
			b.systemInfo = info
		})
	}
}

func New(opts ...Option) *Bringup {
	b := &Bringup{systemInfoPath: constants.DefaultSystemInfoPath}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Generate builds the launch graph of entry invoked with values. Values for
// names the entry does not declare are kept and passed down to the entries
// it includes.
func (b *Bringup) Generate(entry string, values map[string]string) (*launch.Description, error) {
	entry = strings.TrimSuffix(strings.TrimPrefix(strings.Trim(entry, "/"), "launch/"), ".launch.py")
	g, ok := generators[entry]
	if !ok {
		return nil, cerrors.ErrUnknownLaunchEntry.WithMessage("unknown launch entry %q", entry)
	}

	args := launch.NewArguments(values)
	actions, err := g(b, args)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to generate %s", entry)
	}
	if err := args.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to generate %s", entry)
	}

	d := launch.NewDescription(entry)
	d.Add(args.Declarations()...)
	d.Add(actions...)
	return d, nil
}

// include generates another entry of this package. The included entry sees
// every value visible to the parent, overridden by explicit.
func (b *Bringup) include(parent *launch.Arguments, entry string, explicit map[string]string) (*launch.Include, error) {
	d, err := b.Generate(entry, launch.Merge(parent.Values(), explicit))
	if err != nil {
		return nil, err
	}
	return &launch.Include{
		Package:     constants.PackageName,
		File:        EntryFile(entry),
		Arguments:   explicit,
		Description: d,
	}, nil
}

// external references a launch file owned by another package.
func external(pkg, file string, arguments map[string]string) *launch.Include {
	return &launch.Include{Package: pkg, File: file, Arguments: arguments}
}

// declare validates args once every argument has been declared.
func declare(args *launch.Arguments, fn func(*launch.Arguments)) error {
	fn(args)
	return args.Validate()
}

func (b *Bringup) path(pkg, rel string) (string, error) {
	if b.resolver == nil {
		return "", cerrors.ErrUnknownPackage.WithMessage("no package resolver configured to locate %s", pkg)
	}
	return b.resolver.Path(pkg, rel)
}

// ownPath resolves rel inside this package's share directory.
func (b *Bringup) ownPath(rel string) (string, error) {
	return b.path(constants.PackageName, rel)
}

// defaultOwnPath returns the value of name when provided, otherwise rel
// resolved inside this package.
func (b *Bringup) defaultOwnPath(args *launch.Arguments, name, rel string) (string, error) {
	if v, ok := args.Values()[name]; ok {
		return v, nil
	}
	return b.ownPath(rel)
}

// SystemInfo loads the Nova sensor inventory once.
func (b *Bringup) SystemInfo() (*SystemInfo, error) {
	b.systemInfoOnce.Do(func() {
		b.systemInfo, b.systemInfoErr = LoadSystemInfo(b.systemInfoPath)
	})
	return b.systemInfo, b.systemInfoErr
}

func requirePath(path, what string) error {
	if !utilities.PathExists(path) {
		return cerrors.ErrMissingPath.WithMessage("%s %s does not exist.", what, path)
	}
	return nil
}

func logf(format string, a ...any) *launch.LogInfo {
	return &launch.LogInfo{Message: fmt.Sprintf(format, a...)}
}

func load(container string, nodes ...launch.ComposableNode) *launch.LoadComposableNodes {
	return &launch.LoadComposableNodes{TargetContainer: container, Nodes: nodes}
}
