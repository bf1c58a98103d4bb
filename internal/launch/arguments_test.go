package launch

import (
	"testing"

	"github.com/okieraised/perceptor-bringup/internal/cerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func TestArguments_Defaults(t *testing.T) {
	args := NewArguments(map[string]string{"global_frame": "map", "unrelated": "x"})
	args.Add("global_frame", "odom")
	args.Add("invert_odom_to_base_tf", false)
	args.Add("send_buffer_limit", 10000000)
	args.Add("replay_rate", 0.1)
	args.AddRequired("enabled_stereo_cameras_for_vslam")

	assert.Equal(t, "map", args.String("global_frame"))
	assert.Equal(t, "False", args.String("invert_odom_to_base_tf"))
	assert.Equal(t, 10000000, args.Int("send_buffer_limit"))
	assert.InDelta(t, 0.1, args.Float("replay_rate"), 1e-9)
	assert.Equal(t, "x", args.String("unrelated"))
	assert.False(t, args.Has("enabled_stereo_cameras_for_vslam"))
	assert.NoError(t, args.Err())

	err := args.Validate()
	require.Error(t, err)
	assert.True(t, cerrors.IsCode(err, cerrors.ErrMissingArgument.Code))
}

func TestArguments_Choices(t *testing.T) {
	args := NewArguments(map[string]string{"mode": "replay", "log_level": "warn"})
	args.AddRequired("mode", WithChoices("real_world", "simulation", "rosbag"))
	args.Add("log_level", "info", WithChoices("debug", "info", "warn"), WithCLI())

	errs := multierr.Errors(args.Validate())
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), `"mode"`)
	assert.Contains(t, errs[0].Error(), "real_world, simulation, rosbag")
	assert.True(t, args.Specs()[1].CLI)
}

func TestArguments_Bool(t *testing.T) {
	args := NewArguments(map[string]string{"a": "TRUE", "b": "0", "c": "yes"})
	assert.True(t, args.Bool("a"))
	assert.False(t, args.Bool("b"))
	assert.NoError(t, args.Err())

	assert.False(t, args.Bool("c"))
	assert.True(t, cerrors.IsCode(args.Err(), cerrors.ErrInvalidArgument.Code))
}

func TestArguments_IsValid(t *testing.T) {
	args := NewArguments(map[string]string{"empty": "", "none": "None", "set": "front_2d_lidar"})
	args.Add("rviz_config", "None")
	assert.False(t, args.IsValid("empty"))
	assert.False(t, args.IsValid("none"))
	assert.False(t, args.IsValid("rviz_config"))
	assert.False(t, args.IsValid("never_declared"))
	assert.True(t, args.IsValid("set"))
}

func TestArguments_ValuesAndDeclarations(t *testing.T) {
	args := NewArguments(map[string]string{"container_name": "my_container", "mode": "rosbag"})
	args.Add("container_name", "nova_container", WithDescription("component container"))
	args.AddRequired("enabled_stereo_cameras")

	assert.Equal(t, map[string]string{"container_name": "my_container", "mode": "rosbag"}, args.Values())

	decls := args.Declarations()
	require.Len(t, decls, 2)
	first := decls[0].(*DeclareArgument)
	assert.Equal(t, "container_name", first.Name)
	require.NotNil(t, first.Default)
	assert.Equal(t, "nova_container", *first.Default)
	assert.Equal(t, "component container", first.Description)
	assert.Nil(t, decls[1].(*DeclareArgument).Default)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "True", Format(true))
	assert.Equal(t, "0.1", Format(0.1))
	assert.Equal(t, "15", Format(15))
	assert.Equal(t, "", Format(nil))
}

func TestMerge(t *testing.T) {
	out := Merge(map[string]string{"a": "1", "b": "1"}, map[string]string{"b": "2"})
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, out)
	assert.Equal(t, []string{"a", "b"}, SortedKeys(out))
}
