package perceptor

import (
	"sort"

	"github.com/okieraised/perceptor-bringup/internal/cerrors"
)

// Preset names.
const (
	NoCameras                          = "no_cameras"
	FrontConfiguration                 = "front_configuration"
	FrontPeopleConfiguration           = "front_people_configuration"
	FrontLeftRightConfiguration        = "front_left_right_configuration"
	FrontLeftRightVslamConfiguration   = "front_left_right_vslam_configuration"
	FrontBackLeftRightVglConfiguration = "front_back_left_right_vgl_configuration"
	FrontDriverRectify                 = "front_driver_rectify"
	FrontLeftRightNoDriver             = "front_left_right_configuration_nodriver"
	FrontBackLeftRightVoConfiguration  = "front_back_left_right_vo_configuration"
	FrontLeftRightESSFullConfiguration = "front_left_right_ess_full_configuration"
)

func preset(front, back, left, right string) Configuration {
	return Configuration{
		FrontStereoCamera: front,
		BackStereoCamera:  back,
		LeftStereoCamera:  left,
		RightStereoCamera: right,
	}
}

var presets = map[string]Configuration{
	NoCameras: preset("", "", "", ""),
	FrontConfiguration: preset(
		"driver,rectify,ess_full,vgl,cuvslam,nvblox", "", "", ""),
	FrontPeopleConfiguration: preset(
		"driver,rectify,ess_full,vgl,cuvslam,nvblox_people", "", "", ""),
	FrontLeftRightConfiguration: preset(
		"driver,rectify,ess_full,vgl,cuvslam,nvblox",
		"",
		"driver,rectify,ess_light,ess_skip_frames,vgl,cuvslam,nvblox",
		"driver,rectify,ess_light,ess_skip_frames,vgl,cuvslam,nvblox"),
	FrontLeftRightVslamConfiguration: preset(
		"driver,rectify,ess_full,vgl,cuvslam,nvblox",
		"",
		"driver,rectify,vgl,cuvslam",
		"driver,rectify,vgl,cuvslam"),
	FrontBackLeftRightVglConfiguration: preset(
		"driver,rectify,ess_full,vgl,cuvslam,nvblox",
		"driver,rectify,vgl",
		"driver,rectify,ess_full,vgl,cuvslam,nvblox",
		"driver,rectify,ess_full,vgl,cuvslam,nvblox"),
	FrontDriverRectify: preset("driver,rectify", "", "", ""),
	FrontLeftRightNoDriver: preset(
		"ess_full,vgl,cuvslam,nvblox",
		"",
		"ess_light,ess_skip_frames,vgl,cuvslam,nvblox",
		"ess_light,ess_skip_frames,vgl,cuvslam,nvblox"),
	FrontBackLeftRightVoConfiguration: preset(
		"driver,cuvslam", "driver,cuvslam", "driver,cuvslam", "driver,cuvslam"),
	FrontLeftRightESSFullConfiguration: preset(
		"driver,rectify,ess_full,cuvslam,nvblox",
		"",
		"driver,rectify,ess_full,cuvslam,nvblox",
		"driver,rectify,ess_full,cuvslam,nvblox"),
}

// Preset returns a copy of the named configuration.
func Preset(name string) (Configuration, error) {
	c, ok := presets[name]
	if !ok {
		return nil, cerrors.ErrUnknownConfiguration.WithMessage("unknown perceptor configuration %q", name)
	}
	return c.Clone(), nil
}

// PresetNames returns every preset name, sorted.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsPreset reports whether name is a known preset.
func IsPreset(name string) bool {
	_, ok := presets[name]
	return ok
}
