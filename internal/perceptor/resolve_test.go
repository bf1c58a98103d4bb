package perceptor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPerceptorConfiguration(t *testing.T) {
	tests := []struct {
		name           string
		preset         string
		disableCuvslam bool
		disableNvblox  bool
		disableVgl     bool
		expected       Configuration
		messages       []string
	}{
		{
			name:   "nothing disabled",
			preset: FrontConfiguration,
			expected: Configuration{
				FrontStereoCamera: "driver,rectify,ess_full,vgl,cuvslam,nvblox",
				BackStereoCamera:  "", LeftStereoCamera: "", RightStereoCamera: "",
			},
		},
		{
			name:           "cuvslam disabled",
			preset:         FrontLeftRightVslamConfiguration,
			disableCuvslam: true,
			expected: Configuration{
				FrontStereoCamera: "driver,rectify,ess_full,vgl,nvblox",
				BackStereoCamera:  "",
				LeftStereoCamera:  "driver,rectify,vgl",
				RightStereoCamera: "driver,rectify,vgl",
			},
			messages: []string{MsgDisablingCuvslam},
		},
		{
			name:          "nvblox disabled strips ess",
			preset:        FrontLeftRightConfiguration,
			disableNvblox: true,
			expected: Configuration{
				FrontStereoCamera: "driver,rectify,vgl,cuvslam",
				BackStereoCamera:  "",
				LeftStereoCamera:  "driver,rectify,vgl,cuvslam",
				RightStereoCamera: "driver,rectify,vgl,cuvslam",
			},
			messages: []string{MsgDisablingNvblox},
		},
		{
			name:          "nvblox disabled strips people segmentation",
			preset:        FrontPeopleConfiguration,
			disableNvblox: true,
			expected: Configuration{
				FrontStereoCamera: "driver,rectify,vgl,cuvslam",
				BackStereoCamera:  "", LeftStereoCamera: "", RightStereoCamera: "",
			},
			messages: []string{MsgDisablingNvblox},
		},
		{
			name:       "vgl disabled keeps rectify",
			preset:     FrontBackLeftRightVglConfiguration,
			disableVgl: true,
			expected: Configuration{
				FrontStereoCamera: "driver,rectify,ess_full,cuvslam,nvblox",
				BackStereoCamera:  "driver,rectify",
				LeftStereoCamera:  "driver,rectify,ess_full,cuvslam,nvblox",
				RightStereoCamera: "driver,rectify,ess_full,cuvslam,nvblox",
			},
			messages: []string{MsgDisablingVgl},
		},
		{
			name:          "nvblox and vgl disabled cascades to rectify",
			preset:        FrontLeftRightConfiguration,
			disableNvblox: true,
			disableVgl:    true,
			expected: Configuration{
				FrontStereoCamera: "driver,cuvslam",
				BackStereoCamera:  "",
				LeftStereoCamera:  "driver,cuvslam",
				RightStereoCamera: "driver,cuvslam",
			},
			messages: []string{MsgDisablingNvblox, MsgDisablingVgl, MsgDisablingRectify},
		},
		{
			name:          "front_driver_rectify keeps rectify",
			preset:        FrontDriverRectify,
			disableNvblox: true,
			disableVgl:    true,
			expected: Configuration{
				FrontStereoCamera: "driver,rectify",
				BackStereoCamera:  "", LeftStereoCamera: "", RightStereoCamera: "",
			},
			messages: []string{MsgDisablingNvblox, MsgDisablingVgl},
		},
		{
			name:           "everything disabled",
			preset:         FrontLeftRightNoDriver,
			disableCuvslam: true,
			disableNvblox:  true,
			disableVgl:     true,
			expected: Configuration{
				FrontStereoCamera: "", BackStereoCamera: "", LeftStereoCamera: "", RightStereoCamera: "",
			},
			messages: []string{MsgDisablingCuvslam, MsgDisablingNvblox, MsgDisablingVgl, MsgDisablingRectify},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := LoadPerceptorConfiguration(tt.preset, tt.disableCuvslam, tt.disableNvblox, tt.disableVgl)
			require.NoError(t, err)
			assert.Equal(t, tt.preset, res.Name)
			assert.Equal(t, tt.expected, res.Configuration)
			assert.Equal(t, tt.messages, res.Messages)
		})
	}
}

func TestLoadPerceptorConfiguration_Unknown(t *testing.T) {
	_, err := LoadPerceptorConfiguration("missing", false, false, false)
	assert.Error(t, err)
}
