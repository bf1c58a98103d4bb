package perceptor

// Messages logged while resolving a configuration.
const (
	MsgDisablingCuvslam = "Disabling cuvslam."
	MsgDisablingNvblox  = "Disabling nvblox."
	MsgDisablingVgl     = "Disabling vgl."
	MsgDisablingRectify = "Disabling camera rectification."
)

// Resolution is a preset after the disable flags have been applied.
type Resolution struct {
	Name          string        `json:"name" yaml:"name"`
	Configuration Configuration `json:"configuration" yaml:"configuration"`
	Messages      []string      `json:"messages,omitempty" yaml:"messages,omitempty"`
}

// LoadPerceptorConfiguration resolves a named preset and strips the modules
// switched off by the disable flags. Disabling nvblox also removes every ESS
// token. Disabling both nvblox and vgl removes rectify as well, except for
// front_driver_rectify.
func LoadPerceptorConfiguration(name string, disableCuvslam, disableNvblox, disableVgl bool) (*Resolution, error) {
	c, err := Preset(name)
	if err != nil {
		return nil, err
	}
	res := &Resolution{Name: name}

	if disableCuvslam {
		c = c.Without(Cuvslam)
		res.Messages = append(res.Messages, MsgDisablingCuvslam)
	}
	if disableNvblox {
		c = c.Without(ESSFull, ESSLight, ESSSkipFrames, Nvblox)
		res.Messages = append(res.Messages, MsgDisablingNvblox)
	}
	if disableVgl {
		c = c.Without(VGL)
		res.Messages = append(res.Messages, MsgDisablingVgl)
	}
	if disableNvblox && disableVgl && name != FrontDriverRectify {
		c = c.Without(Rectify)
		res.Messages = append(res.Messages, MsgDisablingRectify)
	}

	res.Configuration = c
	return res, nil
}
